package domain

import domainerrors "github.com/eloym/formasur/internal/domain/errors"

// NewValidationError constructs the domain-wide invariant-violation error,
// re-exported here so entity constructors don't need to import the errors
// subpackage under an alias at every call site.
func NewValidationError(field, message string) error {
	return domainerrors.NewValidationError(field, message)
}
