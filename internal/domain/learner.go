package domain

import "time"

// Learner represents a person enrolled in one or more courses. Learners
// are created lazily on first sighting and updated on any field change.
type Learner struct {
	id                   string
	fullName             string
	email                string
	certificateExpiresAt time.Time
}

// NewLearner constructs a new Learner, validating its invariants.
func NewLearner(id, fullName, email string, certificateExpiresAt time.Time) (Learner, error) {
	if email == "" {
		return Learner{}, NewValidationError("email", "learner email must not be empty")
	}
	return Learner{
		id:                   id,
		fullName:             fullName,
		email:                email,
		certificateExpiresAt: certificateExpiresAt,
	}, nil
}

// ReconstructLearner rehydrates a Learner from storage.
func ReconstructLearner(id, fullName, email string, certificateExpiresAt time.Time) Learner {
	return Learner{
		id:                   id,
		fullName:             fullName,
		email:                email,
		certificateExpiresAt: certificateExpiresAt,
	}
}

func (l Learner) ID() string                      { return l.id }
func (l Learner) FullName() string                { return l.fullName }
func (l Learner) Email() string                   { return l.email }
func (l Learner) CertificateExpiresAt() time.Time { return l.certificateExpiresAt }

// MergeIngest applies a later ingest's observed values.
func (l Learner) MergeIngest(fullName string, certificateExpiresAt time.Time) Learner {
	merged := l
	if fullName != "" {
		merged.fullName = fullName
	}
	if !certificateExpiresAt.Equal(l.certificateExpiresAt) {
		merged.certificateExpiresAt = certificateExpiresAt
	}
	return merged
}
