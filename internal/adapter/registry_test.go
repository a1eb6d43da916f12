package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopAdapter struct{}

func (noopAdapter) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return nil, nil
}

func TestRegistry_ResolveIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register("Email", noopAdapter{})

	a, err := r.Resolve("EMAIL")
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRegistry_ResolveEmptyChannelFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.Register("default", noopAdapter{})

	a, err := r.Resolve("")
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRegistry_ResolveUnknownChannelErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("sms")
	assert.Error(t, err)
}
