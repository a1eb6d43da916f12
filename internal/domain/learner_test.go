package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLearner_RejectsEmptyEmail(t *testing.T) {
	_, err := NewLearner("l1", "Ana Perez", "", time.Time{})
	assert.Error(t, err)
}

func TestLearner_MergeIngest_UpdatesFullNameWhenNonEmpty(t *testing.T) {
	l, err := NewLearner("l1", "Ana Perez", "ana@example.com", time.Time{})
	require.NoError(t, err)

	merged := l.MergeIngest("Ana P. Gomez", time.Time{})
	assert.Equal(t, "Ana P. Gomez", merged.FullName())
}

func TestLearner_MergeIngest_KeepsFullNameWhenEmpty(t *testing.T) {
	l, err := NewLearner("l1", "Ana Perez", "ana@example.com", time.Time{})
	require.NoError(t, err)

	merged := l.MergeIngest("", time.Time{})
	assert.Equal(t, "Ana Perez", merged.FullName())
}

func TestLearner_MergeIngest_UpdatesCertificateExpiresAtWhenDifferent(t *testing.T) {
	l, err := NewLearner("l1", "Ana Perez", "ana@example.com", time.Time{})
	require.NoError(t, err)

	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	merged := l.MergeIngest("", expires)
	assert.True(t, expires.Equal(merged.CertificateExpiresAt()))
}
