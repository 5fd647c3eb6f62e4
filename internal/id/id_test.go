package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsValidAndUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		s := New()
		require.True(t, Valid(s), s)
		assert.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
}

func TestAtSortsWithinSameMillisecond(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 22, 6, 0, 0, 0, time.UTC)
	prev := At(ts)
	for i := 0; i < 100; i++ {
		next := At(ts)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestAtCarriesTimestamp(t *testing.T) {
	t.Parallel()

	ts := time.Date(2023, 6, 1, 12, 30, 0, 0, time.UTC)
	u, err := ulid.ParseStrict(At(ts))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(ts), u.Time())
}

func TestValidRejectsGarbage(t *testing.T) {
	t.Parallel()

	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}
