// ABOUTME: Tests for bcrypt password hashing
// ABOUTME: Covers hash/compare roundtrip and mismatch handling

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_Roundtrip(t *testing.T) {
	h := NewBcryptHasher(4) // minimum cost keeps tests fast

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, h.Compare(hash, "s3cret"))
}

func TestBcryptHasher_Mismatch(t *testing.T) {
	h := NewBcryptHasher(4)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrWrongPassword)
}

func TestBcryptHasher_DistinctHashes(t *testing.T) {
	h := NewBcryptHasher(4)

	first, err := h.Hash("s3cret")
	require.NoError(t, err)
	second, err := h.Hash("s3cret")
	require.NoError(t, err)

	// Salted hashes differ even for identical inputs
	assert.NotEqual(t, first, second)
}
