package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProofCursor_EncodeDecode(t *testing.T) {
	c := ProofCursor{Timestamp: time.Date(2026, 3, 1, 8, 30, 0, 123, time.UTC), ID: "p-1|x"}

	got, err := DecodeProofCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, c.ID, got.ID)
}

func TestDecodeProofCursor_Invalid(t *testing.T) {
	for _, token := range []string{"%%%", "bm9waXBl", "YWJjfA"} {
		_, err := DecodeProofCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}
