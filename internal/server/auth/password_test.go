package auth

import (
	"testing"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestNewOneTimeToken(t *testing.T) {
	raw, hashed, err := NewOneTimeToken()
	require.NoError(t, err)
	assert.Len(t, raw, 40)
	assert.Equal(t, common.HashToken(raw), hashed)

	raw2, _, err := NewOneTimeToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}
