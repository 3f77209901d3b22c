package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("prog-1", "prog-1/an-1.webm")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	id, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "prog-1", id)
	assert.Equal(t, "prog-1/an-1.webm", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExpiry.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("prog-1", "prog-1/an-1.webm")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "prog-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	// Tokens signed with a different secret never verify.
	other := NewSignedURLSigner("other-secret", time.Minute)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Nanosecond)
	token, _, err := signer.Generate("prog-1", "a.webm")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	// Cleanup paths may inspect expired tokens.
	_, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "a.webm", relPath)
}

func TestSignedURLRequiresInputs(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	_, _, err := signer.Generate("", "a.webm")
	require.Error(t, err)
	_, _, err = signer.Generate("prog-1", "")
	require.Error(t, err)

	empty := NewSignedURLSigner("", time.Minute)
	_, _, err = empty.Generate("prog-1", "a.webm")
	require.Error(t, err)
}
