package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_GenerateChallenge(t *testing.T) {
	auth := NewAuthHandler("test-secret")

	challenge1, err := auth.GenerateChallenge()
	require.NoError(t, err)
	challenge2, err := auth.GenerateChallenge()
	require.NoError(t, err)

	assert.Len(t, challenge1, 64)
	assert.NotEqual(t, challenge1, challenge2)
}

func TestSign(t *testing.T) {
	h := hmac.New(sha256.New, []byte("test-secret"))
	h.Write([]byte("challenge"))

	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), Sign("test-secret", "challenge"))
}

func TestAuthHandler_VerifySignature(t *testing.T) {
	auth := NewAuthHandler("test-secret")
	challenge, err := auth.GenerateChallenge()
	require.NoError(t, err)

	assert.True(t, auth.VerifySignature(challenge, Sign("test-secret", challenge)))
	assert.False(t, auth.VerifySignature(challenge, "invalid-signature"))
	assert.False(t, auth.VerifySignature(challenge, Sign("wrong-secret", challenge)))
}

func TestAuthHandler_VerifySecret(t *testing.T) {
	assert.True(t, NewAuthHandler("s3cret").VerifySecret("s3cret"))
	assert.False(t, NewAuthHandler("s3cret").VerifySecret("guess"))
	assert.True(t, NewAuthHandler("").VerifySecret(""))
	assert.False(t, NewAuthHandler("").Enabled())
}

func TestAuthHandler_HandleAuthResponse(t *testing.T) {
	auth := NewAuthHandler("test-secret")

	t.Run("valid signature", func(t *testing.T) {
		client := &Client{ID: "c1", Challenge: "test-challenge"}

		result := auth.HandleAuthResponse(client, Sign("test-secret", "test-challenge"))

		assert.True(t, result.Success)
		assert.Equal(t, "auth.success", result.Event)
		assert.True(t, client.Authenticated)
		assert.Equal(t, StateAuthenticated, client.State)
		assert.Empty(t, client.Challenge)
	})

	t.Run("invalid signature", func(t *testing.T) {
		client := &Client{ID: "c2", Challenge: "test-challenge"}

		result := auth.HandleAuthResponse(client, "invalid-signature")

		assert.False(t, result.Success)
		assert.Equal(t, "auth.failure", result.Event)
		assert.False(t, client.Authenticated)
		assert.Equal(t, 1, client.AuthAttempts)
	})

	t.Run("blocks after three attempts", func(t *testing.T) {
		client := &Client{ID: "c3", Challenge: "test-challenge", AuthAttempts: 2}

		result := auth.HandleAuthResponse(client, "invalid-signature")

		assert.Contains(t, result.Message, "Too many failed attempts")
		assert.Equal(t, maxAuthAttempts, client.AuthAttempts)
	})

	t.Run("no challenge", func(t *testing.T) {
		client := &Client{ID: "c4"}

		result := auth.HandleAuthResponse(client, "any-signature")

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "No challenge found")
	})
}
