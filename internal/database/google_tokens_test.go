package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGoogleTokenStorage(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.UseTokenKey("test-key-for-google-tokens"))
	consultant := CreateTestConsultant(t, db)

	t.Run("missing token is nil", func(t *testing.T) {
		token, err := db.GetGoogleToken(consultant.ID)
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("save and read back", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour).Truncate(time.Second)
		err := db.SaveGoogleToken(consultant.ID, &oauth2.Token{
			AccessToken:  "access-token-12345",
			RefreshToken: "refresh-token-67890",
			TokenType:    "Bearer",
			Expiry:       expiry,
		}, "consultant@example.com", []string{"https://www.googleapis.com/auth/calendar"})
		require.NoError(t, err)

		got, err := db.GetGoogleToken(consultant.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "access-token-12345", got.AccessToken)
		assert.Equal(t, "refresh-token-67890", got.RefreshToken)
		assert.Equal(t, "Bearer", got.TokenType)
		assert.True(t, expiry.Equal(got.Expiry))
	})

	t.Run("stored ciphertext hides the token", func(t *testing.T) {
		var access []byte
		require.NoError(t, db.QueryRow(`SELECT access_token_encrypted FROM google_tokens WHERE consultant_id = ?`, consultant.ID).Scan(&access))
		assert.NotContains(t, string(access), "access-token-12345")
	})

	t.Run("refresh keeps the grant", func(t *testing.T) {
		require.NoError(t, db.UpdateGoogleToken(consultant.ID, &oauth2.Token{
			AccessToken:  "new-access-token",
			RefreshToken: "new-refresh-token",
			TokenType:    "Bearer",
		}))

		got, err := db.GetGoogleToken(consultant.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "new-access-token", got.AccessToken)
		assert.True(t, got.Expiry.IsZero())
	})

	t.Run("refresh without grant", func(t *testing.T) {
		err := db.UpdateGoogleToken(consultant.ID+1000, &oauth2.Token{AccessToken: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, db.DeleteGoogleToken(consultant.ID))
		token, err := db.GetGoogleToken(consultant.ID)
		require.NoError(t, err)
		assert.Nil(t, token)
	})
}

func TestGoogleTokenKey(t *testing.T) {
	db := NewTestDB(t)
	consultant := CreateTestConsultant(t, db)
	token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}

	assert.ErrorIs(t, db.UseTokenKey(""), ErrNoTokenKey)
	assert.ErrorIs(t, db.SaveGoogleToken(consultant.ID, token, "", nil), ErrNoTokenKey)

	require.NoError(t, db.UseTokenKey("first"))
	require.NoError(t, db.SaveGoogleToken(consultant.ID, token, "", nil))

	require.NoError(t, db.UseTokenKey("second"))
	_, err := db.GetGoogleToken(consultant.ID)
	assert.Error(t, err)
}
