package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoTokenKey is returned by token operations before UseTokenKey succeeded.
var ErrNoTokenKey = errors.New("no token encryption key configured")

// UseTokenKey configures AES-256-GCM sealing of stored OAuth tokens. The
// secret is hashed to the key size, so any non-empty string works.
func (d *DB) UseTokenKey(secret string) error {
	if secret == "" {
		return ErrNoTokenKey
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}
	d.tokens = gcm
	return nil
}

// seal prefixes the ciphertext with its random nonce.
func (d *DB) seal(plaintext string) ([]byte, error) {
	if d.tokens == nil {
		return nil, ErrNoTokenKey
	}
	nonce := make([]byte, d.tokens.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return d.tokens.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (d *DB) open(sealed []byte) (string, error) {
	if d.tokens == nil {
		return "", ErrNoTokenKey
	}
	n := d.tokens.NonceSize()
	if len(sealed) < n {
		return "", fmt.Errorf("ciphertext too short")
	}
	plaintext, err := d.tokens.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

type sealedToken struct {
	access  []byte
	refresh []byte
	expiry  *time.Time
}

func (d *DB) sealToken(token *oauth2.Token) (*sealedToken, error) {
	access, err := d.seal(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := d.seal(token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	out := &sealedToken{access: access, refresh: refresh}
	if !token.Expiry.IsZero() {
		utc := token.Expiry.UTC()
		out.expiry = &utc
	}
	return out, nil
}

// GetGoogleToken retrieves the OAuth2 token for a consultant. It returns nil
// when the consultant has not connected a calendar.
func (d *DB) GetGoogleToken(consultantID int64) (*oauth2.Token, error) {
	var (
		access, refresh []byte
		tokenType       string
		expiry          sql.NullTime
	)
	err := d.QueryRow(`
		SELECT access_token_encrypted, refresh_token_encrypted, token_type, expiry
		FROM google_tokens WHERE consultant_id = ?
	`, consultantID).Scan(&access, &refresh, &tokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get google token: %w", err)
	}

	token := &oauth2.Token{TokenType: tokenType}
	if token.AccessToken, err = d.open(access); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if token.RefreshToken, err = d.open(refresh); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if expiry.Valid {
		token.Expiry = expiry.Time
	}
	return token, nil
}

// SaveGoogleToken stores the token granted during calendar consent, replacing
// any previous grant for the consultant.
func (d *DB) SaveGoogleToken(consultantID int64, token *oauth2.Token, email string, scopes []string) error {
	sealed, err := d.sealToken(token)
	if err != nil {
		return err
	}
	scopesJSON, err := json.Marshal(scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}

	_, err = d.Exec(`
		INSERT INTO google_tokens (consultant_id, access_token_encrypted, refresh_token_encrypted, token_type, expiry, scopes, email, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(consultant_id) DO UPDATE SET
			access_token_encrypted = excluded.access_token_encrypted,
			refresh_token_encrypted = excluded.refresh_token_encrypted,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			scopes = excluded.scopes,
			email = excluded.email,
			updated_at = CURRENT_TIMESTAMP
	`, consultantID, sealed.access, sealed.refresh, token.TokenType, sealed.expiry, string(scopesJSON), email)
	if err != nil {
		return fmt.Errorf("failed to save google token: %w", err)
	}
	return nil
}

// UpdateGoogleToken persists a refreshed token. Scopes and email are kept.
func (d *DB) UpdateGoogleToken(consultantID int64, token *oauth2.Token) error {
	sealed, err := d.sealToken(token)
	if err != nil {
		return err
	}

	res, err := d.Exec(`
		UPDATE google_tokens SET
			access_token_encrypted = ?, refresh_token_encrypted = ?, token_type = ?, expiry = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE consultant_id = ?
	`, sealed.access, sealed.refresh, token.TokenType, sealed.expiry, consultantID)
	if err != nil {
		return fmt.Errorf("failed to update google token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("google token for consultant %d: %w", consultantID, ErrNotFound)
	}
	return nil
}

// DeleteGoogleToken forgets a consultant's calendar grant.
func (d *DB) DeleteGoogleToken(consultantID int64) error {
	if _, err := d.Exec(`DELETE FROM google_tokens WHERE consultant_id = ?`, consultantID); err != nil {
		return fmt.Errorf("failed to delete google token: %w", err)
	}
	return nil
}
