package gcal

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// CallbackPath is where Google redirects after consent.
const CallbackPath = "/oauth/google/callback"

// OAuthScopes are the scopes a consultant grants when connecting a calendar.
var OAuthScopes = []string{
	calendar.CalendarScope,
}

// Credentials locates the OAuth client secret downloaded from the Google
// console. Inline JSON wins over the file.
type Credentials struct {
	JSON    string
	File    string
	BaseURL string
}

// LoadOAuthConfig builds the consent flow config with the redirect pointed
// at BaseURL + CallbackPath.
func LoadOAuthConfig(creds Credentials) (*oauth2.Config, error) {
	data := []byte(strings.TrimSpace(creds.JSON))
	if len(data) == 0 {
		if creds.File == "" {
			return nil, errors.New("no Google credentials: set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE")
		}
		var err error
		if data, err = os.ReadFile(creds.File); err != nil {
			return nil, fmt.Errorf("failed to read credentials file %s: %w", creds.File, err)
		}
	}

	config, err := google.ConfigFromJSON(data, OAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Google credentials: %w", err)
	}
	config.RedirectURL = strings.TrimRight(creds.BaseURL, "/") + CallbackPath
	return config, nil
}
