package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:5000"
	tokenFileName = ".labstock_token"
)

// APIURL returns the base URL of the labstock server.
// It can be overridden with the LABSTOCK_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("LABSTOCK_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is where the session token is kept between invocations.
// LABSTOCK_TOKEN_FILE overrides the default ~/.labstock_token.
func TokenPath() string {
	if v := os.Getenv("LABSTOCK_TOKEN_FILE"); v != "" {
		return v
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return tokenFileName
	}
	return filepath.Join(dir, tokenFileName)
}

// ErrNotLoggedIn is returned when no token has been saved.
var ErrNotLoggedIn = errors.New("not logged in; run `labstock login` first")

// SaveToken stores the token readable only by the current user.
func SaveToken(token string) error {
	return os.WriteFile(TokenPath(), []byte(token), 0o600)
}

// LoadToken reads the saved token.
func LoadToken() (string, error) {
	data, err := os.ReadFile(TokenPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotLoggedIn
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// RemoveToken deletes the saved token. A missing file is not an error.
func RemoveToken() error {
	if err := os.Remove(TokenPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
