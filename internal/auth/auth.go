package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/idilsaglam/dayplan/internal/store/jsonstore"
)

const (
	credFileName = "credentials.json"
	// EnvToken overrides whatever is stored on disk.
	EnvToken = "DAYPLAN_TOKEN"
)

type TokenInfo struct {
	Token     string     `json:"token"`
	CSRFToken string     `json:"csrf_token,omitempty"`
	User      string     `json:"user,omitempty"`   // user slug used in API paths
	Source    string     `json:"source"`           // "env" | "file"
	CreatedAt time.Time  `json:"created_at"`       // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"`       // optional (JWT or server-provided)
}

// Store keeps credentials in Dir/credentials.json.
type Store struct {
	Dir string
}

// DefaultDir is ~/.dayplan.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".dayplan"), nil
}

func (s Store) path() string { return filepath.Join(s.Dir, credFileName) }

// Get returns the active credentials, or nil when not logged in.
func (s Store) Get() (*TokenInfo, error) {
	var ti TokenInfo
	found, err := jsonstore.Load(s.path(), &ti)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	// env override keeps the stored user/csrf if there are any
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		ti.Token = StripBearer(env)
		ti.Source = "env"
		return &ti, nil
	}
	if !found {
		return nil, nil
	}
	ti.Token = StripBearer(ti.Token)
	ti.Source = "file"
	return &ti, nil
}

// Set writes credentials with owner-only permissions.
func (s Store) Set(ti TokenInfo) error {
	ti.Token = StripBearer(strings.TrimSpace(ti.Token))
	if ti.Token == "" {
		return errors.New("empty token")
	}
	ti.Source = "file"
	if ti.CreatedAt.IsZero() {
		ti.CreatedAt = time.Now()
	}
	if ti.ExpiresAt == nil {
		if exp, ok := jwtExpiry(ti.Token); ok {
			ti.ExpiresAt = &exp
		}
	}
	if err := jsonstore.Save(s.path(), ti, 0o600); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s Store) Delete() error { return jsonstore.Remove(s.path()) }

func StripBearer(s string) string {
	lower := strings.ToLower(s)
	for _, scheme := range []string{"bearer ", "token "} {
		if strings.HasPrefix(lower, scheme) {
			return strings.TrimSpace(s[len(scheme):])
		}
	}
	return s
}

// JWTPayload decodes the (unverified) payload of a JWT; opaque tokens return false.
func JWTPayload(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", false
	}
	return string(b), true
}
