package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrNotLoggedIn = errors.New("not logged in: run `taskctl login` first")

// Session is the persisted result of a login.
type Session struct {
	Server    string    `json:"server"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func defaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "taskdock", "session.json"), nil
}

func LoadSession(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	err = json.Unmarshal(b, &sess)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Token == "" || sess.UserID == "" {
		return nil, ErrNotLoggedIn
	}
	if sess.Expired(time.Now()) {
		return nil, fmt.Errorf("session expired at %s: %w", sess.ExpiresAt.Format(time.DateTime), ErrNotLoggedIn)
	}
	return &sess, nil
}

// SaveSession writes the session readable by the owner only.
func SaveSession(path string, sess *Session) error {
	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	err = os.WriteFile(path, b, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func RemoveSession(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
