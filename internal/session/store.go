// Package session keeps the client-local authentication record.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the session file inside the state directory.
const FileName = "session.yaml"

// ErrPartial is returned when saving a session without both flag and username.
var ErrPartial = errors.New("session must carry both the authenticated flag and a username")

// Session asserts that Username is authenticated.
type Session struct {
	Authenticated bool   `yaml:"authenticated"`
	Username      string `yaml:"username"`
}

func (s Session) valid() bool { return s.Authenticated && s.Username != "" }

// Store persists a Session across runs.
type Store struct {
	path string
}

func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

func (s *Store) Path() string { return s.path }

// Load returns the stored session. ok is false when no complete session exists;
// a partial or corrupt file counts as absent.
func (s *Store) Load() (sess Session, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("read session: %w", err)
	}
	if err := yaml.Unmarshal(data, &sess); err != nil || !sess.valid() {
		return Session{}, false, nil
	}
	return sess, true, nil
}

// Save writes the session atomically with owner-only permissions.
func (s *Store) Save(sess Session) error {
	if !sess.valid() {
		return ErrPartial
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// Clear removes the session. Clearing an absent session is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
