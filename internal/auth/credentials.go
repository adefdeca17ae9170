// internal/auth/credentials.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name used in the OS keyring.
	KeyringService = "fairgame"
	// KeyringUser is the single entry holding the storefront credentials.
	KeyringUser = "credentials"
	// FallbackFile is used where no keyring is available, relative to $HOME.
	FallbackFile = ".fairgame/credentials"
)

// ErrNoCredentials is returned when nothing has been stored yet.
var ErrNoCredentials = errors.New("no stored credentials, run 'fairgame login' first")

// Credentials are the storefront account email and password.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) validate() error {
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("email and password are required")
	}
	return nil
}

// Store keeps credentials in the OS keyring, falling back to a 0600 file
// in environments without one (CI, containers, Codespaces).
type Store struct {
	path string

	once    sync.Once
	useFile bool
}

// NewStore returns a store whose fallback file lives under the user's home.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	return &Store{path: filepath.Join(home, FallbackFile)}, nil
}

// NewFileStore returns a store that only uses the file at path.
func NewFileStore(path string) *Store {
	s := &Store{path: path, useFile: true}
	s.once.Do(func() {})
	return s
}

// Backend names where credentials are kept.
func (s *Store) Backend() string {
	if s.fileBased() {
		return s.path
	}
	return "os keyring (" + KeyringService + ")"
}

func (s *Store) fileBased() bool {
	s.once.Do(func() {
		if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			s.useFile = true
			return
		}
		probe := "_probe_keyring_access_"
		if err := keyring.Set(KeyringService, probe, "ok"); err != nil {
			log.Debug().Err(err).Msg("Keyring unavailable, using credentials file")
			s.useFile = true
			return
		}
		_ = keyring.Delete(KeyringService, probe)
	})
	return s.useFile
}

// Save stores c, replacing anything stored before.
func (s *Store) Save(c Credentials) error {
	if err := c.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if s.fileBased() {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return fmt.Errorf("create credentials directory: %w", err)
		}
		if err := os.WriteFile(s.path, data, 0o600); err != nil {
			return fmt.Errorf("write credentials file: %w", err)
		}
		return nil
	}
	if err := keyring.Set(KeyringService, KeyringUser, string(data)); err != nil {
		return fmt.Errorf("save to keyring: %w", err)
	}
	return nil
}

// Load returns the stored credentials or ErrNoCredentials.
func (s *Store) Load() (Credentials, error) {
	var raw string
	if s.fileBased() {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, ErrNoCredentials
		}
		if err != nil {
			return Credentials{}, fmt.Errorf("read credentials file: %w", err)
		}
		raw = string(data)
	} else {
		v, err := keyring.Get(KeyringService, KeyringUser)
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, ErrNoCredentials
		}
		if err != nil {
			return Credentials{}, fmt.Errorf("load from keyring: %w", err)
		}
		raw = v
	}

	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	if err := c.validate(); err != nil {
		return Credentials{}, fmt.Errorf("stored credentials: %w", err)
	}
	return c, nil
}

// Delete removes the stored credentials. Deleting nothing is not an error.
func (s *Store) Delete() error {
	if s.fileBased() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete credentials file: %w", err)
		}
		return nil
	}
	if err := keyring.Delete(KeyringService, KeyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete from keyring: %w", err)
	}
	return nil
}
