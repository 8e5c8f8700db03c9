package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/sethvargo/go-password/password"
	"github.com/spf13/afero"
)

const generatedSecretLength = 48

// Manager reads and writes the settings file. Environment overrides are applied on every Load but
// never persisted.
type Manager struct {
	fs      afero.Fs
	path    string
	mu      sync.Mutex
	environ map[string]string
}

func NewManager(path string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), path)
}

func NewManagerWithFs(fsys afero.Fs, path string) *Manager {
	return &Manager{fs: fsys, path: path}
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

// Load reads the settings file, writing defaults when it does not exist yet, then applies
// environment overrides. A required auth secret is generated and persisted when absent.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.readLocked()
	if err != nil {
		return Settings{}, err
	}

	if s.Auth.Required && s.Auth.JWTSecret == "" && !m.envSet("CINELIST_JWT_SECRET") {
		secret, err := password.Generate(generatedSecretLength, 10, 0, false, true)
		if err != nil {
			return Settings{}, fmt.Errorf("generate jwt secret: %w", err)
		}
		s.Auth.JWTSecret = secret
		if err := m.writeLocked(s); err != nil {
			return Settings{}, err
		}
		log.Printf("[config] generated jwt secret in %s", m.path)
	}

	opts := env.Options{}
	if m.environ != nil {
		opts.Environment = m.environ
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("apply environment overrides: %w", err)
	}
	return s, nil
}

// Save persists s, replacing the file atomically.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(s)
}

func (m *Manager) readLocked() (Settings, error) {
	data, err := afero.ReadFile(m.fs, m.path)
	if errors.Is(err, fs.ErrNotExist) {
		s := DefaultSettings()
		if err := m.writeLocked(s); err != nil {
			return Settings{}, err
		}
		log.Printf("[config] wrote default settings to %s", m.path)
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	// Missing keys keep their defaults.
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", m.path, err)
	}
	return s, nil
}

func (m *Manager) writeLocked(s Settings) error {
	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := m.fs.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func (m *Manager) envSet(key string) bool {
	if m.environ != nil {
		return m.environ[key] != ""
	}
	return os.Getenv(key) != ""
}
