package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrUnsupportedVersion is returned for state files written by a newer release.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

// State is the controller state saved between runs.
type State struct {
	// Version is the state file format version.
	Version int `yaml:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `yaml:"saved_at"`

	// Devices holds one record per device host.
	Devices []DeviceRecord `yaml:"devices,omitempty"`
}

// DeviceRecord is what the controller remembers about one set.
type DeviceRecord struct {
	// Host is the address the set is reached at, the record key.
	Host string `yaml:"host"`

	// Name is a display name, e.g. the mDNS instance or model.
	Name string `yaml:"name,omitempty"`

	// PSK is the pre-shared key configured on the set.
	PSK string `yaml:"psk,omitempty"`

	// Session is the paired session, if the set was paired with a PIN.
	Session *credentials.Session `yaml:"session,omitempty"`

	// LastSeenAt is when the set last answered.
	LastSeenAt time.Time `yaml:"last_seen_at,omitempty"`
}

// Credentials returns the record's authentication material, or nil when
// the record has none.
func (r *DeviceRecord) Credentials() *credentials.Credentials {
	if r == nil {
		return nil
	}
	c := &credentials.Credentials{PSK: r.PSK, Session: r.Session}
	if !c.HasAuth() {
		return nil
	}
	return c
}

// Lookup returns the record of host, or nil. Hosts compare case-insensitively.
func (s *State) Lookup(host string) *DeviceRecord {
	if s == nil {
		return nil
	}
	for i := range s.Devices {
		if strings.EqualFold(s.Devices[i].Host, host) {
			return &s.Devices[i]
		}
	}
	return nil
}

// Upsert replaces the record with the same host or appends rec.
func (s *State) Upsert(rec DeviceRecord) {
	if existing := s.Lookup(rec.Host); existing != nil {
		*existing = rec
		return
	}
	s.Devices = append(s.Devices, rec)
}

// Remove deletes the record of host and reports whether one existed.
func (s *State) Remove(host string) bool {
	n := len(s.Devices)
	s.Devices = slices.DeleteFunc(s.Devices, func(r DeviceRecord) bool {
		return strings.EqualFold(r.Host, host)
	})
	return len(s.Devices) != n
}

// StateStore manages persistence of controller state to a YAML file.
// It is safe for concurrent use within one process.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store backed by path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.path
}

// Save persists the state to disk. The file is replaced atomically and is
// readable only by the owner since it holds secrets.
func (s *StateStore) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *StateStore) save(state *State) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now().UTC()

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateStore) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &State{}
	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}
	return state, nil
}

// Update loads the state, applies fn and saves the result under one lock.
// A missing file starts from an empty state. Nothing is saved if fn fails.
func (s *StateStore) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{}
	}
	if err := fn(state); err != nil {
		return err
	}
	return s.save(state)
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
