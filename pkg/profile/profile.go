package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	appDirName  = "openscale"
	profileFile = "profiles.yaml"
)

// Store denotes a file-backed collection of user profiles with one optional
// active selection. All mutations happen in memory until Save is called
type Store struct {
	path string
	data storeData
}

type storeData struct {
	Active   string              `yaml:"active,omitempty"`
	Profiles []scale.UserProfile `yaml:"profiles"`
}

// DefaultPath returns the OS-appropriate location of the profile store
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}

	return filepath.Join(configDir, appDirName, profileFile), nil
}

// Load reads the profile store from path. A missing file is not an error and
// yields an empty store bound to that path
func Load(path string) (*Store, error) {

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read profile store: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse profile store: %w", err)
	}

	return s, nil
}

// Save writes the profile store to its path. The write is atomic, a partially
// written store never replaces an existing one
func (s *Store) Save() error {

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal profile store: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary profile store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace profile store: %w", err)
	}

	return nil
}

// Active returns the currently selected profile, if any
func (s *Store) Active() (scale.UserProfile, bool) {
	if s.data.Active == "" {
		return scale.UserProfile{}, false
	}

	return s.Get(s.data.Active)
}

// SetActive selects the profile with the given ID
func (s *Store) SetActive(id string) error {
	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("unknown profile: %s", id)
	}
	s.data.Active = id

	return nil
}

// Get returns the profile with the given ID or name
func (s *Store) Get(id string) (scale.UserProfile, bool) {
	for _, p := range s.data.Profiles {
		if p.ID == id || p.Name == id {
			return p, true
		}
	}

	return scale.UserProfile{}, false
}

// Upsert adds a profile or replaces the existing one with the same ID. A
// profile without an ID is assigned one
func (s *Store) Upsert(p scale.UserProfile) scale.UserProfile {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	for i, existing := range s.data.Profiles {
		if existing.ID == p.ID {
			s.data.Profiles[i] = p
			return p
		}
	}
	s.data.Profiles = append(s.data.Profiles, p)

	return p
}

// Remove deletes the profile with the given ID, clearing the active selection
// if it pointed at the removed profile
func (s *Store) Remove(id string) error {

	for i, p := range s.data.Profiles {
		if p.ID == id {
			s.data.Profiles = append(s.data.Profiles[:i], s.data.Profiles[i+1:]...)
			if s.data.Active == id {
				s.data.Active = ""
			}
			return nil
		}
	}

	return fmt.Errorf("unknown profile: %s", id)
}

// List returns all profiles in the store
func (s *Store) List() []scale.UserProfile {
	profiles := make([]scale.UserProfile, len(s.data.Profiles))
	copy(profiles, s.data.Profiles)

	return profiles
}
