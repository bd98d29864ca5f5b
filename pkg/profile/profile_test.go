package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JPFrancoia/openScale/pkg/scale"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "profiles.yaml"))
	if err != nil {
		t.Fatalf("failed to load missing profile store: %s", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("missing profile store unexpectedly contains %d profiles", len(s.List()))
	}
	if _, ok := s.Active(); ok {
		t.Fatalf("missing profile store unexpectedly has an active profile")
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "profiles.yaml")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load profile store: %s", err)
	}

	alice := s.Upsert(scale.UserProfile{Name: "Alice", Male: false, Age: 31, HeightCm: 168., Unit: scale.UnitKg})
	bob := s.Upsert(scale.UserProfile{Name: "Bob", Male: true, Age: 44, HeightCm: 185., Unit: scale.UnitLb})
	if alice.ID == "" || bob.ID == "" {
		t.Fatalf("upsert did not assign profile IDs")
	}
	if err := s.SetActive(alice.ID); err != nil {
		t.Fatalf("failed to set active profile: %s", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("failed to save profile store: %s", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to reload profile store: %s", err)
	}
	if got := reloaded.List(); len(got) != 2 {
		t.Fatalf("unexpected number of profiles after reload: %d", len(got))
	}

	active, ok := reloaded.Active()
	if !ok {
		t.Fatalf("active profile lost on reload")
	}
	if active.ID != alice.ID || active.Name != "Alice" || active.Age != 31 || active.HeightCm != 168. {
		t.Fatalf("unexpected active profile after reload: %+v", active)
	}
}

func TestGetByName(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "profiles.yaml"))
	if err != nil {
		t.Fatalf("failed to load profile store: %s", err)
	}
	alice := s.Upsert(scale.UserProfile{Name: "Alice", Age: 31, HeightCm: 168.})

	byName, ok := s.Get("Alice")
	if !ok || byName.ID != alice.ID {
		t.Fatalf("failed to resolve profile by name: %+v (%v)", byName, ok)
	}
	if _, ok := s.Get("Nobody"); ok {
		t.Fatalf("lookup of unknown profile was unexpectedly successful")
	}
}

func TestUpsertReplaces(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "profiles.yaml"))
	if err != nil {
		t.Fatalf("failed to load profile store: %s", err)
	}

	p := s.Upsert(scale.UserProfile{Name: "Alice", Age: 31, HeightCm: 168.})
	p.Age = 32
	s.Upsert(p)

	if got := s.List(); len(got) != 1 || got[0].Age != 32 {
		t.Fatalf("upsert did not replace existing profile: %+v", got)
	}
}

func TestSetActiveUnknown(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "profiles.yaml"))
	if err != nil {
		t.Fatalf("failed to load profile store: %s", err)
	}
	if err := s.SetActive("nobody"); err == nil {
		t.Fatalf("selecting an unknown profile was unexpectedly successful")
	}
}

func TestRemoveClearsActive(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "profiles.yaml"))
	if err != nil {
		t.Fatalf("failed to load profile store: %s", err)
	}

	p := s.Upsert(scale.UserProfile{Name: "Alice", Age: 31, HeightCm: 168.})
	if err := s.SetActive(p.ID); err != nil {
		t.Fatalf("failed to set active profile: %s", err)
	}
	if err := s.Remove(p.ID); err != nil {
		t.Fatalf("failed to remove profile: %s", err)
	}
	if _, ok := s.Active(); ok {
		t.Fatalf("active selection survived removal of its profile")
	}
	if err := s.Remove(p.ID); err == nil {
		t.Fatalf("removing an unknown profile was unexpectedly successful")
	}
}

func TestSaveLeavesNoTemporaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load profile store: %s", err)
	}
	s.Upsert(scale.UserProfile{Name: "Alice", Age: 31, HeightCm: 168.})
	if err := s.Save(); err != nil {
		t.Fatalf("failed to save profile store: %s", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list store directory: %s", err)
	}
	if len(entries) != 1 || entries[0].Name() != "profiles.yaml" {
		t.Fatalf("unexpected directory content after save: %v", entries)
	}
}
