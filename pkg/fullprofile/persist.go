package fullprofile

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"pperf/pkg/pperf"
)

// Save persists p to path atomically: encode to a temp file in the
// same directory, then rename (spec.md §5/§7 "Partial outputs must not
// be observable"), matching elfcache's on-disk write discipline.
func (p *Profile) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("fullprofile: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := gob.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("fullprofile: encode profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fullprofile: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("fullprofile: rename into place: %w", err)
	}
	return nil
}

// Load decodes a persisted full profile, validating its version tag.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("fullprofile: decode %s: %w", path, err)
	}
	if p.Version != pperf.ProfileVersion {
		return nil, fmt.Errorf("%w: profile %s has version %q, want %q", pperf.ErrVersionMismatch, path, p.Version, pperf.ProfileVersion)
	}
	return &p, nil
}
