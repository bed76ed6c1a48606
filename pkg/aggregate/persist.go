package aggregate

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"pperf/pkg/pperf"
)

// Save persists p to path atomically, the same discipline elfcache and
// fullprofile use for their on-disk artifacts (spec.md §5/§7 "Partial
// outputs must not be observable").
func (p *Profile) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("aggregate: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := gob.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("aggregate: encode profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("aggregate: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("aggregate: rename into place: %w", err)
	}
	return nil
}

// Load decodes a persisted aggregate profile, validating its version
// tag.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("aggregate: decode %s: %w", path, err)
	}
	if p.Version != "" && p.Version != pperf.AggregateVersion {
		return nil, fmt.Errorf("%w: profile %s has version %q, want %q", pperf.ErrVersionMismatch, path, p.Version, pperf.AggregateVersion)
	}
	return &p, nil
}
