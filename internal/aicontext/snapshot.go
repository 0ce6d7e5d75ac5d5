package aicontext

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/hack-pad/hackpadfs"
)

// Snapshot is the on-disk form of an assembled payload, kept for prompt audits.
type Snapshot struct {
	Detected []string `json:"detected"`
	Depth    int      `json:"depth"`
	Payload  *Payload `json:"payload"`
}

// WriteSnapshot stores snap as indented JSON at name, creating parent directories.
func WriteSnapshot(fsys hackpadfs.FS, name string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("aicontext: encode snapshot: %w", err)
	}

	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := hackpadfs.MkdirAll(fsys, dir, 0o755); err != nil {
			return fmt.Errorf("aicontext: create %s: %w", dir, err)
		}
	}
	if err := hackpadfs.WriteFullFile(fsys, name, data, 0o644); err != nil {
		return fmt.Errorf("aicontext: write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(fsys hackpadfs.FS, name string) (*Snapshot, error) {
	data, err := hackpadfs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("aicontext: read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("aicontext: decode snapshot: %w", err)
	}
	return &snap, nil
}
