// Package registry tracks which content fingerprints have already been
// indexed, making knowledge-base ingestion incremental and idempotent.
package registry

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Entry records why a fingerprint is considered indexed.
type Entry struct {
	Meta    map[string]string `json:"meta"`
	AddedAt string            `json:"added_at"`
}

// Registry is a durable set of chunk fingerprints. A fingerprint present in
// the registry means the corresponding chunk already exists in the vector
// index, so the two must be kept in lockstep: callers add entries only after
// the index write has succeeded.
type Registry struct {
	path string
	data fileLayout
	now  func() time.Time
}

type fileLayout struct {
	Chunks map[string]Entry `json:"chunks"`
}

// Open loads the registry from path. A missing, corrupt, or unreadable file
// degrades to an empty registry: the cost is re-indexing work, never wrong
// answers, so ingestion must not fail hard here.
func Open(path string) *Registry {
	r := &Registry{
		path: path,
		data: fileLayout{Chunks: make(map[string]Entry)},
		now:  time.Now,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[REGISTRY] Unreadable state file %s (%v), starting empty", path, err)
		}
		return r
	}

	var loaded fileLayout
	if err := json.Unmarshal(raw, &loaded); err != nil || loaded.Chunks == nil {
		log.Printf("[REGISTRY] Corrupt state file %s, starting empty", path)
		return r
	}
	r.data = loaded
	return r
}

// Has reports whether the fingerprint is already registered.
func (r *Registry) Has(fingerprint string) bool {
	_, ok := r.data.Chunks[fingerprint]
	return ok
}

// Add inserts or overwrites an entry in memory only. Call Save to persist.
func (r *Registry) Add(fingerprint string, meta map[string]string) {
	r.data.Chunks[fingerprint] = Entry{
		Meta:    meta,
		AddedAt: r.now().UTC().Format(time.RFC3339),
	}
}

// Len returns the number of registered fingerprints.
func (r *Registry) Len() int {
	return len(r.data.Chunks)
}

// Save persists the full registry, replacing any prior persisted state.
// It writes to a temp file and renames it into place so a crash mid-write
// cannot leave a truncated registry behind.
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	raw, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
