// Package cache provides the content-addressed on-disk store for model artifacts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStorage indicates a cache write failed (unwritable target, disk full).
// Fatal for the resolution attempt that hit it; later attempts may retry.
var ErrStorage = errors.New("cache storage failure")

// manifestName is the integrity marker file. It is written after all content
// files, so a slot holding one is fully committed.
const manifestName = "manifest.json"

// Slot identifies one cache location: a model repository at one precision variant.
type Slot struct {
	Repo    string
	Variant string
}

func (s Slot) String() string {
	return s.Repo + "@" + s.Variant
}

// FileInfo is the integrity record for one artifact file.
type FileInfo struct {
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest is the integrity marker for a committed cache slot.
type Manifest struct {
	Files map[string]FileInfo `json:"files"`
}

// CachedArtifact is a committed slot on disk. Never mutated after creation;
// removed only by external eviction.
type CachedArtifact struct {
	Slot     Slot
	Dir      string
	Manifest Manifest
}

// Path returns the absolute path of one file inside the artifact.
func (a *CachedArtifact) Path(name string) string {
	return filepath.Join(a.Dir, name)
}

// Store is the artifact cache rooted at one directory. Safe for concurrent
// use; writes to the same slot are serialized, distinct slots proceed in
// parallel.
type Store struct {
	root  string
	log   *zap.Logger
	group singleflight.Group
}

// NewStore opens (creating if needed) a cache rooted at dir.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating cache root %s: %v", ErrStorage, dir, err)
	}
	return &Store{root: dir, log: log}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Locate returns the committed artifact for slot, if present. It only reads
// the disk and never triggers network activity. A slot whose manifest lists
// files that are missing or have the wrong size is treated as a miss.
func (s *Store) Locate(slot Slot) (*CachedArtifact, bool) {
	dir := s.slotDir(slot)
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, false
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warn("ignoring cache slot with malformed manifest",
			zap.String("slot", slot.String()), zap.Error(err))
		return nil, false
	}

	for name, info := range m.Files {
		st, err := os.Stat(filepath.Join(dir, name))
		if err != nil || st.Size() != info.Size {
			s.log.Warn("ignoring cache slot with missing or short file",
				zap.String("slot", slot.String()), zap.String("file", name))
			return nil, false
		}
	}

	return &CachedArtifact{Slot: slot, Dir: dir, Manifest: m}, true
}

// Put commits the given files as the artifact for slot. Content is written
// to a temporary directory, fsynced, and atomically renamed into place; the
// manifest is written last so a crash mid-write leaves a miss rather than a
// corrupt slot. Concurrent Put calls for the same slot coalesce into a
// single write, with every caller observing the committed result.
func (s *Store) Put(slot Slot, files map[string][]byte) (*CachedArtifact, error) {
	v, err, _ := s.group.Do(slot.String(), func() (interface{}, error) {
		if art, ok := s.Locate(slot); ok {
			return art, nil
		}
		return s.write(slot, files)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CachedArtifact), nil
}

func (s *Store) write(slot Slot, files map[string][]byte) (*CachedArtifact, error) {
	parent := filepath.Dir(s.slotDir(slot))
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	tmp, err := os.MkdirTemp(parent, ".tmp-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer os.RemoveAll(tmp)

	m := Manifest{Files: make(map[string]FileInfo, len(files))}
	for name, data := range files {
		if err := writeFileSync(filepath.Join(tmp, name), data); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", ErrStorage, name, err)
		}
		sum := sha256.Sum256(data)
		m.Files[name] = FileInfo{
			Size:   int64(len(data)),
			SHA256: hex.EncodeToString(sum[:]),
		}
	}

	manifest, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := writeFileSync(filepath.Join(tmp, manifestName), manifest); err != nil {
		return nil, fmt.Errorf("%w: writing manifest: %v", ErrStorage, err)
	}

	dir := s.slotDir(slot)
	if err := os.Rename(tmp, dir); err != nil {
		// Another process may have committed the slot between Locate and
		// Rename; reuse its result if so.
		if art, ok := s.Locate(slot); ok {
			return art, nil
		}
		return nil, fmt.Errorf("%w: publishing %s: %v", ErrStorage, slot, err)
	}

	s.log.Info("cached model artifact",
		zap.String("slot", slot.String()),
		zap.Int("files", len(m.Files)))
	return &CachedArtifact{Slot: slot, Dir: dir, Manifest: m}, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// slotDir maps a slot to its directory: one subdirectory per (repo, variant),
// with the repo's path separator flattened.
func (s *Store) slotDir(slot Slot) string {
	repo := strings.ReplaceAll(slot.Repo, "/", "--")
	return filepath.Join(s.root, repo, slot.Variant)
}
