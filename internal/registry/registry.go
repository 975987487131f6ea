// Package registry implements the on-disk JSON store of live watchers
// (spec.md §3 "Registry", §4.1, C1): a locked read-modify-write
// discipline over a single file, with TTL-based staleness pruning and
// id-uniqueness enforcement at announce time.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/config"
	"github.com/argus-dev/argus/internal/model"
)

const (
	// schemaVersion is the sole schema discriminator (spec.md §3); an
	// unknown or absent version is treated as an empty registry.
	schemaVersion = 1

	// DefaultTTL is the staleness window after which an entry is pruned
	// (spec.md §3, §4.1).
	DefaultTTL = 60 * time.Second

	// DefaultHeartbeatInterval is how often a live watcher rewrites its
	// own updatedAt (spec.md §4.1).
	DefaultHeartbeatInterval = 15 * time.Second

	lockTimeout = 5 * time.Second
)

// Registry is the on-disk shape (spec.md §3 "Registry").
type Registry struct {
	Version   int                            `json:"version"`
	UpdatedAt int64                          `json:"updatedAt"`
	Watchers  map[string]model.WatcherRecord `json:"watchers"`
}

func empty() *Registry {
	return &Registry{Version: schemaVersion, Watchers: map[string]model.WatcherRecord{}}
}

// Store is the locked file-backed registry handle. One Store per process
// is typical; Store itself holds no in-memory cache, so every operation
// re-reads the file under lock to stay correct across processes.
type Store struct {
	path     string
	lockPath string
}

// NewStore resolves the registry path via internal/config and returns a
// Store, creating the root directory if needed.
func NewStore() (*Store, error) {
	path, err := config.RegistryFile()
	if err != nil {
		return nil, apierr.Wrap(err, apierr.CodeInvalidBody, "cannot resolve registry path")
	}
	lockPath, err := config.RegistryLockFile()
	if err != nil {
		return nil, apierr.Wrap(err, apierr.CodeInvalidBody, "cannot resolve registry lock path")
	}
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, apierr.Wrap(err, apierr.CodeInvalidBody, "cannot create registry directory")
	}
	return &Store{path: path, lockPath: lockPath}, nil
}

// NewStoreAt returns a Store rooted at a caller-chosen directory instead
// of the resolved runtime root, for tests in other packages that need a
// real Store without internal/config's environment-dependent resolution.
func NewStoreAt(dir string) *Store {
	return &Store{path: filepath.Join(dir, "registry.json"), lockPath: filepath.Join(dir, "registry.json.lock")}
}

// Read loads the registry, treating an absent file, corrupt JSON, or an
// unrecognized version as an empty registry plus a warning (spec.md §4.1
// "read").
func (s *Store) Read() (*Registry, []string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return empty(), nil, nil
	}
	if err != nil {
		return nil, nil, apierr.Wrap(err, apierr.CodeInvalidBody, "cannot read registry file")
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return empty(), []string{fmt.Sprintf("registry file is corrupt, treating as empty: %v", err)}, nil
	}
	if reg.Version != schemaVersion {
		return empty(), []string{fmt.Sprintf("registry has unknown version %d, treating as empty", reg.Version)}, nil
	}
	if reg.Watchers == nil {
		reg.Watchers = map[string]model.WatcherRecord{}
	}
	return &reg, nil, nil
}

// UpdateAtomically acquires the exclusive advisory lock, reads the
// current registry, applies f, and — if f reports a change — writes the
// result back via temp-file-then-rename before releasing the lock
// (spec.md §4.1 "updateAtomically"). All registry mutations funnel
// through this so concurrent CLI/watcher operations serialize cleanly
// (spec.md §8 property 3).
func (s *Store) UpdateAtomically(f func(*Registry) (*Registry, bool)) (*Registry, error) {
	fl := flock.New(s.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil || !locked {
		return nil, apierr.Wrap(err, apierr.CodeInvalidBody, "timed out acquiring registry lock")
	}
	defer fl.Unlock()

	reg, _, err := s.Read()
	if err != nil {
		return nil, err
	}

	next, changed := f(reg)
	if !changed {
		return reg, nil
	}
	next.UpdatedAt = nowMillis()

	if err := s.writeAtomic(next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) writeAtomic(reg *Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot marshal registry")
	}

	tmp := fmt.Sprintf("%s.tmp-%d-%d", s.path, os.Getpid(), nowMillis())
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot write registry temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		// Windows forbids renaming over an existing file; fall back to
		// unlink-then-rename (spec.md §4.1 "fall back to unlink+rename
		// on Windows-like errors").
		if rmErr := os.Remove(s.path); rmErr == nil {
			if err2 := os.Rename(tmp, s.path); err2 == nil {
				return nil
			}
		}
		os.Remove(tmp)
		return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot rename registry temp file into place")
	}
	return nil
}

// Announce inserts or replaces rec, failing with CodeIDInUse if an
// existing record with the same id is still reachable (spec.md §4.1
// "announce").
func (s *Store) Announce(rec model.WatcherRecord, reachable func(model.WatcherRecord) bool) error {
	var conflict error
	_, err := s.UpdateAtomically(func(reg *Registry) (*Registry, bool) {
		if existing, ok := reg.Watchers[rec.ID]; ok && reachable(existing) {
			conflict = apierr.New(apierr.CodeIDInUse, fmt.Sprintf("watcher id %q is already in use", rec.ID))
			return reg, false
		}
		reg.Watchers[rec.ID] = rec
		return reg, true
	})
	if conflict != nil {
		return conflict
	}
	return err
}

// Remove deletes id's entry if present (spec.md §8 property 7 "idempotent
// shutdown": calling it twice is a no-op the second time).
func (s *Store) Remove(id string) error {
	_, err := s.UpdateAtomically(func(reg *Registry) (*Registry, bool) {
		if _, ok := reg.Watchers[id]; !ok {
			return reg, false
		}
		delete(reg.Watchers, id)
		return reg, true
	})
	return err
}

// Heartbeat rewrites id's updatedAt to now (spec.md §4.1 "heartbeat").
func (s *Store) Heartbeat(id string) error {
	_, err := s.UpdateAtomically(func(reg *Registry) (*Registry, bool) {
		rec, ok := reg.Watchers[id]
		if !ok {
			return reg, false
		}
		rec.UpdatedAt = nowMillis()
		reg.Watchers[id] = rec
		return reg, true
	})
	return err
}

// PruneStale removes entries whose UpdatedAt is older than ttl and
// returns their ids (spec.md §4.1 "pruneStale").
func (s *Store) PruneStale(now time.Time, ttl time.Duration) ([]string, error) {
	var removed []string
	cutoff := now.Add(-ttl).UnixMilli()
	_, err := s.UpdateAtomically(func(reg *Registry) (*Registry, bool) {
		changed := false
		for id, rec := range reg.Watchers {
			if rec.UpdatedAt < cutoff {
				delete(reg.Watchers, id)
				removed = append(removed, id)
				changed = true
			}
		}
		return reg, changed
	})
	return removed, err
}

// Get returns id's record after pruning stale entries (spec.md §3
// "stale records ... are swept on every read").
func (s *Store) Get(id string) (model.WatcherRecord, bool, error) {
	if _, err := s.PruneStale(time.Now(), DefaultTTL); err != nil {
		log.Warn().Err(err).Msg("prune before get failed")
	}
	reg, _, err := s.Read()
	if err != nil {
		return model.WatcherRecord{}, false, err
	}
	rec, ok := reg.Watchers[id]
	return rec, ok, nil
}

// List returns all live records after pruning stale entries, sorted by id.
func (s *Store) List() ([]model.WatcherRecord, error) {
	if _, err := s.PruneStale(time.Now(), DefaultTTL); err != nil {
		log.Warn().Err(err).Msg("prune before list failed")
	}
	reg, _, err := s.Read()
	if err != nil {
		return nil, err
	}
	out := make([]model.WatcherRecord, 0, len(reg.Watchers))
	for _, rec := range reg.Watchers {
		out = append(out, rec)
	}
	sortByID(out)
	return out, nil
}

func sortByID(recs []model.WatcherRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].ID < recs[j-1].ID; j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}

// StartHeartbeat runs Heartbeat(id) every interval until ctx is
// canceled, logging (not panicking) on failure (spec.md §4.1
// "heartbeat ... stops on shutdown").
func StartHeartbeat(ctx context.Context, s *Store, id string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Heartbeat(id); err != nil {
					log.Warn().Err(err).Str("watcherId", id).Msg("heartbeat failed")
				}
			}
		}
	}()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewID returns a random watcher id suitable for a WatcherRecord.ID
// (spec.md §3 "stable string, unique per live process").
func NewID() string {
	return uuid.NewString()
}
