package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return &Store{path: dir + "/registry.json", lockPath: dir + "/registry.json.lock"}
}

func TestReadReturnsEmptyRegistryWhenFileAbsent(t *testing.T) {
	s := newTestStore(t)
	reg, warnings, err := s.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if reg.Version != schemaVersion || len(reg.Watchers) != 0 {
		t.Errorf("reg = %+v, want empty v%d registry", reg, schemaVersion)
	}
}

func TestAnnounceThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	rec := model.WatcherRecord{ID: "w1", Host: "127.0.0.1", Port: 9001}

	if err := s.Announce(rec, func(model.WatcherRecord) bool { return false }); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	got, ok, err := s.Get("w1")
	if err != nil || !ok {
		t.Fatalf("Get(w1) = %+v, %v, %v", got, ok, err)
	}
	if got.Port != 9001 {
		t.Errorf("got.Port = %d, want 9001", got.Port)
	}
}

func TestAnnounceFailsWithIDInUseWhenReachable(t *testing.T) {
	s := newTestStore(t)
	rec := model.WatcherRecord{ID: "w1", Port: 9001}
	if err := s.Announce(rec, func(model.WatcherRecord) bool { return false }); err != nil {
		t.Fatalf("first Announce() error = %v", err)
	}

	err := s.Announce(rec, func(model.WatcherRecord) bool { return true })
	if err == nil {
		t.Fatal("expected id_in_use error, got nil")
	}
	if apierr.CodeOf(err) != apierr.CodeIDInUse {
		t.Errorf("CodeOf(err) = %q, want %q", apierr.CodeOf(err), apierr.CodeIDInUse)
	}
}

func TestAnnounceReplacesWhenNotReachable(t *testing.T) {
	s := newTestStore(t)
	rec := model.WatcherRecord{ID: "w1", Port: 9001}
	if err := s.Announce(rec, func(model.WatcherRecord) bool { return true }); err != nil {
		t.Fatalf("first Announce() error = %v", err)
	}

	rec2 := model.WatcherRecord{ID: "w1", Port: 9002}
	if err := s.Announce(rec2, func(model.WatcherRecord) bool { return false }); err != nil {
		t.Fatalf("second Announce() error = %v", err)
	}

	got, ok, err := s.Get("w1")
	if err != nil || !ok || got.Port != 9002 {
		t.Fatalf("got = %+v, %v, %v, want port 9002", got, ok, err)
	}
}

func TestPruneStaleRemovesOldEntries(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	_, err := s.UpdateAtomically(func(reg *Registry) (*Registry, bool) {
		reg.Watchers["fresh"] = model.WatcherRecord{ID: "fresh", UpdatedAt: now.UnixMilli()}
		reg.Watchers["stale"] = model.WatcherRecord{ID: "stale", UpdatedAt: now.Add(-2 * time.Minute).UnixMilli()}
		return reg, true
	})
	if err != nil {
		t.Fatalf("seed UpdateAtomically() error = %v", err)
	}

	removed, err := s.PruneStale(now, 60*time.Second)
	if err != nil {
		t.Fatalf("PruneStale() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "stale" {
		t.Fatalf("removed = %v, want [stale]", removed)
	}

	reg, _, _ := s.Read()
	if _, ok := reg.Watchers["fresh"]; !ok {
		t.Error("fresh entry was pruned, want kept")
	}
	if _, ok := reg.Watchers["stale"]; ok {
		t.Error("stale entry still present")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	rec := model.WatcherRecord{ID: "w1"}
	if err := s.Announce(rec, func(model.WatcherRecord) bool { return false }); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	if err := s.Remove("w1"); err != nil {
		t.Fatalf("first Remove() error = %v", err)
	}
	if err := s.Remove("w1"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
	if _, ok, _ := s.Get("w1"); ok {
		t.Error("w1 still present after Remove")
	}
}

func TestUpdateAtomicallyIsSerializedAcrossConcurrentCallers(t *testing.T) {
	s := newTestStore(t)
	if err := s.Announce(model.WatcherRecord{ID: "counter"}, func(model.WatcherRecord) bool { return false }); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateAtomically(func(reg *Registry) (*Registry, bool) {
				rec := reg.Watchers["counter"]
				rec.PID++
				reg.Watchers["counter"] = rec
				return reg, true
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("UpdateAtomically() error = %v", err)
		}
	}

	reg, _, err := s.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if reg.Watchers["counter"].PID != n {
		t.Fatalf("counter PID = %d, want %d (no lost updates)", reg.Watchers["counter"].PID, n)
	}
}
