package resolver

import (
	"net/http"
	"testing"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/registry"
)

func newTestStore(t *testing.T) *registry.Store {
	t.Helper()
	return registry.NewStoreAt(t.TempDir())
}

type fakeClient struct {
	okPorts map[int]bool
}

func (f fakeClient) Do(req *http.Request) (*http.Response, error) {
	port := req.URL.Port()
	if port == "" {
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
	}
	var p int
	for _, c := range port {
		p = p*10 + int(c-'0')
	}
	if f.okPorts[p] {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}
	return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
}

func TestResolveByExplicitID(t *testing.T) {
	s := newTestStore(t)
	rec := model.WatcherRecord{ID: "w1", Host: "127.0.0.1", Port: 9001}
	if err := s.Announce(rec, func(model.WatcherRecord) bool { return false }); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	res, err := Resolve(s, Options{ID: "w1"}, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Record.ID != "w1" {
		t.Errorf("Record.ID = %q, want w1", res.Record.ID)
	}
}

func TestResolveUnknownIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := Resolve(s, Options{ID: "missing"}, nil)
	if apierr.CodeOf(err) != apierr.CodeNotFound {
		t.Errorf("CodeOf(err) = %v, want not_found", apierr.CodeOf(err))
	}
}

func TestResolveNarrowsByUniqueCwd(t *testing.T) {
	s := newTestStore(t)
	a := model.WatcherRecord{ID: "a", Host: "127.0.0.1", Port: 9001, Cwd: "/one"}
	b := model.WatcherRecord{ID: "b", Host: "127.0.0.1", Port: 9002, Cwd: "/two"}
	reach := func(model.WatcherRecord) bool { return false }
	if err := s.Announce(a, reach); err != nil {
		t.Fatalf("Announce(a) error = %v", err)
	}
	if err := s.Announce(b, reach); err != nil {
		t.Fatalf("Announce(b) error = %v", err)
	}

	res, err := Resolve(s, Options{Cwd: "/one"}, fakeClient{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Record.ID != "a" {
		t.Errorf("Record.ID = %q, want a", res.Record.ID)
	}
}

func TestResolveFallsBackToReachability(t *testing.T) {
	s := newTestStore(t)
	a := model.WatcherRecord{ID: "a", Host: "127.0.0.1", Port: 9001, Cwd: "/shared"}
	b := model.WatcherRecord{ID: "b", Host: "127.0.0.1", Port: 9002, Cwd: "/shared"}
	reach := func(model.WatcherRecord) bool { return false }
	if err := s.Announce(a, reach); err != nil {
		t.Fatalf("Announce(a) error = %v", err)
	}
	if err := s.Announce(b, reach); err != nil {
		t.Fatalf("Announce(b) error = %v", err)
	}

	res, err := Resolve(s, Options{Cwd: "/shared"}, fakeClient{okPorts: map[int]bool{9002: true}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Record.ID != "b" {
		t.Errorf("Record.ID = %q, want b (the only reachable one)", res.Record.ID)
	}
}

func TestResolveAmbiguousWhenMultipleReachable(t *testing.T) {
	s := newTestStore(t)
	a := model.WatcherRecord{ID: "a", Host: "127.0.0.1", Port: 9001}
	b := model.WatcherRecord{ID: "b", Host: "127.0.0.1", Port: 9002}
	reach := func(model.WatcherRecord) bool { return false }
	if err := s.Announce(a, reach); err != nil {
		t.Fatalf("Announce(a) error = %v", err)
	}
	if err := s.Announce(b, reach); err != nil {
		t.Fatalf("Announce(b) error = %v", err)
	}

	_, err := Resolve(s, Options{}, fakeClient{okPorts: map[int]bool{9001: true, 9002: true}})
	if apierr.CodeOf(err) != apierr.CodeMultipleMatches {
		t.Errorf("CodeOf(err) = %v, want multiple_matches", apierr.CodeOf(err))
	}
}

func TestPruneDeadRemovesUnreachable(t *testing.T) {
	s := newTestStore(t)
	a := model.WatcherRecord{ID: "a", Host: "127.0.0.1", Port: 9001}
	b := model.WatcherRecord{ID: "b", Host: "127.0.0.1", Port: 9002}
	reach := func(model.WatcherRecord) bool { return false }
	if err := s.Announce(a, reach); err != nil {
		t.Fatalf("Announce(a) error = %v", err)
	}
	if err := s.Announce(b, reach); err != nil {
		t.Fatalf("Announce(b) error = %v", err)
	}

	removed, err := PruneDead(s, fakeClient{okPorts: map[int]bool{9001: true}})
	if err != nil {
		t.Fatalf("PruneDead() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "b" {
		t.Errorf("removed = %v, want [b]", removed)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 || all[0].ID != "a" {
		t.Errorf("List() = %v, want only [a]", all)
	}
}
