// Package resolver implements the CLI's watcher-selection rule (spec.md
// §4.9, C9): given an optional watcher id and the caller's options, pick
// exactly one live WatcherRecord out of the registry, or fail with a
// candidate list a CLI can render.
package resolver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/registry"
)

// reachTimeout bounds the /status probe used to disambiguate when cwd
// doesn't narrow the candidate set to one (spec.md §4.9 "reachable (HTTP
// /status under a short timeout)").
const reachTimeout = 300 * time.Millisecond

// Options narrows resolution beyond an explicit id (spec.md §4.9).
type Options struct {
	ID  string
	Cwd string
}

// Result is a resolved watcher plus the client a caller can address it
// through.
type Result struct {
	Record model.WatcherRecord
}

// HTTPClient is the subset of *http.Client Resolve needs; overridable in
// tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolve implements spec.md §4.9's selection rule against store.
func Resolve(store *registry.Store, opts Options, client HTTPClient) (Result, error) {
	if client == nil {
		client = &http.Client{Timeout: reachTimeout}
	}

	if opts.ID != "" {
		rec, ok, err := store.Get(opts.ID)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, apierr.New(apierr.CodeNotFound, fmt.Sprintf("no watcher with id %q", opts.ID))
		}
		return Result{Record: rec}, nil
	}

	all, err := store.List()
	if err != nil {
		return Result{}, err
	}
	if len(all) == 0 {
		return Result{}, apierr.New(apierr.CodeNotFound, "no watchers are registered")
	}

	if opts.Cwd != "" {
		var cwdMatches []model.WatcherRecord
		for _, rec := range all {
			if rec.Cwd == opts.Cwd {
				cwdMatches = append(cwdMatches, rec)
			}
		}
		if len(cwdMatches) == 1 {
			return Result{Record: cwdMatches[0]}, nil
		}
		if len(cwdMatches) > 1 {
			return Result{}, ambiguous(cwdMatches)
		}
	}

	var reachable []model.WatcherRecord
	for _, rec := range all {
		if isReachable(client, rec) {
			reachable = append(reachable, rec)
		}
	}
	if len(reachable) == 1 {
		return Result{Record: reachable[0]}, nil
	}
	if len(reachable) == 0 {
		return Result{}, apierr.New(apierr.CodeNotFound, "no registered watcher is reachable").
			WithContext("candidates", candidateIDs(all))
	}
	return Result{}, ambiguous(reachable)
}

func ambiguous(candidates []model.WatcherRecord) error {
	return apierr.New(apierr.CodeMultipleMatches, "multiple watchers match; specify an id").
		WithContext("candidates", candidateIDs(candidates))
}

func candidateIDs(recs []model.WatcherRecord) []string {
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	return ids
}

func isReachable(client HTTPClient, rec model.WatcherRecord) bool {
	url := fmt.Sprintf("http://%s:%d/status", rec.Host, rec.Port)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// PruneDead removes registry entries that fail a reachability probe; only
// called when the CLI caller passes --prune-dead (spec.md §4.9 "only
// --prune-dead may remove the entry from the registry").
func PruneDead(store *registry.Store, client HTTPClient) ([]string, error) {
	if client == nil {
		client = &http.Client{Timeout: reachTimeout}
	}
	all, err := store.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, rec := range all {
		if !isReachable(client, rec) {
			if err := store.Remove(rec.ID); err != nil {
				return removed, err
			}
			removed = append(removed, rec.ID)
		}
	}
	return removed, nil
}
