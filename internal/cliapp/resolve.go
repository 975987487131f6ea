package cliapp

import (
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/resolver"
)

// splitID separates an optional leading watcher id from a command's
// remaining positional arguments: most commands accept `[id] <rest...>`
// (spec.md §6), and Orpheus reports a missing positional as "". When
// there are more non-empty args than rest needs, the extra leading one
// is the id.
func splitID(ctx *orpheus.Context, want int) (id string, rest []string) {
	vals := make([]string, 0, want+1)
	for i := 0; i < want+1; i++ {
		v := ctx.GetArg(i)
		if v == "" {
			break
		}
		vals = append(vals, v)
	}
	if len(vals) > want {
		return vals[0], vals[1:]
	}
	return "", vals
}

// resolveWatcher implements spec.md §4.9's selection rule: explicit id,
// else narrow by cwd, else narrow by reachability.
func (m *Manager) resolveWatcher(id string) (model.WatcherRecord, error) {
	store, err := m.ensureStore()
	if err != nil {
		return model.WatcherRecord{}, err
	}
	cwd, _ := os.Getwd()
	res, err := resolver.Resolve(store, resolver.Options{ID: id, Cwd: cwd}, nil)
	if err != nil {
		return model.WatcherRecord{}, err
	}
	return res.Record, nil
}

// client resolves id to a watcher and opens an API client against it in
// one step, the pattern every non-process-management handler starts
// with.
func (m *Manager) client(id string) (*apiClient, model.WatcherRecord, error) {
	rec, err := m.resolveWatcher(id)
	if err != nil {
		return nil, model.WatcherRecord{}, err
	}
	return newAPIClient(rec), rec, nil
}
