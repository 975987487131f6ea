package source

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/argus-dev/argus/internal/cdp"
)

func TestExtensionAdapterListTargetsReflectsTabListFrame(t *testing.T) {
	var pipe bytes.Buffer
	var mu sync.Mutex
	writeNMFrame(&pipe, &mu, nmFrame{Type: "tab_list", Tabs: []nmTabInfo{
		{ID: "1", Title: "Example", URL: "https://example.com"},
	}})

	a := NewExtensionAdapter(&pipe, &bytes.Buffer{}, Hooks{})
	ctx := context.Background()

	waitForCondition(t, func() bool {
		targets, err := a.ListTargets(ctx)
		return err == nil && len(targets) == 1 && targets[0].ID == "1"
	})
}

func TestExtensionAdapterAttachAndDetachFireHooks(t *testing.T) {
	var mu sync.Mutex
	var statuses []string
	var detached bool

	hooks := Hooks{
		OnStatus: func(s string) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
		OnDetach: func(error) {
			mu.Lock()
			detached = true
			mu.Unlock()
		},
	}

	a := NewExtensionAdapter(&bytes.Buffer{}, &bytes.Buffer{}, hooks)
	if err := a.AttachTarget(context.Background(), nil); err != nil {
		t.Fatalf("AttachTarget: %v", err)
	}
	if err := a.DetachTarget(context.Background()); err != nil {
		t.Fatalf("DetachTarget: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 1 || statuses[0] != "attached" {
		t.Fatalf("got statuses %v, want [attached]", statuses)
	}
	if !detached {
		t.Fatal("expected OnDetach to fire")
	}
}

func TestExtensionAdapterSessionIsNonNilFromConstruction(t *testing.T) {
	a := NewExtensionAdapter(&bytes.Buffer{}, &bytes.Buffer{}, Hooks{})
	var s *cdp.Session = a.Session()
	if s == nil {
		t.Fatal("expected a non-nil session immediately, unlike CDPAdapter")
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
