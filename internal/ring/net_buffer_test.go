package ring

import (
	"context"
	"testing"
	"time"

	"github.com/argus-dev/argus/internal/model"
)

func TestNetBufferUpdateMutatesExistingEntryByRequestID(t *testing.T) {
	b := NewNetBuffer(100)
	b.Add(model.NetworkRequestSummary{RequestID: "req-1", URL: "https://example.com/a", Method: "GET"})

	ok := b.Update("req-1", func(e *model.NetworkRequestSummary) {
		e.Status = 200
		e.EncodedDataLength = 1024
	})
	if !ok {
		t.Fatal("Update reported no matching entry")
	}

	got := b.Snapshot(-1, NetFilter{}, 0)
	if len(got) != 1 || got[0].Status != 200 || got[0].EncodedDataLength != 1024 {
		t.Fatalf("got %+v, want updated entry with status 200", got)
	}
}

func TestNetBufferUpdateReportsFalseWhenEvicted(t *testing.T) {
	b := NewNetBuffer(2)
	b.Add(model.NetworkRequestSummary{RequestID: "req-1"})
	b.Add(model.NetworkRequestSummary{RequestID: "req-2"})
	b.Add(model.NetworkRequestSummary{RequestID: "req-3"})

	if b.Update("req-1", func(e *model.NetworkRequestSummary) { e.Status = 200 }) {
		t.Fatal("Update reported a match for an evicted requestId")
	}
}

func TestNetBufferFiltersByURLMethodAndStatus(t *testing.T) {
	b := NewNetBuffer(100)
	b.Add(model.NetworkRequestSummary{RequestID: "req-1", URL: "https://api.example.com/users", Method: "GET", Status: 200})
	b.Add(model.NetworkRequestSummary{RequestID: "req-2", URL: "https://api.example.com/orders", Method: "POST", Status: 500})
	b.Add(model.NetworkRequestSummary{RequestID: "req-3", URL: "https://cdn.example.com/logo.png", Method: "GET", Status: 200})

	got := b.Snapshot(-1, NetFilter{URLContains: "api.example.com"}, 0)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 for URLContains filter", len(got))
	}

	got = b.Snapshot(-1, NetFilter{Method: "post"}, 0)
	if len(got) != 1 || got[0].RequestID != "req-2" {
		t.Fatalf("got %+v, want only req-2 for method=post", got)
	}

	got = b.Snapshot(-1, NetFilter{Status: []int{500}}, 0)
	if len(got) != 1 || got[0].RequestID != "req-2" {
		t.Fatalf("got %+v, want only req-2 for status=500", got)
	}
}

func TestNetBufferWaitForAfterReturnsOnMatchingUpdate(t *testing.T) {
	t.Parallel()
	b := NewNetBuffer(100)
	added := b.Add(model.NetworkRequestSummary{RequestID: "req-1", URL: "https://example.com", Status: 0})

	done := make(chan []model.NetworkRequestSummary, 1)
	go func() {
		done <- b.WaitForAfter(context.Background(), added.ID-1, NetFilter{Status: []int{200}}, 0, 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Update("req-1", func(e *model.NetworkRequestSummary) { e.Status = 200 })

	select {
	case got := <-done:
		if len(got) != 1 || got[0].Status != 200 {
			t.Fatalf("got %+v, want one completed request", got)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForAfter did not return after matching Update")
	}
}
