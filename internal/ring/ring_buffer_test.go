package ring

import (
	"context"
	"testing"
	"time"
)

type testEvent struct {
	ID   int64
	Text string
}

func TestBufferIDsAreMonotonic(t *testing.T) {
	b := NewBuffer[testEvent](100)
	var last int64 = -1
	for i := 0; i < 10; i++ {
		e := b.Add(func(id int64) testEvent {
			return testEvent{ID: id, Text: "x"}
		})
		if e.ID <= last {
			t.Fatalf("id %d not strictly increasing after %d", e.ID, last)
		}
		last = e.ID
	}
}

func TestBufferSnapshotOnlyReturnsNewerIDs(t *testing.T) {
	b := NewBuffer[testEvent](100)
	for i := 0; i < 5; i++ {
		b.Add(func(id int64) testEvent { return testEvent{ID: id} })
	}
	got := b.Snapshot(2, nil, 0)
	for _, e := range got {
		if e.ID <= 2 {
			t.Errorf("snapshot returned id %d <= after=2", e.ID)
		}
	}
	if len(got) != 3 {
		t.Errorf("len(got) = %d, want 3", len(got))
	}
}

func TestBufferFirstIDIsOne(t *testing.T) {
	b := NewBuffer[testEvent](100)
	e := b.Add(func(id int64) testEvent { return testEvent{ID: id} })
	if e.ID != 1 {
		t.Fatalf("first assigned id = %d, want 1 (after=0 must mean \"from the beginning\")", e.ID)
	}
	got := b.Snapshot(0, nil, 0)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Snapshot(0, ...) = %+v, want the first event", got)
	}
}

func TestBufferEvictsOldestAtCapacity(t *testing.T) {
	b := NewBuffer[testEvent](3)
	for i := 0; i < 5; i++ {
		b.Add(func(id int64) testEvent { return testEvent{ID: id} })
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	all := b.Snapshot(-1, nil, 0)
	if all[0].ID != 3 {
		t.Errorf("oldest retained id = %d, want 3 (1 and 2 evicted; ids start at 1)", all[0].ID)
	}
}

func TestWaitForAfterReturnsPromptlyOnMatchingAdd(t *testing.T) {
	b := NewBuffer[testEvent](100)
	ctx := context.Background()

	resultCh := make(chan []testEvent, 1)
	go func() {
		resultCh <- b.WaitForAfter(ctx, -1, nil, 0, 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Add(func(id int64) testEvent { return testEvent{ID: id, Text: "hello"} })

	select {
	case got := <-resultCh:
		if len(got) != 1 || got[0].Text != "hello" {
			t.Fatalf("got %+v, want one event with text hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForAfter did not return after matching Add")
	}
}

func TestWaitForAfterTimesOutEmpty(t *testing.T) {
	b := NewBuffer[testEvent](100)
	start := time.Now()
	got := b.WaitForAfter(context.Background(), -1, nil, 0, 50*time.Millisecond)
	elapsed := time.Since(start)

	if got != nil {
		t.Fatalf("got %+v, want nil on timeout", got)
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("returned too late: %v", elapsed)
	}
}

func TestWaitForAfterMultipleWaitersEachSeeEvent(t *testing.T) {
	b := NewBuffer[testEvent](100)
	ctx := context.Background()

	const waiters = 5
	results := make(chan []testEvent, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			results <- b.WaitForAfter(ctx, -1, nil, 0, 2*time.Second)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	b.Add(func(id int64) testEvent { return testEvent{ID: id, Text: "fanout"} })

	for i := 0; i < waiters; i++ {
		select {
		case got := <-results:
			if len(got) != 1 {
				t.Errorf("waiter %d got %d events, want 1", i, len(got))
			}
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never returned", i)
		}
	}
}

func TestBufferFilterExcludesNonMatching(t *testing.T) {
	b := NewBuffer[testEvent](100)
	for i := 0; i < 4; i++ {
		text := "even"
		if i%2 == 1 {
			text = "odd"
		}
		b.Add(func(id int64) testEvent { return testEvent{ID: id, Text: text} })
	}
	got := b.Snapshot(-1, func(e testEvent) bool { return e.Text == "odd" }, 0)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}
