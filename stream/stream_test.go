package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentrail/core"
)

func textDelta(id, delta string) core.Event {
	return core.TextMessageContent{MessageID: id, Delta: delta}
}

func TestWriteAndConsumeAll(t *testing.T) {
	s := New()

	events := []core.Event{
		core.RunStarted{ThreadID: "t1", RunID: "r1"},
		textDelta("m1", "hello"),
		core.RunFinished{ThreadID: "t1", RunID: "r1"},
	}
	for _, ev := range events {
		if err := s.Write(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	s.Done()

	got, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("event %d: expected %v, got %v", i, events[i], got[i])
		}
	}
}

func TestWriteAfterDone(t *testing.T) {
	s := New()
	if err := s.Write(textDelta("m1", "a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.Done()
	if err := s.Write(textDelta("m1", "b")); !errors.Is(err, ErrClosedWrite) {
		t.Fatalf("expected ErrClosedWrite, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("rejected write must not be recorded, len=%d", s.Len())
	}
}

func TestDoneIdempotent(t *testing.T) {
	s := New()
	s.Done()
	s.Done()
	if !s.Completed() {
		t.Fatal("expected completed stream")
	}
}

func TestConsumersSeeIdenticalSequence(t *testing.T) {
	s := New()

	const consumers = 4
	const total = 50

	var wg sync.WaitGroup
	results := make([][]core.Event, consumers)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for ev := range s.Consume(context.Background()) {
				results[idx] = append(results[idx], ev)
			}
		}(i)
	}

	for i := 0; i < total; i++ {
		if err := s.Write(textDelta("m1", "x")); err != nil {
			t.Errorf("write %d: %v", i, err)
		}
	}
	s.Done()
	wg.Wait()

	for i := 0; i < consumers; i++ {
		if len(results[i]) != total {
			t.Fatalf("consumer %d saw %d events, expected %d", i, len(results[i]), total)
		}
	}
	for i := 1; i < consumers; i++ {
		for j := range results[0] {
			if results[i][j] != results[0][j] {
				t.Fatalf("consumer %d diverged at event %d", i, j)
			}
		}
	}
}

func TestLateConsumerReplaysFromStart(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		if err := s.Write(textDelta("m1", "x")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	s.Done()

	// Attaching after completion still yields the full sequence.
	got, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected full replay of 10 events, got %d", len(got))
	}
}

func TestConsumeHonorsContext(t *testing.T) {
	s := New()
	if err := s.Write(textDelta("m1", "x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Consume(ctx)

	// Drain the available event, then cancel while the stream is still open.
	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel close after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not terminate after cancellation")
	}
}
