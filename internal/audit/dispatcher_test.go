package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	ctx := context.Background()
	dispatcher.Emit(ctx, Event{EventType: "first"})
	dispatcher.Emit(ctx, Event{EventType: "second"})
	dispatcher.Close()

	first := <-sink.Events()
	second := <-sink.Events()
	if first.EventType != "first" || second.EventType != "second" {
		t.Fatalf("expected ordered delivery, got %q then %q", first.EventType, second.EventType)
	}
}

func TestDispatcherDisabled(t *testing.T) {
	dispatcher := NewDispatcher(Config{Enabled: false}, NewChannelSink(1))
	if dispatcher != nil {
		t.Fatal("a disabled dispatcher must be nil")
	}

	// All methods tolerate the nil dispatcher.
	dispatcher.Emit(context.Background(), Event{EventType: "x"})
	dispatcher.Close()
	if dispatcher.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) {
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	// The first event occupies the worker, the second fills the buffer, and
	// everything after that is dropped.
	for i := 0; i < 5; i++ {
		dispatcher.Emit(ctx, Event{EventType: "burst"})
	}

	deadline := time.After(time.Second)
	for dispatcher.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected drops from a full buffer")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(sink.release)
	dispatcher.Close()
}

func TestDispatcherCloseFlushesBuffer(t *testing.T) {
	sink := NewChannelSink(16)
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 16, DropIfFull: false}, sink)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		dispatcher.Emit(ctx, Event{EventType: "flush"})
	}
	dispatcher.Close()

	for i := 0; i < 10; i++ {
		select {
		case <-sink.Events():
		default:
			t.Fatalf("event %d was not flushed on close", i)
		}
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		EventType: "login_success",
		Username:  "alice",
		Success:   true,
	})

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output is not valid JSON: %v", err)
	}
	if decoded.EventType != "login_success" || decoded.Username != "alice" || !decoded.Success {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestDispatcherStampsTimestamp(t *testing.T) {
	sink := NewChannelSink(2)
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 2}, sink)

	ctx := context.Background()
	preset := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	dispatcher.Emit(ctx, Event{EventType: "unstamped"})
	dispatcher.Emit(ctx, Event{EventType: "stamped", Timestamp: preset})
	dispatcher.Close()

	first := <-sink.Events()
	if first.Timestamp.IsZero() {
		t.Fatal("expected the dispatcher to stamp a missing timestamp")
	}
	second := <-sink.Events()
	if !second.Timestamp.Equal(preset) {
		t.Fatalf("expected the caller timestamp to survive, got %v", second.Timestamp)
	}
}

func TestDispatcherEmitAfterCloseIsDiscarded(t *testing.T) {
	sink := NewChannelSink(4)
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	dispatcher.Close()
	dispatcher.Close()

	dispatcher.Emit(context.Background(), Event{EventType: "late"})
	select {
	case event := <-sink.Events():
		t.Fatalf("expected no delivery after close, got %q", event.EventType)
	default:
	}
	if dispatcher.Dropped() != 0 {
		t.Fatal("discarding after close must not count as a drop")
	}
}
