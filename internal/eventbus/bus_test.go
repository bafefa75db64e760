package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	bus := New()

	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(Event{Type: TypePlanRebuilt})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != TypePlanRebuilt {
				t.Fatalf("subscriber %s got type %q", name, ev.Type)
			}
			if ev.Time.IsZero() {
				t.Fatalf("subscriber %s got zero event time", name)
			}
		default:
			t.Fatalf("subscriber %s got no event", name)
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	bus := New()

	ch, unsub := bus.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: TypeBatchPerformed})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The slow subscriber keeps at most its buffer.
	if got := len(ch); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	t.Parallel()
	bus := New()

	_, unsub := bus.Subscribe(1)
	unsub()
	unsub() // idempotent

	// Must not panic against the closed channel.
	bus.Publish(Event{Type: TypeBatchPerformed})
}
