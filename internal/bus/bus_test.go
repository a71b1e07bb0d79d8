package bus

import (
	"testing"
	"time"
)

func TestEmitSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	before := time.Now()
	b.Emit(KindStatusChanged, "test")

	select {
	case evt := <-ch:
		if evt.Kind != KindStatusChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindStatusChanged)
		}
		if evt.Timestamp.Before(before) {
			t.Errorf("timestamp %v not stamped at emit", evt.Timestamp)
		}
		if evt.Payload != "test" {
			t.Errorf("payload = %v, want test", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Emit(KindStatusChanged, nil)
	b.Emit(KindConnected, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindConnected {
			t.Errorf("got kind %q, want %s", evt.Kind, KindConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()
	unsub() // second call is a no-op

	b.Emit(KindStatusChanged, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 1)
	defer unsub()

	b.Emit(KindMessage, 1)
	b.Emit(KindMessage, 2) // dropped

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("got payload %v, want 1", evt.Payload)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}
