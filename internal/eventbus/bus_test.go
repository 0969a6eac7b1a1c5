package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: "notification.added", Data: "x"})

	select {
	case e := <-ch:
		if e.Type != "notification.added" {
			t.Fatalf("Type = %q", e.Type)
		}
		if e.Time.IsZero() {
			t.Fatal("Time not stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	// second publish must not block even though the buffer is full
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: "a"})
		b.Publish(Event{Type: "b"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on full subscriber")
	}
	<-ch
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()

	b.Publish(Event{Type: "late"})
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("received event after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		// closed channel should read immediately; tolerate either
	}
}
