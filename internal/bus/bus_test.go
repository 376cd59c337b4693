package bus

import (
	"testing"
	"time"
)

func TestSubscribeReceivesPublished(t *testing.T) {
	b := New[int]()
	ch, cancel := b.Subscribe("calls")
	defer cancel()

	b.Publish("calls", 42)

	select {
	case v := <-ch:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestPublishToOtherTopicNotDelivered(t *testing.T) {
	b := New[int]()
	ch, cancel := b.Subscribe("call:a")
	defer cancel()

	b.Publish("call:b", 1)

	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberKeepsLatestOnly(t *testing.T) {
	b := New[int]()
	ch, cancel := b.Subscribe("calls")
	defer cancel()

	b.Publish("calls", 1)
	b.Publish("calls", 2)
	b.Publish("calls", 3)

	select {
	case v := <-ch:
		if v != 3 {
			t.Fatalf("got %d, want latest snapshot 3", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestUnsubscribeClosesChannelAndIsIdempotent(t *testing.T) {
	b := New[int]()
	ch, cancel := b.Subscribe("calls")

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if got := b.SubscriberCount("calls"); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}

	// Publishing after the last unsubscribe must not panic.
	b.Publish("calls", 9)
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := New[string]()
	ch1, cancel1 := b.Subscribe("locations:drivers")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("locations:drivers")
	defer cancel2()

	b.Publish("locations:drivers", "sample")

	for _, ch := range []<-chan string{ch1, ch2} {
		select {
		case v := <-ch:
			if v != "sample" {
				t.Fatalf("got %q", v)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}
