package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("transcript.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindTranscriptChanged, Payload: 3})

	select {
	case evt := <-ch:
		if evt.Kind != KindTranscriptChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindTranscriptChanged)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp was not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("live.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged})
	b.Publish(Event{Kind: KindLiveMessage})

	select {
	case evt := <-ch:
		if evt.Kind != KindLiveMessage {
			t.Errorf("got kind %q, want %s", evt.Kind, KindLiveMessage)
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

func TestMultiplePrefixes(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("live.|history.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindHistoryPage})
	b.Publish(Event{Kind: KindOutboxSent})
	b.Publish(Event{Kind: KindLiveMessage})

	var got []string
	for range 2 {
		select {
		case evt := <-ch:
			got = append(got, evt.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", got)
		}
	}
	if got[0] != KindHistoryPage || got[1] != KindLiveMessage {
		t.Errorf("got %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: KindStatusChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("notify.", 1)
	defer unsub()

	b.Publish(Notify("error", "one"))
	b.Publish(Notify("error", "two"))

	evt := <-ch
	if evt.Payload != "one" {
		t.Errorf("got %v, want one", evt.Payload)
	}
}

func TestNotifyLevels(t *testing.T) {
	if k := Notify("error", "x").Kind; k != KindNotifyError {
		t.Errorf("error level kind = %s", k)
	}
	if k := Notify("info", "x").Kind; k != KindNotifyInfo {
		t.Errorf("info level kind = %s", k)
	}
}
