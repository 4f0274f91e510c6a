package events

import (
	"testing"
	"time"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventVerifyStart, "test"))

	select {
	case event := <-ch:
		if event.Type != EventVerifyStart {
			t.Errorf("expected EventVerifyStart, got %s", event.Type)
		}
		if event.Data != "test" {
			t.Errorf("expected data 'test', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe(EventVerifyResult)
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventVerifyStart, "should-be-filtered"))
	bus.Publish(NewEvent(EventVerifyResult, "should-arrive"))

	select {
	case event := <-ch:
		if event.Type != EventVerifyResult {
			t.Errorf("expected EventVerifyResult, got %s", event.Type)
		}
		if event.Data != "should-arrive" {
			t.Errorf("expected data 'should-arrive', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	// Ensure the filtered event didn't arrive.
	select {
	case event := <-ch:
		t.Errorf("unexpected event: %v", event)
	case <-time.After(50 * time.Millisecond):
		// No event arrived.
	}
}

func TestMemoryBusMultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(NewEvent(EventInspectStart, "file[/etc/motd]"))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != EventInspectStart {
				t.Errorf("expected EventInspectStart, got %s", event.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryBusHistory(t *testing.T) {
	bus := NewMemoryBus()

	t1 := time.Now()
	bus.Publish(NewEvent(EventVerifyStart, "first"))
	time.Sleep(10 * time.Millisecond)
	t2 := time.Now()
	bus.Publish(NewEvent(EventVerifyResult, "second"))

	all := bus.History(t1)
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	since := bus.History(t2)
	if len(since) != 1 {
		t.Fatalf("expected 1 event since t2, got %d", len(since))
	}
	if since[0].Data != "second" {
		t.Errorf("expected 'second', got %v", since[0].Data)
	}
}

func TestMemoryBusHistoryEmpty(t *testing.T) {
	bus := NewMemoryBus()
	events := bus.History(time.Time{})
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	// Channel should be closed after unsubscribe.
	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed")
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventVerifyStart, map[string]int{"expectations": 3})

	if event.Type != EventVerifyStart {
		t.Errorf("expected EventVerifyStart, got %s", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestMemoryBusHistoryLimit(t *testing.T) {
	bus := NewMemoryBus(WithHistoryLimit(3))
	for i := 0; i < 5; i++ {
		bus.Publish(NewEvent(EventInspectEnd, i))
	}

	got := bus.History(time.Time{})
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Data != 2 || got[2].Data != 4 {
		t.Errorf("expected the newest events 2..4, got %v .. %v", got[0].Data, got[2].Data)
	}
}

func TestMemoryBusHistoryDisabled(t *testing.T) {
	bus := NewMemoryBus(WithHistoryLimit(0))
	bus.Publish(NewEvent(EventInspectEnd, nil))
	if n := len(bus.History(time.Time{})); n != 0 {
		t.Errorf("expected no history, got %d events", n)
	}
}

func TestMemoryBusCount(t *testing.T) {
	bus := NewMemoryBus()
	bus.Publish(NewRefEvent(EventInspectStart, "file[/etc/motd]", nil))
	bus.Publish(NewRefEvent(EventInspectError, "file[/etc/motd]", "permission denied"))
	bus.Publish(NewRefEvent(EventInspectStart, "user[deploy]", nil))

	if n := bus.Count(EventInspectStart); n != 2 {
		t.Errorf("expected 2 inspect.start events, got %d", n)
	}
	if n := bus.Count(EventInspectError); n != 1 {
		t.Errorf("expected 1 inspect.error event, got %d", n)
	}
}

func TestNewRefEvent(t *testing.T) {
	event := NewRefEvent(EventInspectError, "mount[/data]", "boom")
	if event.Ref != "mount[/data]" {
		t.Errorf("expected ref mount[/data], got %q", event.Ref)
	}
}
