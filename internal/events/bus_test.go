package events

import (
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 10)

	event := TaskClaimedEvent{
		ID:        "task-1",
		Kind:      "generation",
		ProjectID: "proj-1",
		Timestamp: time.Now(),
	}

	bus.Publish(TopicTask, event)

	select {
	case received := <-ch:
		if received.TaskID() != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID())
		}
		if received.EventType() != EventTypeTaskClaimed {
			t.Errorf("expected event type '%s', got '%s'", EventTypeTaskClaimed, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicSession, 10)
	ch2 := bus.Subscribe(TopicSession, 10)

	event := SessionRoundEvent{
		ID:           "task-2",
		Round:        3,
		MissingRoles: []string{"mapper"},
		Timestamp:    time.Now(),
	}

	bus.Publish(TopicSession, event)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID() != "task-2" {
				t.Errorf("subscriber %d: expected task ID 'task-2', got '%s'", i+1, received.TaskID())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Subscribe(TopicTask, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicTask, TaskClaimedEvent{ID: "task", Timestamp: time.Now()})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}

// TestSubscribeAll verifies cross-topic subscriptions see every topic.
func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll(10)

	bus.Publish(TopicTask, TaskCompletedEvent{ID: "t1", Timestamp: time.Now()})
	bus.Publish(TopicSession, SessionRoundEvent{ID: "t1", Round: 1, Timestamp: time.Now()})

	for i := 0; i < 2; i++ {
		select {
		case <-all:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("expected 2 events on all-topic channel, got %d", i)
		}
	}
}

// TestCloseIdempotent verifies Close can be called twice and drains subscribers.
func TestCloseIdempotent(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicTask, 1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel to be closed")
	}

	// Publishing after close must not panic.
	bus.Publish(TopicTask, TaskClaimedEvent{ID: "t"})

	if ch2 := bus.Subscribe(TopicTask, 1); ch2 == nil {
		t.Error("Subscribe after Close should return a closed channel, not nil")
	}
}
