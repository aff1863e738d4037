package events

import (
	"sync"
	"testing"
	"time"

	"planets-engine/internal/shared/logger"
)

func TestBusFanOutAndFilter(t *testing.T) {
	bus := NewBus(logger.Discard())

	all := bus.Subscribe(4, nil)
	defer all.Close()
	mine := bus.Subscribe(4, func(e Event) bool { return e.EmpireID == "e1" })
	defer mine.Close()

	bus.Publish(Event{Type: QueueCompleted, EmpireID: "e1", SubjectID: "q1"})
	bus.Publish(Event{Type: QueueCompleted, EmpireID: "e2", SubjectID: "q2"})

	if got := len(all.C); got != 2 {
		t.Fatalf("unfiltered subscriber got %d events, want 2", got)
	}
	if got := len(mine.C); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}

	e := <-mine.C
	if e.ID == "" || e.At.IsZero() {
		t.Fatalf("event was not stamped: %+v", e)
	}
	if e.SubjectID != "q1" {
		t.Fatalf("subject = %s, want q1", e.SubjectID)
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := bus.Subscribe(1, nil)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(Event{Type: MovementArrived})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if bus.Dropped() != 4 {
		t.Fatalf("dropped = %d, want 4", bus.Dropped())
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := bus.Subscribe(1, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	wg.Wait()

	if bus.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d", bus.SubscriberCount())
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel should be closed")
	}
	bus.Publish(Event{Type: QueueCancelled})
}
