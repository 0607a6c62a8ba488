package session

import (
	"sync"
	"testing"
)

func TestLoop_NestedPostRunsAfterCurrentStep(t *testing.T) {
	var l loop
	var order []string

	l.run(func() {
		l.post(func() { order = append(order, "inner") })
		order = append(order, "outer")
	})

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestLoop_NotificationsRunAfterSteps(t *testing.T) {
	var l loop
	var order []string

	l.run(func() {
		l.notify(func() { order = append(order, "note") })
		l.post(func() { order = append(order, "step") })
	})

	if len(order) != 2 || order[0] != "step" || order[1] != "note" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestLoop_NotificationMayRun(t *testing.T) {
	var l loop
	ran := false

	l.run(func() {
		l.notify(func() {
			l.run(func() { ran = true })
		})
	})

	if !ran {
		t.Error("expected nested run from a notification to complete")
	}
}

func TestLoop_SerializesConcurrentPosts(t *testing.T) {
	var l loop
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var got int
	l.run(func() { got = counter })
	if got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}
