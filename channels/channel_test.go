/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package channels

import "testing"

// TestPublishGatedByZeroSubscribers exercises testable property 7: with
// no subscriber, Publish's thunk never runs and Latest stays nil.
func TestPublishGatedByZeroSubscribers(t *testing.T) {
	ch := New("commits")
	called := false
	ch.Publish(func() ([]byte, error) {
		called = true
		return []byte(`{}`), nil
	})
	if called {
		t.Fatal("publish thunk ran with zero subscribers")
	}
	if latest, _ := ch.Latest(); latest != nil {
		t.Fatalf("latest should remain nil, got %s", latest)
	}
}

func TestPublishRunsWithAnySubscriber(t *testing.T) {
	ch := New("commits")
	ch.Subscribe()
	ch.PublishJSON(map[string]int64{"commits": 1})
	latest, _ := ch.Latest()
	if latest == nil {
		t.Fatal("latest should be set once a subscriber is present")
	}
}

func TestSubscribeUnsubscribeCounting(t *testing.T) {
	ch := New("commits")
	if n := ch.Subscribe(); n != 1 {
		t.Fatalf("got %d, want 1", n)
	}
	if n := ch.Subscribe(); n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
	if n := ch.Unsubscribe(); n != 1 {
		t.Fatalf("got %d, want 1", n)
	}
	if n := ch.Unsubscribe(); n != 0 {
		t.Fatalf("got %d, want 0", n)
	}
	if n := ch.Unsubscribe(); n != 0 {
		t.Fatalf("unsubscribe below zero should clamp at 0, got %d", n)
	}
}

func TestLatestWaiterWokenOnPublish(t *testing.T) {
	ch := New("uptime")
	ch.Subscribe()
	_, waitCh := ch.Latest()

	ch.PublishJSON(map[string]float64{"uptime_seconds": 1})

	select {
	case <-waitCh:
	default:
		t.Fatal("waiter returned by Latest should be closed after Publish")
	}
}

func TestPublishThunkErrorLeavesLatestUnchanged(t *testing.T) {
	ch := New("commits")
	ch.Subscribe()
	ch.PublishJSON(map[string]int64{"commits": 1})
	before, _ := ch.Latest()

	ch.Publish(func() ([]byte, error) { return nil, errShouldNotPublish })

	after, _ := ch.Latest()
	if string(before) != string(after) {
		t.Fatalf("a failed publish thunk must not change the latest payload: before=%s after=%s", before, after)
	}
}

var errShouldNotPublish = errBoom("boom")

type errBoom string

func (e errBoom) Error() string { return string(e) }
