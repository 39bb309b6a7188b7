// Package channels implements the broker's event channels (spec.md C7):
// named, publish-only topics whose publish call is a no-op unless an
// external subscriber (the HTTP telemetry surface) is present, so that
// formatting cost is paid only when someone is listening.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package channels

import (
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/aistorebroker/pstorebroker/cmn/debug"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
)

// Channel is a named publisher. Subscribe/Unsubscribe are called by the
// HTTP layer (external to this package, per spec.md §4.7); Publish is
// called by broker handlers (the GC handler on "commits", the uptime
// ticker on "uptime").
type Channel struct {
	name string

	mu          sync.Mutex
	subscribers int
	latest      []byte
	waitCh      chan struct{} // closed and replaced on every Publish
}

func New(name string) *Channel {
	return &Channel{name: name, waitCh: make(chan struct{})}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) Subscribe() (count int) {
	c.mu.Lock()
	c.subscribers++
	count = c.subscribers
	c.mu.Unlock()
	return
}

func (c *Channel) Unsubscribe() (count int) {
	c.mu.Lock()
	if c.subscribers > 0 {
		c.subscribers--
	}
	count = c.subscribers
	c.mu.Unlock()
	return
}

func (c *Channel) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribers
}

// Publish invokes thunk only when subscriber_count > 0; thunk's result
// becomes the channel's latest message and every blocked waiter (see
// Latest) is woken. A zero-subscriber publish is a pure no-op: thunk is
// never called (spec.md §4.7, testable property 7).
func (c *Channel) Publish(thunk func() ([]byte, error)) {
	c.mu.Lock()
	n := c.subscribers
	c.mu.Unlock()
	if n == 0 {
		return
	}

	payload, err := thunk()
	if err != nil {
		nlog.Errorf("channel %s: publish thunk failed: %v", c.name, err)
		return
	}
	debug.Assert(jsoniter.Valid(payload), "channel: publish payload must be valid JSON")

	c.mu.Lock()
	c.latest = payload
	old := c.waitCh
	c.waitCh = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// PublishJSON is a convenience wrapper around Publish for the common case
// of marshaling a Go value (rather than hand-building JSON bytes).
func (c *Channel) PublishJSON(v any) {
	c.Publish(func() ([]byte, error) { return jsoniter.Marshal(v) })
}

// Latest returns the most recently published payload (nil if none yet)
// and a channel that closes the next time Publish succeeds - callers
// implementing HTTP long-poll select on it alongside request
// cancellation.
func (c *Channel) Latest() ([]byte, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.waitCh
}
