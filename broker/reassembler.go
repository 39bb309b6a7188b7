/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aistorebroker/pstorebroker/cmn/mono"
)

// ErrNumPartsMismatch is returned when a later frame for an in-flight
// (sender_id, message_id) claims a different num_parts than the first.
var ErrNumPartsMismatch = errors.New("number_of_parts_mismatch")

// partialKey identifies one in-flight command (spec.md §3).
type partialKey struct {
	SenderID  uint32
	MessageID uint32
}

// PartialCommand is one entry in the reassembler's map: arriveNanos is
// touched on every incoming frame (not just the first), slots/set track
// which part_no values have been filled.
type PartialCommand struct {
	arriveNanos int64
	slots       []string
	set         []bool
	nset        int
}

// ArriveTime is the wall-clock time of the most recently received frame.
func (pc *PartialCommand) ArriveTime() time.Time {
	return time.Unix(0, pc.arriveNanos)
}

// Reassembler owns the (sender_id, message_id) -> PartialCommand map
// under one mutex (spec.md C4). The lock is released before the caller
// dispatches a completed Command, per the leaf-lock discipline in
// spec.md §5.
type Reassembler struct {
	mu       sync.Mutex
	partials map[partialKey]*PartialCommand
}

func NewReassembler() *Reassembler {
	return &Reassembler{partials: make(map[partialKey]*PartialCommand)}
}

// Feed processes one incoming frame. It returns (cmd, true, nil) the
// instant the last slot of a command is filled, (zero, false, nil) while
// the command is still partial, or a non-nil error per spec.md §4.4/§7.
func (r *Reassembler) Feed(f Frame) (Command, bool, error) {
	if f.NumParts == 0 || f.PartNo >= f.NumParts {
		return Command{}, false, ErrBadPartNumber
	}

	payload := string(bytes.TrimRight(f.Payload[:], "\x00"))
	now := mono.NanoTime()
	key := partialKey{f.SenderID, f.MessageID}

	r.mu.Lock()
	pc, exists := r.partials[key]
	if !exists {
		pc = &PartialCommand{
			slots: make([]string, f.NumParts),
			set:   make([]bool, f.NumParts),
		}
		r.partials[key] = pc
	}
	pc.arriveNanos = now // touched on every part, including ones that error below

	if len(pc.slots) != int(f.NumParts) {
		r.mu.Unlock()
		return Command{}, false, ErrNumPartsMismatch
	}

	if !pc.set[f.PartNo] {
		pc.set[f.PartNo] = true
		pc.nset++
	}
	pc.slots[f.PartNo] = payload

	if pc.nset < len(pc.slots) {
		r.mu.Unlock()
		return Command{}, false, nil // not yet complete
	}

	delete(r.partials, key)
	full := strings.Join(pc.slots, "")
	r.mu.Unlock()

	return splitCommand(full), true, nil
}

// Drop erases the partial-command entry for key, if any. The processor
// calls this after a Feed that returned ErrNumPartsMismatch (spec.md §7:
// "processor logs and drops the partial state for that key").
func (r *Reassembler) Drop(senderID, messageID uint32) {
	r.mu.Lock()
	delete(r.partials, partialKey{senderID, messageID})
	r.mu.Unlock()
}

// Scavenge evicts every partial command whose arrive time is strictly
// older than now-threshold (the boundary is half-open: exactly
// now-threshold survives - spec.md §4.6, testable property 5). It
// returns the number of entries evicted and logs each one (caller
// supplies the logger so tests can assert on eviction without nlog).
func (r *Reassembler) Scavenge(threshold time.Duration, onEvict func(senderID, messageID uint32, age time.Duration)) int {
	cutoffNanos := mono.NanoTime() - threshold.Nanoseconds()
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, pc := range r.partials {
		if pc.arriveNanos < cutoffNanos {
			age := time.Duration(mono.NanoTime() - pc.arriveNanos)
			delete(r.partials, k)
			n++
			if onEvict != nil {
				onEvict(k.SenderID, k.MessageID, age)
			}
		}
	}
	return n
}

// Len reports the number of in-flight partial commands (telemetry/tests).
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.partials)
}
