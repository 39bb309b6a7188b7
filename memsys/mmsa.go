// Package memsys provides memory management for the broker's message
// frames: a single fixed-size-slab allocator (MMSA) that recycles 256-byte
// frame buffers between reader and processor goroutines (spec.md C2).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aistorebroker/pstorebroker/cmn/debug"
)

// FrameSize is the wire size of one broker.Frame (spec.md §3): 12-byte
// header + 244-byte payload. MMSA deals exclusively in buffers of this
// size - there are no size tiers/slabs the way the general-purpose
// upstream allocator has, because every frame on this wire is the same
// fixed width.
const FrameSize = 256

// MMSA ("memory-management slab allocator") is a monitor around an
// unbounded LIFO of owned frame buffers.
//
//   - Get returns a buffer immediately, allocating a fresh one if the
//     free list is empty; it never blocks.
//   - Free returns a buffer to the pool; passing nil is a debug-checked
//     programmer error, never a runtime one.
//
// There is no cap: growth is bounded in practice by the number of frames
// in flight across readers plus the command-queue depth.
type MMSA struct {
	Name     string        // diagnostic name, e.g. "broker-pool"
	TimeIval time.Duration // reserved for parity with the upstream MMSA API; unused (no background sizing loop)
	MinFree  int64         // ditto

	mu   sync.Mutex
	free [][]byte
	gets atomic.Int64
	puts atomic.Int64
}

// Init is a no-op retained for API compatibility with the upstream MMSA's
// Init(level int): this fixed-size pool has nothing to size at startup.
func (*MMSA) Init(int) {}

func (mm *MMSA) Get() []byte {
	mm.mu.Lock()
	n := len(mm.free)
	if n == 0 {
		mm.mu.Unlock()
		mm.gets.Add(1)
		return make([]byte, FrameSize)
	}
	buf := mm.free[n-1]
	mm.free[n-1] = nil
	mm.free = mm.free[:n-1]
	mm.mu.Unlock()
	mm.gets.Add(1)
	return buf
}

func (mm *MMSA) Free(buf []byte) {
	debug.Assert(buf != nil, "memsys: Free called with nil buffer")
	mm.mu.Lock()
	mm.free = append(mm.free, buf)
	mm.mu.Unlock()
	mm.puts.Add(1)
}

// Outstanding returns the number of buffers currently checked out (in
// flight across readers, the command queue, and the processor).
func (mm *MMSA) Outstanding() int64 { return mm.gets.Load() - mm.puts.Load() }

// Size returns the number of buffers currently sitting idle in the pool.
func (mm *MMSA) Size() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.free)
}
