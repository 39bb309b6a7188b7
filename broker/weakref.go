/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import "sync"

// ProcessorHandle is a non-owning handle to a *Processor whose Upgrade is
// fallible, replacing the source's cyclic shared_ptr/weak_ptr between the
// command processor and the scavenger (spec.md §9, Design Notes). The
// scavenger holds only a ProcessorHandle; it tolerates the processor
// being torn down by skipping its tick when Upgrade fails.
type ProcessorHandle struct {
	mu sync.RWMutex
	p  *Processor
}

// Bind attaches the live processor; called once by the supervisor during
// construction (spec.md §4.10 step 4: "give the processor a weak handle
// back").
func (h *ProcessorHandle) Bind(p *Processor) {
	h.mu.Lock()
	h.p = p
	h.mu.Unlock()
}

// Release detaches the processor; called by the supervisor during
// teardown, strictly before the processor goroutine is joined, so that
// any scavenger tick racing with shutdown sees a clean miss instead of a
// half-torn-down processor.
func (h *ProcessorHandle) Release() {
	h.mu.Lock()
	h.p = nil
	h.mu.Unlock()
}

// Upgrade returns the processor and true if still bound.
func (h *ProcessorHandle) Upgrade() (*Processor, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.p, h.p != nil
}
