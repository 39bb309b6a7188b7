/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"time"

	"github.com/aistorebroker/pstorebroker/cmn/nlog"
	"github.com/aistorebroker/pstorebroker/hk"
)

// scavengerName is the hk registration key; UnregisterScavenger uses it to
// remove the registration.
const scavengerName = "partial-command-scavenger"

// DefaultScavengeInterval is the tick period (spec.md §4.6: "every ~10
// minutes, regardless of whether anything was evicted"). It is fixed,
// independent of the configurable retention threshold.
const DefaultScavengeInterval = 10 * time.Minute

// RegisterScavenger wires the reassembler's Scavenge into the given
// housekeeper, reached only through handle so that a torn-down processor
// simply causes ticks to be skipped rather than racing its destructor
// (spec.md §9, cyclic weak-reference redesign note).
func RegisterScavenger(hkInst *hk.Housekeeper, handle *ProcessorHandle, threshold time.Duration) {
	hkInst.Reg(scavengerName, func() time.Duration {
		tick(handle, threshold)
		return DefaultScavengeInterval
	}, DefaultScavengeInterval)
}

// UnregisterScavenger stops further ticks; idempotent.
func UnregisterScavenger(hkInst *hk.Housekeeper) { hkInst.Unreg(scavengerName) }

func tick(handle *ProcessorHandle, threshold time.Duration) {
	p, ok := handle.Upgrade()
	if !ok {
		return // processor already torn down; skip this tick
	}
	evicted := p.reasm.Scavenge(threshold, func(senderID, messageID uint32, age time.Duration) {
		nlog.Infof("scavenger: evicting partial command sender=%d message=%d age=%s", senderID, messageID, age)
	})
	if evicted > 0 {
		nlog.Infof("scavenger: evicted %d stale partial command(s)", evicted)
		if p.metrics != nil {
			p.metrics.AddScavengeEvictions(evicted)
		}
	}
}
