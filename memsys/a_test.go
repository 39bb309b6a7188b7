// Package memsys provides memory management for the broker's message frames.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package memsys_test

import (
	"sync"
	"testing"

	"github.com/aistorebroker/pstorebroker/memsys"
)

func TestGetFreeRoundtrip(t *testing.T) {
	mm := &memsys.MMSA{Name: "test-pool"}
	buf := mm.Get()
	if len(buf) != memsys.FrameSize {
		t.Fatalf("expected %d-byte buffer, got %d", memsys.FrameSize, len(buf))
	}
	mm.Free(buf)
	if n := mm.Size(); n != 1 {
		t.Fatalf("expected 1 idle buffer after Free, got %d", n)
	}
	if n := mm.Outstanding(); n != 0 {
		t.Fatalf("expected 0 outstanding after Free, got %d", n)
	}
}

func TestGetNeverBlocksWhenEmpty(t *testing.T) {
	mm := &memsys.MMSA{}
	for range 8 {
		buf := mm.Get() // pool starts empty every time - must allocate fresh, not block
		if len(buf) != memsys.FrameSize {
			t.Fatalf("expected %d-byte buffer, got %d", memsys.FrameSize, len(buf))
		}
	}
}

func TestConcurrentGetFree(t *testing.T) {
	mm := &memsys.MMSA{Name: "amem"}
	const goroutines, iters = 16, 200

	wg := &sync.WaitGroup{}
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iters {
				buf := mm.Get()
				buf[0] = 0xAB
				mm.Free(buf)
			}
		}()
	}
	wg.Wait()

	if out := mm.Outstanding(); out != 0 {
		t.Fatalf("expected 0 outstanding after all goroutines settle, got %d", out)
	}
}
