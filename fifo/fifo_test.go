/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package fifo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aistorebroker/pstorebroker/broker"
	"github.com/aistorebroker/pstorebroker/cmn/cos"
	"github.com/aistorebroker/pstorebroker/memsys"
)

// fifoPath builds a unique pipe path per test so parallel runs never
// collide on the same filesystem entry.
func fifoPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "pstorebroker-"+cos.CryptoRandS(8)+".fifo")
}

func TestCreateIsIdempotent(t *testing.T) {
	path := fifoPath(t)
	if err := Create(path); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := Create(path); err != nil {
		t.Fatalf("second Create (EEXIST) should be a no-op, got %v", err)
	}
}

func TestReadFrameReturnsWrittenFrame(t *testing.T) {
	path := fifoPath(t)
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	pool := &memsys.MMSA{Name: "test"}
	r, err := Open(path, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	f, err := broker.NewFrame(1, 1, 0, 1, []byte("ECHO hi"))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	want := make([]byte, broker.FrameSize)
	f.Encode(want)

	type result struct {
		buf []byte
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf, ok, err := r.ReadFrame(func() bool { return false })
		done <- result{buf, ok, err}
	}()

	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	defer w.Close()
	if _, err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("ReadFrame: %v", res.err)
		}
		if !res.ok {
			t.Fatal("ReadFrame: ok=false, want true")
		}
		if string(res.buf) != string(want) {
			t.Fatal("ReadFrame returned different bytes than were written")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ReadFrame")
	}
}

func TestReadFrameWakesOnDone(t *testing.T) {
	path := fifoPath(t)
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	pool := &memsys.MMSA{Name: "test"}
	r, err := Open(path, pool)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	done := make(chan struct{})
	isDone := func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	close(done)

	buf, ok, err := r.ReadFrame(isDone)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if ok || buf != nil {
		t.Fatalf("ReadFrame should report a clean wake (ok=false, buf=nil), got ok=%v buf=%v", ok, buf)
	}
}

type badPool struct{}

func (badPool) Get() []byte    { return make([]byte, broker.FrameSize-1) }
func (badPool) Free([]byte) {}

func TestReadFrameRejectsMisconfiguredPool(t *testing.T) {
	path := fifoPath(t)
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r, err := Open(path, badPool{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	_, ok, err := r.ReadFrame(func() bool { return false })
	if err != broker.ErrMalformedSize {
		t.Fatalf("got %v, want broker.ErrMalformedSize", err)
	}
	if ok {
		t.Fatal("ok should be false on a pool-size mismatch")
	}
}
