/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/aistorebroker/pstorebroker/channels"
	"github.com/aistorebroker/pstorebroker/memsys"
)

type fakeGC struct {
	started []string
	err     error
}

func (f *fakeGC) StartGC(path string) error {
	f.started = append(f.started, path)
	return f.err
}

func newTestProcessor(t *testing.T) (*Processor, *fakeGC, *memsys.MMSA) {
	t.Helper()
	pool := &memsys.MMSA{Name: "test"}
	gc := &fakeGC{}
	commits := channels.New("commits")
	sc, err := NewShutdownController()
	if err != nil {
		t.Skipf("self-pipe unavailable in this sandbox: %v", err)
	}
	t.Cleanup(sc.Close)
	p := NewProcessor(pool, gc, commits, sc, nil, nil)
	return p, gc, pool
}

func pushFrame(t *testing.T, p *Processor, pool *memsys.MMSA, f Frame) {
	t.Helper()
	buf := pool.Get()
	f.Encode(buf)
	p.Queue().Push(buf)
}

func TestProcessorEchoWritesToOut(t *testing.T) {
	p, _, pool := newTestProcessor(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	p.out = w

	f, _ := NewFrame(1, 1, 0, 1, []byte("ECHO hello world"))
	pushFrame(t, p, pool, f)

	done := make(chan struct{})
	go func() { p.Run(); close(done) }()

	want := "ECHO:hello world\n"
	got := make([]byte, len(want))
	// blocking read synchronizes with Echo's write, so there's no race
	// against the CQuit/Close below.
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	p.CQuit()
	p.Queue().Close()
	<-done
	_ = w.Close()
}

func TestProcessorDispatchesCompleteCommand(t *testing.T) {
	p, gc, pool := newTestProcessor(t)
	f, err := NewFrame(1, 1, 0, 1, []byte("GC /data/shard-7"))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	pushFrame(t, p, pool, f)

	done := make(chan struct{})
	go func() { p.Run(); close(done) }()

	waitForCondition(t, func() bool { return len(gc.started) == 1 })
	p.CQuit()
	p.Queue().Close()
	<-done

	if gc.started[0] != "/data/shard-7" {
		t.Fatalf("got %v", gc.started)
	}
}

func TestProcessorRecoversFromHandlerPanic(t *testing.T) {
	p, _, pool := newTestProcessor(t)
	p.gc = panicGC{}

	f, _ := NewFrame(1, 1, 0, 1, []byte("GC /anything"))
	pushFrame(t, p, pool, f)
	// a second, well-formed command should still be processed after the panic
	f2, _ := NewFrame(1, 2, 0, 1, []byte("NOP"))
	pushFrame(t, p, pool, f2)

	done := make(chan struct{})
	go func() { p.Run(); close(done) }()

	time.Sleep(50 * time.Millisecond)
	p.CQuit()
	p.Queue().Close()
	<-done // Run must have returned normally despite the panic in GC's handler
}

type panicGC struct{}

func (panicGC) StartGC(string) error { panic("boom") }

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
