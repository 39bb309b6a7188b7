/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aistorebroker/pstorebroker/channels"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
	"github.com/aistorebroker/pstorebroker/hk"
)

// FrameSource is anything a reader goroutine can pull wire-form frames
// from; package fifo's Reader satisfies this structurally. Kept as an
// interface here (rather than importing fifo) so broker has no
// dependency on the transport it's agnostic to - playback mode, for
// instance, supplies a source backed by package recorder instead.
type FrameSource interface {
	ReadFrame(isDone func() bool) (buf []byte, ok bool, err error)
	Close() error
}

// uptimeTickInterval is fixed at one second, per spec.md §5/§6: the
// uptime channel emits one JSON object per second since process start.
const uptimeTickInterval = 1 * time.Second

// Supervisor owns the full set of broker goroutines (spec.md C10):
// N reader threads, the single command processor, the scavenger's
// housekeeper loop, the uptime ticker, and the quit thread - joined
// through an errgroup so any unexpected reader error propagates instead
// of silently vanishing.
type Supervisor struct {
	Processor *Processor
	Handle    *ProcessorHandle
	Shutdown  *ShutdownController
	HK        *hk.Housekeeper
	Uptime    *channels.Channel

	Sources []FrameSource // empty in playback mode

	// Stop is called once, from the quit thread, after readers and the
	// command processor have been told to stop but before the sequence
	// returns; httpd/gcwatch teardown hooks live here so broker stays
	// agnostic of both.
	Stop func()

	group *errgroup.Group
}

// Run starts every goroutine and blocks until the quit thread's shutdown
// sequence has fully unwound. It returns the exit code derived from
// whichever signal (real or SigSelfQuit) triggered shutdown.
func (s *Supervisor) Run() int {
	var g errgroup.Group
	s.group = &g

	for i, src := range s.Sources {
		src := src
		idx := i
		g.Go(func() error { return s.readLoop(idx, src) })
	}

	g.Go(func() error {
		s.Processor.Run()
		return nil
	})

	g.Go(func() error {
		s.HK.Run()
		return nil
	})

	g.Go(func() error {
		s.uptimeLoop()
		return nil
	})

	var exitSig int32
	g.Go(func() error {
		exitSig = s.Shutdown.Wait()
		s.Shutdown.RunSequenceOnce(s.shutdownSequence)
		return nil
	})

	if err := g.Wait(); err != nil {
		nlog.Errorf("broker: supervisor worker returned error: %v", err)
	}
	return ExitCode(exitSig)
}

// readLoop owns src for its whole lifetime, including closing it on the
// way out - shutdownSequence never touches Sources directly, since
// closing a file descriptor out from under a goroutine still polling it
// is a race, not a clean handoff.
func (s *Supervisor) readLoop(idx int, src FrameSource) error {
	defer func() { _ = src.Close() }()
	for {
		buf, ok, err := src.ReadFrame(s.Shutdown.Done)
		if !ok {
			if err != nil {
				nlog.Errorf("broker: reader %d: %v", idx, err)
				s.Shutdown.NotifyQuit(SigSelfQuit)
				return err
			}
			nlog.Infof("broker: reader %d exiting", idx)
			return nil
		}
		if err != nil {
			nlog.Errorf("broker: reader %d: %v", idx, err)
			continue
		}
		s.Processor.Queue().Push(buf)
	}
}

func (s *Supervisor) uptimeLoop() {
	start := time.Now()
	ticker := time.NewTicker(uptimeTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Uptime.PublishJSON(map[string]float64{"uptime": time.Since(start).Seconds()})
		case <-s.Shutdown.Latched():
			return
		}
	}
}

// shutdownSequence is the ordered teardown spec.md §4.9 describes:
// disconnect the scavenger first (so no tick races a half-torn-down
// processor), clear the queue (queued buffers are dropped, not drained),
// dispatch _QUIT once per reader thread and _CQUIT once to stop the
// command processor, then run any caller-supplied teardown (HTTP
// server, GC watcher reap).
func (s *Supervisor) shutdownSequence(sig int32) {
	nlog.Infof("broker: shutdown sequence starting (signal=%d)", sig)

	UnregisterScavenger(s.HK)
	s.Handle.Release()
	s.HK.Stop()

	s.Processor.Queue().Clear()
	for range s.Sources {
		Dispatch(s.Processor, Command{Verb: "_QUIT"})
	}
	Dispatch(s.Processor, Command{Verb: "_CQUIT"})
	s.Processor.Queue().Close()

	if s.Stop != nil {
		s.Stop()
	}

	nlog.Infof("broker: shutdown sequence complete")
}
