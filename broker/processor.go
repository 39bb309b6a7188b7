/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/aistorebroker/pstorebroker/channels"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
	"github.com/aistorebroker/pstorebroker/memsys"
)

// Processor is the real Handlers implementation (spec.md C5): it owns the
// reassembler and command queue, drives the single command-processing
// goroutine, and carries out each verb's side effects. Tests wire a spy
// Handlers instead of a Processor so they can assert on calls without a
// real GC child process or os.Stdout.
type Processor struct {
	pool  *memsys.MMSA
	queue *Queue
	reasm *Reassembler

	commits *channels.Channel
	gc      GCStarter
	audit   AuditRecorder // nil-able
	metrics Metrics       // nil-able

	done         *ShutdownController
	commitsCount atomic.Int64
	commandsDone atomic.Bool
	quitCount    atomic.Int64 // number of _QUIT commands dispatched so far
	cquitCount   atomic.Int64 // number of _CQUIT commands dispatched so far
	out          *os.File     // ECHO's standard output; overridable by tests
}

// NewProcessor wires a Processor against the given pool, GC collaborator,
// commits channel, and shutdown controller. audit/metrics may be nil.
func NewProcessor(pool *memsys.MMSA, gc GCStarter, commits *channels.Channel, sc *ShutdownController, audit AuditRecorder, metrics Metrics) *Processor {
	return &Processor{
		pool:    pool,
		queue:   NewQueue(),
		reasm:   NewReassembler(),
		commits: commits,
		gc:      gc,
		audit:   audit,
		metrics: metrics,
		done:    sc,
		out:     os.Stdout,
	}
}

// Queue exposes the inbound frame queue so reader goroutines can push
// onto it (spec.md C3).
func (p *Processor) Queue() *Queue { return p.queue }

// handleFrame decodes and reassembles one wire-form buffer, returning the
// buffer to the pool once done with it. Run calls it for every buffer it
// pops off the queue; readers never call it, they only push onto the
// queue.
func (p *Processor) handleFrame(buf []byte) {
	defer p.pool.Free(buf)

	f, err := DecodeFrame(buf)
	if err != nil {
		nlog.Errorf("broker: malformed frame: %v", err)
		if p.metrics != nil {
			p.metrics.IncMalformedFrames()
		}
		return
	}
	if p.metrics != nil {
		p.metrics.IncFramesReceived()
	}

	cmd, complete, err := p.reasm.Feed(f)
	if err != nil {
		if errors.Is(err, ErrNumPartsMismatch) {
			p.reasm.Drop(f.SenderID, f.MessageID)
		}
		nlog.Errorf("broker: reassembly error sender=%d message=%d: %v", f.SenderID, f.MessageID, err)
		return
	}
	if !complete {
		if p.metrics != nil {
			p.metrics.SetPartialCommandCount(p.reasm.Len())
		}
		return
	}

	p.dispatchSafely(cmd)
}

// dispatchSafely runs one command through the dispatch table, recovering
// from any handler panic so a single bad command can never take down the
// processor loop (spec.md §4.5: "handlers may throw; the top-level loop
// catches all exceptions, logs them, and continues").
func (p *Processor) dispatchSafely(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("broker: handler panic for verb %q: %v", cmd.Verb, r)
		}
	}()
	if p.audit != nil {
		p.audit.Record(cmd.Verb, cmd.Path, time.Now())
	}
	if p.metrics != nil {
		p.metrics.IncCommandsDispatched(cmd.Verb)
	}
	Dispatch(p, cmd)
}

// Run is the single command-processor goroutine (spec.md C5): it pops
// frames off the queue until CQuit is dispatched or the queue is closed
// during shutdown.
func (p *Processor) Run() {
	for !p.commandsDone.Load() {
		buf, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.handleFrame(buf)
	}
}

// --- Handlers implementation (spec.md §4.5) ---

func (p *Processor) Echo(path string) {
	fmt.Fprintf(p.out, "ECHO:%s\n", path)
}

func (p *Processor) GC(path string) {
	if err := p.gc.StartGC(path); err != nil {
		nlog.Errorf("broker: GC failed for %s: %v", path, err)
		return
	}
	n := p.commitsCount.Add(1)
	p.commits.PublishJSON(map[string]int64{"commits": n})
}

func (*Processor) Nop() { nlog.Infof("broker: NOP") }

func (p *Processor) Suicide() {
	nlog.Infof("broker: SUICIDE received, initiating shutdown")
	p.done.NotifyQuit(SigSelfQuit)
}

// Quit is the internal _QUIT verb's handler. Readers are actually woken
// by their transport's own poll-timeout (package fifo's WakeInterval)
// re-checking the shutdown controller's done flag, not by a frame placed
// on the wire; _QUIT exists so the shutdown sequence can dispatch it
// exactly once per reader thread through the normal dispatch table,
// giving testable property 8 ("num_read_threads _QUIT dispatches per
// shutdown") something real to count via QuitCount.
func (p *Processor) Quit() {
	p.quitCount.Add(1)
	if !p.done.Done() {
		nlog.Infof("broker: _QUIT dispatched before shutdown; ignoring")
	}
}

// QuitCount returns how many times _QUIT has been dispatched.
func (p *Processor) QuitCount() int64 { return p.quitCount.Load() }

// CQuit stops Run's loop; the shutdown sequence dispatches this exactly
// once to stop the processor.
func (p *Processor) CQuit() {
	p.cquitCount.Add(1)
	p.commandsDone.Store(true)
}

// CQuitCount returns how many times _CQUIT has been dispatched.
func (p *Processor) CQuitCount() int64 { return p.cquitCount.Load() }

func (*Processor) Unknown(verb string) { nlog.Errorf("broker: unknown verb %q", verb) }

var _ Handlers = (*Processor)(nil)
