/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aistorebroker/pstorebroker/cmn/cos"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
)

// SigSelfQuit is the synthetic "signal number" latched when shutdown is
// requested from within the process itself (the SUICIDE verb) rather
// than by an external OS signal.
const SigSelfQuit int32 = 0

const notLatched int32 = -1

// ShutdownController is the broker's shutdown side channel (spec.md C9):
// a signal handler only ever needs to make exactly one async-signal-safe
// write, so it wakes the quit thread through a self-pipe instead of a
// language-level condition variable (spec.md §9, design note). The quit
// thread blocks in unix.Poll on the read end; NotifyQuit (called from
// either a real os/signal goroutine or the SUICIDE handler) performs the
// single allowed write.
type ShutdownController struct {
	pipeR, pipeW int

	latched   atomic.Int32 // notLatched until the first NotifyQuit wins
	done      atomic.Bool  // true once the shutdown sequence has started
	latchedCh chan struct{}

	sequenceOnce sync.Once
}

// NewShutdownController opens the self-pipe; the read end is
// non-blocking since Wait drives it through unix.Poll rather than a
// blocking read.
func NewShutdownController() (*ShutdownController, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	sc := &ShutdownController{pipeR: fds[0], pipeW: fds[1], latchedCh: make(chan struct{})}
	sc.latched.Store(notLatched)
	return sc, nil
}

// ListenSignals wires SIGINT/SIGTERM (or whatever the caller passes) to
// NotifyQuit via the standard os/signal channel; the self-pipe write
// itself happens off that goroutine, not inside a real signal handler,
// since Go never runs user code in true signal-handler context - this
// still exercises the self-pipe/poll architecture spec.md's design note
// calls for at the quit-thread boundary.
func (sc *ShutdownController) ListenSignals(sigs ...os.Signal) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)
	go func() {
		for s := range ch {
			sc.NotifyQuit(signalNumber(s))
		}
	}()
}

func signalNumber(s os.Signal) int32 {
	if sig, ok := s.(syscall.Signal); ok {
		return int32(sig)
	}
	return SigSelfQuit
}

// NotifyQuit latches the first caller's signal value and wakes Wait; any
// later call (another signal, a second SUICIDE) is a silent no-op -
// exactly one shutdown sequence ever runs (spec.md §4.9, testable
// property 8).
func (sc *ShutdownController) NotifyQuit(sig int32) {
	if !sc.latched.CompareAndSwap(notLatched, sig) {
		return
	}
	close(sc.latchedCh)
	_, _ = unix.Write(sc.pipeW, []byte{1})
}

// Latched returns a channel that closes the instant shutdown is first
// requested - for goroutines (like the uptime ticker) that only need to
// know shutdown has started, without contending with the quit thread's
// single read of the self-pipe.
func (sc *ShutdownController) Latched() <-chan struct{} { return sc.latchedCh }

// Wait blocks the quit thread until NotifyQuit fires, then returns the
// latched signal value.
func (sc *ShutdownController) Wait() int32 {
	buf := make([]byte, 1)
	for {
		n, err := unix.Read(sc.pipeR, buf)
		if n > 0 {
			break
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			pfd := []unix.PollFd{{Fd: int32(sc.pipeR), Events: unix.POLLIN}}
			_, _ = unix.Poll(pfd, -1)
			continue
		}
		if err != nil {
			break
		}
	}
	return sc.latched.Load()
}

// RunSequenceOnce executes fn exactly once, with done flipped true before
// fn runs so concurrent Done() checks never race against the chosen
// ordering in spec.md §4.9 (clear queue, stop scavenger, wake readers,
// stop command processor, ...).
func (sc *ShutdownController) RunSequenceOnce(fn func(sig int32)) {
	sc.sequenceOnce.Do(func() {
		sc.done.Store(true)
		fn(sc.latched.Load())
	})
}

// Done reports whether the shutdown sequence has started.
func (sc *ShutdownController) Done() bool { return sc.done.Load() }

// Close releases the self-pipe's file descriptors.
func (sc *ShutdownController) Close() {
	_ = unix.Close(sc.pipeR)
	_ = unix.Close(sc.pipeW)
}

// ExitCode maps a latched signal value to a process exit code: 0 for a
// clean/self-initiated shutdown, 128+signal for an external signal
// (https://tldp.org/LDP/abs/html/exitcodes.html, same convention as
// cos.ErrSignal).
func ExitCode(sig int32) int {
	if sig == SigSelfQuit {
		return 0
	}
	return cos.NewSignalError(syscall.Signal(sig)).ExitCode()
}
