/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"os/exec"
	"sync"
	"syscall"

	"github.com/aistorebroker/pstorebroker/cmn/cos"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
)

// GCStarter is the external collaborator the GC verb hands off to: a
// separate process that does the actual collection work for one path
// while the broker keeps servicing other commands (spec.md §4.5: GC is
// "fire-and-forget from the processor's point of view - the broker does
// not block waiting for collection to finish").
type GCStarter interface {
	StartGC(path string) error
}

// ExecGCWatcher launches Path as a child process per GC command and
// tracks live children so shutdown can signal them (see Reap) instead of
// leaving orphans behind; it does not wait for them to exit.
type ExecGCWatcher struct {
	Path string // external GC binary; empty disables launching (log-only)
	Args []string

	mu       sync.Mutex
	children map[*exec.Cmd]struct{}
}

func NewExecGCWatcher(path string, args ...string) *ExecGCWatcher {
	return &ExecGCWatcher{Path: path, Args: args, children: make(map[*exec.Cmd]struct{})}
}

func (w *ExecGCWatcher) StartGC(target string) error {
	if w.Path == "" {
		nlog.Infof("gcwatch: no external collector configured, skipping GC for %s", target)
		return nil
	}

	cmd := exec.Command(w.Path, append(append([]string{}, w.Args...), target)...)
	if err := cmd.Start(); err != nil {
		return err
	}

	w.mu.Lock()
	w.children[cmd] = struct{}{}
	w.mu.Unlock()

	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		delete(w.children, cmd)
		w.mu.Unlock()
		if err != nil {
			nlog.Errorf("gcwatch: collector for %s exited with error: %v", target, err)
		}
	}()
	return nil
}

// Reap signals every still-running child with SIGINT, giving it a chance
// to exit gracefully, rather than killing it outright; called by the
// shutdown controller so a quitting broker doesn't leave orphaned
// collectors behind (spec.md §4.9 step 2).
func (w *ExecGCWatcher) Reap() {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs cos.Errs
	for cmd := range w.children {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
			errs.Add(err)
		}
	}
	if errs.Cnt() > 0 {
		nlog.Errorf("gcwatch: reap: %s", errs.Error())
	}
}

// Compile-time check that ExecGCWatcher is a GCStarter. Tests wire their
// own GCStarter stubs instead; NewProcessor does not check for a nil one.
var _ GCStarter = (*ExecGCWatcher)(nil)
