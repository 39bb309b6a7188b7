/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	logDir, aisrole, title string
	toStderr, alsoToStderr bool

	host string
	pid  = os.Getpid()

	nlogs         [3]*nlog
	onceInitFiles sync.Once

	pool sync.Pool

	sevText = [3]string{"I", "W", "E"}

	// filenames whose own log lines are never worth a caller-location prefix
	redactFnames = map[string]struct{}{}
)

func init() {
	if h, err := os.Hostname(); err == nil {
		host = h
	} else {
		host = "localhost"
	}
}

func assert(cond bool) {
	if !cond {
		panic("nlog: assertion failed")
	}
}

func sname() string {
	if aisrole != "" {
		return aisrole
	}
	return "broker"
}

func initFiles() {
	if logDir == "" {
		logDir = os.TempDir()
	}
	_ = os.MkdirAll(logDir, 0o755)
	for _, sev := range []severity{sevInfo, sevErr} {
		nl := newNlog(sev)
		if err := nl.rotate(time.Now()); err != nil {
			nl.erred.Store(true)
		}
		nlogs[sev] = nl
	}
	// sevWarn lines are mirrored into both info and error logs (see log());
	// no dedicated file is ever opened for it.
	nlogs[sevWarn] = nlogs[sevInfo]
}

func fcreate(tag string, now time.Time) (f *os.File, name string, err error) {
	name, _ = logfname(tag, now)
	path := filepath.Join(logDir, name)
	f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		err = fmt.Errorf("nlog: failed to create %s: %w", path, err)
	}
	return
}
