/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"errors"
	"flag"
	"time"
)

// Options holds the broker's command-line configuration (spec.md §4.10).
// Parsed via the standard flag package, matching the ambient style of the
// rest of this codebase rather than a third-party flag library - there is
// nothing here (subcommands, completion, env binding) that would justify
// one.
type Options struct {
	PipePath         string
	RecordPath       string
	PlaybackPath     string
	RecorderForce    bool
	NumReadThreads   int
	HTTPPort         int // 0 disables the telemetry HTTP server entirely
	AnnounceHTTPPort bool
	ScavengeTime     time.Duration
	GCPath           string
}

// ErrConflictingModes is returned by Validate when both recording and
// playback were requested at once.
var ErrConflictingModes = errors.New("broker: --record and --playback are mutually exclusive")

// ErrBadHTTPPort is returned by Validate when --http-port is out of range.
var ErrBadHTTPPort = errors.New("broker: --http-port must be between 0 and 65535")

// RegisterFlags binds Options' fields onto fs (pass flag.CommandLine in
// production main(), a fresh flag.FlagSet in tests).
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.PipePath, "pipe-path", "/tmp/pstorebroker.fifo", "path of the named pipe to listen on")
	fs.StringVar(&o.RecordPath, "record", "", "record every inbound frame to this file")
	fs.StringVar(&o.PlaybackPath, "playback", "", "replay frames from this recording instead of opening the pipe")
	fs.BoolVar(&o.RecorderForce, "record-force", false, "truncate an existing recording instead of failing")
	fs.IntVar(&o.NumReadThreads, "read-threads", 2, "number of reader goroutines servicing the pipe")
	fs.IntVar(&o.HTTPPort, "http-port", 8080, "HTTP telemetry port; 0 disables the server")
	fs.BoolVar(&o.AnnounceHTTPPort, "announce-http-port", false, "print the bound HTTP port to stdout once listening")
	fs.DurationVar(&o.ScavengeTime, "scavenge-time", 4*time.Hour, "retention threshold for in-flight partial commands")
	fs.StringVar(&o.GCPath, "gc-exe", "", "path to the external garbage-collector executable invoked by the GC command")
}

// Validate checks cross-field constraints flag parsing alone can't.
func (o *Options) Validate() error {
	if o.RecordPath != "" && o.PlaybackPath != "" {
		return ErrConflictingModes
	}
	if o.NumReadThreads < 1 {
		o.NumReadThreads = 1
	}
	if o.HTTPPort < 0 || o.HTTPPort > 65535 {
		return ErrBadHTTPPort
	}
	return nil
}
