// Command broker runs the pstorebroker daemon: it listens on a named
// pipe (or replays a prior recording), reassembles wire frames into
// commands, and dispatches them against the local filesystem/GC
// collaborator until told to quit.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aistorebroker/pstorebroker/audit"
	"github.com/aistorebroker/pstorebroker/broker"
	"github.com/aistorebroker/pstorebroker/channels"
	"github.com/aistorebroker/pstorebroker/cmn/cos"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
	"github.com/aistorebroker/pstorebroker/fifo"
	"github.com/aistorebroker/pstorebroker/hk"
	"github.com/aistorebroker/pstorebroker/httpd"
	"github.com/aistorebroker/pstorebroker/memsys"
	"github.com/aistorebroker/pstorebroker/recorder"
	"github.com/aistorebroker/pstorebroker/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	var opts broker.Options
	opts.RegisterFlags(flag.CommandLine)
	nlog.InitFlags(flag.CommandLine)
	flag.Parse()

	cos.InitShortID(uint64(time.Now().UnixNano()))
	instanceID := cos.GenUUID()
	nlog.SetTitle("pstorebroker[" + instanceID + "]")
	defer nlog.Flush(true)

	if err := opts.Validate(); err != nil {
		nlog.Errorf("%v", err)
		return 1
	}

	sc, err := broker.NewShutdownController()
	if err != nil {
		nlog.Errorf("%v", errors.Wrap(err, "broker: failed to set up shutdown controller"))
		return 1
	}
	defer sc.Close()
	sc.ListenSignals(syscall.SIGINT, syscall.SIGTERM)

	pool := &memsys.MMSA{Name: "broker"}

	reg := prometheus.NewRegistry()
	metrics := stats.New(reg)

	auditLog, err := audit.Open()
	if err != nil {
		nlog.Errorf("%v", errors.Wrap(err, "broker: failed to open audit log"))
		return 1
	}
	defer auditLog.Close()

	commits := channels.New("commits")
	uptime := channels.New("uptime")

	gc := broker.NewExecGCWatcher(opts.GCPath)

	proc := broker.NewProcessor(pool, gc, commits, sc, auditLog, metrics)
	handle := &broker.ProcessorHandle{}
	handle.Bind(proc)

	broker.RegisterScavenger(hk.DefaultHK, handle, opts.ScavengeTime)

	var rec *recorder.Recorder
	if opts.RecordPath != "" {
		if opts.RecorderForce {
			nlog.Warningf("broker: --record-force set: an existing recording at %s will be truncated", opts.RecordPath)
		}
		rec, err = recorder.Create(opts.RecordPath, opts.RecorderForce, instanceID)
		if err != nil {
			nlog.Errorf("%v", errors.Wrapf(err, "broker: failed to open recording %s", opts.RecordPath))
			return 1
		}
		defer rec.Close()
	}

	sources, cleanupSources, err := buildSources(&opts, pool)
	if err != nil {
		nlog.Errorf("%v", errors.Wrap(err, "broker"))
		return 1
	}
	defer cleanupSources()
	sources = wrapForRecording(sources, rec)

	// --http-port 0 disables the telemetry surface entirely (spec.md §6).
	var srv *httpd.Server
	if opts.HTTPPort != 0 {
		srv = &httpd.Server{
			Addr:     ":" + strconv.Itoa(opts.HTTPPort),
			Announce: opts.AnnounceHTTPPort,
			Registry: reg,
			Commits:  commits,
			Uptime:   uptime,
			Audit:    auditLog,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				nlog.Errorf("broker: http server: %v", err)
			}
		}()
	}

	sup := &broker.Supervisor{
		Processor: proc,
		Handle:    handle,
		Shutdown:  sc,
		HK:        hk.DefaultHK,
		Uptime:    uptime,
		Sources:   sources,
		Stop: func() {
			if srv != nil {
				srv.Stop()
			}
			gc.Reap()
		},
	}
	return sup.Run()
}

// buildSources opens either the playback recording or the live pipe
// (N reader goroutines), per spec.md §4.10's "playback mode spawns no
// reader threads" branch.
func buildSources(opts *broker.Options, pool *memsys.MMSA) ([]broker.FrameSource, func(), error) {
	if opts.PlaybackPath != "" {
		p, err := recorderOpen(opts.PlaybackPath)
		if err != nil {
			if cos.IsErrNotFound(err) {
				return nil, func() {}, errors.Wrap(err, "broker: no such recording")
			}
			return nil, func() {}, err
		}
		nlog.Infof("broker: replaying recording from instance %s", p.InstanceID())
		return []broker.FrameSource{p}, func() { _ = p.Close() }, nil
	}

	if err := fifo.Create(opts.PipePath); err != nil {
		return nil, func() {}, errors.Wrapf(err, "create pipe %s", opts.PipePath)
	}

	sources := make([]broker.FrameSource, 0, opts.NumReadThreads)
	var readers []*fifo.Reader
	for i := 0; i < opts.NumReadThreads; i++ {
		r, err := fifo.Open(opts.PipePath, pool)
		if err != nil {
			for _, prev := range readers {
				_ = prev.Close()
			}
			return nil, func() {}, errors.Wrapf(err, "open pipe %s", opts.PipePath)
		}
		readers = append(readers, r)
		sources = append(sources, r)
	}
	cleanup := func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}
	return sources, cleanup, nil
}

func recorderOpen(path string) (*recorder.Player, error) { return recorder.Open(path) }
