/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"github.com/aistorebroker/pstorebroker/broker"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
	"github.com/aistorebroker/pstorebroker/recorder"
)

// recordingSource wraps a live broker.FrameSource, appending every frame
// it successfully returns to rec before handing it back to the
// supervisor - the --record flag's tap point (spec.md C8).
type recordingSource struct {
	broker.FrameSource
	rec *recorder.Recorder
}

func (s recordingSource) ReadFrame(isDone func() bool) ([]byte, bool, error) {
	buf, ok, err := s.FrameSource.ReadFrame(isDone)
	if ok && err == nil {
		if werr := s.rec.Write(buf); werr != nil {
			nlog.Errorf("recorder: write failed: %v", werr)
		}
	}
	return buf, ok, err
}

func wrapForRecording(sources []broker.FrameSource, rec *recorder.Recorder) []broker.FrameSource {
	if rec == nil {
		return sources
	}
	wrapped := make([]broker.FrameSource, len(sources))
	for i, s := range sources {
		wrapped[i] = recordingSource{FrameSource: s, rec: rec}
	}
	return wrapped
}
