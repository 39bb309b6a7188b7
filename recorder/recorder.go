// Package recorder implements the broker's record/playback facility
// (spec.md C8, SPEC_FULL.md supplemented feature 3): every inbound frame
// can be appended to a file as it's processed, and later replayed in
// place of a live transport for reproducing a session.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package recorder

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/OneOfOne/xxhash"

	"github.com/aistorebroker/pstorebroker/broker"
	"github.com/aistorebroker/pstorebroker/cmn/cos"
)

// recordEntrySize is broker.FrameSize plus an 8-byte little-endian
// xxhash64 integrity tag (xxhash.Checksum64, default seed) covering the
// frame bytes, so a
// truncated or bit-flipped recording is caught at playback time instead
// of silently replaying garbage.
const recordEntrySize = broker.FrameSize + 8

// fileHeaderMagic tags the front of every recording so Open can refuse a
// file that isn't one of ours; fileHeaderIDSize holds the run-scoped
// instance ID (cos.GenUUID) of the broker that made the recording,
// NUL-padded, purely for operator-facing provenance in log lines.
const (
	fileHeaderMagic  = "PSTB"
	fileHeaderIDSize = 28
	fileHeaderSize   = len(fileHeaderMagic) + fileHeaderIDSize
)

// ErrBadHeader is returned by Open when the file doesn't start with
// fileHeaderMagic.
var ErrBadHeader = errors.New("recorder: not a pstorebroker recording")

var (
	// ErrExists is returned by Create when path already exists and Force
	// was not set - recordings default to append-only-once (spec.md §9,
	// Open Question: "default to failing rather than silently
	// overwriting a previous capture").
	ErrExists = errors.New("recorder: recording already exists")

	// ErrCorrupt is returned by the player when a frame's integrity tag
	// doesn't match its bytes.
	ErrCorrupt = errors.New("recorder: corrupt recording entry")
)

// Recorder appends every frame handed to it, tagged with an integrity
// checksum, to an underlying file.
type Recorder struct {
	f *os.File
}

// Create opens path for recording. With force=false (the default) an
// existing file is left untouched and ErrExists is returned; force=true
// truncates it (SPEC_FULL.md supplemented feature 3). instanceID (the
// recording broker's cos.GenUUID-generated run identity) is written into
// the file header so a later Open can report which run produced it.
func Create(path string, force bool, instanceID string) (*Recorder, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if force {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if !force && errors.Is(err, os.ErrExist) {
			return nil, ErrExists
		}
		return nil, err
	}
	if _, err := f.Write(encodeHeader(instanceID)); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Recorder{f: f}, nil
}

func encodeHeader(instanceID string) []byte {
	var hdr [fileHeaderSize]byte
	copy(hdr[:len(fileHeaderMagic)], fileHeaderMagic)
	copy(hdr[len(fileHeaderMagic):], instanceID) // silently truncated past fileHeaderIDSize, same policy as Frame payloads
	return hdr[:]
}

// Write appends one wire-form frame (exactly broker.FrameSize bytes) plus
// its integrity tag.
func (r *Recorder) Write(frame []byte) error {
	if len(frame) != broker.FrameSize {
		return broker.ErrMalformedSize
	}
	var tag [8]byte
	binary.LittleEndian.PutUint64(tag[:], xxhash.Checksum64(frame))
	if _, err := r.f.Write(frame); err != nil {
		return err
	}
	_, err := r.f.Write(tag[:])
	return err
}

func (r *Recorder) Close() error { return r.f.Close() }

// Player replays a recording, handing back one wire-form frame per Next
// call until the file is exhausted.
type Player struct {
	f          *os.File
	instanceID string
}

func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cos.NewErrNotFound("recording %s", path)
		}
		return nil, err
	}
	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		_ = f.Close()
		return nil, ErrBadHeader
	}
	if string(hdr[:len(fileHeaderMagic)]) != fileHeaderMagic {
		_ = f.Close()
		return nil, ErrBadHeader
	}
	id := string(bytesTrimZero(hdr[len(fileHeaderMagic):]))
	return &Player{f: f, instanceID: id}, nil
}

func bytesTrimZero(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return b[:i]
}

// InstanceID returns the run identity of the broker that produced this
// recording, as embedded in the file header by Create.
func (p *Player) InstanceID() string { return p.instanceID }

// Next returns the next recorded frame, or io.EOF once the recording is
// exhausted. A short final entry or a checksum mismatch is reported as
// ErrCorrupt rather than a silent truncation.
func (p *Player) Next() ([]byte, error) {
	entry := make([]byte, recordEntrySize)
	n, err := io.ReadFull(p.f, entry)
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, ErrCorrupt
	}
	frame, tag := entry[:broker.FrameSize], entry[broker.FrameSize:]
	want := binary.LittleEndian.Uint64(tag)
	if xxhash.Checksum64(frame) != want {
		return nil, ErrCorrupt
	}
	return frame, nil
}

func (p *Player) Close() error { return p.f.Close() }

// ReadFrame adapts Player to broker.FrameSource so the supervisor can
// drive a playback session exactly like a live reader: isDone is ignored
// since playback never blocks waiting for a writer, and the recording's
// own end takes the place of a shutdown-driven wake.
func (p *Player) ReadFrame(func() bool) ([]byte, bool, error) {
	frame, err := p.Next()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return frame, true, nil
}

var _ broker.FrameSource = (*Player)(nil)
