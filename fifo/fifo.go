// Package fifo wraps the POSIX named pipe the broker listens on: creation,
// open-for-read, and a read loop that wakes periodically even with no
// writer connected so shutdown can be noticed promptly (spec.md §5/§6).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package fifo

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aistorebroker/pstorebroker/broker"
)

// WakeInterval bounds how long a reader blocks with no data available
// before re-checking the shutdown flag - the same 60-second wake timer
// spec.md calls out on both the POSIX and Windows transports, collapsed
// here into a single constant (SPEC_FULL.md supplemented feature 4).
const WakeInterval = 60 * time.Second

// Create makes the named pipe at path if it doesn't already exist; EEXIST
// is not an error (a prior run, or another reader thread, may have
// created it first).
func Create(path string) error {
	err := unix.Mkfifo(path, 0o600)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return err
	}
	return nil
}

// BufferPool is the narrow allocator interface a Reader draws frame
// buffers from; memsys.MMSA satisfies it. Kept as a local interface
// (rather than importing memsys) so fifo stays agnostic of which pool
// implementation a caller wires in.
type BufferPool interface {
	Get() []byte
	Free(buf []byte)
}

// Reader reads fixed-size frames off one named pipe, re-checking isDone
// each time a poll wakes (at the latest every WakeInterval), so a blocked
// read notices shutdown without any frame being written to the pipe.
type Reader struct {
	path string
	fd   int
	pool BufferPool
}

// Open opens path for reading in non-blocking mode (so Poll governs the
// wake interval instead of a plain blocking read never returning while no
// writer is connected). Every returned frame buffer comes from pool
// (spec.md C2) so the processor's Free call on the far end actually
// recycles something.
func Open(path string, pool BufferPool) (*Reader, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return &Reader{path: path, fd: fd, pool: pool}, nil
}

func (r *Reader) Close() error { return unix.Close(r.fd) }

// ReadFrame blocks until exactly broker.FrameSize bytes have been read
// (partial reads are accumulated, never reported as short), an
// unexpected read or poll error occurs (returned with ok false), or
// isDone returns true while no data is available (ok false and err nil:
// a clean wake, not a malformed read). A pool buffer of the wrong size
// yields broker.ErrMalformedSize.
func (r *Reader) ReadFrame(isDone func() bool) (buf []byte, ok bool, err error) {
	buf = r.pool.Get()
	if len(buf) != broker.FrameSize {
		r.pool.Free(buf)
		return nil, false, broker.ErrMalformedSize
	}
	off := 0
	for off < len(buf) {
		n, rerr := unix.Read(r.fd, buf[off:])
		switch {
		case n > 0:
			off += n
		case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK || n == 0:
			if isDone != nil && isDone() {
				r.pool.Free(buf)
				return nil, false, nil
			}
			if waitErr := r.wait(); waitErr != nil {
				r.pool.Free(buf)
				return nil, false, waitErr
			}
		case rerr != nil:
			r.pool.Free(buf)
			return nil, false, rerr
		}
	}
	return buf, true, nil
}

func (r *Reader) wait() error {
	pfd := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
	_, err := unix.Poll(pfd, int(WakeInterval/time.Millisecond))
	if err != nil && !errors.Is(err, unix.EINTR) {
		return err
	}
	return nil
}

// OpenWriter opens path for writing - used by test harnesses that act as
// an external writer; the broker itself never writes to the pipe.
func OpenWriter(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
