// Package broker implements the pstorebroker message-processing pipeline:
// the wire frame format and its reassembly into whole commands, the
// buffer pool and bounded command queue linking readers to the command
// processor, the dispatch table, the scavenger, and the shutdown
// controller that coordinates every worker goroutine.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize  = 12
	FrameSize   = headerSize + PayloadSize
	PayloadSize = 244 // payload_chars = 256 - 12, per spec.md §3
)

// ErrBadPartNumber is returned when part_no >= num_parts, whether while
// constructing a Frame or while decoding one off the wire.
var ErrBadPartNumber = errors.New("bad_message_part_number")

// Frame is the fixed-width, 256-byte wire record: bytes 0-3 sender_id,
// 4-7 message_id, 8-9 part_no, 10-11 num_parts, 12-255 payload,
// little-endian throughout. Frame is comparable with == (bitwise
// equality over every field, including the zero-padded payload tail),
// the way spec.md §4.1 requires.
type Frame struct {
	SenderID  uint32
	MessageID uint32
	PartNo    uint16
	NumParts  uint16
	Payload   [PayloadSize]byte
}

// NewFrame builds a Frame, copying up to PayloadSize bytes of payload and
// silently truncating (never erroring) if the caller supplied more.
// Short payloads are left NUL-padded by the zero-valued array.
func NewFrame(senderID, messageID uint32, partNo, numParts uint16, payload []byte) (Frame, error) {
	if numParts == 0 || partNo >= numParts {
		return Frame{}, ErrBadPartNumber
	}
	var f Frame
	f.SenderID, f.MessageID, f.PartNo, f.NumParts = senderID, messageID, partNo, numParts
	copy(f.Payload[:], payload) // copy() truncates/pads on its own; excess is silently dropped
	return f, nil
}

// Encode writes the frame's wire form into buf, which must be exactly
// FrameSize bytes (as handed out by the buffer pool).
func (f *Frame) Encode(buf []byte) {
	if len(buf) != FrameSize {
		panic(fmt.Sprintf("broker: Encode into %d-byte buffer, want %d", len(buf), FrameSize))
	}
	binary.LittleEndian.PutUint32(buf[0:4], f.SenderID)
	binary.LittleEndian.PutUint32(buf[4:8], f.MessageID)
	binary.LittleEndian.PutUint16(buf[8:10], f.PartNo)
	binary.LittleEndian.PutUint16(buf[10:12], f.NumParts)
	copy(buf[headerSize:], f.Payload[:])
}

// DecodeFrame parses a wire-form buffer into a Frame. A buffer whose
// length isn't exactly FrameSize is a malformed frame (spec.md §3/§7):
// readers must log and discard it, never abort - DecodeFrame signals
// this with ErrMalformedSize rather than panicking.
var ErrMalformedSize = errors.New("malformed frame: short or long read")

func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) != FrameSize {
		return Frame{}, ErrMalformedSize
	}
	var f Frame
	f.SenderID = binary.LittleEndian.Uint32(buf[0:4])
	f.MessageID = binary.LittleEndian.Uint32(buf[4:8])
	f.PartNo = binary.LittleEndian.Uint16(buf[8:10])
	f.NumParts = binary.LittleEndian.Uint16(buf[10:12])
	copy(f.Payload[:], buf[headerSize:])
	if f.NumParts == 0 || f.PartNo >= f.NumParts {
		return f, ErrBadPartNumber
	}
	return f, nil
}

// SendMessage splits verb+" "+path into the minimum number of frames
// (ceil(len/PayloadSize)) sharing one message_id, with contiguous
// part_no values 0..N-1 - the client-side counterpart to the
// reassembler (spec.md §4.1, testable property 9).
func SendMessage(senderID, messageID uint32, verb, path string) []Frame {
	full := []byte(verb + " " + path)
	n := len(full)
	numParts := n / PayloadSize
	if n%PayloadSize != 0 || numParts == 0 {
		numParts++
	}
	frames := make([]Frame, numParts)
	for i := 0; i < numParts; i++ {
		start := i * PayloadSize
		end := start + PayloadSize
		if end > n {
			end = n
		}
		f, err := NewFrame(senderID, messageID, uint16(i), uint16(numParts), full[start:end])
		if err != nil {
			panic(err) // unreachable: i < numParts by construction
		}
		frames[i] = f
	}
	return frames
}
