/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"strings"

	"github.com/aistorebroker/pstorebroker/cmn/cos"
)

// Command is the promoted form of a fully reassembled message: verb is
// the first whitespace-delimited token of the concatenated payloads,
// path is the remainder with exactly one leading whitespace character
// consumed (spec.md §3).
type Command struct {
	Verb string
	Path string
}

const whitespace = " \t\n\r\f\v"

// splitCommand implements the verb/path split described in spec.md §3 and
// exercised by testable property 9 (send-message framing law): unlike
// strings.Fields, only ONE separating whitespace byte is consumed, so a
// path that itself begins with whitespace round-trips intact.
func splitCommand(full string) Command {
	i := strings.IndexAny(full, whitespace)
	if i < 0 {
		return Command{Verb: full}
	}
	// cos.UnsafeB/UnsafeS: full is a freshly built string (Reassembler.Feed's
	// strings.Join over payloads copied out of the frame) never aliased
	// to a pooled frame buffer, so zero-copy slicing here is safe.
	b := cos.UnsafeB(full)
	return Command{
		Verb: cos.UnsafeS(b[:i]),
		Path: cos.UnsafeS(b[i+1:]),
	}
}
