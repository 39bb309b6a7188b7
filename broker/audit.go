/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import "time"

// AuditRecorder is the narrow interface the processor writes dispatched
// commands through; package audit implements it against buntdb. Kept
// here for the same reason as Metrics: broker must not import the
// package that depends on it.
type AuditRecorder interface {
	Record(verb, path string, at time.Time)
}
