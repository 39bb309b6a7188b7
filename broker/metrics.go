/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

// Metrics is the narrow telemetry sink the processor writes through;
// package stats implements it against Prometheus collectors. Kept here
// (rather than imported from stats) so broker never depends on the
// telemetry stack - stats depends on broker's types, not the reverse.
type Metrics interface {
	IncFramesReceived()
	IncMalformedFrames()
	IncCommandsDispatched(verb string)
	AddScavengeEvictions(n int)
	SetPartialCommandCount(n int)
}
