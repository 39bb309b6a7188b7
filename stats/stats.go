// Package stats implements broker.Metrics against Prometheus collectors,
// grounded in the Tracker/coreStats pattern of the teacher's deleted
// target_stats/common_statsd (a name -> metric map registered once at
// startup, updated from request-handling code via narrow Inc/Add/Set
// calls) but rebuilt for this domain's five counters instead of the
// product's storage-target metrics.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aistorebroker/pstorebroker/broker"
)

// Collectors is the broker's Prometheus registration: it satisfies
// broker.Metrics directly, so the processor writes through the same
// narrow interface whether or not telemetry is wired in.
type Collectors struct {
	framesReceived     prometheus.Counter
	malformedFrames    prometheus.Counter
	commandsDispatched *prometheus.CounterVec
	scavengeEvictions  prometheus.Counter
	partialCommands    prometheus.Gauge
}

// New creates and registers every collector against reg (pass
// prometheus.NewRegistry() in production; a fresh registry per test
// avoids the "duplicate metrics collector registration" panic that a
// shared DefaultRegisterer would hit across table tests).
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "frames_received_total",
			Help:      "Total number of wire frames read off the transport.",
		}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "malformed_frames_total",
			Help:      "Total number of frames rejected for bad size or part numbering.",
		}),
		commandsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "commands_dispatched_total",
			Help:      "Total number of commands dispatched, by verb.",
		}, []string{"verb"}),
		scavengeEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "scavenge_evictions_total",
			Help:      "Total number of partial commands evicted by the scavenger.",
		}),
		partialCommands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "broker",
			Name:      "partial_commands",
			Help:      "Current number of in-flight (incomplete) reassembled commands.",
		}),
	}
	reg.MustRegister(c.framesReceived, c.malformedFrames, c.commandsDispatched, c.scavengeEvictions, c.partialCommands)
	return c
}

func (c *Collectors) IncFramesReceived()  { c.framesReceived.Inc() }
func (c *Collectors) IncMalformedFrames() { c.malformedFrames.Inc() }

func (c *Collectors) IncCommandsDispatched(verb string) { c.commandsDispatched.WithLabelValues(verb).Inc() }

func (c *Collectors) AddScavengeEvictions(n int)    { c.scavengeEvictions.Add(float64(n)) }
func (c *Collectors) SetPartialCommandCount(n int)  { c.partialCommands.Set(float64(n)) }

var _ broker.Metrics = (*Collectors)(nil)
