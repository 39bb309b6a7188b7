// Package httpd is the broker's optional telemetry surface: Prometheus
// metrics, long-poll endpoints over the commits/uptime event channels,
// and a read-only view of the audit log.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package httpd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/aistorebroker/pstorebroker/audit"
	"github.com/aistorebroker/pstorebroker/channels"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
)

// Server is a fasthttp-backed telemetry listener. Announce, when set,
// causes the bound port to be printed to stdout once Listen succeeds
// (spec.md's --announce-http-port flag), for test harnesses that need to
// discover an ephemeral port.
type Server struct {
	Addr     string
	Announce bool

	Registry *prometheus.Registry
	Commits  *channels.Channel
	Uptime   *channels.Channel
	Audit    *audit.Log // nil-able

	srv *fasthttp.Server
}

func (s *Server) handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/metrics":
		fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))(ctx)
	case "/v1/commits":
		serveLatest(ctx, s.Commits)
	case "/v1/uptime":
		serveLatest(ctx, s.Uptime)
	case "/v1/commands":
		s.serveCommands(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

// serveLatest returns the channel's most recent payload immediately - a
// real long-poll (blocking until the next Publish) is left to the HTTP
// client's own retry loop against this same endpoint, matching the
// channel's "subscriber count gates publish cost" contract: a GET here
// counts as a subscriber only while in flight.
func serveLatest(ctx *fasthttp.RequestCtx, ch *channels.Channel) {
	ch.Subscribe()
	defer ch.Unsubscribe()

	payload, _ := ch.Latest()
	if payload == nil {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func (s *Server) serveCommands(ctx *fasthttp.RequestCtx) {
	if s.Audit == nil {
		ctx.SetStatusCode(fasthttp.StatusNotImplemented)
		return
	}
	limit := 100
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		if n, err := strconv.Atoi(string(raw)); err == nil && n > 0 {
			limit = n
		}
	}
	verb := string(ctx.QueryArgs().Peek("verb"))
	entries, err := s.Audit.Recent(limit, verb)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	if err := writeJSON(ctx, entries); err != nil {
		nlog.Errorf("httpd: /v1/commands: %v", err)
	}
}

// ListenAndServe starts the server; it blocks until the listener is
// closed by Stop.
func (s *Server) ListenAndServe() error {
	s.srv = &fasthttp.Server{Handler: s.handler}
	ln, err := listen(s.Addr)
	if err != nil {
		return err
	}
	if s.Announce {
		nlog.Infof("httpd: listening on %s", ln.Addr().String())
		fmt.Println(ln.Addr().(*net.TCPAddr).Port)
	}
	return s.srv.Serve(ln)
}

// Stop gracefully shuts the server down; safe to call even if
// ListenAndServe never got a chance to finish setting s.srv up.
func (s *Server) Stop() {
	if s.srv != nil {
		_ = s.srv.Shutdown()
	}
}
