/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package httpd

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"github.com/aistorebroker/pstorebroker/audit"
	"github.com/aistorebroker/pstorebroker/channels"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	a, err := audit.Open()
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return &Server{
		Registry: prometheus.NewRegistry(),
		Commits:  channels.New("commits"),
		Uptime:   channels.New("uptime"),
		Audit:    a,
	}
}

// doRequest drives the handler directly against a synthetic RequestCtx,
// the standard way to unit test a fasthttp handler without a real
// listener.
func doRequest(s *Server, path string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.SetRequestURI(path)
	ctx.Init(&req, nil, nil)
	s.handler(&ctx)
	return &ctx
}

func TestUnknownPathIs404(t *testing.T) {
	s := newTestServer(t)
	ctx := doRequest(s, "/nope")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("got %d, want 404", ctx.Response.StatusCode())
	}
}

func TestCommitsNoContentBeforeAnyPublish(t *testing.T) {
	s := newTestServer(t)
	ctx := doRequest(s, "/v1/commits")
	if ctx.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("got %d, want 204", ctx.Response.StatusCode())
	}
}

func TestUptimeReturnsLatestPublishedPayload(t *testing.T) {
	s := newTestServer(t)
	// Publish must happen while a subscriber is present, matching the
	// channel's subscriber-gated Publish contract.
	s.Uptime.Subscribe()
	s.Uptime.PublishJSON(map[string]float64{"uptime_seconds": 42})
	s.Uptime.Unsubscribe()

	ctx := doRequest(s, "/v1/uptime")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("got %d, want 200", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Body()); got == "" {
		t.Fatal("expected a non-empty JSON body")
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)
	ctx := doRequest(s, "/metrics")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("got %d, want 200", ctx.Response.StatusCode())
	}
}

func TestCommandsEndpointWithoutAuditIsNotImplemented(t *testing.T) {
	s := newTestServer(t)
	s.Audit = nil
	ctx := doRequest(s, "/v1/commands")
	if ctx.Response.StatusCode() != fasthttp.StatusNotImplemented {
		t.Fatalf("got %d, want 501", ctx.Response.StatusCode())
	}
}

func TestCommandsEndpointFiltersByVerb(t *testing.T) {
	s := newTestServer(t)
	s.Audit.Record("GC", "/a", time.Now())
	s.Audit.Record("ECHO", "/b", time.Now())

	ctx := doRequest(s, "/v1/commands?verb=GC")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("got %d, want 200", ctx.Response.StatusCode())
	}
	body := string(ctx.Response.Body())
	if !contains(body, "GC") || contains(body, "ECHO") {
		t.Fatalf("expected only GC entries in filtered response, got %s", body)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
