/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package audit

import (
	"testing"
	"time"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	l := newTestLog(t)
	base := time.Now()
	l.Record("GC", "/a", base)
	l.Record("ECHO", "/b", base.Add(time.Second))
	l.Record("GC", "/c", base.Add(2*time.Second))

	got, err := l.Recent(0, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].Path != "/c" || got[1].Path != "/b" || got[2].Path != "/a" {
		t.Fatalf("not newest-first: %+v", got)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	l := newTestLog(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		l.Record("NOP", "", base.Add(time.Duration(i)*time.Second))
	}

	got, err := l.Recent(2, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}

func TestRecentFiltersByVerb(t *testing.T) {
	l := newTestLog(t)
	base := time.Now()
	l.Record("GC", "/a", base)
	l.Record("ECHO", "/b", base.Add(time.Second))
	l.Record("GC", "/c", base.Add(2*time.Second))

	got, err := l.Recent(0, "GC")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Verb != "GC" {
			t.Fatalf("unexpected verb in filtered results: %+v", e)
		}
	}
}

func TestRecentOnEmptyLog(t *testing.T) {
	l := newTestLog(t)
	got, err := l.Recent(10, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}
