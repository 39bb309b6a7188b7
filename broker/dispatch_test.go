/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import "testing"

// spyHandlers records every call instead of performing real side
// effects, the "virtual methods for unit testing" capability set spec.md
// §9 calls for.
type spyHandlers struct {
	calls []string
	paths []string
}

func (s *spyHandlers) Echo(path string) { s.calls = append(s.calls, "ECHO"); s.paths = append(s.paths, path) }
func (s *spyHandlers) GC(path string)   { s.calls = append(s.calls, "GC"); s.paths = append(s.paths, path) }
func (s *spyHandlers) Nop()             { s.calls = append(s.calls, "NOP") }
func (s *spyHandlers) Suicide()         { s.calls = append(s.calls, "SUICIDE") }
func (s *spyHandlers) Quit()            { s.calls = append(s.calls, "_QUIT") }
func (s *spyHandlers) CQuit()           { s.calls = append(s.calls, "_CQUIT") }
func (s *spyHandlers) Unknown(verb string) {
	s.calls = append(s.calls, "UNKNOWN:"+verb)
}

var _ Handlers = (*spyHandlers)(nil)

func TestDispatchRoutesKnownVerbs(t *testing.T) {
	verbs := []string{"ECHO", "GC", "NOP", "SUICIDE", "_QUIT", "_CQUIT"}
	for _, v := range verbs {
		s := &spyHandlers{}
		Dispatch(s, Command{Verb: v, Path: "/tmp/x"})
		if len(s.calls) != 1 || s.calls[0] != v {
			t.Errorf("verb %q: got calls %v", v, s.calls)
		}
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	s := &spyHandlers{}
	Dispatch(s, Command{Verb: "BOGUS"})
	if len(s.calls) != 1 || s.calls[0] != "UNKNOWN:BOGUS" {
		t.Fatalf("got %v", s.calls)
	}
}

func TestDispatchTableSortedLexically(t *testing.T) {
	for i := 1; i < len(dispatchTable); i++ {
		if dispatchTable[i-1].verb >= dispatchTable[i].verb {
			t.Fatalf("dispatch table not sorted at index %d: %q >= %q", i, dispatchTable[i-1].verb, dispatchTable[i].verb)
		}
	}
}
