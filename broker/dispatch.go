/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import "sort"

// Handlers is the capability set the dispatcher is parameterized over
// (spec.md §9: "replace deleted copy/move with virtual 'for unit test'
// methods" -> an interface capability set {suicide, quit, cquit, gc,
// echo, nop, log, unknown}). Production wires *Processor as the real
// implementation; tests wire a spy that records calls instead of
// spawning GC children or touching os.Stdout.
type Handlers interface {
	Echo(path string)
	GC(path string)
	Nop()
	Suicide()
	Quit()      // internal _QUIT: dispatched once per reader thread during shutdown, for testable property 8's count
	CQuit()     // internal _CQUIT: stop the command-processor loop
	Unknown(verb string)
}

type dispatchEntry struct {
	verb string
	call func(h Handlers, cmd Command)
}

// dispatchTable is sorted lexically by verb at package init (testable
// property 6) so Dispatch can binary-search it.
var dispatchTable = []dispatchEntry{
	{"ECHO", func(h Handlers, c Command) { h.Echo(c.Path) }},
	{"GC", func(h Handlers, c Command) { h.GC(c.Path) }},
	{"NOP", func(h Handlers, _ Command) { h.Nop() }},
	{"SUICIDE", func(h Handlers, _ Command) { h.Suicide() }},
	{"_CQUIT", func(h Handlers, _ Command) { h.CQuit() }},
	{"_QUIT", func(h Handlers, _ Command) { h.Quit() }},
}

func init() {
	if !sort.SliceIsSorted(dispatchTable, func(i, j int) bool {
		return dispatchTable[i].verb < dispatchTable[j].verb
	}) {
		panic("broker: dispatch table is not sorted lexically by verb")
	}
}

// Dispatch binary-searches the table by verb; a miss goes to
// Handlers.Unknown, which only logs (spec.md §4.5/§7).
func Dispatch(h Handlers, cmd Command) {
	i := sort.Search(len(dispatchTable), func(i int) bool {
		return dispatchTable[i].verb >= cmd.Verb
	})
	if i < len(dispatchTable) && dispatchTable[i].verb == cmd.Verb {
		dispatchTable[i].call(h, cmd)
		return
	}
	h.Unknown(cmd.Verb)
}
