/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import "testing"

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in, verb, path string
	}{
		{"HELO hello world", "HELO", "hello world"},
		{"NOP", "NOP", ""},
		{"ECHO  leading-space-path", "ECHO", " leading-space-path"},
		{"GC\t/tmp/x", "GC", "/tmp/x"},
	}
	for _, c := range cases {
		got := splitCommand(c.in)
		if got.Verb != c.verb || got.Path != c.path {
			t.Errorf("splitCommand(%q) = {%q,%q}, want {%q,%q}", c.in, got.Verb, got.Path, c.verb, c.path)
		}
	}
}
