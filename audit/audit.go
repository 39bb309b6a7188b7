// Package audit keeps an in-memory, queryable record of recently
// dispatched commands (verb, path, timestamp) backed by buntdb, exposed
// read-only over HTTP by package httpd.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package audit

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/aistorebroker/pstorebroker/cmn/cos"
	"github.com/aistorebroker/pstorebroker/cmn/nlog"
)

// Entry is the JSON shape stored under each key; buntdb itself only
// understands string values, so records round-trip through jsoniter.
type Entry struct {
	Verb string    `json:"verb"`
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// Log is an in-memory (":memory:") buntdb database of dispatched
// commands, keyed by a monotonically increasing sequence so Range scans
// in arrival order.
type Log struct {
	db  *buntdb.DB
	seq uint64
}

func Open() (*Log, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Record implements broker.AuditRecorder.
func (l *Log) Record(verb, path string, at time.Time) {
	l.seq++
	k := seqKey(l.seq)
	b, err := jsoniter.Marshal(Entry{Verb: verb, Path: path, At: at})
	if err != nil {
		nlog.Errorf("audit: marshal failed: %v", err)
		return
	}
	err = l.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(k, cos.UnsafeS(b), nil)
		return err
	})
	if err != nil {
		nlog.Errorf("audit: record failed: %v", err)
	}
}

// Recent returns up to limit most-recently recorded commands, newest
// first, optionally filtered to a single verb (empty verb means no
// filter) - backs the httpd GET /v1/commands?verb=GC surface.
func (l *Log) Recent(limit int, verb string) ([]Entry, error) {
	var out []Entry
	err := l.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("", func(key, value string) bool {
			var e Entry
			if err := jsoniter.UnmarshalFromString(value, &e); err != nil {
				return true // skip a corrupt row rather than aborting the whole scan
			}
			if verb != "" && e.Verb != verb {
				return true
			}
			out = append(out, e)
			return limit <= 0 || len(out) < limit
		})
	})
	return out, err
}

func seqKey(seq uint64) string {
	// Zero-padded so buntdb's default lexical key order matches arrival
	// order (tx.Descend walks keys in that order without a secondary
	// index).
	const digits = 20
	b := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		b[i] = byte('0' + seq%10)
		seq /= 10
	}
	return cos.UnsafeS(b)
}
