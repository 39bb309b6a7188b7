// Package cos provides common low-level types and utilities used throughout the broker.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"unsafe"
)

const (
	LetterRunes = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	LenRunes    = len(LetterRunes)

	letterIdxBits = 6
	letterIdxMask = 1<<letterIdxBits - 1

	// MLCG32 is the multiplier of a multiplicative linear congruential generator
	// (Knuth's constant), used to scatter hostnames/IDs into xxhash digests.
	MLCG32 = 2654435761

	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// CryptoRandS returns a random alpha-numeric string of length n.
func CryptoRandS(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = LetterRunes[int(b[i])%LenRunes]
	}
	return string(b)
}

// UnsafeB and UnsafeS perform a zero-copy []byte<->string conversion; used on the
// command hot path (splitting a reassembled command into verb and path) to avoid
// a per-command allocation.
func UnsafeB(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func UnsafeS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
