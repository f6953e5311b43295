// Package dedupe detects near-duplicate page content across retrieved
// sources using 64-bit SimHash fingerprints: syndicated articles and
// mirror pages hash within a few bits of each other even when boilerplate
// differs.
package dedupe

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// DefaultThreshold is the Hamming distance at or below which two
// fingerprints are treated as the same content.
const DefaultThreshold = 3

// Fingerprint computes a 64-bit SimHash of the text. Tokens are
// case-folded words; FNV-64a per token with bit-vector accumulation.
func Fingerprint(text string) uint64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two fingerprints are within the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

type entry struct {
	key         string
	fingerprint uint64
}

// Detector accumulates fingerprints of accepted texts and reports which
// earlier text a new one duplicates. Not goroutine-safe; callers feed it
// results in order from a single goroutine.
type Detector struct {
	threshold int
	seen      []entry
}

// NewDetector creates a Detector. A non-positive threshold falls back to
// DefaultThreshold.
func NewDetector(threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Check fingerprints the text and compares it against everything accepted
// so far. On a near-duplicate it returns the key of the earlier text and
// true, without recording the new one. Otherwise the text is recorded
// under its key. Empty texts never match anything.
func (d *Detector) Check(key, text string) (string, bool) {
	fp := Fingerprint(text)
	if fp == 0 {
		return "", false
	}

	for _, e := range d.seen {
		if Similar(e.fingerprint, fp, d.threshold) {
			return e.key, true
		}
	}

	d.seen = append(d.seen, entry{key: key, fingerprint: fp})
	return "", false
}
