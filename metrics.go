// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"sync/atomic"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// Metrics holds cache and pipeline counters.
type Metrics struct {
	// Hits is the number of requests served from a cached entry.
	Hits int64
	// Misses is the number of requests that found no cached entry.
	Misses int64
	// Corrupt is the number of cached entries discarded because they could
	// not be decoded.
	Corrupt int64
	// Stale is the number of cached entries discarded because a registered
	// transformer's version changed.
	Stale int64
	// Builds is the number of structures built from the content store.
	Builds int64
	// BlobsWritten and BytesWritten count cache writes.
	BlobsWritten int64
	BytesWritten int64
}

// HitRate returns the fraction of lookups served from the cache.
func (m *Metrics) HitRate() float64 {
	lookups := m.Hits + m.Misses + m.Corrupt + m.Stale
	if lookups == 0 {
		return 0
	}
	return float64(m.Hits) / float64(lookups)
}

// String implements fmt.Stringer.
func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("cache: %d hits, %d misses, %d corrupt, %d stale (hit rate %.1f%%)\n",
		redact.Safe(m.Hits), redact.Safe(m.Misses), redact.Safe(m.Corrupt), redact.Safe(m.Stale),
		redact.Safe(100*m.HitRate()))
	w.Printf("builds: %d\n", redact.Safe(m.Builds))
	w.Printf("written: %s blobs, %s\n",
		crhumanize.Count(m.BlobsWritten, crhumanize.Compact),
		crhumanize.Bytes(m.BytesWritten, crhumanize.Compact, crhumanize.OmitI))
}

type metrics struct {
	hits, misses, corrupt, stale atomic.Int64
	builds                       atomic.Int64
	blobsWritten, bytesWritten   atomic.Int64
}

func (m *metrics) recordHit()     { m.hits.Add(1) }
func (m *metrics) recordMiss()    { m.misses.Add(1) }
func (m *metrics) recordCorrupt() { m.corrupt.Add(1) }
func (m *metrics) recordStale()   { m.stale.Add(1) }
func (m *metrics) recordBuild()   { m.builds.Add(1) }

func (m *metrics) recordWrite(n int) {
	m.blobsWritten.Add(1)
	m.bytesWritten.Add(int64(n))
}

func (m *metrics) snapshot() *Metrics {
	return &Metrics{
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		Corrupt:      m.corrupt.Load(),
		Stale:        m.stale.Load(),
		Builds:       m.builds.Load(),
		BlobsWritten: m.blobsWritten.Load(),
		BytesWritten: m.bytesWritten.Load(),
	}
}
