// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/blockcache/backend"
	"github.com/cockroachdb/blockcache/contentstore"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/compression"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultCacheTTL = 24 * time.Hour

// Options holds the optional parameters for configuring a Manager. Registry,
// Cache and Store are required.
type Options struct {
	// Registry holds every transformer that collects on a cache miss.
	// Requests may only name registered transformers.
	Registry *transformer.Registry

	// Cache is the backend cached block structures are stored in.
	Cache backend.Backend

	// Store is the content store block structures are built from.
	Store contentstore.Store

	// Logger used to write log messages.
	//
	// The default logger uses logrus.
	Logger base.Logger

	// CacheTTL is the expiry of cache entries. The default is 24 hours.
	CacheTTL time.Duration

	// Compression is the compression applied to cached blobs. The default is
	// compression.ZstdLevel3.
	Compression *compression.Setting

	// CollectConcurrency bounds the number of transformers collecting at once.
	// The default is GOMAXPROCS.
	CollectConcurrency int

	// KeepOrphans changes what happens to the descendants of a block removed
	// by a transformer. By default, descendants left without a path to the
	// root are dropped. When KeepOrphans is set, they are reattached to the
	// parents of the removed block instead.
	KeepOrphans bool

	// BlobSizeBytes, if set, observes the size of every blob written to the
	// cache.
	BlobSizeBytes prometheus.Histogram

	// CollectLatency, if set, observes the duration of every Collect call.
	CollectLatency prometheus.Histogram
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = defaultCacheTTL
	}
	if o.Compression == nil {
		o.Compression = &compression.ZstdLevel3
	}
	if o.CollectConcurrency <= 0 {
		o.CollectConcurrency = runtime.GOMAXPROCS(0)
	}
}

// Validate verifies that the options are mutually consistent. For example,
// that a cache backend was supplied.
func (o *Options) Validate() error {
	// Note that we can presume Options.EnsureDefaults has been called, so there
	// is no need to check for zero values of defaulted options.

	var buf strings.Builder
	if o.Registry == nil {
		fmt.Fprintf(&buf, "Registry must be set\n")
	}
	if o.Cache == nil {
		fmt.Fprintf(&buf, "Cache must be set\n")
	}
	if o.Store == nil {
		fmt.Fprintf(&buf, "Store must be set\n")
	}
	if o.Compression.Algorithm >= compression.NumAlgorithms {
		fmt.Fprintf(&buf, "Compression (%s) is not a known algorithm\n", o.Compression)
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}
