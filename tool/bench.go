// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/blockcache"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// benchT implements the bench tool, which measures GetBlocks latency over a
// course fixture.
type benchT struct {
	Root *cobra.Command

	t *T

	// Flags.
	config  string
	root    string
	count   int
	cold    bool
	verbose bool
}

func newBench(t *T) *benchT {
	b := &benchT{t: t}
	b.Root = &cobra.Command{
		Use:   "bench <course.yaml>",
		Short: "measure GetBlocks latency",
		Long: `
Calls GetBlocks -n times, cycling through the users named in the
configuration's groups plus a staff user, and prints the latency
distribution along with the cache metrics. --cold clears the cache entry
before every call.
`,
		Args: cobra.ExactArgs(1),
		RunE: b.run,
	}
	f := b.Root.Flags()
	f.StringVar(&b.config, "config", "", "YAML configuration file")
	f.StringVar(&b.root, "root", "", "course root block key; defaults to the only course in the fixture")
	f.IntVarP(&b.count, "count", "n", 100, "number of GetBlocks calls")
	f.BoolVar(&b.cold, "cold", false, "clear the cache before every call")
	f.BoolVarP(&b.verbose, "verbose", "v", false, "log cache activity")
	return b
}

func (b *benchT) run(cmd *cobra.Command, args []string) error {
	if b.count <= 0 {
		return errors.Newf("blockcache: --count must be positive, got %d", b.count)
	}
	cfg, err := b.t.loadConfig(b.config)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	blobSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "blockcache_blob_size_bytes",
		Help:    "Size of the blobs written to the cache backend.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})
	collectLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "blockcache_collect_latency_seconds",
		Help:    "Latency of a single transformer's collect phase.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	})
	reg.MustRegister(blobSize, collectLatency)

	e, err := b.t.openEnv(cfg, envOptions{
		coursePath:     args[0],
		logger:         newLogger(cmd.ErrOrStderr(), b.verbose),
		blobSizeBytes:  blobSize,
		collectLatency: collectLatency,
	})
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()
	root, err := resolveRoot(e, b.root)
	if err != nil {
		return err
	}

	users := []blockcache.UserInfo{blockcache.User{ID: "staff", Staff: true}}
	for _, id := range slices.Sorted(maps.Keys(cfg.Groups)) {
		users = append(users, blockcache.User{ID: id})
	}

	ctx := cmd.Context()
	hist := hdrhistogram.New(0, int64(10*time.Second/time.Microsecond), 3)
	start := time.Now()
	for i := range b.count {
		if b.cold {
			if err := e.manager.ClearBlockCache(ctx, root); err != nil {
				return err
			}
		}
		callStart := time.Now()
		if _, err := e.getBlocks(ctx, users[i%len(users)], root, cfg.Transformers); err != nil {
			return err
		}
		if err := hist.RecordValue(time.Since(callStart).Microseconds()); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "%d%s calls in %.3fs (%s/sec)\n",
		hist.TotalCount(), crstrings.If(b.cold, " cold"), elapsed.Seconds(),
		crhumanize.Count(int64(float64(hist.TotalCount())/elapsed.Seconds()), crhumanize.Compact))
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	fmt.Fprintf(stdout, "latency: mean %s p50 %s p95 %s p99 %s max %s\n",
		us(int64(hist.Mean())), us(hist.ValueAtQuantile(50)), us(hist.ValueAtQuantile(95)),
		us(hist.ValueAtQuantile(99)), us(hist.Max()))
	fmt.Fprint(stdout, e.manager.Metrics())
	return writeHistograms(stdout, reg)
}

func writeHistograms(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			h := m.GetHistogram()
			if h == nil {
				continue
			}
			mean := 0.0
			if n := h.GetSampleCount(); n > 0 {
				mean = h.GetSampleSum() / float64(n)
			}
			fmt.Fprintf(w, "%s: count %d mean %g\n", f.GetName(), h.GetSampleCount(), mean)
		}
	}
	return nil
}
