// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/blockcache"
	"github.com/cockroachdb/blockcache/backend"
	"github.com/cockroachdb/blockcache/contentstore"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/compression"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/blockcache/transformers/library"
	"github.com/cockroachdb/blockcache/transformers/partitions"
	"github.com/cockroachdb/blockcache/transformers/splittest"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the tools.
//
//	backend: badger
//	badger_dir: /var/lib/blockcache
//	ttl: 24h
//	compression: zstd3
//	transformers: [user_partitions, split_test, library_content]
//	groups:
//	  alice: {50: 1, 60: 0}
//	library_seed: 7
type Config struct {
	// Backend is "mem" or "badger".
	Backend   string        `yaml:"backend"`
	BadgerDir string        `yaml:"badger_dir"`
	TTL       time.Duration `yaml:"ttl"`
	// Compression is parsed by compression.ParseSetting.
	Compression string `yaml:"compression"`
	KeepOrphans bool   `yaml:"keep_orphans"`
	// Transformers lists the sample transformers to register. Unknown names
	// are an error.
	Transformers []string `yaml:"transformers"`
	// Groups maps user ids to their group in each partition.
	Groups map[string]map[int]int `yaml:"groups"`
	// LibrarySeed selects children of library blocks pseudo-randomly per
	// user. Zero selects the first max_count children.
	LibrarySeed uint64 `yaml:"library_seed"`
}

// DefaultConfig returns the configuration used when none is given: an
// in-memory cache and every sample transformer.
func DefaultConfig() Config {
	return Config{
		Backend:      "mem",
		TTL:          24 * time.Hour,
		Compression:  "zstd3",
		Transformers: []string{partitions.Name, splittest.Name, library.Name},
	}
}

// LoadConfig reads a YAML configuration. Unset fields keep their defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "blockcache: parsing config")
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return LoadConfig(f)
}

// registry builds the transformer registry named by the configuration.
func (c *Config) registry(extra ...transformer.Transformer) (*transformer.Registry, error) {
	groups := partitions.StaticGroups(c.Groups)
	var selection library.SelectionSource = library.FirstN{}
	if c.LibrarySeed != 0 {
		selection = library.Hashed{Seed: c.LibrarySeed}
	}
	r, err := transformer.NewRegistry(extra...)
	if err != nil {
		return nil, err
	}
	for _, name := range c.Transformers {
		var t transformer.Transformer
		switch name {
		case partitions.Name:
			t = partitions.New(groups)
		case splittest.Name:
			t = splittest.New(groups)
		case library.Name:
			t = library.New(selection)
		default:
			return nil, errors.Newf("blockcache: unknown transformer %q in config", name)
		}
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// openBackend opens the configured cache backend. The returned function
// releases it.
func (c *Config) openBackend(logger base.Logger) (backend.Backend, func() error, error) {
	switch c.Backend {
	case "", "mem":
		return backend.NewMem(), func() error { return nil }, nil
	case "badger":
		if c.BadgerDir == "" {
			return nil, nil, errors.New("blockcache: badger backend requires badger_dir")
		}
		b, err := backend.OpenBadger(backend.BadgerOptions{Dir: c.BadgerDir, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, errors.Newf("blockcache: unknown backend %q", c.Backend)
	}
}

// newLogger returns a logger writing to w. Info messages are dropped unless
// verbose is set.
func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// env is everything a command needs to run the pipeline.
type env struct {
	manager *blockcache.Manager
	store   *contentstore.Mem
	close   func() error
}

type envOptions struct {
	coursePath     string
	logger         base.Logger
	blobSizeBytes  prometheus.Histogram
	collectLatency prometheus.Histogram
}

func (t *T) openEnv(cfg Config, o envOptions) (*env, error) {
	store, err := contentstore.LoadFile(o.coursePath)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.registry(t.extra...)
	if err != nil {
		return nil, err
	}
	setting, err := compression.ParseSetting(cfg.Compression)
	if err != nil {
		return nil, err
	}
	cache, closeFn, err := cfg.openBackend(o.logger)
	if err != nil {
		return nil, err
	}
	m, err := blockcache.New(&blockcache.Options{
		Registry:       reg,
		Cache:          cache,
		Store:          store,
		Logger:         o.logger,
		CacheTTL:       cfg.TTL,
		Compression:    &setting,
		KeepOrphans:    cfg.KeepOrphans,
		BlobSizeBytes:  o.blobSizeBytes,
		CollectLatency: o.collectLatency,
	})
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	return &env{manager: m, store: store, close: closeFn}, nil
}

// defaultRoot returns the only course root held by the store.
func (e *env) defaultRoot() (blockcache.BlockKey, error) {
	roots := e.store.Roots()
	if len(roots) != 1 {
		return blockcache.BlockKey{}, errors.Newf("blockcache: %d course roots found, use --root", len(roots))
	}
	return roots[0], nil
}

func (e *env) getBlocks(
	ctx context.Context, user blockcache.UserInfo, root blockcache.BlockKey, requested []string,
) (*blockcache.Blocks, error) {
	return e.manager.GetBlocks(ctx, user, root, requested)
}
