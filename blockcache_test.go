// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/blockcache/backend"
	"github.com/cockroachdb/blockcache/contentstore"
	"github.com/cockroachdb/blockcache/internal/testutils"
	"github.com/cockroachdb/blockcache/structure"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/blockcache/transformers/library"
	"github.com/cockroachdb/blockcache/transformers/partitions"
	"github.com/cockroachdb/blockcache/transformers/splittest"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const demoCourse = "Org+Demo+2025"

var demoRoot = MakeBlockKey(demoCourse, "course", "course")

var testGroups = partitions.StaticGroups{
	"alice": {50: 1, 60: 0},
	"bob":   {50: 2, 60: 1},
}

func short(k BlockKey) string { return k.Type + "@" + k.ID }

func demoKey(ref string) BlockKey {
	typ, id, _ := strings.Cut(ref, "@")
	return MakeBlockKey(demoCourse, typ, id)
}

func loadDemoCourse(t testing.TB) *contentstore.Mem {
	store, err := contentstore.LoadFile("contentstore/testdata/course.yaml")
	require.NoError(t, err)
	return store
}

func sampleRegistry(t testing.TB) *transformer.Registry {
	r, err := transformer.NewRegistry(
		partitions.New(testGroups),
		splittest.New(testGroups),
		library.New(library.FirstN{}),
	)
	require.NoError(t, err)
	return r
}

func newTestManager(t testing.TB, opts *Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = testutils.Logger{T: t}
	}
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

// formatBlocks prints the structure as an indented tree. A block with several
// parents is printed under each of them.
func formatBlocks(b *Blocks) string {
	var buf strings.Builder
	var walk func(k BlockKey, depth int)
	walk = func(k BlockKey, depth int) {
		fmt.Fprintf(&buf, "%s%s\n", strings.Repeat("  ", depth), short(k))
		for _, c := range b.Structure.Children(k) {
			walk(c, depth+1)
		}
	}
	walk(b.Root(), 0)
	fmt.Fprintf(&buf, "%d blocks\n", b.Len())
	return buf.String()
}

func formatMetrics(m *Metrics) string {
	return fmt.Sprintf("hits=%d misses=%d corrupt=%d stale=%d builds=%d blobs=%d",
		m.Hits, m.Misses, m.Corrupt, m.Stale, m.Builds, m.BlobsWritten)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case *library.Content:
		children := make([]string, len(v.Children))
		for i, c := range v.Children {
			children[i] = short(c)
		}
		return fmt.Sprintf("max_count=%d children=%s", v.MaxCount, strings.Join(children, ","))
	default:
		return fmt.Sprint(v)
	}
}

func transformersArg(td *datadriven.TestData) []string {
	for _, arg := range td.CmdArgs {
		if arg.Key == "transformers" {
			return strings.Split(strings.Join(arg.Vals, ","), ",")
		}
	}
	return nil
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	store := loadDemoCourse(t)
	var m *Manager
	datadriven.RunTest(t, "testdata/pipeline", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "new-manager":
			m = newTestManager(t, &Options{
				Registry:    sampleRegistry(t),
				Cache:       backend.NewMem(),
				Store:       store,
				KeepOrphans: td.HasArg("keep-orphans"),
			})
			return "ok"

		case "get-blocks":
			var user User
			td.ScanArgs(t, "user", &user.ID)
			user.Staff = td.HasArg("staff")
			b, err := m.GetBlocks(ctx, user, demoRoot, transformersArg(td))
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return formatBlocks(b)

		case "get-field":
			var name, field string
			td.ScanArgs(t, "transformer", &name)
			td.ScanArgs(t, "field", &field)
			_, raw, err := m.GetBlocksWithRaw(ctx, User{ID: "staff1", Staff: true}, demoRoot, nil)
			require.NoError(t, err)
			var buf strings.Builder
			for _, line := range strings.Split(strings.TrimSpace(td.Input), "\n") {
				v, err := raw.Get(name, field, demoKey(strings.TrimSpace(line)))
				if err != nil {
					fmt.Fprintf(&buf, "%s: error: %v\n", line, err)
					continue
				}
				fmt.Fprintf(&buf, "%s: %s\n", line, formatValue(v))
			}
			return buf.String()

		case "clear":
			require.NoError(t, m.ClearBlockCache(ctx, demoRoot))
			return "ok"

		case "metrics":
			return formatMetrics(m.Metrics())

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

// countingStore counts subtree fetches.
type countingStore struct {
	contentstore.Store
	fetches atomic.Int32
}

func (s *countingStore) GetSubtree(
	ctx context.Context, root BlockKey,
) (*contentstore.Subtree, bool, error) {
	s.fetches.Add(1)
	return s.Store.GetSubtree(ctx, root)
}

func TestGetBlocksUnregistered(t *testing.T) {
	ctx := context.Background()
	cache := backend.NewMem()
	store := &countingStore{Store: loadDemoCourse(t)}
	m := newTestManager(t, &Options{Registry: sampleRegistry(t), Cache: cache, Store: store})

	_, err := m.GetBlocks(ctx, User{ID: "alice"}, demoRoot, []string{partitions.Name, "grades"})
	require.True(t, errors.Is(err, ErrUnregisteredTransformer), "%+v", err)
	require.Contains(t, err.Error(), "grades")
	_, _, err = m.GetBlocksWithRaw(ctx, User{ID: "alice"}, demoRoot, []string{"grades"})
	require.True(t, errors.Is(err, ErrUnregisteredTransformer), "%+v", err)

	require.Zero(t, cache.Len())
	require.Zero(t, store.fetches.Load())
	require.Equal(t, Metrics{}, *m.Metrics())
}

func TestGetBlocksCacheHit(t *testing.T) {
	ctx := context.Background()
	cache := backend.NewMem()
	store := &countingStore{Store: loadDemoCourse(t)}
	m := newTestManager(t, &Options{Registry: sampleRegistry(t), Cache: cache, Store: store})

	for i := 0; i < 3; i++ {
		b, err := m.GetBlocks(ctx, User{ID: "alice"}, demoRoot, []string{splittest.Name})
		require.NoError(t, err)
		require.False(t, b.Structure.HasBlock(demoKey("vertical@treatment")))
		require.True(t, b.Structure.HasBlock(demoKey("vertical@control")))
	}
	require.Equal(t, int32(1), store.fetches.Load())
	require.Equal(t, 1, cache.Len())
	met := m.Metrics()
	require.Equal(t, int64(2), met.Hits)
	require.Equal(t, int64(1), met.Misses)
	require.Equal(t, int64(1), met.Builds)
	require.Greater(t, met.BytesWritten, int64(0))
	require.InDelta(t, 2.0/3, met.HitRate(), 1e-9)
	require.Contains(t, met.String(), "builds: 1")

	// A cached entry is never modified by transforms.
	raw, err := m.GetBlocks(ctx, User{ID: "alice"}, demoRoot, nil)
	require.NoError(t, err)
	require.Equal(t, 22, raw.Len())
}

func TestGetBlocksWithRaw(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &Options{
		Registry: sampleRegistry(t),
		Cache:    backend.NewMem(),
		Store:    loadDemoCourse(t),
	})
	transformed, raw, err := m.GetBlocksWithRaw(ctx, User{ID: "bob"}, demoRoot,
		[]string{partitions.Name, splittest.Name, library.Name})
	require.NoError(t, err)
	require.Equal(t, 22, raw.Len())
	require.Equal(t, 13, transformed.Len())
	require.True(t, raw.Structure.HasBlock(demoKey("chapter@cohorts")))
	require.False(t, transformed.Structure.HasBlock(demoKey("chapter@cohorts")))

	// Pruned blocks lose their field values too.
	_, err = transformed.Get(partitions.Name, partitions.MergedAccessField, demoKey("chapter@cohorts"))
	require.True(t, errors.Is(err, ErrUnknownBlock), "%+v", err)
	v, err := raw.Get(partitions.Name, partitions.MergedAccessField, demoKey("chapter@cohorts"))
	require.NoError(t, err)
	require.Equal(t, "50:[1]", fmt.Sprint(v))
}

func TestGetBlocksNotFound(t *testing.T) {
	ctx := context.Background()
	cache := backend.NewMem()
	m := newTestManager(t, &Options{
		Registry: sampleRegistry(t),
		Cache:    cache,
		Store:    loadDemoCourse(t),
	})
	_, err := m.GetBlocks(ctx, User{ID: "alice"}, MakeBlockKey("Org+None+2025", "course", "course"), nil)
	require.True(t, errors.Is(err, ErrNotFound), "%+v", err)
	require.Zero(t, cache.Len())
}

func TestBuildFailureNotCached(t *testing.T) {
	ctx := context.Background()
	store := loadDemoCourse(t)
	store.Delete(demoKey("html@shared"))
	cache := backend.NewMem()
	m := newTestManager(t, &Options{Registry: sampleRegistry(t), Cache: cache, Store: store})

	_, err := m.GetBlocks(ctx, User{ID: "alice"}, demoRoot, nil)
	require.True(t, errors.Is(err, ErrItemNotFound), "%+v", err)
	require.Zero(t, cache.Len())
}

// mutatingTransformer tries to remove a block while collecting.
type mutatingTransformer struct{ nopTransformer }

func (mutatingTransformer) Collect(ctx context.Context, cd *transformer.CollectData) error {
	cd.Structure.(structure.Mutable).RemoveBlock(cd.Structure.Root(), false)
	return nil
}

func TestCollectWriteNotAllowed(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	reg, err := transformer.NewRegistry(
		partitions.New(testGroups),
		&mutatingTransformer{nopTransformer{name: "mutating", version: 1}},
	)
	require.NoError(t, err)
	cache := backend.NewMem()
	m := newTestManager(t, &Options{Registry: reg, Cache: cache, Store: loadDemoCourse(t)})

	_, err = m.GetBlocks(ctx, User{ID: "alice"}, demoRoot, nil)
	require.True(t, errors.Is(err, ErrWriteNotAllowed), "%+v", err)
	require.Contains(t, err.Error(), "mutating")
	require.Zero(t, cache.Len())
}

func TestCollectError(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	boom := errors.New("boom")
	reg, err := transformer.NewRegistry(
		partitions.New(testGroups),
		&nopTransformer{name: "failing", version: 1, collectErr: boom},
	)
	require.NoError(t, err)
	cache := backend.NewMem()
	m := newTestManager(t, &Options{
		Registry:           reg,
		Cache:              cache,
		Store:              loadDemoCourse(t),
		CollectConcurrency: 1,
	})
	_, err = m.GetBlocks(ctx, User{ID: "alice"}, demoRoot, nil)
	require.True(t, errors.Is(err, boom), "%+v", err)
	require.Zero(t, cache.Len())
}

func TestOptionsValidate(t *testing.T) {
	_, err := New(&Options{})
	require.Error(t, err)
	for _, want := range []string{"Registry must be set", "Cache must be set", "Store must be set"} {
		require.Contains(t, err.Error(), want)
	}

	o := &Options{}
	o.EnsureDefaults()
	require.Equal(t, defaultCacheTTL, o.CacheTTL)
	require.NotNil(t, o.Compression)
	require.Positive(t, o.CollectConcurrency)
	require.NotNil(t, o.Logger)
}
