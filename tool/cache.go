// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/blockcache"
	"github.com/cockroachdb/blockcache/backend"
	"github.com/cockroachdb/blockcache/internal/binfmt"
	"github.com/cockroachdb/blockcache/internal/blobfmt"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// cacheT implements the cache tools, which inspect a badger cache directory.
type cacheT struct {
	Root  *cobra.Command
	List  *cobra.Command
	Dump  *cobra.Command
	Clear *cobra.Command

	t *T

	// Flags.
	hex      bool
	describe bool
}

func newCache(t *T) *cacheT {
	c := &cacheT{t: t}
	c.Root = &cobra.Command{
		Use:   "cache",
		Short: "cache introspection tools",
	}
	c.List = &cobra.Command{
		Use:   "list <badger-dir>",
		Short: "list the cached course roots",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runList,
	}
	c.Dump = &cobra.Command{
		Use:   "dump <badger-dir> <root-key>",
		Short: "print a cached block structure",
		Long: `
Decodes the cache entry of a course root and prints its blocks and the
transformers it was collected with. --describe annotates the encoded blob
and --hex prints its raw bytes.
`,
		Args: cobra.ExactArgs(2),
		RunE: c.runDump,
	}
	c.Clear = &cobra.Command{
		Use:   "clear <badger-dir> <root-key>",
		Short: "drop the cache entry of a course root",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runClear,
	}
	c.Root.AddCommand(c.List, c.Dump, c.Clear)
	c.Dump.Flags().BoolVar(&c.hex, "hex", false, "print the entry as a hex dump")
	c.Dump.Flags().BoolVar(&c.describe, "describe", false, "annotate the encoded entry")
	return c
}

func openCacheDir(dir string) (*backend.Badger, error) {
	return backend.OpenBadger(backend.BadgerOptions{Dir: dir})
}

func (c *cacheT) runList(cmd *cobra.Command, args []string) error {
	b, err := openCacheDir(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	keys, err := b.Keys(cmd.Context(), blockcache.CacheKeyPrefix)
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	for _, k := range keys {
		fmt.Fprintln(stdout, strings.TrimPrefix(k, blockcache.CacheKeyPrefix))
	}
	return nil
}

func (c *cacheT) runDump(cmd *cobra.Command, args []string) error {
	root, err := blockcache.ParseBlockKey(args[1])
	if err != nil {
		return err
	}
	b, err := openCacheDir(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	data, ok, err := b.Get(cmd.Context(), blockcache.CacheKey(root))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Mark(errors.Newf("blockcache: no cache entry for %s", root), blockcache.ErrNotFound)
	}
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "%s: %s\n", blockcache.CacheKey(root),
		crhumanize.Bytes(int64(len(data)), crhumanize.Compact, crhumanize.OmitI))
	switch {
	case c.hex:
		binfmt.FHexDump(stdout, data, 16, true)
		return nil
	case c.describe:
		fmt.Fprint(stdout, blobfmt.Describe(data))
		return nil
	}
	blocks, err := blockcache.DecodeBlocks(data)
	if err != nil {
		return err
	}
	return writeCached(stdout, blocks)
}

func writeCached(w io.Writer, b *blockcache.Blocks) error {
	fmt.Fprintf(w, "course %s, root %s, %d blocks\n", b.CourseKey, shortKey(b.Root()), b.Len())
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Transformer", "Version", "Fields", "Data"})
	tbl.SetAutoWrapText(false)
	for _, name := range b.TransformerNames() {
		d, _ := b.TransformerData(name)
		var names []string
		if d.Fields != nil {
			names = d.Fields.Fields()
		}
		data := "-"
		if d.Data != nil {
			data = fmt.Sprintf("%T", d.Data)
		}
		tbl.Append([]string{name, fmt.Sprint(d.Version), strings.Join(names, " "), data})
	}
	tbl.Render()
	return nil
}

func (c *cacheT) runClear(cmd *cobra.Command, args []string) error {
	root, err := blockcache.ParseBlockKey(args[1])
	if err != nil {
		return err
	}
	b, err := openCacheDir(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()
	if err := b.Delete(cmd.Context(), blockcache.CacheKey(root)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", root)
	return nil
}
