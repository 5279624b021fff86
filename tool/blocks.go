// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/blockcache"
	"github.com/cockroachdb/blockcache/internal/traverse"
	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// blocksT implements the blocks tool, which runs the pipeline over a course
// fixture and prints the resulting structure.
type blocksT struct {
	Root *cobra.Command

	t *T

	// Flags.
	config       string
	root         string
	user         string
	staff        bool
	groups       string
	transformers []string
	field        string
	verbose      bool
}

func newBlocks(t *T) *blocksT {
	b := &blocksT{t: t}
	b.Root = &cobra.Command{
		Use:   "blocks <course.yaml>",
		Short: "print the transformed block structure of a course",
		Long: `
Loads the course fixture, runs the requested transformers for the given
user and prints every remaining block in topological order together with
its children and parents.
`,
		Args: cobra.ExactArgs(1),
		RunE: b.run,
	}
	f := b.Root.Flags()
	f.StringVar(&b.config, "config", "", "YAML configuration file")
	f.StringVar(&b.root, "root", "", "course root block key; defaults to the only course in the fixture")
	f.StringVar(&b.user, "user", "", "user id")
	f.BoolVar(&b.staff, "staff", false, "give the user staff access")
	f.StringVar(&b.groups, "groups", "", "the user's groups as partition:group pairs, e.g. 50:1,60:0")
	f.StringSliceVar(&b.transformers, "transformers", nil,
		"transformers to apply, in order; defaults to every configured transformer")
	f.StringVar(&b.field, "field", "", "also print a field as transformer/field")
	f.BoolVarP(&b.verbose, "verbose", "v", false, "log cache activity")
	return b
}

func (b *blocksT) run(cmd *cobra.Command, args []string) error {
	stdout := cmd.OutOrStdout()
	cfg, err := b.t.loadConfig(b.config)
	if err != nil {
		return err
	}
	if b.groups != "" {
		g, err := parseGroups(b.groups)
		if err != nil {
			return err
		}
		cfg.Groups = maps.Clone(cfg.Groups)
		if cfg.Groups == nil {
			cfg.Groups = map[string]map[int]int{}
		}
		cfg.Groups[b.user] = g
	}
	var fieldTransformer, fieldName string
	if b.field != "" {
		var ok bool
		fieldTransformer, fieldName, ok = strings.Cut(b.field, "/")
		if !ok {
			return errors.Newf("blockcache: --field must be transformer/field, got %q", b.field)
		}
	}

	e, err := b.t.openEnv(cfg, envOptions{
		coursePath: args[0],
		logger:     newLogger(cmd.ErrOrStderr(), b.verbose),
	})
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()

	root, err := resolveRoot(e, b.root)
	if err != nil {
		return err
	}
	requested := b.transformers
	if requested == nil {
		requested = cfg.Transformers
	}
	user := blockcache.User{ID: b.user, Staff: b.staff}
	blocks, err := e.getBlocks(cmd.Context(), user, root, requested)
	if err != nil {
		return err
	}
	return writeBlocks(stdout, blocks, fieldTransformer, fieldName)
}

func (t *T) loadConfig(path string) (Config, error) {
	if path == "" {
		return t.cfg, nil
	}
	return LoadConfigFile(path)
}

func resolveRoot(e *env, root string) (blockcache.BlockKey, error) {
	if root == "" {
		return e.defaultRoot()
	}
	return blockcache.ParseBlockKey(root)
}

// parseGroups parses "50:1,60:0".
func parseGroups(s string) (map[int]int, error) {
	out := map[int]int{}
	for _, pair := range strings.Split(s, ",") {
		p, g, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, errors.Newf("blockcache: malformed group %q", pair)
		}
		pid, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "blockcache: malformed group %q", pair)
		}
		gid, err := strconv.Atoi(g)
		if err != nil {
			return nil, errors.Wrapf(err, "blockcache: malformed group %q", pair)
		}
		out[pid] = gid
	}
	return out, nil
}

func shortKey(k blockcache.BlockKey) string { return k.Type + "@" + k.ID }

func joinKeys(keys []blockcache.BlockKey) string {
	return strings.Join(slices.Collect(traverse.Map(slices.Values(keys), shortKey)), " ")
}

func writeBlocks(w io.Writer, b *blockcache.Blocks, fieldTransformer, fieldName string) error {
	tbl := tablewriter.NewWriter(w)
	header := []string{"Block", "Children", "Parents"}
	if fieldName != "" {
		header = append(header, fieldName)
	}
	tbl.SetHeader(header)
	tbl.SetAutoWrapText(false)
	for k := range b.Structure.Topological(nil) {
		row := []string{shortKey(k), joinKeys(b.Structure.Children(k)), joinKeys(b.Structure.Parents(k))}
		if fieldName != "" {
			v, err := b.Get(fieldTransformer, fieldName, k)
			if err != nil {
				return err
			}
			row = append(row, formatField(v))
		}
		tbl.Append(row)
	}
	tbl.Render()
	fmt.Fprintf(w, "%d blocks\n", b.Len())
	return nil
}

func formatField(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
