// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package transformer

import (
	"maps"
	"slices"
	"strings"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
)

// Registry holds the transformers known to a pipeline. A Registry is built at
// startup and is not safe for concurrent registration; lookups may run
// concurrently once registration is done.
type Registry struct {
	byName map[string]Transformer
}

// NewRegistry returns a registry holding ts.
func NewRegistry(ts ...Transformer) (*Registry, error) {
	r := &Registry{byName: make(map[string]Transformer, len(ts))}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Registering two transformers under the same name is an
// error.
func (r *Registry) Register(t Transformer) error {
	name := t.Name()
	if name == "" {
		return errors.New("blockcache: transformer has an empty name")
	}
	if _, ok := r.byName[name]; ok {
		return errors.Newf("blockcache: transformer %q registered twice", errors.Safe(name))
	}
	r.byName[name] = t
	return nil
}

// Lookup returns the transformer registered under name.
func (r *Registry) Lookup(name string) (Transformer, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Len returns the number of registered transformers.
func (r *Registry) Len() int { return len(r.byName) }

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.byName))
}

// Registered returns every registered transformer, sorted by name.
func (r *Registry) Registered() []Transformer {
	names := r.Names()
	ts := make([]Transformer, len(names))
	for i, name := range names {
		ts[i] = r.byName[name]
	}
	return ts
}

// FindUnregistered returns the requested names that are not registered, in
// request order.
func (r *Registry) FindUnregistered(requested []string) []string {
	var missing []string
	for _, name := range requested {
		if _, ok := r.byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Resolve maps requested names to transformers, in request order. Unknown
// names produce an error marked base.ErrUnregisteredTransformer naming all of
// them.
func (r *Registry) Resolve(requested []string) ([]Transformer, error) {
	if missing := r.FindUnregistered(requested); len(missing) > 0 {
		return nil, errors.Mark(
			errors.Newf("blockcache: unregistered transformers: %s",
				errors.Safe(strings.Join(missing, ", "))),
			base.ErrUnregisteredTransformer)
	}
	ts := make([]Transformer, len(requested))
	for i, name := range requested {
		ts[i] = r.byName[name]
	}
	return ts, nil
}

// RequiredFields returns the sorted union of the raw fields required by every
// registered transformer.
func (r *Registry) RequiredFields() []string {
	var out []string
	for _, t := range r.byName {
		out = append(out, t.RequiredFields()...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
