// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package fields

import (
	"maps"
	"slices"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Reader is the read-only view of a field store.
type Reader interface {
	// Get returns the value of field for block k. A nil value means the field
	// is declared but unset. Undeclared fields return an error marked
	// base.ErrUnknownField and unmapped blocks an error marked
	// base.ErrUnknownBlock.
	Get(field string, k BlockKey) (any, error)
	// Row returns a snapshot of every field for block k.
	Row(k BlockKey) (map[string]any, error)
	// Fields returns the declared field names, sorted.
	Fields() []string
	// Mapping returns the index mapping the store is laid out over.
	Mapping() *IndexMapping
}

// Values is a columnar field store.
//
// Columns are plain slices. A store returned by SliceByFields shares the
// backing arrays of the columns it selects with its source, so a Set through
// either store is observed by both. Declaring new fields on one of them does
// not declare them on the other.
type Values struct {
	mapping *IndexMapping
	columns map[string][]any
}

var _ Reader = (*Values)(nil)

// NewBlank returns a store over m with every named field declared and unset.
func NewBlank(m *IndexMapping, fieldNames ...string) *Values {
	v := &Values{mapping: m, columns: make(map[string][]any, len(fieldNames))}
	v.Declare(fieldNames...)
	return v
}

// FromColumns returns a store over m that takes ownership of columns. Every
// column must hold exactly one slot per mapped key.
func FromColumns(m *IndexMapping, columns map[string][]any) (*Values, error) {
	for name, col := range columns {
		if len(col) != m.Len() {
			return nil, errors.Newf("blockcache: field %q has %d values for %d blocks",
				errors.Safe(name), len(col), m.Len())
		}
	}
	if columns == nil {
		columns = make(map[string][]any)
	}
	return &Values{mapping: m, columns: columns}, nil
}

// Declare adds the named fields, unset for every block. Fields that are
// already declared keep their values.
func (v *Values) Declare(fieldNames ...string) {
	for _, name := range fieldNames {
		if _, ok := v.columns[name]; !ok {
			v.columns[name] = make([]any, v.mapping.Len())
		}
	}
}

// Mapping implements Reader.
func (v *Values) Mapping() *IndexMapping { return v.mapping }

// Fields implements Reader.
func (v *Values) Fields() []string {
	return slices.Sorted(maps.Keys(v.columns))
}

// HasField returns true if field is declared.
func (v *Values) HasField(field string) bool {
	_, ok := v.columns[field]
	return ok
}

func (v *Values) column(field string) ([]any, error) {
	col, ok := v.columns[field]
	if !ok {
		return nil, errors.Mark(errors.Newf("blockcache: field %q is not declared", errors.Safe(field)),
			base.ErrUnknownField)
	}
	return col, nil
}

// Column returns the values of field in index order. The returned slice
// aliases the store.
func (v *Values) Column(field string) ([]any, error) {
	return v.column(field)
}

// Get implements Reader.
func (v *Values) Get(field string, k BlockKey) (any, error) {
	col, err := v.column(field)
	if err != nil {
		return nil, err
	}
	i, err := v.mapping.IndexFor(k)
	if err != nil {
		return nil, err
	}
	return col[i], nil
}

// Set stores value as the value of field for block k.
func (v *Values) Set(field string, k BlockKey, value any) error {
	col, err := v.column(field)
	if err != nil {
		return err
	}
	i, err := v.mapping.IndexFor(k)
	if err != nil {
		return err
	}
	if invariants.Enabled {
		invariants.CheckBounds(i, len(col))
	}
	col[i] = value
	return nil
}

// Row implements Reader. The returned map is a copy.
func (v *Values) Row(k BlockKey) (map[string]any, error) {
	i, err := v.mapping.IndexFor(k)
	if err != nil {
		return nil, err
	}
	row := make(map[string]any, len(v.columns))
	for name, col := range v.columns {
		row[name] = col[i]
	}
	return row, nil
}

// SliceByFields returns a store holding only the named fields. The columns are
// shared with v.
func (v *Values) SliceByFields(fieldNames ...string) (*Values, error) {
	s := &Values{mapping: v.mapping, columns: make(map[string][]any, len(fieldNames))}
	for _, name := range fieldNames {
		col, err := v.column(name)
		if err != nil {
			return nil, err
		}
		s.columns[name] = col
	}
	return s, nil
}

// SliceByKeys returns a store over a new mapping restricted to keys, holding
// a copy of every field. Indexes differ between the two mappings, so the
// result shares nothing with v. A key missing from v's mapping returns an
// error marked base.ErrUnknownBlock.
func (v *Values) SliceByKeys(keys []BlockKey) (*Values, error) {
	m := NewIndexMapping(keys)
	src := make([]int, m.Len())
	for i, k := range m.Keys() {
		j, err := v.mapping.IndexFor(k)
		if err != nil {
			return nil, err
		}
		src[i] = j
	}
	s := &Values{mapping: m, columns: make(map[string][]any, len(v.columns))}
	for name, col := range v.columns {
		c := make([]any, m.Len())
		for i, j := range src {
			c[i] = col[j]
		}
		s.columns[name] = c
	}
	return s, nil
}

// Clone returns a deep copy of the columns of v. Values themselves are copied
// by assignment.
func (v *Values) Clone() *Values {
	c := &Values{mapping: v.mapping, columns: make(map[string][]any, len(v.columns))}
	for name, col := range v.columns {
		c.columns[name] = slices.Clone(col)
	}
	return c
}

// ReadOnly returns a write-protected view of v. The dynamic type of the view
// has a Set method that panics with an error marked base.ErrWriteNotAllowed.
func ReadOnly(v *Values) Reader {
	return readOnlyValues{v: v}
}

type readOnlyValues struct {
	v *Values
}

func (r readOnlyValues) Get(field string, k BlockKey) (any, error) { return r.v.Get(field, k) }
func (r readOnlyValues) Row(k BlockKey) (map[string]any, error)    { return r.v.Row(k) }
func (r readOnlyValues) Fields() []string                          { return r.v.Fields() }
func (r readOnlyValues) Mapping() *IndexMapping                    { return r.v.Mapping() }

func (readOnlyValues) Set(field string, k BlockKey, value any) error {
	panic(base.WriteNotAllowedf("Set"))
}
