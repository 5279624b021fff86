// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package contentstore

import (
	"io"
	"os"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML representation of a course:
//
//	course: Org+Course+Run
//	blocks:
//	  - ref: course@course
//	    fields:
//	      display_name: Demo
//	    children: [chapter@intro]
//	  - ref: chapter@intro
//
// Child references use the short "type@id" form within the course, or full
// block keys.
type Fixture struct {
	Course string         `yaml:"course"`
	Blocks []FixtureBlock `yaml:"blocks"`
}

// FixtureBlock is one block of a Fixture.
type FixtureBlock struct {
	Ref      string         `yaml:"ref"`
	Fields   map[string]any `yaml:"fields,omitempty"`
	Children []string       `yaml:"children,omitempty"`
}

// Nodes resolves the fixture into content-store nodes.
func (f *Fixture) Nodes() ([]*Node, error) {
	if f.Course == "" {
		return nil, errors.New("fixture does not name a course")
	}
	seen := make(map[base.BlockKey]bool, len(f.Blocks))
	nodes := make([]*Node, 0, len(f.Blocks))
	for _, b := range f.Blocks {
		key, err := base.ParseBlockRef(f.Course, b.Ref)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			return nil, errors.Newf("block %s defined twice", key)
		}
		seen[key] = true
		n := &Node{Key: key, Fields: b.Fields}
		for _, ref := range b.Children {
			c, err := base.ParseBlockRef(f.Course, ref)
			if err != nil {
				return nil, errors.Wrapf(err, "children of %s", key)
			}
			n.Children = append(n.Children, c)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// LoadYAML reads a Fixture from r into a new Mem store.
func LoadYAML(r io.Reader) (*Mem, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding course fixture")
	}
	nodes, err := f.Nodes()
	if err != nil {
		return nil, err
	}
	return NewMem(nodes...), nil
}

// LoadFile reads a Fixture from the named file.
func LoadFile(path string) (*Mem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := LoadYAML(f)
	return m, errors.Wrapf(err, "%s", path)
}
