// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package traverse

import (
	"fmt"
	"slices"
	"testing"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type testGraph struct {
	parents  map[string][]string
	children map[string][]string
}

func newTestGraph(edges ...[2]string) *testGraph {
	g := &testGraph{parents: map[string][]string{}, children: map[string][]string{}}
	for _, e := range edges {
		g.add(e[0], e[1])
	}
	return g
}

func (g *testGraph) add(parent, child string) {
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
}

func (g *testGraph) getParents(k string) []string  { return g.parents[k] }
func (g *testGraph) getChildren(k string) []string { return g.children[k] }

func (g *testGraph) topo(start string, pred func(string) bool) []string {
	return slices.Collect(Topological(start, g.getParents, g.getChildren, pred))
}

func (g *testGraph) post(start string) []string {
	return slices.Collect(PostOrder(start, g.getChildren))
}

func index(order []string, k string) int {
	i := slices.Index(order, k)
	if i < 0 {
		panic(fmt.Sprintf("%s missing from %v", k, order))
	}
	return i
}

// courseTree is a root with two chapters, a sequential under each chapter and
// two html leaves under the first sequential.
func courseTree() *testGraph {
	return newTestGraph(
		[2]string{"course", "chapter1"},
		[2]string{"course", "chapter2"},
		[2]string{"chapter1", "seq1"},
		[2]string{"chapter2", "seq2"},
		[2]string{"seq1", "html1"},
		[2]string{"seq1", "html2"},
	)
}

func TestTopologicalTree(t *testing.T) {
	g := courseTree()
	order := g.topo("course", nil)
	require.Len(t, order, 7)
	require.Equal(t, "course", order[0])
	require.Less(t, index(order, "seq1"), index(order, "html1"))
	require.Less(t, index(order, "seq1"), index(order, "html2"))
	// Depth-first pre-order for a tree.
	require.Equal(t,
		[]string{"course", "chapter1", "seq1", "html1", "html2", "chapter2", "seq2"}, order)
}

func TestTopologicalDiamond(t *testing.T) {
	// a -> b -> d, a -> c -> d, d -> e
	g := newTestGraph(
		[2]string{"a", "b"}, [2]string{"a", "c"},
		[2]string{"b", "d"}, [2]string{"c", "d"}, [2]string{"d", "e"},
	)
	order := g.topo("a", nil)
	require.Len(t, order, 5)
	require.Less(t, index(order, "b"), index(order, "d"))
	require.Less(t, index(order, "c"), index(order, "d"))
	require.Less(t, index(order, "d"), index(order, "e"))
}

func TestTopologicalPredicateDoesNotPrune(t *testing.T) {
	g := courseTree()
	order := g.topo("course", func(k string) bool { return k != "chapter1" && k != "seq1" })
	require.NotContains(t, order, "chapter1")
	require.NotContains(t, order, "seq1")
	require.Contains(t, order, "html1")
	require.Contains(t, order, "html2")
}

func TestTopologicalIgnoresUnreachableParents(t *testing.T) {
	// x is not reachable from a, but it is a parent of c.
	g := newTestGraph([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"x", "c"})
	require.Equal(t, []string{"a", "b", "c"}, g.topo("a", nil))
	// Starting in the middle of the graph ignores the start's own parents.
	require.Equal(t, []string{"b", "c"}, g.topo("b", nil))
}

func TestTraversalsAreRestartable(t *testing.T) {
	g := courseTree()
	seq := Topological("course", g.getParents, g.getChildren, nil)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Equal(t, first, second)

	post := PostOrder("course", g.getChildren)
	require.Equal(t, slices.Collect(post), slices.Collect(post))
}

func TestTraversalEarlyStop(t *testing.T) {
	g := courseTree()
	var got []string
	for k := range Topological("course", g.getParents, g.getChildren, nil) {
		got = append(got, k)
		if len(got) == 3 {
			break
		}
	}
	require.Len(t, got, 3)

	got = got[:0]
	for k := range PostOrder("course", g.getChildren) {
		got = append(got, k)
		break
	}
	require.Equal(t, []string{"html1"}, got)
}

func TestPostOrder(t *testing.T) {
	g := courseTree()
	order := g.post("course")
	require.Equal(t,
		[]string{"html1", "html2", "seq1", "chapter1", "seq2", "chapter2", "course"}, order)

	d := newTestGraph(
		[2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "d"}, [2]string{"c", "d"},
	)
	order = d.post("a")
	require.Len(t, order, 4)
	require.Less(t, index(order, "d"), index(order, "b"))
	require.Less(t, index(order, "d"), index(order, "c"))
	require.Equal(t, "a", order[3])
}

func TestCycles(t *testing.T) {
	g := newTestGraph([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "b"}, [2]string{"a", "d"})
	// Both traversals terminate.
	topo := g.topo("a", nil)
	require.Equal(t, []string{"a", "d"}, topo)
	post := g.post("a")
	require.ElementsMatch(t, []string{"a", "b", "c", "d"}, post)

	err := CheckAcyclic("a", g.getChildren)
	require.Error(t, err)
	require.True(t, errors.Is(err, base.ErrGraphCycle))

	require.NoError(t, CheckAcyclic("course", courseTree().getChildren))
	// A diamond is not a cycle.
	d := newTestGraph(
		[2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "d"}, [2]string{"c", "d"},
	)
	require.NoError(t, CheckAcyclic("a", d.getChildren))
}

func TestMap(t *testing.T) {
	g := courseTree()
	lens := slices.Collect(Map(PostOrder("course", g.getChildren), func(k string) int { return len(k) }))
	require.Equal(t, []int{5, 5, 4, 8, 4, 8, 6}, lens)
}

// genDAG draws a random DAG rooted at node "n0" in which every node is
// reachable from the root. Edges only go from lower to higher numbered nodes.
func genDAG(t *rapid.T) *testGraph {
	n := rapid.IntRange(1, 40).Draw(t, "nodes")
	g := newTestGraph()
	name := func(i int) string { return fmt.Sprintf("n%d", i) }
	for j := 1; j < n; j++ {
		p := rapid.IntRange(0, j-1).Draw(t, "parent")
		g.add(name(p), name(j))
		extra := rapid.IntRange(0, 2).Draw(t, "extra")
		for e := 0; e < extra; e++ {
			q := rapid.IntRange(0, j-1).Draw(t, "extraParent")
			if !slices.Contains(g.parents[name(j)], name(q)) {
				g.add(name(q), name(j))
			}
		}
	}
	return g
}

func TestTopologicalValidity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := genDAG(t)
		order := g.topo("n0", nil)
		require.Equal(t, len(g.parents)+1, len(order))
		pos := make(map[string]int, len(order))
		for i, k := range order {
			_, dup := pos[k]
			require.False(t, dup, "%s produced twice", k)
			pos[k] = i
		}
		for parent, kids := range g.children {
			for _, c := range kids {
				require.Less(t, pos[parent], pos[c], "%s -> %s", parent, c)
			}
		}
	})
}

func TestPostOrderValidity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := genDAG(t)
		order := g.post("n0")
		require.Equal(t, len(g.parents)+1, len(order))
		pos := make(map[string]int, len(order))
		for i, k := range order {
			pos[k] = i
		}
		for parent, kids := range g.children {
			for _, c := range kids {
				require.Less(t, pos[c], pos[parent], "%s -> %s", parent, c)
			}
		}
		require.NoError(t, CheckAcyclic("n0", g.getChildren))
	})
}
