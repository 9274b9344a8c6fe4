package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingNodesReturnsDistinctNodes(t *testing.T) {
	r := New(32)
	r.AddNode("A")
	r.AddNode("B")
	r.AddNode("C")

	nodes := r.Nodes("account/bucket1", 2)
	require.Len(t, nodes, 2)
	assert.NotEqual(t, nodes[0], nodes[1])
}

func TestRingIsDeterministic(t *testing.T) {
	r := New(32)
	r.AddNode("A")
	r.AddNode("B")
	r.AddNode("C")

	first := r.Nodes("account/bucket1", 2)
	second := r.Nodes("account/bucket1", 2)
	assert.Equal(t, first, second)
}

func TestRingRemoveNodeRebalances(t *testing.T) {
	r := New(32)
	r.AddNode("A")
	r.AddNode("B")
	r.AddNode("C")
	assert.Equal(t, 3, r.Len())

	r.RemoveNode("B")
	assert.Equal(t, 2, r.Len())

	for i := 0; i < 50; i++ {
		nodes := r.Nodes(fmt.Sprintf("account/bucket%d", i), 1)
		require.Len(t, nodes, 1)
		assert.NotEqual(t, NodeID("B"), nodes[0])
	}
}

func TestRingFewerNodesThanRequested(t *testing.T) {
	r := New(8)
	r.AddNode("A")
	nodes := r.Nodes("account/bucket1", 3)
	assert.Len(t, nodes, 1)
}

func TestSelectorShardsWork(t *testing.T) {
	r := New(64)
	r.AddNode("A")
	r.AddNode("B")
	r.AddNode("C")

	selA := NewSelector(r, "A", 2)
	selB := NewSelector(r, "B", 2)
	selC := NewSelector(r, "C", 2)

	localCount := 0
	primaryOwners := make(map[NodeID]int)
	selectors := []*Selector{selA, selB, selC}
	for i := 0; i < 200; i++ {
		container := fmt.Sprintf("bucket%d", i)
		for _, sel := range selectors {
			if sel.IsLocalContainer("acct", container) {
				localCount++
			}
		}
		nodes := r.Nodes(fmt.Sprintf("acct/%s", container), 2)
		if len(nodes) > 0 {
			primaryOwners[nodes[0]]++
		}
	}

	assert.Greater(t, localCount, 0)
	// Every node should own some primary share; none should own all of it.
	for _, node := range []NodeID{"A", "B", "C"} {
		assert.Greater(t, primaryOwners[node], 0, "node %s got no primary share", node)
		assert.Less(t, primaryOwners[node], 200, "node %s got the entire primary share", node)
	}
}

func TestSelectorIsPrimaryIsExclusive(t *testing.T) {
	r := New(64)
	r.AddNode("A")
	r.AddNode("B")

	selA := NewSelector(r, "A", 2)
	selB := NewSelector(r, "B", 2)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("obj%d", i)
		primaryA := selA.IsPrimary("acct", "c1", key)
		primaryB := selB.IsPrimary("acct", "c1", key)
		assert.False(t, primaryA && primaryB, "both nodes claimed primary for %s", key)
	}
}
