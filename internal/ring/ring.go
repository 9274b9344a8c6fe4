package ring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// NodeID identifies one peer in the cluster, typically an IP:port pair.
type NodeID string

// Ring is a consistent-hash ring mapping account/container[/object] keys
// onto replica node lists. This is the teacher's checksum library
// (cespare/xxhash, used elsewhere for transfer-chunk verification)
// repurposed for ring-token hashing instead (spec §4.1 implementation
// note).
type Ring struct {
	mu       sync.RWMutex
	replicas int // virtual nodes per physical node
	tokens   []uint64
	tokenMap map[uint64]NodeID
	nodes    map[NodeID]struct{}
}

// New builds an empty ring with the given virtual-node replica count.
// replicas controls token density per physical node, not the container
// replication factor — that is the n argument to Nodes.
func New(replicas int) *Ring {
	if replicas < 1 {
		replicas = 1
	}
	return &Ring{
		replicas: replicas,
		tokenMap: make(map[uint64]NodeID),
		nodes:    make(map[NodeID]struct{}),
	}
}

// AddNode inserts a physical node, minting `replicas` virtual tokens for it.
func (r *Ring) AddNode(node NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; ok {
		return
	}
	r.nodes[node] = struct{}{}

	for i := 0; i < r.replicas; i++ {
		tok := xxhash.Sum64String(fmt.Sprintf("%s#%d", node, i))
		r.tokenMap[tok] = node
		r.tokens = append(r.tokens, tok)
	}
	sort.Slice(r.tokens, func(i, j int) bool { return r.tokens[i] < r.tokens[j] })
}

// RemoveNode evicts a physical node and all its virtual tokens.
func (r *Ring) RemoveNode(node NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; !ok {
		return
	}
	delete(r.nodes, node)

	kept := r.tokens[:0]
	for _, tok := range r.tokens {
		if r.tokenMap[tok] == node {
			delete(r.tokenMap, tok)
			continue
		}
		kept = append(kept, tok)
	}
	r.tokens = kept
}

// Nodes returns the first n distinct physical nodes walking clockwise from
// key's hash position. The first entry is the key's primary node (spec
// §4.1 "Primary node"). Returns fewer than n entries if the ring has fewer
// distinct nodes.
func (r *Ring) Nodes(key string, n int) []NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tokens) == 0 || n <= 0 {
		return nil
	}

	h := xxhash.Sum64String(key)
	idx := sort.Search(len(r.tokens), func(i int) bool { return r.tokens[i] >= h })

	seen := make(map[NodeID]struct{}, n)
	out := make([]NodeID, 0, n)
	for i := 0; i < len(r.tokens) && len(out) < n; i++ {
		tok := r.tokens[(idx+i)%len(r.tokens)]
		node := r.tokenMap[tok]
		if _, dup := seen[node]; dup {
			continue
		}
		seen[node] = struct{}{}
		out = append(out, node)
	}
	return out
}

// Len returns the number of distinct physical nodes in the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
