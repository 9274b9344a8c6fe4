package ring

import "fmt"

// Selector answers locality questions for one local node against a shared
// Ring, implementing spec §4.1 exactly. With N container replicas, each
// node processes roughly 1/N of objects in the primary phase; all nodes
// re-scan the remainder in a verify phase so coverage survives a primary
// crashing mid-pass.
type Selector struct {
	ring      *Ring
	self      NodeID
	replicas  int // container replica count (distinct from Ring's virtual-node replicas)
}

// NewSelector binds a Selector to a Ring, the local node's identity, and
// the container replication factor to request from the ring on each
// lookup.
func NewSelector(r *Ring, self NodeID, containerReplicas int) *Selector {
	if containerReplicas < 1 {
		containerReplicas = 1
	}
	return &Selector{ring: r, self: self, replicas: containerReplicas}
}

func containerKey(account, container string) string {
	return fmt.Sprintf("%s/%s", account, container)
}

func objectKey(account, container, object string) string {
	return fmt.Sprintf("%s/%s/%s", account, container, object)
}

// IsLocalContainer reports whether any of the container's replica nodes is
// this node — true for both the primary and handoff replicas.
func (s *Selector) IsLocalContainer(account, container string) bool {
	for _, n := range s.ring.Nodes(containerKey(account, container), s.replicas) {
		if n == s.self {
			return true
		}
	}
	return false
}

// IsPrimary reports whether this node is the first replica returned for
// the object key — the node that drains it from the primary queue. All
// other replica nodes hold it in the verify queue instead.
func (s *Selector) IsPrimary(account, container, object string) bool {
	nodes := s.ring.Nodes(objectKey(account, container, object), s.replicas)
	return len(nodes) > 0 && nodes[0] == s.self
}

// Self returns the node identity this selector was built with.
func (s *Selector) Self() NodeID {
	return s.self
}
