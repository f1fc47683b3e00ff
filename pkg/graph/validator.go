package graph

import "github.com/dukex/chatflow/pkg/models"

// CanConnect reports whether an edge source -> target may be added.
//
// Message nodes are convergence points and accept any number of incoming
// edges. Every other node accepts at most one, so branches only re-join at
// an explicit reply. Both endpoints must exist.
func CanConnect(s *Store, source, target string) bool {
	if _, ok := s.nodes[source]; !ok {
		return false
	}

	targetNode, ok := s.nodes[target]
	if !ok {
		return false
	}

	if targetNode.Type == models.NodeKindMessage {
		return true
	}

	return len(s.incoming[target]) == 0
}
