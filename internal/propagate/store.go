// Package propagate implements synchronous minimum-label propagation over a
// collective group. Every member runs the same loop on its own Store; the
// reductions keep the stores identical after each iteration.
package propagate

import (
	"github.com/hurou927/spmd-components/internal/graph"
)

// Store holds one member's labeling and the scratch buffer of the iteration
// in progress.
type Store struct {
	comp []int
	next []int
}

// NewStore returns a labeling of n singleton components, comp[i] = i.
func NewStore(n int) *Store {
	s := &Store{comp: make([]int, n), next: make([]int, n)}
	for i := range s.comp {
		s.comp[i] = i
	}
	return s
}

// Len is the number of vertices.
func (s *Store) Len() int { return len(s.comp) }

// Labels returns the current labeling. The slice is owned by the Store and
// changes on the next iteration.
func (s *Store) Labels() []int { return s.comp }

// Relax computes the candidate labeling for this iteration into the Store's
// next buffer and reports whether any local label dropped.
func (s *Store) Relax(edges []graph.Edge) bool {
	return Relax(edges, s.comp, s.next)
}

// swap makes next the current labeling.
func (s *Store) swap() {
	s.comp, s.next = s.next, s.comp
}

// Relax copies comp into next, then lowers both endpoints of every edge in
// next to the smaller of their labels in comp. comp is not modified.
func Relax(edges []graph.Edge, comp, next []int) bool {
	copy(next, comp)
	changed := false
	for _, e := range edges {
		m := min(comp[e.U], comp[e.V])
		if next[e.U] > m {
			next[e.U] = m
			changed = true
		}
		if next[e.V] > m {
			next[e.V] = m
			changed = true
		}
	}
	return changed
}
