// Package dedup detects bibliographic resources that denote the same entity
// because their alias identifier sets intersect, directly or transitively.
package dedup

import (
	"github.com/helixir/citation-index-service/internal/domain"
)

// Components partitions the given alias sets into groups whose members are
// connected by the "alias sets intersect" relation. Groups are ordered by
// their first member and members keep input order.
//
// The method:
//  1. Assigns every set to its own group.
//  2. For each identifier, unions the current set with the first set that
//     carried the same identifier.
//  3. Collects the groups in order of their lowest index.
func Components(sets []domain.IdentifierSet) [][]int {
	uf := newUnionFind(len(sets))
	owner := make(map[string]int)
	for i, s := range sets {
		for id := range s {
			if j, ok := owner[id]; ok {
				uf.union(i, j)
				continue
			}
			owner[id] = i
		}
	}

	index := make(map[int]int)
	var groups [][]int
	for i := range sets {
		root := uf.find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// Resources deduplicates resolved resources. The first resource of each
// component is kept and receives the union of the component's aliases.
func Resources(refs []domain.ResourceRef) []domain.ResourceRef {
	sets := make([]domain.IdentifierSet, len(refs))
	for i, r := range refs {
		sets[i] = r.AliasSet()
	}

	out := make([]domain.ResourceRef, 0, len(refs))
	for _, g := range Components(sets) {
		kept := refs[g[0]]
		seen := domain.NewIdentifierSet(kept.Aliases...)
		aliases := append([]domain.Identifier{}, kept.Aliases...)
		for _, i := range g[1:] {
			for _, id := range append([]domain.Identifier{refs[i].ID}, refs[i].Aliases...) {
				if id.IsZero() || seen.Has(id) || id == kept.ID {
					continue
				}
				seen.Add(id)
				aliases = append(aliases, id)
			}
		}
		kept.Aliases = aliases
		out = append(out, kept)
	}
	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union links the two roots, keeping the lower index as the root.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
