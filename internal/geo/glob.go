package geo

import (
	"path"
	"sort"
	"strings"
)

// FindGroups returns the names of all groups matching a shell-style
// wildcard pattern (`*`, `?`, character classes), sorted. A malformed
// pattern matches nothing.
func (g *Geometry) FindGroups(pattern string) []string {
	var names []string
	for name := range g.groups {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GlobPrims resolves a space-separated group pattern into a sorted set of
// primitive indices. Each term is a shell-style wildcard over group
// names. Plain terms accumulate by union; a term with a leading `!`
// intersects the running set with the term's complement. A `!` term in
// first position starts from all primitives, so "!a !b" selects
// everything outside groups a and b.
func (g *Geometry) GlobPrims(pattern string) []int {
	sel := make([]bool, len(g.prims))
	first := true

	for _, term := range strings.Fields(pattern) {
		if neg := strings.HasPrefix(term, "!"); neg {
			term = term[1:]
			if term == "" {
				continue
			}
			if first {
				for i := range sel {
					sel[i] = true
				}
			}
			matched := g.matchGroupPrims(term)
			for i := range sel {
				if matched[i] {
					sel[i] = false
				}
			}
		} else {
			matched := g.matchGroupPrims(term)
			for i := range matched {
				if matched[i] {
					sel[i] = true
				}
			}
		}
		first = false
	}

	var out []int
	for i, in := range sel {
		if in {
			out = append(out, i)
		}
	}
	return out
}

// matchGroupPrims marks every primitive belonging to a group whose name
// matches the wildcard term.
func (g *Geometry) matchGroupPrims(term string) []bool {
	matched := make([]bool, len(g.prims))
	for name, members := range g.groups {
		if ok, err := path.Match(term, name); err != nil || !ok {
			continue
		}
		for _, m := range members {
			matched[m] = true
		}
	}
	return matched
}

// IsolateGroups reduces the geometry to a kept set selected by group
// names. With inverse false the named groups are kept and everything
// else deleted; with inverse true the named groups are deleted and the
// complement kept. No names is a no-op.
func (g *Geometry) IsolateGroups(names []string, inverse bool) {
	if len(names) == 0 {
		return
	}

	var pattern string
	if inverse {
		pattern = "!" + strings.Join(names, " !")
	} else {
		pattern = strings.Join(names, " ")
	}

	keep := make([]bool, len(g.prims))
	for _, p := range g.GlobPrims(pattern) {
		keep[p] = true
	}

	var del []int
	for i := range g.prims {
		if !keep[i] {
			del = append(del, i)
		}
	}
	g.DeletePrims(del)
}
