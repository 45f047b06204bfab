package suite

import (
	"iter"
	"slices"
	"strings"
)

// Job is one scheduled unit of work: a spec and the group that runs it.
// Series is the job's position, first in enumeration order and then in the
// sorted order of a run.
type Job struct {
	Spec   *Spec
	Group  *Group
	Series int
}

// OrderedJobs enumerates the jobs of the tree in preorder: a group's own
// specs in declaration order, then each child group's jobs in declaration
// order, numbered by a single counter.
func (g *Group) OrderedJobs() iter.Seq[*Job] {
	return func(yield func(*Job) bool) {
		series := 0
		g.walkJobs(&series, yield)
	}
}

func (g *Group) walkJobs(series *int, yield func(*Job) bool) bool {
	for _, spec := range g.specs {
		if !yield(&Job{Spec: spec, Group: g, Series: *series}) {
			return false
		}
		*series++
	}
	for _, child := range g.suites {
		if !child.walkJobs(series, yield) {
			return false
		}
	}
	return true
}

// AndParents yields the group itself followed by its ancestors, nearest
// first.
func (g *Group) AndParents() iter.Seq[*Group] {
	return func(yield func(*Group) bool) {
		for node := g; node != nil; node = node.parent {
			if !yield(node) {
				return
			}
		}
	}
}

// Prefixed joins the non-empty ancestor descriptions (root first), the
// group's own description and the given description with single spaces.
func (g *Group) Prefixed(description string) string {
	var segments []string
	for node := range g.AndParents() {
		if node.description != "" {
			segments = append(segments, node.description)
		}
	}
	slices.Reverse(segments)
	if description != "" {
		segments = append(segments, description)
	}
	return strings.Join(segments, " ")
}
