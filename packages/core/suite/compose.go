package suite

import (
	"context"
	"iter"
)

// Empty returns a synthetic root group with no description.
func Empty(opts ...GroupOption) *Group {
	return newGroup("", opts...)
}

// From combines trees into one. A single tree is returned as is; otherwise
// the trees are re-parented under a new synthetic root.
func From(groups []*Group) *Group {
	if len(groups) == 1 {
		return groups[0]
	}
	root := Empty()
	for _, g := range groups {
		root.adopt(g)
	}
	return root
}

// Of is the variadic form of From.
func Of(groups ...*Group) *Group {
	return From(groups)
}

// Reducer combines two trees. When a is already a synthetic root, b is
// appended to it; otherwise both are placed under a new synthetic root.
func Reducer(a, b *Group) *Group {
	if a.description == "" && a.parent == nil {
		return a.adopt(b)
	}
	return Of(a, b)
}

func (g *Group) adopt(child *Group) *Group {
	g.suites = append(g.suites, child)
	child.parent = g
	return g
}

// Concat returns a new synthetic root holding g followed by others.
func (g *Group) Concat(others ...*Group) *Group {
	return Of(append([]*Group{g}, others...)...)
}

// Generate runs several trees as one unit, yielding a plan, the reports and
// a summary.
func Generate(ctx context.Context, groups []*Group, sort Sorter, predicate Predicate) iter.Seq[Message] {
	return From(groups).Run(ctx, sort, predicate)
}

// ReportsOf runs several trees as one unit, yielding only reports.
func ReportsOf(ctx context.Context, groups []*Group, sort Sorter, predicate Predicate) iter.Seq[*Report] {
	return From(groups).Reports(ctx, sort, predicate)
}
