package suite

import (
	"context"
	"errors"
	"iter"
	"slices"

	"go.uber.org/zap"
)

// Sorter rearranges the enumerated jobs of a run. It must not alter the
// jobs themselves; Series is reassigned from the returned order.
type Sorter func(jobs []*Job) []*Job

// Predicate selects the jobs that are planned for a run.
type Predicate func(job *Job) bool

func acceptAll(*Job) bool { return true }

// Reports executes the tree rooted at g and yields one report per planned
// spec, plus one report per failing hook. A nil sort shuffles; a nil
// predicate plans every job. Each call re-enumerates and re-executes.
func (g *Group) Reports(ctx context.Context, sort Sorter, predicate Predicate) iter.Seq[*Report] {
	return func(yield func(*Report) bool) {
		_, prepared := g.prepare(sort, predicate)
		g.execute(ctx, prepared, yield)
	}
}

// Run is Reports framed by a leading Plan and a trailing Summary.
func (g *Group) Run(ctx context.Context, sort Sorter, predicate Predicate) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		total, prepared := g.prepare(sort, predicate)
		summary := &Summary{Total: total, Planned: len(prepared)}
		if !yield(&Plan{Total: summary.Total, Planned: summary.Planned}) {
			return
		}

		halted := false
		g.execute(ctx, prepared, func(report *Report) bool {
			if report.OK {
				summary.OK++
			}
			if report.Skipped {
				summary.Skipped++
			}
			summary.Completed++
			if !yield(report) {
				halted = true
				return false
			}
			return true
		})
		if halted {
			return
		}
		summary.Failed = summary.Completed - summary.OK
		yield(summary)
	}
}

// prepare enumerates, sorts, renumbers and filters the jobs of the tree.
func (g *Group) prepare(sort Sorter, predicate Predicate) (int, []*Job) {
	if sort == nil {
		sort = Shuffle
	}
	if predicate == nil {
		predicate = acceptAll
	}
	jobs := slices.Collect(g.OrderedJobs())
	total := len(jobs)
	sorted := sort(jobs)
	for i, job := range sorted {
		job.Series = i
	}
	return total, slices.DeleteFunc(sorted, func(job *Job) bool { return !predicate(job) })
}

// execute runs the prepared jobs in order. A group whose spec fails with a
// hook error is poisoned: its remaining specs are skipped without reports.
// After each job, every ancestor that no remaining job needs is closed.
func (g *Group) execute(ctx context.Context, jobs []*Job, yield emit) {
	remaining := countGroups(jobs)
	poisoned := make(map[*Group]bool)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			g.log.Debug("run cancelled", zap.Error(err))
			return
		}
		if !poisoned[job.Group] {
			if err := job.Group.runSpec(ctx, job.Spec, yield); err != nil {
				if errors.Is(err, errHalted) {
					return
				}
				poisoned[job.Group] = true
				g.log.Warn("group poisoned",
					zap.String("group", job.Group.Prefixed("")),
					zap.Error(err),
				)
			}
		}
		if !g.release(ctx, remaining, job.Group, yield) {
			return
		}
	}
}

func countGroups(jobs []*Job) map[*Group]int {
	counts := make(map[*Group]int)
	for _, job := range jobs {
		for node := range job.Group.AndParents() {
			counts[node]++
		}
	}
	return counts
}

// release decrements the remaining count of group and its ancestors and
// closes those that reach zero. It returns false if the consumer stopped.
func (g *Group) release(ctx context.Context, remaining map[*Group]int, group *Group, yield emit) bool {
	for node := range group.AndParents() {
		remaining[node]--
		if remaining[node] != 0 {
			continue
		}
		if err := node.close(ctx, yield); err != nil {
			if errors.Is(err, errHalted) {
				return false
			}
			g.log.Warn("group failed to close",
				zap.String("group", node.Prefixed("")),
				zap.Error(err),
			)
		}
	}
	return true
}
