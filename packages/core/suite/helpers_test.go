package suite

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func failWith(msg string) Effect {
	return func(context.Context) error { return errors.New(msg) }
}

// recorder collects the names of effects in the order they ran.
type recorder struct {
	events []string
}

func (r *recorder) effect(name string) Effect {
	return func(context.Context) error {
		r.events = append(r.events, name)
		return nil
	}
}

func (r *recorder) failing(name, msg string) Effect {
	return func(context.Context) error {
		r.events = append(r.events, name)
		return errors.New(msg)
	}
}

func reportsOf(t *testing.T, g *Group, sort Sorter, predicate Predicate) []*Report {
	t.Helper()
	return slices.Collect(g.Reports(context.Background(), sort, predicate))
}

func descriptions(reports []*Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.Description
	}
	return out
}

// orderBy returns a sorter that places jobs in the given spec description
// order.
func orderBy(names ...string) Sorter {
	return func(jobs []*Job) []*Job {
		out := make([]*Job, 0, len(jobs))
		for _, name := range names {
			for _, job := range jobs {
				if job.Spec.Description() == name {
					out = append(out, job)
				}
			}
		}
		return out
	}
}

func requireArgumentPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error")
		assert.ErrorIs(t, err, ErrArgumentRequired)
		assert.Contains(t, err.Error(), "required")
	}()
	fn()
}
