package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
	"github.com/abdul-hamid-achik/hitsuite/packages/timing"
)

func pass(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("boom") }

// build constructs a tree with the runner's listeners attached.
func build(r *Runner, closure func(*suite.Group)) *suite.Group {
	root := suite.New("root", suite.WithListeners(r.Listeners()))
	closure(root)
	return root
}

func descriptions(reports []*suite.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.Description
	}
	return out
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r.config)
		assert.NotNil(t, r.Listeners())
		assert.Nil(t, r.limiter)
		assert.Len(t, r.Listeners().Pending, 1, "timing only")
	})

	t.Run("with a rate", func(t *testing.T) {
		r := NewRunner(&Config{Rate: 2.5})
		require.NotNil(t, r.limiter)
		assert.Equal(t, 2, r.limiter.Burst())
		assert.Len(t, r.Listeners().Pending, 2)
	})
}

func TestRunner_Run(t *testing.T) {
	r := NewRunner(&Config{Order: "declared"})
	root := build(r, func(g *suite.Group) {
		g.It("passes", pass)
		g.It("fails", fail)
		g.XIt("skipped", pass)
	})

	var kinds []string
	result, err := r.Run(context.Background(), root, func(msg suite.Message) {
		kinds = append(kinds, msg.Kind())
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"plan", "report", "report", "report", "summary"}, kinds)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "declared", result.Order)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Planned)
	assert.Equal(t, []string{"root passes", "root fails", "root skipped"}, descriptions(result.Reports))
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.False(t, result.Passed())
	assert.False(t, result.Bailed)
	assert.Equal(t, int64(2), result.Timing.Count)
	assert.Len(t, result.Slowest, 2)

	_, ok := result.Reports[0].Get(timing.FieldElapsed)
	assert.True(t, ok)
}

func TestRunner_RunIDsDiffer(t *testing.T) {
	r := NewRunner(&Config{Order: "declared"})
	root := build(r, func(g *suite.Group) { g.It("a", pass) })

	first, err := r.Run(context.Background(), root, nil)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), root, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1), second.Timing.Count, "metrics reset between runs")
}

func TestRunner_Order(t *testing.T) {
	specs := func(g *suite.Group) {
		for _, name := range []string{"c", "a", "e", "b", "d", "f", "h", "g"} {
			g.It(name, pass)
		}
	}

	t.Run("alpha", func(t *testing.T) {
		r := NewRunner(&Config{Order: "alpha"})
		result, err := r.Run(context.Background(), build(r, specs), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"root a", "root b", "root c", "root d", "root e", "root f", "root g", "root h"},
			descriptions(result.Reports))
	})

	t.Run("random is reproducible by seed", func(t *testing.T) {
		r := NewRunner(&Config{})
		first, err := r.Run(context.Background(), build(r, specs), nil)
		require.NoError(t, err)
		assert.Equal(t, "random", first.Order)
		assert.NotZero(t, first.Seed)

		replay := NewRunner(&Config{Seed: first.Seed})
		second, err := replay.Run(context.Background(), build(replay, specs), nil)
		require.NoError(t, err)
		assert.Equal(t, first.Seed, second.Seed)
		assert.Equal(t, descriptions(first.Reports), descriptions(second.Reports))
	})

	t.Run("unknown", func(t *testing.T) {
		r := NewRunner(&Config{Order: "sideways"})
		_, err := r.Run(context.Background(), build(r, specs), nil)
		assert.ErrorContains(t, err, "unknown order")
	})
}

func TestRunner_Selection(t *testing.T) {
	tree := func(g *suite.Group) {
		g.Describe("users", func(g *suite.Group) {
			g.It("create", pass).Info(suite.Tag("smoke"))
			g.It("delete", pass)
		})
		g.Describe("orders", func(g *suite.Group) {
			g.It("list", pass).Info(suite.Tag("smoke"))
			g.It("cancel", pass)
		})
	}

	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"filter", Config{Filter: "*users*"}, []string{"root users create", "root users delete"}},
		{"grep", Config{Grep: "(list|cancel)$"}, []string{"root orders list", "root orders cancel"}},
		{"tags", Config{Tags: []string{"smoke"}}, []string{"root users create", "root orders list"}},
		{"partition", Config{Partition: "2/2"}, []string{"root orders list", "root orders cancel"}},
		{"combined", Config{Tags: []string{"smoke"}, Filter: "orders"}, []string{"root orders list"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Order = "declared"
			r := NewRunner(&cfg)
			result, err := r.Run(context.Background(), build(r, tree), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, descriptions(result.Reports))
			assert.Equal(t, 4, result.Total)
			assert.Equal(t, len(tt.want), result.Planned)
		})
	}

	t.Run("invalid grep", func(t *testing.T) {
		r := NewRunner(&Config{Grep: "("})
		_, err := r.Run(context.Background(), build(r, tree), nil)
		assert.Error(t, err)
	})

	t.Run("invalid partition", func(t *testing.T) {
		r := NewRunner(&Config{Partition: "3/2"})
		_, err := r.Run(context.Background(), build(r, tree), nil)
		assert.Error(t, err)
	})
}

func TestRunner_Bail(t *testing.T) {
	var events []string
	r := NewRunner(&Config{Order: "declared", Bail: true})
	root := build(r, func(g *suite.Group) {
		g.Describe("first", func(g *suite.Group) {
			g.AfterAll(func(context.Context) error {
				events = append(events, "first closed")
				return nil
			})
			g.It("fails", fail)
			g.It("never runs", pass)
		})
		g.AfterAll(func(context.Context) error {
			events = append(events, "root closed")
			return errors.New("teardown failed")
		})
		g.It("runs first", pass)
	})

	var kinds []string
	result, err := r.Run(context.Background(), root, func(msg suite.Message) {
		kinds = append(kinds, msg.Kind())
	})
	require.NoError(t, err)

	assert.True(t, result.Bailed)
	assert.Equal(t, []string{"root runs first", "root first fails"}, descriptions(result.Reports))
	assert.Equal(t, []string{"first closed", "root closed"}, events)
	require.Len(t, result.Teardown, 1)
	assert.Equal(t, "after-all: root", result.Teardown[0].Description)
	assert.Equal(t, 2, result.Summary.Completed)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, []string{"plan", "report", "report", "report", "summary"}, kinds)
	assert.False(t, result.Passed())
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(&Config{Order: "declared"})
	root := build(r, func(g *suite.Group) {
		g.It("cancels", func(context.Context) error {
			cancel()
			return nil
		})
		g.It("never runs", pass)
	})

	result, err := r.Run(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, []string{"root cancels"}, descriptions(result.Reports))
	assert.Equal(t, 1, result.Summary.Completed)
	assert.False(t, root.IsOpen(), "teardown closes the root")
}

func TestRunner_Rate(t *testing.T) {
	r := NewRunner(&Config{Order: "declared", Rate: 20})
	root := build(r, func(g *suite.Group) {
		for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
			g.It(name, pass)
		}
	})

	start := time.Now()
	result, err := r.Run(context.Background(), root, nil)
	require.NoError(t, err)
	assert.True(t, result.Passed())
	// Burst of 20 covers every spec.
	assert.Less(t, time.Since(start), time.Second)

	slow := NewRunner(&Config{Order: "declared", Rate: 10})
	slowRoot := build(slow, func(g *suite.Group) {
		for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m"} {
			g.It(name, pass)
		}
	})
	start = time.Now()
	_, err = slow.Run(context.Background(), slowRoot, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}
