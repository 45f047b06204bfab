package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

func pass(context.Context) error { return nil }

func tree() *suite.Group {
	root := suite.New("api")
	root.Describe("users", func(g *suite.Group) {
		g.Info(suite.Tag("slow"))
		g.It("creates a user", pass).Info(suite.Tag("smoke"))
		g.It("deletes a user", pass)
	})
	root.Describe("orders", func(g *suite.Group) {
		g.It("lists orders", pass).Info(suite.Tag("smoke"))
		g.It("cancels an order", pass).Info("not a tag")
	})
	return root
}

func selected(g *suite.Group, p suite.Predicate) []string {
	var out []string
	for r := range g.Reports(context.Background(), suite.Declared, p) {
		out = append(out, r.Description)
	}
	return out
}

func TestFilter(t *testing.T) {
	g := tree()

	assert.Equal(t, []string{"api users creates a user", "api users deletes a user"},
		selected(g, Filter("users")))
	assert.Equal(t, []string{"api users creates a user"}, selected(g, Filter("*creates*")))
	assert.Equal(t, []string{"api orders lists orders"}, selected(g, Filter("api orders l?sts *")))
	assert.Equal(t, []string{"api orders cancels an order"}, selected(g, Filter("*order")))
	assert.Nil(t, Filter(""))
}

func TestGrep(t *testing.T) {
	g := tree()

	p, err := Grep(`(creates|cancels) an? `)
	require.NoError(t, err)
	assert.Equal(t, []string{"api users creates a user", "api orders cancels an order"}, selected(g, p))

	_, err = Grep("(")
	assert.Error(t, err)

	p, err = Grep("")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestTags(t *testing.T) {
	g := tree()

	assert.Equal(t, []string{"api users creates a user", "api orders lists orders"},
		selected(g, Tags("smoke")))
	assert.Equal(t, []string{"api users creates a user", "api users deletes a user"},
		selected(g, Tags("slow")), "group tags are inherited")
	assert.Equal(t, []string{"api orders lists orders"}, selected(g, Tags("smoke", "!slow")))
	assert.Equal(t, []string{"api orders lists orders", "api orders cancels an order"},
		selected(g, Tags("!slow")))
	assert.Nil(t, Tags(" ", ""))
}

func TestTagsOf(t *testing.T) {
	g := tree()
	var tags [][]suite.Tag
	for job := range g.OrderedJobs() {
		tags = append(tags, TagsOf(job))
	}
	assert.Equal(t, [][]suite.Tag{
		{"smoke", "slow"},
		{"slow"},
		{"smoke"},
		nil,
	}, tags)
}

func TestPartition(t *testing.T) {
	g := suite.New("p")
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		g.It(name, pass)
	}

	var all []string
	for i := range 3 {
		p, err := Partition(5, i, 3)
		require.NoError(t, err)
		part := selected(g, p)
		assert.NotEmpty(t, part)
		all = append(all, part...)
	}
	assert.Equal(t, []string{"p a", "p b", "p c", "p d", "p e"}, all)

	first, _ := Partition(5, 0, 3)
	assert.Equal(t, []string{"p a", "p b"}, selected(g, first))

	_, err := Partition(5, 3, 3)
	assert.Error(t, err)
	_, err = Partition(5, 0, 0)
	assert.Error(t, err)
}

func TestParsePartition(t *testing.T) {
	index, count, err := ParsePartition("2/4")
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, 4, count)

	for _, bad := range []string{"0/4", "5/4", "x", "1/0"} {
		_, _, err := ParsePartition(bad)
		assert.Error(t, err, bad)
	}
}

func TestCombinators(t *testing.T) {
	g := tree()
	smoke := Tags("smoke")
	users := Filter("users")

	assert.Equal(t, []string{"api users creates a user"}, selected(g, All(smoke, users, nil)))
	assert.Len(t, selected(g, Any(smoke, users)), 3)
	assert.Equal(t, []string{"api users deletes a user", "api orders cancels an order"},
		selected(g, Not(smoke)))
	assert.Len(t, selected(g, All()), 4)
	assert.Empty(t, selected(g, Any()))
}
