// Package suite is the execution core of hitsuite: a tree of nested groups
// and leaf specs with inherited setup/teardown hooks, focus/skip filtering,
// and shuffled or declared-order execution that streams reports lazily.
//
// A tree is built with declarative construction calls:
//
//	root := suite.Describe("math", func(g *suite.Group) {
//	    g.BeforeEach(resetState)
//	    g.It("adds", func(ctx context.Context) error { ... })
//	    g.Describe("division", func(g *suite.Group) {
//	        g.It("by zero", nil) // a stub, reported as skipped
//	    })
//	})
//
// and executed with Reports or Run, both of which return iterators:
//
//	for msg := range root.Run(ctx, suite.Declared, nil) {
//	    ...
//	}
//
// Groups open lazily the first time one of their specs is scheduled and
// close as soon as no further scheduled spec needs them. Execution is
// strictly sequential; breaking out of the range loop stops the run and
// leaves any open group open.
package suite
