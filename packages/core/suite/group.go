package suite

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Group is a node of the tree: it owns specs, child groups, hooks, and the
// lifecycle state used while a run is in progress.
type Group struct {
	description string
	parent      *Group
	specs       []*Spec
	suites      []*Group
	hooks       *Hooks
	listeners   *Listeners
	meta        Meta
	log         *zap.Logger

	skipped   bool
	focused   bool
	focusMode bool
	opened    bool
	computed  *computedHooks
}

type computedHooks struct {
	beforeEach []*Hook
	afterEach  []*Hook
}

// Options are per-call construction options. They can only force skipping
// or focusing; a value inherited from the parent is never relaxed.
type Options struct {
	Skipped bool
	Focused bool
}

func mergeOptions(opts []Options) Options {
	var merged Options
	for _, o := range opts {
		merged.Skipped = merged.Skipped || o.Skipped
		merged.Focused = merged.Focused || o.Focused
	}
	return merged
}

// GroupOption configures a root group created with New or Describe.
type GroupOption func(*Group)

// WithListeners installs a copy of the given listeners on the new group.
// Descendants share that copy.
func WithListeners(l *Listeners) GroupOption {
	return func(g *Group) {
		g.listeners = l.copy()
	}
}

// WithSkipped creates the group skipped.
func WithSkipped() GroupOption {
	return func(g *Group) {
		g.skipped = true
	}
}

// WithFocused creates the group focused.
func WithFocused() GroupOption {
	return func(g *Group) {
		g.focused = true
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *zap.Logger) GroupOption {
	return func(g *Group) {
		if l != nil {
			g.log = l
		}
	}
}

// New creates a root group. It panics with ErrArgumentRequired when the
// description is empty; use Empty for a synthetic root.
func New(description string, opts ...GroupOption) *Group {
	if description == "" {
		required("description")
	}
	return newGroup(description, opts...)
}

// Describe creates a root group and runs closure on it immediately.
func Describe(description string, closure func(*Group), opts ...GroupOption) *Group {
	g := New(description, opts...)
	if closure != nil {
		closure(g)
	}
	return g
}

func newGroup(description string, opts ...GroupOption) *Group {
	g := &Group{
		description: description,
		hooks:       &Hooks{},
		listeners:   &Listeners{},
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Group) Description() string { return g.description }

func (g *Group) Parent() *Group { return g.parent }

func (g *Group) Specs() []*Spec { return slices.Clone(g.specs) }

func (g *Group) Suites() []*Group { return slices.Clone(g.suites) }

func (g *Group) Hooks() *Hooks { return g.hooks }

func (g *Group) Listeners() *Listeners { return g.listeners }

func (g *Group) Meta() Meta { return g.meta.clone() }

func (g *Group) Skipped() bool { return g.skipped }

func (g *Group) Focused() bool { return g.focused }

// IsOpen reports whether the group's before-all hooks have run and its
// after-all hooks have not run since.
func (g *Group) IsOpen() bool { return g.opened }

// IsFocusMode reports whether unfocused specs of this group are treated as
// skipped.
func (g *Group) IsFocusMode() bool { return g.focusMode }

// SetFocusMode turns focus mode on for the group and every descendant that
// exists at the time of the call. Focus mode cannot be turned off again.
func (g *Group) SetFocusMode(on bool) {
	if !on {
		return
	}
	g.focusMode = true
	for _, child := range g.suites {
		child.SetFocusMode(true)
	}
}

// IsDeeplyFocused reports whether any descendant spec or group is focused.
func (g *Group) IsDeeplyFocused() bool {
	for _, spec := range g.specs {
		if spec.focused {
			return true
		}
	}
	for _, child := range g.suites {
		if child.focused || child.IsDeeplyFocused() {
			return true
		}
	}
	return false
}

// SetLogger replaces the logger of the group and its current descendants.
func (g *Group) SetLogger(l *zap.Logger) *Group {
	if l == nil {
		l = zap.NewNop()
	}
	g.log = l
	for _, child := range g.suites {
		child.SetLogger(l)
	}
	return g
}

func (g *Group) Timeout(d time.Duration) *Group {
	g.meta.Timeout = d
	return g
}

func (g *Group) Info(info any) *Group {
	g.meta.Infos = append(g.meta.Infos, info)
	return g
}

func (g *Group) BeforeAll(effect Effect) *Hook {
	return g.addHook(HookBeforeAll, effect)
}

func (g *Group) AfterAll(effect Effect) *Hook {
	return g.addHook(HookAfterAll, effect)
}

func (g *Group) BeforeEach(effect Effect) *Hook {
	return g.addHook(HookBeforeEach, effect)
}

func (g *Group) AfterEach(effect Effect) *Hook {
	return g.addHook(HookAfterEach, effect)
}

func (g *Group) addHook(name HookName, effect Effect) *Hook {
	if effect == nil {
		required(string(name) + " effect")
	}
	hook := newHook(name, g, effect)
	g.hooks.add(hook)
	return hook
}

// It declares a spec. A nil effect declares a stub, which is always skipped.
func (g *Group) It(description string, effect Effect, opts ...Options) *Spec {
	if description == "" {
		required("description")
	}
	o := mergeOptions(opts)
	spec := &Spec{
		Hook:        Hook{name: HookSpec, parent: g, effect: effect},
		description: description,
		skipped:     effect == nil || g.skipped || o.Skipped,
		focused:     g.focused || o.Focused,
	}
	if spec.focused {
		g.SetFocusMode(true)
	}
	g.specs = append(g.specs, spec)
	return spec
}

// FIt declares a focused spec; the effect is required.
func (g *Group) FIt(description string, effect Effect, opts ...Options) *Spec {
	if effect == nil {
		required("effect")
	}
	return g.It(description, effect, append(opts, Options{Focused: true})...)
}

// XIt declares a skipped spec.
func (g *Group) XIt(description string, effect Effect, opts ...Options) *Spec {
	return g.It(description, effect, append(opts, Options{Skipped: true})...)
}

// Describe declares a child group and runs closure on it immediately.
func (g *Group) Describe(description string, closure func(*Group), opts ...Options) *Group {
	if description == "" {
		required("description")
	}
	if closure == nil {
		required("closure")
	}
	child := g.child(description, mergeOptions(opts))
	closure(child)
	g.suites = append(g.suites, child)
	return child
}

func (g *Group) FDescribe(description string, closure func(*Group), opts ...Options) *Group {
	return g.Describe(description, closure, append(opts, Options{Focused: true})...)
}

func (g *Group) XDescribe(description string, closure func(*Group), opts ...Options) *Group {
	return g.Describe(description, closure, append(opts, Options{Skipped: true})...)
}

// DescribeEach declares a table group with one child group per row. Row
// groups inherit the table group's skip and focus values.
func (g *Group) DescribeEach(description string, table []any, closure func(*Group, any), opts ...Options) *Group {
	if description == "" {
		required("description")
	}
	if closure == nil {
		required("closure")
	}
	tableGroup := g.child(description, mergeOptions(opts))
	for _, row := range table {
		tableGroup.Describe(rowDescription(description, row), func(child *Group) {
			closure(child, row)
		})
	}
	g.suites = append(g.suites, tableGroup)
	return tableGroup
}

func (g *Group) FDescribeEach(description string, table []any, closure func(*Group, any), opts ...Options) *Group {
	return g.DescribeEach(description, table, closure, append(opts, Options{Focused: true})...)
}

func (g *Group) XDescribeEach(description string, table []any, closure func(*Group, any), opts ...Options) *Group {
	return g.DescribeEach(description, table, closure, append(opts, Options{Skipped: true})...)
}

// child builds a group inheriting the current skip and focus values. A
// focused child puts g into focus mode before the child is attached.
func (g *Group) child(description string, o Options) *Group {
	child := &Group{
		description: description,
		parent:      g,
		hooks:       &Hooks{},
		listeners:   g.listeners,
		log:         g.log,
		skipped:     g.skipped || o.Skipped,
		focused:     g.focused || o.Focused,
	}
	if child.focused {
		g.SetFocusMode(true)
	}
	return child
}

func rowDescription(description string, row any) string {
	return fmt.Sprintf("%s [%v]", description, row)
}
