package suite

import (
	"context"
	"time"
)

// Effect is a deferred unit of work: a spec body or a hook. Returning an
// error or panicking marks it as failed.
type Effect func(ctx context.Context) error

// HookName identifies the role of a Hook.
type HookName string

const (
	HookBeforeAll  HookName = "before-all"
	HookAfterAll   HookName = "after-all"
	HookBeforeEach HookName = "before-each"
	HookAfterEach  HookName = "after-each"
	HookSpec       HookName = "spec"
)

// Meta is descriptive metadata attached to hooks, specs and groups. The
// timeout is never enforced by the engine itself.
type Meta struct {
	Timeout time.Duration
	Infos   []any
}

func (m Meta) clone() Meta {
	if m.Infos != nil {
		m.Infos = append([]any(nil), m.Infos...)
	}
	return m
}

// Hook is a named effect bound to the group that owns it.
type Hook struct {
	name   HookName
	effect Effect
	parent *Group
	meta   Meta
}

func newHook(name HookName, parent *Group, effect Effect) *Hook {
	return &Hook{name: name, parent: parent, effect: effect}
}

func (h *Hook) Name() HookName { return h.name }

func (h *Hook) Parent() *Group { return h.parent }

func (h *Hook) Effect() Effect { return h.effect }

func (h *Hook) Meta() Meta { return h.meta.clone() }

// Timeout records a timeout for a surrounding runner to enforce.
func (h *Hook) Timeout(d time.Duration) *Hook {
	h.meta.Timeout = d
	return h
}

// Info appends an annotation.
func (h *Hook) Info(info any) *Hook {
	h.meta.Infos = append(h.meta.Infos, info)
	return h
}

// Run executes the hook in the context of its owning group, outside of any
// scheduled run. A failure yields one report and a *HookError.
func (h *Hook) Run(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	err := h.parent.runHook(ctx, h, h.parent.description, collect(&reports))
	return reports, err
}

// Spec is a leaf test case. Specs are created by their owning group only.
type Spec struct {
	Hook
	description string
	focused     bool
	skipped     bool
}

func (s *Spec) Description() string { return s.description }

func (s *Spec) Focused() bool { return s.focused }

func (s *Spec) Skipped() bool { return s.skipped }

func (s *Spec) Timeout(d time.Duration) *Spec {
	s.Hook.Timeout(d)
	return s
}

func (s *Spec) Info(info any) *Spec {
	s.Hook.Info(info)
	return s
}

// Run executes just this spec through its owning group, opening the group
// (and its ancestors) if needed. The group is not closed afterwards.
func (s *Spec) Run(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	err := s.parent.runSpec(ctx, s, collect(&reports))
	return reports, err
}

// Tag is an annotation recognized by tag-based selection.
type Tag string

type specKey struct{}

type groupKey struct{}

func withSpec(ctx context.Context, spec *Spec) context.Context {
	return context.WithValue(ctx, specKey{}, spec)
}

func withGroup(ctx context.Context, g *Group) context.Context {
	return context.WithValue(ctx, groupKey{}, g)
}

// SpecFromContext returns the spec an effect is executing for. It is set for
// spec bodies and for before-each and after-each hooks.
func SpecFromContext(ctx context.Context) (*Spec, bool) {
	spec, ok := ctx.Value(specKey{}).(*Spec)
	return spec, ok
}

// GroupFromContext returns the group whose hook or spec is executing.
func GroupFromContext(ctx context.Context) (*Group, bool) {
	g, ok := ctx.Value(groupKey{}).(*Group)
	return g, ok
}

// invoke runs an effect, converting a panic into a *PanicError.
func invoke(ctx context.Context, effect Effect) (err error) {
	if effect == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return effect(ctx)
}
