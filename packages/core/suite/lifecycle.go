package suite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Open runs the before-all hooks of the group's ancestors (root first) and
// then of the group itself, unless they are already open. The first
// failing hook yields a report and a *HookError; the group stays closed.
func (g *Group) Open(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	err := g.open(ctx, collect(&reports))
	return reports, err
}

// Close runs the group's after-all hooks in reverse registration order if
// the group is open. Close never touches parents or children.
func (g *Group) Close(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	err := g.close(ctx, collect(&reports))
	return reports, err
}

func (g *Group) open(ctx context.Context, yield emit) error {
	if g.opened {
		return nil
	}
	if g.parent != nil {
		if err := g.parent.open(ctx, yield); err != nil {
			return err
		}
	}
	for _, hook := range g.hooks.BeforeAll {
		if err := g.runHook(ctx, hook, g.description, yield); err != nil {
			return err
		}
	}
	g.opened = true
	g.computeHooks()
	g.log.Debug("group opened", zap.String("group", g.Prefixed("")))
	return nil
}

func (g *Group) close(ctx context.Context, yield emit) error {
	if !g.opened {
		return nil
	}
	for _, hook := range g.hooks.AfterAll {
		if err := g.runHook(ctx, hook, g.description, yield); err != nil {
			return err
		}
	}
	g.opened = false
	g.log.Debug("group closed", zap.String("group", g.Prefixed("")))
	return nil
}

// runHook executes one hook. A failure is reported as "<hook>: <subject>"
// and returned as a *HookError so that the caller stops its hook chain.
func (g *Group) runHook(ctx context.Context, hook *Hook, subject string, yield emit) error {
	err := invoke(withGroup(ctx, hook.parent), hook.effect)
	if err == nil {
		return nil
	}
	g.log.Warn("hook failed",
		zap.String("hook", string(hook.name)),
		zap.String("subject", subject),
		zap.Error(err),
	)
	report := &Report{
		Description: fmt.Sprintf("%s: %s", hook.name, subject),
		OK:          false,
		Reason:      err,
		hook:        hook,
	}
	if !yield(report) {
		return errHalted
	}
	return &HookError{Hook: hook, Err: err}
}

func (g *Group) runSpec(ctx context.Context, spec *Spec, yield emit) error {
	if err := g.open(ctx, yield); err != nil {
		return err
	}
	ctx = withSpec(ctx, spec)
	if !spec.skipped {
		for _, hook := range g.computed.beforeEach {
			if err := g.runHook(ctx, hook, spec.description, yield); err != nil {
				return err
			}
		}
	}
	if !yield(g.reportForSpec(withGroup(ctx, g), spec)) {
		return errHalted
	}
	if !spec.skipped {
		for _, hook := range g.computed.afterEach {
			if err := g.runHook(ctx, hook, spec.description, yield); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Group) reportForSpec(ctx context.Context, spec *Spec) *Report {
	description := g.Prefixed(spec.description)

	if spec.skipped || (g.focusMode && !spec.focused) {
		report := &Report{Description: description, OK: true, Skipped: true, spec: spec}
		report.applyMeta(spec.meta)
		return report
	}

	report := &Report{
		Description: description,
		OK:          true,
		Skipped:     g.skipped,
		Focused:     g.focused || spec.focused,
		spec:        spec,
	}
	report.applyMeta(spec.meta)

	skipped := false
	skip := func() { skipped = true }
	for _, notify := range g.listeners.Pending {
		notify(ctx, report, skip)
	}

	if !skipped {
		if err := invoke(ctx, spec.effect); err != nil {
			report.OK = false
			report.Reason = err
		} else {
			report.OK = true
		}
	} else {
		report.Skipped = true
	}

	fail := func(reason error) {
		if report.OK {
			report.OK = false
			report.Reason = reason
		}
	}
	for _, notify := range g.listeners.Complete {
		notify(ctx, report, fail)
	}
	return report
}

// computeHooks caches the inherited before-each chain (root first) and
// after-each chain (innermost first) on the first successful open.
func (g *Group) computeHooks() {
	if g.computed != nil {
		return
	}
	var chain []*Group
	for node := range g.AndParents() {
		chain = append(chain, node)
	}
	computed := &computedHooks{}
	for _, node := range chain {
		computed.afterEach = append(computed.afterEach, node.hooks.AfterEach...)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		computed.beforeEach = append(computed.beforeEach, chain[i].hooks.BeforeEach...)
	}
	g.computed = computed
}
