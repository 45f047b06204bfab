package suite

import "iter"

// Hooks holds a group's own hooks, stored in execution order: before hooks
// in registration order, after hooks in reverse registration order.
type Hooks struct {
	BeforeAll  []*Hook
	AfterAll   []*Hook
	BeforeEach []*Hook
	AfterEach  []*Hook
}

func (h *Hooks) add(hook *Hook) {
	switch hook.name {
	case HookBeforeAll:
		h.BeforeAll = append(h.BeforeAll, hook)
	case HookAfterAll:
		h.AfterAll = append([]*Hook{hook}, h.AfterAll...)
	case HookBeforeEach:
		h.BeforeEach = append(h.BeforeEach, hook)
	case HookAfterEach:
		h.AfterEach = append([]*Hook{hook}, h.AfterEach...)
	}
}

// Run iterates the hooks of the given kind in execution order.
func (h *Hooks) Run(name HookName) iter.Seq[*Hook] {
	var hooks []*Hook
	switch name {
	case HookBeforeAll:
		hooks = h.BeforeAll
	case HookAfterAll:
		hooks = h.AfterAll
	case HookBeforeEach:
		hooks = h.BeforeEach
	case HookAfterEach:
		hooks = h.AfterEach
	}
	return func(yield func(*Hook) bool) {
		for _, hook := range hooks {
			if !yield(hook) {
				return
			}
		}
	}
}

// Len returns the total number of registered hooks.
func (h *Hooks) Len() int {
	return len(h.BeforeAll) + len(h.AfterAll) + len(h.BeforeEach) + len(h.AfterEach)
}
