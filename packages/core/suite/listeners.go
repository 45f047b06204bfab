package suite

import "context"

// PendingListener observes a spec before its body runs. It may set OK or
// Reason on the report directly, or call skip to prevent the body from
// running. OK starts out true; a skipped report keeps whatever OK the
// listeners left.
type PendingListener func(ctx context.Context, report *Report, skip func())

// CompleteListener observes a finished report. Calling fail marks the report
// failed unless it already is; setting report.OK overrides the outcome.
type CompleteListener func(ctx context.Context, report *Report, fail func(reason error))

// Listeners are the extension points of a tree. A group shares its
// Listeners with every descendant created through it. Listeners are never
// invoked for skipped specs or stubs and must not panic.
type Listeners struct {
	Pending  []PendingListener
	Complete []CompleteListener
}

// OnPending appends a pending listener.
func (l *Listeners) OnPending(fn PendingListener) *Listeners {
	l.Pending = append(l.Pending, fn)
	return l
}

// OnComplete appends a complete listener.
func (l *Listeners) OnComplete(fn CompleteListener) *Listeners {
	l.Complete = append(l.Complete, fn)
	return l
}

func (l *Listeners) copy() *Listeners {
	if l == nil {
		return &Listeners{}
	}
	return &Listeners{
		Pending:  append([]PendingListener(nil), l.Pending...),
		Complete: append([]CompleteListener(nil), l.Complete...),
	}
}
