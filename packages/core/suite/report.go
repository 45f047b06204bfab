package suite

import (
	"encoding/json"
	"maps"
	"time"
)

// Message is one element of the stream produced by Group.Run: a *Plan, a
// *Report or a *Summary.
type Message interface {
	Kind() string
	message()
}

// Report is the outcome of one spec, or of one failing hook.
type Report struct {
	// Description is prefixed with every non-empty ancestor description.
	Description string
	OK          bool
	Skipped     bool
	Focused     bool
	Reason      error
	Timeout     time.Duration
	Infos       []any
	// Fields holds listener-injected values. They are flattened into the
	// top level of the JSON form.
	Fields map[string]any

	spec *Spec
	hook *Hook
}

func (*Report) Kind() string { return "report" }

func (*Report) message() {}

// Spec returns the spec this report describes, or nil for hook failures.
// It is not part of the serialized form.
func (r *Report) Spec() *Spec { return r.spec }

// Hook returns the failing hook for hook failure reports.
func (r *Report) Hook() *Hook { return r.hook }

// Set stores a listener-injected field.
func (r *Report) Set(key string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
}

// Get returns a listener-injected field.
func (r *Report) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

func (r *Report) applyMeta(meta Meta) {
	if meta.Timeout > 0 {
		r.Timeout = meta.Timeout
	}
	if len(meta.Infos) > 0 {
		r.Infos = append([]any(nil), meta.Infos...)
	}
}

// MarshalJSON flattens Fields into the report object. Fields never
// overwrite the built-in keys.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+7)
	maps.Copy(out, r.Fields)
	out["description"] = r.Description
	out["ok"] = r.OK
	if r.Skipped {
		out["skipped"] = true
	}
	if r.Focused {
		out["focused"] = true
	}
	if r.Reason != nil {
		out["reason"] = r.Reason.Error()
	}
	if r.Timeout > 0 {
		out["timeout"] = r.Timeout.Milliseconds()
	}
	if len(r.Infos) > 0 {
		out["infos"] = r.Infos
	}
	return json.Marshal(out)
}

// Plan is emitted once by Run, before any report.
type Plan struct {
	Total   int `json:"total"`
	Planned int `json:"planned"`
}

func (*Plan) Kind() string { return "plan" }

func (*Plan) message() {}

// Summary is emitted once by Run, after every report.
type Summary struct {
	Total     int `json:"total"`
	Planned   int `json:"planned"`
	Completed int `json:"completed"`
	OK        int `json:"ok"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (*Summary) Kind() string { return "summary" }

func (*Summary) message() {}

// emit pushes a report to the consumer and reports whether it wants more.
type emit func(*Report) bool

func collect(reports *[]*Report) emit {
	return func(r *Report) bool {
		*reports = append(*reports, r)
		return true
	}
}
