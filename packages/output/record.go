package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitsuite/packages/assertions"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
	"github.com/abdul-hamid-achik/hitsuite/packages/timing"
)

// record is the format-neutral view of one report.
type record struct {
	Name     string
	Group    string
	Passed   bool
	Skipped  bool
	Hook     bool
	Elapsed  time.Duration
	Error    string
	Failures []*assertions.Result
}

func newRecord(r *suite.Report) record {
	rec := record{
		Name:    r.Description,
		Passed:  r.OK,
		Skipped: r.Skipped,
		Elapsed: elapsedOf(r),
	}
	switch {
	case r.Spec() != nil:
		rec.Name = r.Spec().Description()
		rec.Group = r.Spec().Parent().Prefixed("")
	case r.Hook() != nil:
		rec.Hook = true
		rec.Group = r.Hook().Parent().Prefixed("")
	}
	if r.Reason != nil {
		rec.Error = r.Reason.Error()
		var failure *assertions.Failure
		if errors.As(r.Reason, &failure) {
			rec.Failures = failure.Results
		}
	}
	return rec
}

// elapsedOf reads the duration stamped by the timing listeners.
func elapsedOf(r *suite.Report) time.Duration {
	v, ok := r.Get(timing.FieldElapsed)
	if !ok {
		return 0
	}
	ms, ok := v.(int64)
	if !ok {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
