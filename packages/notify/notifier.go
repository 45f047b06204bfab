// Package notify sends run summaries to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when a run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first pass
	// after a failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. Empty means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
	}
}

// maxFailures caps the failures listed in one message.
const maxFailures = 10

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Order      string        `json:"order"`
	Seed       uint64        `json:"seed"`
	Total      int           `json:"total"`
	Planned    int           `json:"planned"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	Bailed     bool          `json:"bailed,omitempty"`
	Failures   []FailedSpec  `json:"failures,omitempty"`
	IsRecovery bool          `json:"is_recovery,omitempty"`
}

// FailedSpec is one failed report.
type FailedSpec struct {
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
}

// Summarize condenses a run result. Teardown failures count as failures.
func Summarize(result *runner.RunResult) *RunSummary {
	s := &RunSummary{
		RunID:    result.ID,
		Order:    result.Order,
		Seed:     result.Seed,
		Total:    result.Total,
		Planned:  result.Planned,
		Duration: result.Duration,
		Bailed:   result.Bailed,
	}
	if result.Summary != nil {
		s.Passed = result.Summary.OK - result.Summary.Skipped
		s.Failed = result.Summary.Failed
		s.Skipped = result.Summary.Skipped
	}
	s.Failed += len(result.Teardown)

	for _, report := range slices.Concat(result.Reports, result.Teardown) {
		if report.OK {
			continue
		}
		f := FailedSpec{Description: report.Description}
		if report.Reason != nil {
			f.Reason = report.Reason.Error()
		}
		s.Failures = append(s.Failures, f)
	}
	return s
}

// Success reports whether nothing failed.
func (s *RunSummary) Success() bool {
	return s.Failed == 0
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager applies a NotifyOn policy across runs. It remembers the outcome
// of the previous run for NotifyRecovery.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Notify sends the summary to every notifier when the policy asks for it.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	success := summary.Success()
	send := false

	switch m.notifyOn {
	case NotifyAlways:
		send = true
	case NotifyFailure:
		send = !success
	case NotifySuccess:
		send = success
	case NotifyRecovery:
		summary.IsRecovery = !m.lastState && success
		send = summary.IsRecovery || !success
	}
	m.lastState = success

	if !send {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// headline is the one-line outcome shared by every notifier.
func headline(s *RunSummary) string {
	switch {
	case !s.Success():
		return fmt.Sprintf("%d spec(s) failed", s.Failed)
	case s.IsRecovery:
		return "Specs recovered!"
	default:
		return "All specs passed!"
	}
}

// postJSON sends payload to url and accepts any of the given statuses.
func postJSON(ctx context.Context, client *http.Client, url string, payload any, accept ...int) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if !slices.Contains(accept, resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
