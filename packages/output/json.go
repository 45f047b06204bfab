package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

// JSONMessage is one line of the stream.
type JSONMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// JSONResult closes the stream of one run.
type JSONResult struct {
	ID       string      `json:"id"`
	Order    string      `json:"order"`
	Seed     uint64      `json:"seed,omitempty"`
	Duration int64       `json:"duration"`
	Bailed   bool        `json:"bailed,omitempty"`
	Passed   bool        `json:"passed"`
	Timing   *JSONTiming `json:"timing,omitempty"`
}

// JSONTiming holds spec latency percentiles in milliseconds.
type JSONTiming struct {
	Count int64 `json:"count"`
	P50   int64 `json:"p50"`
	P95   int64 `json:"p95"`
	P99   int64 `json:"p99"`
	Max   int64 `json:"max"`
	Mean  int64 `json:"mean"`
}

// JSONFormatter writes newline-delimited JSON: every plan, report and
// summary as it happens, then one result object.
type JSONFormatter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	err     error
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{encoder: json.NewEncoder(os.Stdout)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.encoder = json.NewEncoder(w)
	}
}

func (f *JSONFormatter) write(kind string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.encoder.Encode(JSONMessage{Type: kind, Data: data}); err != nil && f.err == nil {
		f.err = err
	}
}

func (f *JSONFormatter) FormatMessage(msg suite.Message) {
	f.write(msg.Kind(), msg)
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	out := JSONResult{
		ID:       result.ID,
		Order:    result.Order,
		Seed:     result.Seed,
		Duration: result.Duration.Milliseconds(),
		Bailed:   result.Bailed,
		Passed:   result.Passed(),
	}
	if t := result.Timing; t.Count > 0 {
		out.Timing = &JSONTiming{
			Count: t.Count,
			P50:   t.P50.Milliseconds(),
			P95:   t.P95.Milliseconds(),
			P99:   t.P99.Milliseconds(),
			Max:   t.Max.Milliseconds(),
			Mean:  t.Mean.Milliseconds(),
		}
	}
	f.write("result", out)
}

func (f *JSONFormatter) FormatError(err error) {
	f.write("error", map[string]string{"message": err.Error()})
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Err returns the first write error.
func (f *JSONFormatter) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
