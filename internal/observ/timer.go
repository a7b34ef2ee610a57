// Package observ reports where an emission run spends its time. The
// build pipeline opens a span per phase (declare, populate, finish);
// the collected spans render as a terminal summary or serialize as a
// schema-versioned msgpack report for downstream tooling.
package observ

import (
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ReportSchema is bumped whenever the serialized report layout changes.
const ReportSchema = 1

// Span is one running phase. Ending it twice is a no-op.
type Span struct {
	name    string
	started time.Time
	dur     time.Duration
	note    string
	done    bool
}

// End stops the span and attaches a note shown next to its duration.
func (s *Span) End(note string) {
	if s == nil || s.done {
		return
	}
	s.dur = time.Since(s.started)
	s.note = note
	s.done = true
}

// Timer collects the phase spans of one emission run. Not synchronized;
// the pipeline opens spans from one goroutine.
type Timer struct {
	spans []*Span
}

func NewTimer() *Timer { return &Timer{} }

// Begin opens a named span. The caller ends it when the phase is done.
func (t *Timer) Begin(name string) *Span {
	s := &Span{name: name, started: time.Now()}
	t.spans = append(t.spans, s)
	return s
}

// Summary renders the spans for terminal output.
func (t *Timer) Summary() string {
	r := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&b, "  %-12s %8.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			fmt.Fprintf(&b, "  (%s)", p.Note)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %-12s %8.2f ms\n", "total", r.TotalMS)
	return b.String()
}

// PhaseReport is the serialized form of one finished span.
type PhaseReport struct {
	Name       string  `msgpack:"name"`
	DurationMS float64 `msgpack:"duration_ms"`
	Note       string  `msgpack:"note,omitempty"`
}

// Report is the serialized form of a whole run.
type Report struct {
	Schema  int           `msgpack:"schema"`
	TotalMS float64       `msgpack:"total_ms"`
	Phases  []PhaseReport `msgpack:"phases"`
}

// Report flattens the spans into milliseconds.
func (t *Timer) Report() Report {
	r := Report{Schema: ReportSchema, Phases: make([]PhaseReport, 0, len(t.spans))}
	var total time.Duration
	for _, s := range t.spans {
		total += s.dur
		r.Phases = append(r.Phases, PhaseReport{
			Name:       s.name,
			DurationMS: durationToMillis(s.dur),
			Note:       s.note,
		})
	}
	r.TotalMS = durationToMillis(total)
	return r
}

// EncodeReport serializes a report.
func EncodeReport(r Report) ([]byte, error) {
	return msgpack.Marshal(r)
}

// DecodeReport reads a report back, rejecting other schema versions.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to decode timing report: %w", err)
	}
	if r.Schema != ReportSchema {
		return Report{}, fmt.Errorf("unsupported timing report schema %d (want %d)", r.Schema, ReportSchema)
	}
	return r, nil
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
