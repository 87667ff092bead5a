package stage

import (
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// Summary counts the outcomes of one stage run. Counters keep first-use order
// so the completion log line is stable.
type Summary struct {
	order    []string
	counts   map[string]int
	failures int
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{counts: make(map[string]int)}
}

// Inc adds one to outcome.
func (s *Summary) Inc(outcome string) {
	s.Add(outcome, 1)
}

// Add adds n to outcome.
func (s *Summary) Add(outcome string, n int) {
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	if _, ok := s.counts[outcome]; !ok {
		s.order = append(s.order, outcome)
	}
	s.counts[outcome] += n
}

// Fail adds one to outcome and to the failure total.
func (s *Summary) Fail(outcome string) {
	s.Add(outcome, 1)
	s.failures++
}

// Count returns the counter for outcome.
func (s *Summary) Count(outcome string) int {
	if s == nil {
		return 0
	}
	return s.counts[outcome]
}

// Failures returns the number of outcomes recorded with Fail.
func (s *Summary) Failures() int {
	if s == nil {
		return 0
	}
	return s.failures
}

// Counts returns a copy of every counter.
func (s *Summary) Counts() map[string]int {
	if s == nil {
		return map[string]int{}
	}
	return maps.Clone(s.counts)
}

// Outcomes returns counter names in first-use order.
func (s *Summary) Outcomes() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Merge folds other into s.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	for _, outcome := range other.order {
		s.Add(outcome, other.counts[outcome])
	}
	s.failures += other.failures
}

// Attrs renders the counters as slog attributes.
func (s *Summary) Attrs() []slog.Attr {
	if s == nil {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(s.order)+1)
	for _, outcome := range s.order {
		attrs = append(attrs, slog.Int(outcome, s.counts[outcome]))
	}
	attrs = append(attrs, slog.Int("failures", s.failures))
	return attrs
}

// String renders "outcome=n" pairs, used in operator alerts.
func (s *Summary) String() string {
	if s == nil || len(s.order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.order))
	for _, outcome := range s.order {
		parts = append(parts, outcome+"="+strconv.Itoa(s.counts[outcome]))
	}
	return strings.Join(parts, " ")
}
