package summary

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"catalogmirror/pkg/processor"
	"catalogmirror/pkg/reconcile"
)

// Failure captures an entity whose mirroring did not succeed.
type Failure struct {
	EntityRef string
	Outcome   reconcile.Outcome
	Reason    string
}

// Summary aggregates per-run processing decisions for the run report. It is
// safe for concurrent use.
type Summary struct {
	mu        sync.Mutex
	decisions map[processor.Decision]int
	outcomes  map[reconcile.Outcome]int
	conflicts []string
	failures  []Failure
}

// New returns an empty Summary.
func New() *Summary {
	return &Summary{
		decisions: map[processor.Decision]int{},
		outcomes:  map[reconcile.Outcome]int{},
	}
}

// Record implements processor.Reporter.
func (s *Summary) Record(report processor.Report) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[report.Decision]++
	if report.Outcome != "" {
		s.outcomes[report.Outcome]++
	}
	if report.Outcome == reconcile.OutcomeConflict {
		s.conflicts = append(s.conflicts, report.EntityRef)
	}
	if report.Decision == processor.DecisionFailed {
		reason := ""
		if report.Err != nil {
			reason = report.Err.Error()
		}
		s.failures = append(s.failures, Failure{EntityRef: report.EntityRef, Outcome: report.Outcome, Reason: reason})
	}
}

// Count returns the number of entities with the provided decision.
func (s *Summary) Count(decision processor.Decision) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decisions[decision]
}

// OutcomeCount returns the number of reconciliations with the provided outcome.
func (s *Summary) OutcomeCount(outcome reconcile.Outcome) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[outcome]
}

// Total returns the number of recorded entities.
func (s *Summary) Total() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, count := range s.decisions {
		total += count
	}
	return total
}

// SortedConflicts returns the conflicting entity references ordered for determinism.
func (s *Summary) SortedConflicts() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conflicts) == 0 {
		return nil
	}
	out := append([]string(nil), s.conflicts...)
	sort.Strings(out)
	return out
}

// SortedFailures returns the failures ordered by entity reference.
func (s *Summary) SortedFailures() []Failure {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return nil
	}
	out := append([]Failure(nil), s.failures...)
	sort.Slice(out, func(i, j int) bool { return out[i].EntityRef < out[j].EntityRef })
	return out
}

// Write prints the summary in a stable order.
func (s *Summary) Write(w io.Writer) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	decisions := make([]string, 0, len(s.decisions))
	for decision := range s.decisions {
		decisions = append(decisions, string(decision))
	}
	counts := make(map[string]int, len(s.decisions))
	for decision, count := range s.decisions {
		counts[string(decision)] = count
	}
	s.mu.Unlock()
	sort.Strings(decisions)

	if _, err := fmt.Fprintf(w, "processed %d entities\n", s.Total()); err != nil {
		return err
	}
	for _, decision := range decisions {
		if _, err := fmt.Fprintf(w, "  %-13s %d\n", decision, counts[decision]); err != nil {
			return err
		}
	}
	for _, ref := range s.SortedConflicts() {
		if _, err := fmt.Fprintf(w, "conflict: %s\n", ref); err != nil {
			return err
		}
	}
	for _, failure := range s.SortedFailures() {
		if _, err := fmt.Fprintf(w, "failed: %s (%s) %s\n", failure.EntityRef, failure.Outcome, failure.Reason); err != nil {
			return err
		}
	}
	return nil
}
