package engine

import (
	"time"
)

// Summarize aggregates outcomes into a run summary. It is a pure function
// of its input: every outcome increments exactly one status counter, so
// Discovered always equals Succeeded + Failed + Skipped.
func Summarize(outcomes []*DeletionOutcome, elapsed time.Duration) *RunSummary {
	summary := &RunSummary{
		ByType:  make(map[string]*TypeSummary),
		Elapsed: elapsed,
	}

	for _, outcome := range outcomes {
		if outcome == nil || outcome.Record == nil {
			continue
		}

		summary.Discovered++
		ts := summary.typeSummary(outcome.Record.ResourceType)
		ts.Discovered++

		switch outcome.Status {
		case OutcomeSucceeded:
			summary.Succeeded++
			ts.Succeeded++
		case OutcomeAlreadyGone:
			summary.Succeeded++
			summary.AlreadyGone++
			ts.Succeeded++
			ts.AlreadyGone++
		case OutcomeFailed:
			summary.Failed++
			ts.Failed++
			if outcome.LastError != nil {
				ts.LastError = outcome.LastError.Message
			}
		case OutcomeSkipped:
			summary.Skipped++
			ts.Skipped++
		}
	}

	return summary
}

// MergeSummaries combines per-region summaries into one. Regions execute
// sequentially, so elapsed times add.
func MergeSummaries(summaries ...*RunSummary) *RunSummary {
	merged := &RunSummary{
		ByType: make(map[string]*TypeSummary),
	}

	for _, s := range summaries {
		if s == nil {
			continue
		}

		merged.Discovered += s.Discovered
		merged.Succeeded += s.Succeeded
		merged.AlreadyGone += s.AlreadyGone
		merged.Failed += s.Failed
		merged.Skipped += s.Skipped
		merged.Elapsed += s.Elapsed

		for name, ts := range s.ByType {
			mt := merged.typeSummary(name)
			mt.Discovered += ts.Discovered
			mt.Succeeded += ts.Succeeded
			mt.AlreadyGone += ts.AlreadyGone
			mt.Failed += ts.Failed
			mt.Skipped += ts.Skipped
			if ts.LastError != "" {
				mt.LastError = ts.LastError
			}
		}
	}

	return merged
}

// typeSummary returns the per-type bucket, creating it when absent.
func (s *RunSummary) typeSummary(typeName string) *TypeSummary {
	ts, ok := s.ByType[typeName]
	if !ok {
		ts = &TypeSummary{}
		s.ByType[typeName] = ts
	}
	return ts
}
