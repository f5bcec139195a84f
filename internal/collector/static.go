package collector

import (
	"context"
	"time"
)

// StaticCollector returns fixed findings. It backs offline runs and tests.
type StaticCollector struct {
	Findings Findings
	Err      error
}

// ComprehensiveResearch implements Collector
func (s *StaticCollector) ComprehensiveResearch(ctx context.Context, topic string, questions []string) (*Research, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	now := time.Now().UTC()
	used := sourcesFor(s.Findings)
	return &Research{
		Topic:        topic,
		SourcesUsed:  used,
		Findings:     s.Findings,
		TotalSources: len(used),
		StartedAt:    now,
		CompletedAt:  now,
	}, nil
}
