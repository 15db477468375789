package impact

import (
	"sort"
	"time"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/logger"
)

// Blast radius buckets by the fraction of comparable node pairs whose best
// path changed. Zero changes is always "none"; a single changed pair is at
// least "low" regardless of network size.
const (
	// LowThreshold is the exclusive upper bound of the "low" bucket.
	LowThreshold = 0.10
	// MediumThreshold is the exclusive upper bound of the "medium" bucket.
	MediumThreshold = 0.40
)

// Analyzer diffs all-pairs shortest paths between two snapshots.
type Analyzer struct {
	logger *logger.Logger
}

// NewAnalyzer creates an impact analyzer.
func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{logger: log.WithField("component", "impact-analyzer")}
}

// Analyze compares the draft against the baseline and reports every ordered
// node pair whose best path cost or hop sequence changed. Pairs unreachable
// in both snapshots are not comparable and never count toward the ratio;
// pairs reachable in the baseline but not in the draft are always changes
// and are flagged newly unreachable.
func (a *Analyzer) Analyze(baseline, draft *domain.TopologySnapshot) *domain.ImpactReport {
	baseGraph := newGraph(baseline)
	draftGraph := newGraph(draft)

	report := &domain.ImpactReport{
		GeneratedAt:  time.Now(),
		ChangedPairs: []domain.PathChange{},
	}

	impactedNodes := make(map[string]bool)

	for _, source := range baseGraph.nodes {
		basePaths := baseGraph.shortestPathsFrom(source)
		draftPaths := draftGraph.shortestPathsFrom(source)

		for _, target := range baseGraph.nodes {
			if target == source {
				continue
			}
			base := basePaths[target]
			after := draftPaths[target]

			if base.path == nil && after.path == nil {
				continue // unreachable in both: not comparable
			}
			report.ComparablePairs++

			if base.cost == after.cost && samePath(base.path, after.path) {
				continue
			}

			change := domain.PathChange{
				Source:           source,
				Target:           target,
				BaselineCost:     base.cost,
				DraftCost:        after.cost,
				BaselinePath:     base.path,
				DraftPath:        after.path,
				NewlyUnreachable: base.path != nil && after.path == nil,
			}
			report.ChangedPairs = append(report.ChangedPairs, change)

			for _, n := range base.path {
				impactedNodes[n] = true
			}
			for _, n := range after.path {
				impactedNodes[n] = true
			}
		}
	}

	for n := range impactedNodes {
		report.ImpactedNodes = append(report.ImpactedNodes, n)
	}
	sort.Strings(report.ImpactedNodes)

	countries := make(map[string]bool)
	for _, n := range report.ImpactedNodes {
		if c := draft.NodeCountry(n); c != "" {
			countries[c] = true
		} else if c := baseline.NodeCountry(n); c != "" {
			countries[c] = true
		}
	}
	for c := range countries {
		report.ImpactedCountries = append(report.ImpactedCountries, c)
	}
	sort.Strings(report.ImpactedCountries)

	report.BlastRadius = classify(len(report.ChangedPairs), report.ComparablePairs)

	a.logger.Info("impact analysis complete",
		"comparablePairs", report.ComparablePairs,
		"changedPairs", len(report.ChangedPairs),
		"blastRadius", report.BlastRadius)
	return report
}

func classify(changed, comparable int) domain.BlastRadius {
	if changed == 0 {
		return domain.BlastNone
	}
	if comparable == 0 {
		return domain.BlastHigh
	}
	ratio := float64(changed) / float64(comparable)
	switch {
	case ratio < LowThreshold:
		return domain.BlastLow
	case ratio < MediumThreshold:
		return domain.BlastMedium
	default:
		return domain.BlastHigh
	}
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
