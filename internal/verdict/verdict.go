// Package verdict aggregates per-test SPRT-style betting evidence into one
// build-wide verdict (spec.md §4.10). Grounded on spec.md directly; the
// aggregation is a handful of sums and comparisons, so plain stdlib math
// covers it without reaching for a statistics library.
package verdict

import "sort"

// Verdict is the aggregate build-wide classification.
type Verdict string

const (
	Red       Verdict = "red"
	Green     Verdict = "green"
	Undecided Verdict = "undecided"
)

// Evidence is one test's betting evidence pair (spec.md §4.10).
type Evidence struct {
	Label string
	S     float64 // green evidence (e.g. a Wald martingale value)
	E     float64 // red evidence
	Sub   int     // high-fidelity reruns consumed to produce this evidence
}

// Thresholds is the (alpha_red, alpha_green) pair defining the red/green
// cutoffs as their reciprocals (spec.md §4.10).
type Thresholds struct {
	AlphaRed   float64
	AlphaGreen float64
}

// Report is the aggregate result.
type Report struct {
	Verdict      Verdict
	ESet         float64
	WeakestLabel string
	WeakestS     float64
	TotalReruns  int
}

// Aggregate computes the build-wide verdict over evidence (spec.md §4.10).
func Aggregate(evidence []Evidence, t Thresholds) Report {
	report := Report{Verdict: Undecided}
	if len(evidence) == 0 {
		return report
	}

	sorted := append([]Evidence{}, evidence...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	eSet := 0.0
	minS := sorted[0].S
	weakest := sorted[0]
	totalReruns := 0
	for _, ev := range sorted {
		eSet += ev.E
		totalReruns += ev.Sub
		if ev.S < minS {
			minS = ev.S
			weakest = ev
		}
	}

	report.ESet = eSet
	report.WeakestLabel = weakest.Label
	report.WeakestS = weakest.S
	report.TotalReruns = totalReruns

	redThreshold := 1 / t.AlphaRed
	greenThreshold := 1 / t.AlphaGreen

	if eSet > redThreshold {
		report.Verdict = Red
		return report
	}
	if minS >= greenThreshold {
		report.Verdict = Green
		return report
	}
	return report
}
