package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_Red(t *testing.T) {
	t.Parallel()
	evidence := []Evidence{
		{Label: "a", S: 50, E: 30, Sub: 2},
		{Label: "b", S: 50, E: 30, Sub: 3},
	}
	report := Aggregate(evidence, Thresholds{AlphaRed: 0.05, AlphaGreen: 0.05})
	assert.Equal(t, Red, report.Verdict)
	assert.Equal(t, 60.0, report.ESet)
	assert.Equal(t, 5, report.TotalReruns)
}

func TestAggregate_Green(t *testing.T) {
	t.Parallel()
	evidence := []Evidence{
		{Label: "a", S: 25, E: 0.1},
		{Label: "b", S: 30, E: 0.1},
	}
	report := Aggregate(evidence, Thresholds{AlphaRed: 0.05, AlphaGreen: 0.05})
	assert.Equal(t, Green, report.Verdict)
	assert.Equal(t, "a", report.WeakestLabel, "the lowest S_i is reported as the weakest test")
}

func TestAggregate_Undecided(t *testing.T) {
	t.Parallel()
	evidence := []Evidence{
		{Label: "a", S: 2, E: 0.1},
	}
	report := Aggregate(evidence, Thresholds{AlphaRed: 0.05, AlphaGreen: 0.05})
	assert.Equal(t, Undecided, report.Verdict)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()
	report := Aggregate(nil, Thresholds{AlphaRed: 0.05, AlphaGreen: 0.05})
	assert.Equal(t, Undecided, report.Verdict)
}
