package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/specrunner/internal/history"
	"github.com/ariel-frischer/specrunner/internal/sprt"
	"github.com/ariel-frischer/specrunner/internal/status"
)

func testDriver() *Driver {
	return NewDriver(Config{
		Forward:           sprt.DefaultParams(),
		Demotion:          sprt.DefaultParams(),
		FlakyDeadlineDays: -1,
		SkipUnchanged:     true,
	})
}

func TestBurnIn_And_Sweep_AcceptsToStable(t *testing.T) {
	t.Parallel()
	d := testDriver()
	st := status.Status{}
	now := time.Now().UTC()

	require.NoError(t, st.Transition("t", status.New, now))
	require.NoError(t, d.BurnIn(st, "t", now))

	// DefaultParams' Accept bound is A = ln((1-beta)/alpha) = ln(18) ~= 2.890;
	// each passing observation only contributes ln(p0/p1) ~= 0.0463 to the
	// log-likelihood ratio, so crossing the bound takes ~63 consecutive
	// passes, not the 30 of spec.md §8 scenario 3's illustrative walkthrough.
	// See DESIGN.md for the discrepancy between that scenario and the
	// implemented SPRT math.
	var class Classification
	var err error
	for i := 0; i < 70; i++ {
		class, _, err = d.Sweep(st, "t", []bool{true}, EffortNone, "c1", now)
		require.NoError(t, err)
		entry, _ := st.Get("t")
		if entry.State == status.Stable {
			break
		}
	}
	entry, _ := st.Get("t")
	assert.Equal(t, status.Stable, entry.State)
	assert.Equal(t, ClassUndecided, class, "effort classification only applies under converge/max")
}

func TestSweep_DemotesStableOnFailure(t *testing.T) {
	t.Parallel()
	d := testDriver()
	st := status.Status{}
	now := time.Now().UTC()
	require.NoError(t, st.Transition("t", status.New, now))
	require.NoError(t, st.Transition("t", status.BurningIn, now))
	require.NoError(t, st.Transition("t", status.Stable, now))
	for i := 0; i < 20; i++ {
		require.NoError(t, st.AppendHistory("t", hEntry(true, now), now))
	}

	demoted := false
	for i := 0; i < 10; i++ {
		_, d2, err := d.Sweep(st, "t", []bool{false}, EffortNone, "c2", now)
		require.NoError(t, err)
		demoted = demoted || d2
		entry, _ := st.Get("t")
		if entry.State != status.Stable {
			break
		}
	}
	entry, _ := st.Get("t")
	assert.NotEqual(t, status.Stable, entry.State)
	assert.True(t, demoted, "sweep should report the stable->non-stable transition")
}

func TestDeflake_RequiresFlakyState(t *testing.T) {
	t.Parallel()
	d := testDriver()
	st := status.Status{}
	now := time.Now().UTC()
	require.NoError(t, st.Transition("t", status.New, now))

	err := d.Deflake(st, "t", now)
	assert.Error(t, err)
}

func TestDeflake_ClearsHistoryAndHash(t *testing.T) {
	t.Parallel()
	d := testDriver()
	st := status.Status{}
	now := time.Now().UTC()
	require.NoError(t, st.Transition("t", status.New, now))
	require.NoError(t, st.Transition("t", status.BurningIn, now))
	require.NoError(t, st.Transition("t", status.Stable, now))
	require.NoError(t, st.Transition("t", status.Flaky, now))
	require.NoError(t, st.AppendHistory("t", hEntry(false, now), now))
	require.NoError(t, st.SetTargetHash("t", "abc", now))

	require.NoError(t, d.Deflake(st, "t", now))
	entry, _ := st.Get("t")
	assert.Equal(t, status.BurningIn, entry.State)
	assert.Empty(t, entry.History)
	assert.Empty(t, entry.TargetHash)
}

func TestHashCheck_SkipsWhenHashUnchangedAndConclusive(t *testing.T) {
	t.Parallel()
	d := testDriver()
	st := status.Status{}
	now := time.Now().UTC()
	require.NoError(t, st.Transition("t", status.New, now))
	require.NoError(t, st.Transition("t", status.BurningIn, now))
	require.NoError(t, st.Transition("t", status.Stable, now))
	require.NoError(t, st.SetTargetHash("t", "hash-a", now))

	skip, err := d.HashCheck(st, "t", "hash-a", now)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestHashCheck_ResetsOnChangedHash(t *testing.T) {
	t.Parallel()
	d := testDriver()
	st := status.Status{}
	now := time.Now().UTC()
	require.NoError(t, st.Transition("t", status.New, now))
	require.NoError(t, st.Transition("t", status.BurningIn, now))
	require.NoError(t, st.Transition("t", status.Stable, now))
	require.NoError(t, st.AppendHistory("t", hEntry(true, now), now))
	require.NoError(t, st.SetTargetHash("t", "hash-a", now))

	skip, err := d.HashCheck(st, "t", "hash-b", now)
	require.NoError(t, err)
	assert.False(t, skip)
	entry, _ := st.Get("t")
	assert.Equal(t, status.BurningIn, entry.State)
	assert.Empty(t, entry.History)
	assert.Equal(t, "hash-b", entry.TargetHash)
}

func TestHashTest_DeterministicAndSensitiveToInput(t *testing.T) {
	t.Parallel()
	a := HashTest("./bin/t", []string{"env=prod"})
	b := HashTest("./bin/t", []string{"env=prod"})
	c := HashTest("./bin/t", []string{"env=staging"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func hEntry(passed bool, now time.Time) history.Entry {
	return history.Entry{Passed: passed, Commit: "c", Timestamp: now.Format(time.RFC3339)}
}
