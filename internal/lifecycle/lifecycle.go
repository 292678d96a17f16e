// Package lifecycle drives the per-test state machine (spec.md §4.6):
// burn-in, demotion, deflake, hash pooling, and effort classification. The
// package-level philosophy stated for this package — "no event
// bus, no goroutines" — is kept: the driver is a pure function of the
// status store and the current sweep's outcomes, called once per test per
// run from the executor. Hash pooling uses zeebo/blake3 for the content
// digest (see HashTest), chosen over stdlib crypto/sha256 because blake3 is
// already the pack's fingerprinting library of choice and is materially
// faster for the "hash every test's executable on every run" hot path.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/ariel-frischer/specrunner/internal/history"
	"github.com/ariel-frischer/specrunner/internal/sprt"
	"github.com/ariel-frischer/specrunner/internal/status"
)

// EffortMode is the rerun policy for one test's execution (spec.md §4.4).
type EffortMode string

const (
	EffortNone       EffortMode = "none"
	EffortRegression EffortMode = "regression"
	EffortConverge   EffortMode = "converge"
	EffortMax        EffortMode = "max"
)

// Classification is the per-run effort-mode outcome (spec.md §4.6 table).
type Classification string

const (
	ClassFlake     Classification = "flake"
	ClassTruePass  Classification = "true_pass"
	ClassTrueFail  Classification = "true_fail"
	ClassUndecided Classification = "undecided"
)

// Config is the (forward SPRT, demotion SPRT, flaky deadline, skip-unchanged)
// tuple the driver needs (spec.md §4.6).
type Config struct {
	Forward           sprt.Params
	Demotion          sprt.Params
	FlakyDeadlineDays int // negative disables auto-disable
	SkipUnchanged     bool
}

// Driver runs the lifecycle transitions over one Config.
type Driver struct {
	cfg Config
}

// NewDriver constructs a Driver.
func NewDriver(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

// ForwardParams returns the SPRT parameters the driver uses to decide
// burn-in acceptance, so callers (the converge/max rerun loop) can evaluate
// the same decision mid-run instead of only once at Sweep time.
func (d *Driver) ForwardParams() sprt.Params {
	return d.cfg.Forward
}

// HashTest computes the opaque content digest used for hash pooling
// (executable path plus its sorted parameter values, per DESIGN.md).
func HashTest(executable string, sortedParams []string) string {
	h := blake3.New()
	h.Write([]byte(executable))
	for _, p := range sortedParams {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// BurnIn transitions label from new to burning_in (the burn-in subcommand).
func (d *Driver) BurnIn(st status.Status, label string, now time.Time) error {
	return st.Transition(label, status.BurningIn, now)
}

// ReEnable transitions label from disabled to new.
func (d *Driver) ReEnable(st status.Status, label string, now time.Time) error {
	return st.Transition(label, status.New, now)
}

// Deflake clears label's history and target hash and returns it to
// burning_in (spec.md §4.6: "clears history, clears target_hash").
func (d *Driver) Deflake(st status.Status, label string, now time.Time) error {
	entry, ok := st.Get(label)
	if !ok || entry.State != status.Flaky {
		return fmt.Errorf("lifecycle: deflake requires state flaky for %q, got %v", label, entry.State)
	}
	return st.Upsert(label, func(e status.Entry) status.Entry {
		e.State = status.BurningIn
		e.History = nil
		e.TargetHash = ""
		e.LastUpdated = now
		return e
	})
}

// HashCheck implements hash pooling (spec.md §4.6): if suppliedHash matches
// the stored target_hash and the state is conclusive, the caller should
// skip execution and reuse the prior outcome. A changed hash resets the
// test's history and state to burning_in.
func (d *Driver) HashCheck(st status.Status, label, suppliedHash string, now time.Time) (skip bool, err error) {
	if suppliedHash == "" {
		return false, nil
	}
	entry, ok := st.Get(label)
	if ok && entry.TargetHash == suppliedHash {
		if d.cfg.SkipUnchanged && (entry.State == status.Stable || entry.State == status.Flaky) {
			return true, nil
		}
		return false, nil
	}

	if !ok || entry.State == status.New {
		return false, st.SetTargetHash(label, suppliedHash, now)
	}
	err = st.Upsert(label, func(e status.Entry) status.Entry {
		e.State = status.BurningIn
		e.History = nil
		e.TargetHash = suppliedHash
		e.LastUpdated = now
		return e
	})
	return false, err
}

// Sweep applies the post-execution sweep for one test (spec.md §4.6):
// append a history entry, advance burn-in/demotion state per SPRT, and
// check the flaky auto-disable deadline. attempts is this run's own
// rerun sequence in execution order (length 1 for none/regression).
// commit identifies the code state the attempt ran against. The returned
// bool reports whether this sweep demoted the test off stable (to flaky or
// back to burning_in), which spec.md §6.5 folds into the exit code
// alongside any outright failure or flake classification.
func (d *Driver) Sweep(st status.Status, label string, attempts []bool, mode EffortMode, commit string, now time.Time) (Classification, bool, error) {
	if len(attempts) == 0 {
		return ClassUndecided, false, fmt.Errorf("lifecycle: sweep requires at least one attempt for %q", label)
	}

	appended := attempts[len(attempts)-1]
	if mode == EffortConverge {
		appended = attempts[0]
	}
	entry := history.Entry{Passed: appended, Commit: commit, Timestamp: now.Format(time.RFC3339)}
	if err := st.AppendHistory(label, entry, now); err != nil {
		return ClassUndecided, false, err
	}

	demoted := false
	current, _ := st.Get(label)
	switch current.State {
	case status.BurningIn:
		result := sprt.Evaluate(toBools(current.History), d.cfg.Forward)
		switch result.Decision {
		case sprt.Accept:
			if err := st.Transition(label, status.Stable, now); err != nil {
				return ClassUndecided, false, err
			}
		case sprt.Reject:
			if err := st.Transition(label, status.Flaky, now); err != nil {
				return ClassUndecided, false, err
			}
		}
	case status.Stable:
		if !appended {
			result := sprt.EvaluateReverse(toBools(current.History), d.cfg.Demotion)
			switch result.Decision {
			case sprt.Reject:
				if err := st.Transition(label, status.Flaky, now); err != nil {
					return ClassUndecided, false, err
				}
				demoted = true
			case sprt.Continue:
				if err := st.Transition(label, status.BurningIn, now); err != nil {
					return ClassUndecided, false, err
				}
				demoted = true
			}
		}
	}

	if err := d.checkAutoDisable(st, label, now); err != nil {
		return ClassUndecided, demoted, err
	}

	classification := ClassUndecided
	if mode == EffortConverge || mode == EffortMax {
		result := sprt.Evaluate(attempts, d.cfg.Forward)
		classification = classify(attempts[0], result.Decision)
	}
	return classification, demoted, nil
}

func (d *Driver) checkAutoDisable(st status.Status, label string, now time.Time) error {
	if d.cfg.FlakyDeadlineDays < 0 {
		return nil
	}
	current, ok := st.Get(label)
	if !ok || current.State != status.Flaky {
		return nil
	}
	deadline := time.Duration(d.cfg.FlakyDeadlineDays) * 24 * time.Hour
	if now.Sub(current.LastUpdated) >= deadline {
		return st.Transition(label, status.Disabled, now)
	}
	return nil
}

// classify implements the effort-classification table (spec.md §4.6).
func classify(priorOutcome bool, decision sprt.Decision) Classification {
	switch {
	case priorOutcome && decision == sprt.Reject:
		return ClassFlake
	case priorOutcome && decision == sprt.Accept:
		return ClassTruePass
	case !priorOutcome && decision == sprt.Accept:
		return ClassFlake
	case !priorOutcome && decision == sprt.Reject:
		return ClassTrueFail
	default:
		return ClassUndecided
	}
}

func toBools(entries []history.Entry) []bool {
	out := make([]bool, len(entries))
	for i, e := range entries {
		out[i] = e.Passed
	}
	return out
}
