package lifecycle

import "testing"

type transition struct {
	from State
	to   State
}

var validTransitions = []transition{
	{StateNotStarted, StateBuilding},
	{StateNotStarted, StateSkipped},
	{StateNotStarted, StateTerminated},
	{StateBuilding, StateLaunched},
	{StateBuilding, StateTerminated},
	{StateLaunched, StateTerminating},
	{StateTerminating, StateTerminated},
}

func TestCanTransitionValid(t *testing.T) {
	for _, tc := range validTransitions {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition allowed: %s -> %s", tc.from, tc.to)
		}
	}
}

func TestCanTransitionInvalid(t *testing.T) {
	valid := make(map[transition]struct{}, len(validTransitions))
	for _, tc := range validTransitions {
		valid[tc] = struct{}{}
	}

	states := []State{
		StateNotStarted,
		StateBuilding,
		StateLaunched,
		StateTerminating,
		StateTerminated,
		StateSkipped,
	}
	for _, from := range states {
		for _, to := range states {
			if _, ok := valid[transition{from, to}]; ok {
				continue
			}
			if CanTransition(from, to) {
				t.Fatalf("expected transition rejected: %s -> %s", from, to)
			}
		}
	}
}

func TestStateString(t *testing.T) {
	if StateLaunched.String() != "launched" {
		t.Errorf("StateLaunched.String() = %q", StateLaunched.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("State(99).String() = %q", State(99).String())
	}
}
