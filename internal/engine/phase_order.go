package engine

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseSetup    Phase = "setup"
	PhaseHiding   Phase = "hiding"
	PhaseBriefing Phase = "briefing"
	PhaseSeeking  Phase = "seeking"
	PhaseRoundEnd Phase = "round_end"
)

// RoundOrder is the cycle a session runs once it has left Waiting.
var RoundOrder = []Phase{
	PhaseSetup,
	PhaseHiding,
	PhaseBriefing,
	PhaseSeeking,
	PhaseRoundEnd,
}

// Next is the phase a deadline expiry leads to.
func (p Phase) Next() Phase {
	switch p {
	case PhaseWaiting, PhaseRoundEnd:
		return PhaseSetup
	}
	for i, ph := range RoundOrder {
		if ph == p && i+1 < len(RoundOrder) {
			return RoundOrder[i+1]
		}
	}
	return PhaseWaiting
}

// CanTransitionTo allows the timed successor plus the two early exits: Setup
// falls back to Waiting without enough participants, and any in-round phase
// may jump to RoundEnd when the round is decided early.
func (p Phase) CanTransitionTo(next Phase) bool {
	if next == p.Next() {
		return true
	}
	switch {
	case p == PhaseSetup && next == PhaseWaiting:
		return true
	case p.InRound() && next == PhaseRoundEnd:
		return true
	}
	return false
}

// InRound reports whether exactly one Hider must exist in this phase.
func (p Phase) InRound() bool {
	return p == PhaseHiding || p == PhaseBriefing || p == PhaseSeeking
}

func (p Phase) Valid() bool {
	return p == PhaseWaiting || p.Next() != PhaseWaiting
}
