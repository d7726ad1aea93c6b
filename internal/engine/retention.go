package engine

import (
	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
)

func (e *Engine) startRetention(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	if !s.TeamsAssigned {
		return nil, ErrTeamsNotAssigned
	}
	if s.Phase != PhaseTeamAssignment {
		return nil, ErrWrongPhase.because("", "retention already started")
	}

	deadline := e.deps.Now().Add(e.deps.Timing.RetentionWindow)
	s.Phase = PhaseRetention
	s.Retention = RetentionState{Open: true, Deadline: deadline}

	events := []Event{roomEvent(EvtPhaseChanged, PhaseChanged{Phase: s.Phase})}
	for _, p := range s.orderedParticipants() {
		p.RetentionSubmitted = false
		p.RetainedPlayers = nil
		p.BudgetRemaining = s.Rules.TotalPurse
		events = append(events, userEvent(EvtRetentionOpened, p.Username, RetentionOpened{
			Franchise: e.franchise(p.FranchiseID),
			Roster:    e.deps.Roster.ByFranchise(p.FranchiseID),
			Deadline:  deadline,
			Rules:     s.Rules,
		}))
	}
	events = append(events, timerStarted(TimerRetention, e.deps.Timing.RetentionWindow))
	return append(events, readyCheck(s)...), nil
}

// submitRetention stores a participant's keep list. Resubmitting while the
// window is open replaces the previous selection.
func (e *Engine) submitRetention(s *State, cmd Command) ([]Event, error) {
	p, err := callingParticipant(s, cmd)
	if err != nil {
		return nil, err
	}
	if s.Phase != PhaseRetention {
		return nil, ErrWrongPhase
	}
	if !s.Retention.Open {
		return nil, ErrRetentionRejected.because(ReasonRetentionClosed, "retention window has closed")
	}

	selected, total, err := e.validateRetention(s.Rules, p.FranchiseID, cmd.Selection)
	if err != nil {
		return nil, err
	}

	p.RetainedPlayers = selected
	p.BudgetRemaining = s.Rules.TotalPurse.Sub(total)
	p.RetentionSubmitted = true

	events := []Event{
		controllerEvent(EvtRetentionSubmitted, RetentionSubmitted{
			Username:    p.Username,
			FranchiseID: p.FranchiseID,
			Count:       len(selected),
		}),
		squadChanged(p.Username),
	}
	return append(events, readyCheck(s)...), nil
}

func (e *Engine) validateRetention(r Rules, franchise roster.FranchiseID, selection []string) ([]roster.Player, decimal.Decimal, error) {
	eligible := make(map[string]roster.Player)
	for _, pl := range e.deps.Roster.ByFranchise(franchise) {
		eligible[pl.ID] = pl
	}

	var (
		selected = make([]roster.Player, 0, len(selection))
		seen     = make(map[string]bool, len(selection))
		total    = decimal.Zero
		holder   = &Participant{}
	)
	for _, id := range selection {
		pl, ok := eligible[id]
		if !ok {
			return nil, decimal.Zero, ErrRetentionRejected.because(ReasonNotEligible, "player "+id+" is not on your original roster")
		}
		if seen[id] {
			return nil, decimal.Zero, ErrRetentionRejected.because(ReasonDuplicatePlayer, "player "+id+" selected twice")
		}
		seen[id] = true
		if reason := capViolation(r, holder, pl); reason != "" {
			return nil, decimal.Zero, ErrRetentionRejected.because(reason, "nationality cap exceeded")
		}
		holder.RetainedPlayers = append(holder.RetainedPlayers, pl)
		selected = append(selected, pl)
		total = total.Add(pl.BasePrice)
	}

	if len(selected) > r.SquadSize {
		return nil, decimal.Zero, ErrRetentionRejected.because(ReasonSquadFull, "too many players retained")
	}
	if total.GreaterThan(r.TotalPurse) {
		return nil, decimal.Zero, ErrRetentionRejected.because(ReasonOverPurse, "retention cost exceeds the purse")
	}
	return selected, total, nil
}

// retentionDeadline closes the window and auto-submits an empty list for
// everyone who has not submitted.
func (e *Engine) retentionDeadline(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if s.Phase != PhaseRetention || !s.Retention.Open {
		return nil, nil
	}

	s.Retention.Open = false
	var events []Event
	for _, p := range s.orderedParticipants() {
		if p.RetentionSubmitted || p.FranchiseID == "" {
			continue
		}
		p.RetentionSubmitted = true
		p.RetainedPlayers = nil
		p.BudgetRemaining = s.Rules.TotalPurse
		events = append(events,
			controllerEvent(EvtRetentionSubmitted, RetentionSubmitted{
				Username:    p.Username,
				FranchiseID: p.FranchiseID,
				Auto:        true,
			}),
			squadChanged(p.Username),
		)
	}
	events = append(events, roomEvent(EvtRetentionClosed, nil))
	return append(events, readyCheck(s)...), nil
}

func retentionComplete(s *State) bool {
	for _, p := range s.Participants {
		if p.FranchiseID != "" && !p.RetentionSubmitted {
			return false
		}
	}
	return true
}

// readyCheck emits readyForAuction the first time every franchise has submitted.
func readyCheck(s *State) []Event {
	if s.Retention.ReadyNotified || !retentionComplete(s) {
		return nil
	}
	s.Retention.ReadyNotified = true
	return []Event{controllerEvent(EvtReadyForAuction, nil)}
}
