package engine

import (
	"github.com/DoyleJ11/franchise-auction/internal/roster"
)

func (e *Engine) setRules(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	if s.Phase != PhaseLobby && s.Phase != PhaseTeamAssignment {
		return nil, ErrWrongPhase.because("", "rules are locked once retention starts")
	}
	if cmd.Rules == nil {
		return nil, ErrInvalidRules.because("", "no rules given")
	}
	rules := cmd.Rules.WithDefaults()
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	s.Rules = rules
	// Nothing has been retained or bought yet, so budgets simply follow the purse.
	for _, p := range s.Participants {
		p.BudgetRemaining = rules.TotalPurse
		p.RTMCards = rules.RTMCards
	}
	return []Event{roomEvent(EvtRulesUpdated, RulesUpdated{Rules: rules})}, nil
}

func (e *Engine) assignTeams(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	if s.TeamsAssigned || s.Phase != PhaseLobby {
		return nil, ErrWrongPhase.because("", "teams already assigned")
	}
	participants := s.orderedParticipants()
	if len(participants) > len(e.deps.Franchises) {
		return nil, ErrNoFranchiseAvailable
	}

	pool := make([]roster.Franchise, len(e.deps.Franchises))
	copy(pool, e.deps.Franchises)

	var (
		events  []Event
		mapping = make([]Assignment, 0, len(participants))
	)
	for _, p := range participants {
		i := e.deps.Intn(len(pool))
		f := pool[i]
		pool = append(pool[:i], pool[i+1:]...)

		p.FranchiseID = f.ID
		p.HasUsedReshuffle = false
		p.BudgetRemaining = s.Rules.TotalPurse
		p.RTMCards = s.Rules.RTMCards

		events = append(events, userEvent(EvtTeamAssigned, p.Username, TeamAssigned{Franchise: f, CanReshuffle: true}))
		mapping = append(mapping, Assignment{Username: p.Username, Franchise: f})
	}

	s.TeamsAssigned = true
	s.Phase = PhaseTeamAssignment
	events = append(events,
		controllerEvent(EvtTeamMapping, TeamMapping{Mapping: mapping}),
		roomEvent(EvtPhaseChanged, PhaseChanged{Phase: s.Phase}),
	)
	return events, nil
}

func (e *Engine) requestReshuffle(s *State, cmd Command) ([]Event, error) {
	p, err := callingParticipant(s, cmd)
	if err != nil {
		return nil, err
	}
	if err := reshufflePhase(s); err != nil {
		return nil, err
	}
	if p.HasUsedReshuffle {
		return nil, ErrReshuffleUsed
	}
	return e.reshuffle(s, p, false)
}

// forceReshuffle lets the controller move a participant regardless of
// whether they already used their own reshuffle.
func (e *Engine) forceReshuffle(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	if err := reshufflePhase(s); err != nil {
		return nil, err
	}
	p, ok := s.Participants[cmd.Username]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return e.reshuffle(s, p, true)
}

func reshufflePhase(s *State) error {
	if !s.TeamsAssigned {
		return ErrTeamsNotAssigned
	}
	if s.Phase != PhaseTeamAssignment {
		return ErrWrongPhase.because("", "reshuffle is only possible before retention")
	}
	return nil
}

func (e *Engine) reshuffle(s *State, p *Participant, forced bool) ([]Event, error) {
	held := make(map[roster.FranchiseID]bool, len(s.Participants))
	for _, other := range s.Participants {
		held[other.FranchiseID] = true
	}
	var free []roster.Franchise
	for _, f := range e.deps.Franchises {
		if !held[f.ID] {
			free = append(free, f)
		}
	}
	if len(free) == 0 {
		return nil, ErrNoFranchiseAvailable
	}

	from := p.FranchiseID
	to := free[e.deps.Intn(len(free))]
	p.FranchiseID = to.ID
	p.HasUsedReshuffle = true

	return []Event{
		userEvent(EvtTeamAssigned, p.Username, TeamAssigned{Franchise: to, CanReshuffle: false}),
		controllerEvent(EvtReshuffled, Reshuffled{Username: p.Username, From: from, To: to, Forced: forced}),
	}, nil
}
