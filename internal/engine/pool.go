package engine

import (
	"github.com/DoyleJ11/franchise-auction/internal/roster"
)

// categorize buckets a player by precedence MARQUEE > WK > BAT > AR > bowling type.
func categorize(p roster.Player) (Category, bool) {
	switch {
	case p.Marquee:
		return CategoryMarquee, true
	case p.Role == roster.RoleWicketKeeper:
		return CategoryWK, true
	case p.Role == roster.RoleBatter:
		return CategoryBAT, true
	case p.Role == roster.RoleAllRounder:
		return CategoryAR, true
	case p.BowlingType == roster.BowlingSpin:
		return CategorySpin, true
	case p.BowlingType == roster.BowlingFast:
		return CategoryFast, true
	}
	return "", false
}

// buildPool subtracts every retained player from the roster, buckets the rest
// and shuffles each bucket independently.
func (e *Engine) buildPool(s *State) *Auction {
	retained := make(map[string]bool)
	for _, p := range s.Participants {
		for _, pl := range p.RetainedPlayers {
			retained[pl.ID] = true
		}
	}

	a := &Auction{
		Status:     StatusIdle,
		Categories: make(map[Category][]roster.Player, len(CategoryOrder)),
		Cursor:     -1,
	}
	for _, pl := range e.deps.Roster.Players() {
		if retained[pl.ID] {
			continue
		}
		cat, ok := categorize(pl)
		if !ok {
			if s.Rules.Uncategorized != UncategorizedUnsold {
				a.Excluded++
				continue
			}
			cat = CategoryUnsold
		}
		a.Categories[cat] = append(a.Categories[cat], pl)
	}

	for _, cat := range CategoryOrder {
		players := a.Categories[cat]
		e.deps.Shuffle(len(players), func(i, j int) {
			players[i], players[j] = players[j], players[i]
		})
	}
	return a
}

func (e *Engine) startAuctionPool(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	if s.Auction != nil {
		return nil, ErrAuctionAlreadyInitialized
	}
	if s.Phase != PhaseRetention {
		return nil, ErrWrongPhase
	}
	if !retentionComplete(s) {
		return nil, ErrRetentionIncomplete
	}

	s.Auction = e.buildPool(s)
	s.Phase = PhaseAuctionPool
	s.Retention.Open = false

	sizes := make(map[Category]int, len(CategoryOrder))
	for _, cat := range CategoryOrder {
		sizes[cat] = len(s.Auction.Categories[cat])
	}
	events := []Event{
		timerCancelled(TimerRetention),
		roomEvent(EvtPhaseChanged, PhaseChanged{Phase: s.Phase}),
		roomEvent(EvtAuctionStarted, AuctionStarted{CategorySizes: sizes, Excluded: s.Auction.Excluded}),
	}
	return append(events, e.openNextLot(s)...), nil
}
