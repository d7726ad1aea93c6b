package engine

import (
	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
)

func (e *Engine) offerRTM(s *State, player roster.Player, original, buyer *Participant, price decimal.Decimal) []Event {
	window := e.deps.Timing.RTMWindow
	offer := &RTMOffer{
		Player:              player,
		OriginalFranchiseID: original.FranchiseID,
		WinningBid:          price,
		WinningFranchiseID:  buyer.FranchiseID,
		Deadline:            e.deps.Now().Add(window),
	}
	s.Auction.RTM = offer
	s.Auction.Status = StatusRTMPending

	return []Event{
		roomEvent(EvtRTMOffered, RTMOffered{
			Player:              player,
			OriginalFranchiseID: offer.OriginalFranchiseID,
			WinningFranchiseID:  offer.WinningFranchiseID,
			WinningBid:          price,
			Deadline:            offer.Deadline,
		}),
		timerStarted(TimerRTM, window),
	}
}

// pendingRTM returns the open offer, or nil once it has been resolved.
func pendingRTM(s *State) *RTMOffer {
	if s.Auction == nil || s.Auction.RTM == nil || s.Auction.RTM.Resolved {
		return nil
	}
	return s.Auction.RTM
}

// submitRTMDecision is a no-op when no offer is pending, including a late
// decision for an offer the deadline already settled. An invalid accept is
// rejected and leaves the offer open until the deadline.
func (e *Engine) submitRTMDecision(s *State, cmd Command) ([]Event, error) {
	p, err := callingParticipant(s, cmd)
	if err != nil {
		return nil, err
	}
	offer := pendingRTM(s)
	if offer == nil || (cmd.PlayerID != "" && cmd.PlayerID != offer.Player.ID) {
		return nil, nil
	}
	if p.FranchiseID != offer.OriginalFranchiseID {
		return nil, ErrRTMRejected.because(ReasonNotYourFranchise, "the right to match belongs to "+string(offer.OriginalFranchiseID))
	}

	if !cmd.Accept {
		return append(e.rejectRTM(s, false), timerStarted(TimerPresentation, e.deps.Timing.PresentationDelay)), nil
	}

	counter := cmd.Amount
	if counter.IsZero() {
		counter = offer.WinningBid
	}
	switch {
	case counter.LessThan(offer.WinningBid):
		return nil, ErrRTMRejected.because(ReasonCounterTooLow, "counter must match the winning bid of "+offer.WinningBid.String())
	case p.RTMCards <= 0:
		return nil, ErrRTMRejected.because(ReasonNoRTMCards, "no RTM cards remaining")
	case counter.GreaterThan(p.BudgetRemaining):
		return nil, ErrRTMRejected.because(ReasonInsufficientBudget, "insufficient funds, budget is "+p.BudgetRemaining.String())
	case p.SquadCount() >= s.Rules.SquadSize:
		return nil, ErrRTMRejected.because(ReasonSquadFull, "squad is full")
	}
	if s.Rules.EnforceCapsInAuction {
		if reason := capViolation(s.Rules, p, offer.Player); reason != "" {
			return nil, ErrRTMRejected.because(reason, "nationality cap reached")
		}
	}

	return append(e.acceptRTM(s, p, counter), timerStarted(TimerPresentation, e.deps.Timing.PresentationDelay)), nil
}

func (e *Engine) rtmDeadline(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if pendingRTM(s) == nil {
		return nil, nil
	}
	return append(e.rejectRTM(s, true), timerStarted(TimerPresentation, e.deps.Timing.PresentationDelay)), nil
}

// acceptRTM moves the purchase from the winning bidder to the original
// franchise: the winner is refunded the winning bid, the original franchise
// pays counter and spends a card.
func (e *Engine) acceptRTM(s *State, original *Participant, counter decimal.Decimal) []Event {
	offer := s.Auction.RTM
	events := []Event{timerCancelled(TimerRTM)}

	if winner := s.participantByFranchise(offer.WinningFranchiseID); winner != nil {
		var removed bool
		winner.PurchasedPlayers, removed = removePurchase(winner.PurchasedPlayers, offer.Player.ID)
		if removed {
			winner.BudgetRemaining = winner.BudgetRemaining.Add(offer.WinningBid)
		}
		events = append(events, squadChanged(winner.Username))
	}

	original.BudgetRemaining = original.BudgetRemaining.Sub(counter)
	original.RTMCards--
	original.PurchasedPlayers = append(original.PurchasedPlayers, Purchase{
		Player:           offer.Player,
		Price:            counter,
		BuyerFranchiseID: original.FranchiseID,
		ViaRTM:           true,
	})

	e.closeRTM(s)
	return append(events,
		roomEvent(EvtRTMResolved, RTMResolved{
			Player:                offer.Player,
			Accepted:              true,
			FinalBuyerFranchiseID: original.FranchiseID,
			FinalPrice:            counter,
		}),
		squadChanged(original.Username),
	)
}

// rejectRTM leaves the original sale standing.
func (e *Engine) rejectRTM(s *State, timedOut bool) []Event {
	offer := s.Auction.RTM
	e.closeRTM(s)
	return []Event{
		timerCancelled(TimerRTM),
		roomEvent(EvtRTMResolved, RTMResolved{
			Player:                offer.Player,
			TimedOut:              timedOut,
			FinalBuyerFranchiseID: offer.WinningFranchiseID,
			FinalPrice:            offer.WinningBid,
		}),
	}
}

func (e *Engine) closeRTM(s *State) {
	s.Auction.RTM.Resolved = true
	s.Auction.RTM = nil
	s.Auction.Status = StatusLotClosed
}
