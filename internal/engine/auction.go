package engine

func runningAuction(s *State) (*Auction, error) {
	if s.Phase != PhaseAuctionPool || s.Auction == nil {
		return nil, ErrWrongPhase.because("", "auction is not running")
	}
	return s.Auction, nil
}

func (e *Engine) placeBid(s *State, cmd Command) ([]Event, error) {
	p, err := callingParticipant(s, cmd)
	if err != nil {
		return nil, err
	}
	a := s.Auction
	if s.Phase != PhaseAuctionPool || a == nil || a.Status != StatusLotOpen {
		return nil, ErrBidRejected.because(ReasonNoLotOpen, "no lot is open")
	}
	player, _ := a.currentPlayer()
	if cmd.PlayerID != "" && cmd.PlayerID != player.ID {
		return nil, ErrLotNotFound.because("", "bid is for a lot that is no longer open")
	}
	if cmd.FranchiseID != "" && cmd.FranchiseID != p.FranchiseID {
		return nil, ErrBidRejected.because(ReasonNotYourFranchise, "you can only bid for your own franchise")
	}

	switch {
	case !cmd.Amount.GreaterThan(a.Bid.CurrentPrice):
		return nil, ErrBidRejected.because(ReasonBidTooLow, "bid must be higher than "+a.Bid.CurrentPrice.String())
	case cmd.Amount.GreaterThan(p.BudgetRemaining):
		return nil, ErrBidRejected.because(ReasonInsufficientBudget, "insufficient funds, budget is "+p.BudgetRemaining.String())
	case p.SquadCount() >= s.Rules.SquadSize:
		return nil, ErrBidRejected.because(ReasonSquadFull, "squad is full")
	}
	if s.Rules.EnforceCapsInAuction {
		if reason := capViolation(s.Rules, p, player); reason != "" {
			return nil, ErrBidRejected.because(reason, "nationality cap reached")
		}
	}

	a.Bid.CurrentPrice = cmd.Amount
	a.Bid.CurrentBidder = p.FranchiseID
	a.Bid.History = append(a.Bid.History, BidRecord{
		FranchiseID: p.FranchiseID,
		Username:    p.Username,
		Amount:      cmd.Amount,
		At:          e.deps.Now(),
	})
	return []Event{roomEvent(EvtBidAccepted, BidAccepted{
		PlayerID:    player.ID,
		FranchiseID: p.FranchiseID,
		Username:    p.Username,
		Amount:      cmd.Amount,
	})}, nil
}

func (e *Engine) sellCurrentPlayer(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	a, err := runningAuction(s)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusLotOpen {
		return nil, ErrLotNotFound
	}
	if a.Bid.CurrentBidder == "" {
		return nil, ErrNoBidder
	}
	buyer := s.participantByFranchise(a.Bid.CurrentBidder)
	if buyer == nil {
		return nil, ErrParticipantNotFound
	}

	player, _ := a.currentPlayer()
	price := a.Bid.CurrentPrice
	buyer.BudgetRemaining = buyer.BudgetRemaining.Sub(price)
	buyer.PurchasedPlayers = append(buyer.PurchasedPlayers, Purchase{
		Player:           player,
		Price:            price,
		BuyerFranchiseID: buyer.FranchiseID,
	})
	a.Status = StatusLotSold

	events := []Event{
		roomEvent(EvtPlayerSold, PlayerSold{
			Player:           player,
			BuyerFranchiseID: buyer.FranchiseID,
			BuyerUsername:    buyer.Username,
			Price:            price,
		}),
		squadChanged(buyer.Username),
	}

	if original := s.participantByFranchise(player.OriginalFranchiseID); original != nil && original != buyer && original.RTMCards > 0 {
		return append(events, e.offerRTM(s, player, original, buyer, price)...), nil
	}
	return append(events, timerStarted(TimerPresentation, e.deps.Timing.PresentationDelay)), nil
}

func (e *Engine) markUnsold(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	a, err := runningAuction(s)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusLotOpen {
		return nil, ErrLotNotFound
	}
	if a.Bid.CurrentBidder != "" {
		return nil, ErrHasBidder
	}

	player, _ := a.currentPlayer()
	cat := a.category()
	a.Carryover = append(a.Carryover, player)
	a.Status = StatusLotUnsold
	return []Event{
		roomEvent(EvtPlayerUnsold, PlayerUnsold{Player: player, Category: cat}),
		timerStarted(TimerPresentation, e.deps.Timing.PresentationDelay),
	}, nil
}

// advanceToNextLot is the controller's manual override of the presentation delay.
func (e *Engine) advanceToNextLot(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	a, err := runningAuction(s)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusLotOpen:
		return nil, ErrLotStillOpen
	case StatusRTMPending:
		return nil, ErrRTMPending
	}
	events := []Event{timerCancelled(TimerPresentation)}
	return append(events, e.openNextLot(s)...), nil
}

func (e *Engine) presentationElapsed(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	a := s.Auction
	if s.Phase != PhaseAuctionPool || a == nil {
		return nil, nil
	}
	switch a.Status {
	case StatusLotSold, StatusLotUnsold, StatusLotClosed:
		return e.openNextLot(s), nil
	}
	return nil, nil
}

// openNextLot moves the cursor forward, crossing into later categories as
// they run out. The carryover is appended to UNSOLD just before it opens.
func (e *Engine) openNextLot(s *State) []Event {
	a := s.Auction
	var events []Event

	a.Cursor++
	for {
		cat := a.category()
		players := a.Categories[cat]
		if a.Cursor < len(players) {
			if a.Cursor == 0 {
				events = append(events, roomEvent(EvtCategoryOpened, CategoryOpened{Category: cat, Size: len(players)}))
			}
			player := players[a.Cursor]
			a.Status = StatusLotOpen
			a.Bid = BidState{CurrentPrice: player.BasePrice}
			return append(events, roomEvent(EvtLotOpened, LotOpened{
				Player:    player,
				Category:  cat,
				BasePrice: player.BasePrice,
			}))
		}

		a.CategoryIndex++
		a.Cursor = 0
		if a.CategoryIndex >= len(CategoryOrder) {
			return append(events, e.complete(s, false)...)
		}
		if a.category() == CategoryUnsold && len(a.Carryover) > 0 {
			a.Categories[CategoryUnsold] = append(a.Categories[CategoryUnsold], a.Carryover...)
			a.Carryover = nil
		}
	}
}

func (e *Engine) complete(s *State, forced bool) []Event {
	a := s.Auction
	a.Status = StatusComplete
	a.Bid = BidState{}
	s.Phase = PhaseSquadFinalization
	return []Event{
		timerCancelled(TimerPresentation),
		timerCancelled(TimerRTM),
		roomEvent(EvtAuctionComplete, AuctionComplete{Forced: forced}),
		roomEvent(EvtPhaseChanged, PhaseChanged{Phase: s.Phase}),
	}
}

// endAuction completes the run early. A pending RTM is auto-rejected so the
// sale stands, and a lot still open goes back to the carryover.
func (e *Engine) endAuction(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	a, err := runningAuction(s)
	if err != nil {
		return nil, err
	}

	var events []Event
	switch a.Status {
	case StatusRTMPending:
		events = append(events, e.rejectRTM(s, false)...)
	case StatusLotOpen:
		player, _ := a.currentPlayer()
		a.Carryover = append(a.Carryover, player)
		events = append(events, roomEvent(EvtPlayerUnsold, PlayerUnsold{Player: player, Category: a.category()}))
	}
	return append(events, e.complete(s, true)...), nil
}

// resetAuction undoes every auction purchase so the pool can be built again.
// Retention results are kept.
func (e *Engine) resetAuction(s *State, cmd Command) ([]Event, error) {
	if err := requireController(cmd); err != nil {
		return nil, err
	}
	if s.Auction == nil || (s.Phase != PhaseAuctionPool && s.Phase != PhaseSquadFinalization) {
		return nil, ErrWrongPhase.because("", "no auction to reset")
	}

	events := []Event{timerCancelled(TimerPresentation), timerCancelled(TimerRTM)}
	for _, p := range s.orderedParticipants() {
		if len(p.PurchasedPlayers) == 0 {
			continue
		}
		for _, pu := range p.PurchasedPlayers {
			p.BudgetRemaining = p.BudgetRemaining.Add(pu.Price)
			if pu.ViaRTM {
				p.RTMCards++
			}
		}
		p.PurchasedPlayers = nil
		events = append(events, squadChanged(p.Username))
	}

	s.Auction = nil
	s.Phase = PhaseRetention
	s.Retention.Open = false
	return append(events,
		roomEvent(EvtAuctionReset, nil),
		roomEvent(EvtPhaseChanged, PhaseChanged{Phase: s.Phase}),
	), nil
}
