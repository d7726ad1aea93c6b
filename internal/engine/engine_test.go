package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	ctrl    = Caller{Username: "host", Role: RoleController}
)

func as(name string) Caller { return Caller{Username: name, Role: RoleParticipant} }

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type playerOpt func(*roster.Player)

func marquee(p *roster.Player) { p.Marquee = true }

func overseas(p *roster.Player) {
	p.Overseas = true
	p.Nationality = "Overseas"
}

func from(id roster.FranchiseID) playerOpt {
	return func(p *roster.Player) { p.OriginalFranchiseID = id }
}
func price(v string) playerOpt {
	return func(p *roster.Player) { p.BasePrice = d(v) }
}
func bowls(b roster.BowlingType) playerOpt {
	return func(p *roster.Player) { p.BowlingType = b }
}

func mkPlayer(id string, role roster.Role, opts ...playerOpt) roster.Player {
	p := roster.Player{ID: id, Name: id, Role: role, Nationality: "Indian", BasePrice: d("2")}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// newTestEngine never shuffles and always picks the first free franchise,
// so alice gets csk, bob mi and carol rcb.
func newTestEngine(players ...roster.Player) *Engine {
	return New(Deps{
		Roster:  roster.NewCatalog(players),
		Now:     func() time.Time { return testNow },
		Shuffle: func(int, func(i, j int)) {},
		Intn:    func(int) int { return 0 },
	})
}

func mustApply(t *testing.T, e *Engine, s *State, cmd Command) []Event {
	t.Helper()
	events, err := e.Apply(s, cmd)
	require.NoError(t, err, "command %s", cmd.Type)
	return events
}

func reasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func countEvents(events []Event, t EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func findEvent(t *testing.T, events []Event, typ EventType) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Type == typ {
			return ev
		}
	}
	t.Fatalf("no %s event in %+v", typ, events)
	return Event{}
}

func newRoom(t *testing.T, e *Engine, rules Rules, names ...string) *State {
	t.Helper()
	s := NewState("IPL123", "host", rules)
	for _, n := range names {
		_, err := e.Admit(s, n, RoleParticipant)
		require.NoError(t, err)
	}
	mustApply(t, e, s, Command{Type: CmdAssignTeams, Caller: ctrl})
	return s
}

// startAuction runs retention with the given keep lists (empty for anyone
// not listed) and opens the pool.
func startAuction(t *testing.T, e *Engine, s *State, keep map[string][]string) []Event {
	t.Helper()
	mustApply(t, e, s, Command{Type: CmdStartRetention, Caller: ctrl})
	for _, name := range s.JoinOrder {
		mustApply(t, e, s, Command{Type: CmdSubmitRetention, Caller: as(name), Selection: keep[name]})
	}
	return mustApply(t, e, s, Command{Type: CmdStartAuctionPool, Caller: ctrl})
}

func bid(name, amount string) Command {
	return Command{Type: CmdPlaceBid, Caller: as(name), Amount: d(amount)}
}

func assertFundsConserved(t *testing.T, s *State) {
	t.Helper()
	for _, p := range s.Participants {
		total := p.BudgetRemaining
		for _, pu := range p.PurchasedPlayers {
			total = total.Add(pu.Price)
		}
		for _, pl := range p.RetainedPlayers {
			total = total.Add(pl.BasePrice)
		}
		assert.True(t, total.Equal(s.Rules.TotalPurse), "%s holds %s of %s", p.Username, total, s.Rules.TotalPurse)
		assert.False(t, p.BudgetRemaining.IsNegative(), "%s budget went negative", p.Username)
		assert.LessOrEqual(t, p.SquadCount(), s.Rules.SquadSize)
	}
}

func TestApply_UnknownCommand(t *testing.T) {
	e := newTestEngine()
	s := NewState("IPL100", "host", DefaultRules())

	_, err := e.Apply(s, Command{Type: "Dance", Caller: ctrl})
	require.ErrorIs(t, err, ErrUnsupportedCommand)

	_, err = e.Apply(nil, Command{Type: CmdPlaceBid})
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, KindStructural, KindOf(err))
}

func TestSaleScenario_HighestBidderBuys(t *testing.T) {
	e := newTestEngine(mkPlayer("kohli", roster.RoleBatter, marquee))
	s := newRoom(t, e, DefaultRules(), "alice", "bob")

	events := startAuction(t, e, s, nil)
	lot := findEvent(t, events, EvtLotOpened).Data.(LotOpened)
	assert.Equal(t, "kohli", lot.Player.ID)
	assert.Equal(t, CategoryMarquee, lot.Category)

	mustApply(t, e, s, bid("alice", "5"))
	mustApply(t, e, s, bid("bob", "7"))
	events = mustApply(t, e, s, Command{Type: CmdSellCurrentPlayer, Caller: ctrl})

	sold := findEvent(t, events, EvtPlayerSold).Data.(PlayerSold)
	assert.Equal(t, roster.FranchiseID("mi"), sold.BuyerFranchiseID)
	assert.True(t, sold.Price.Equal(d("7")))
	assert.Equal(t, TimerPresentation, findEvent(t, events, EvtTimerStarted).Timer)

	alice, bob := s.Participants["alice"], s.Participants["bob"]
	assert.True(t, alice.BudgetRemaining.Equal(d("100")))
	assert.Empty(t, alice.PurchasedPlayers)
	assert.True(t, bob.BudgetRemaining.Equal(d("93")))
	require.Len(t, bob.PurchasedPlayers, 1)
	assert.Equal(t, Purchase{Player: lot.Player, Price: d("7"), BuyerFranchiseID: "mi"}, bob.PurchasedPlayers[0])
	assert.Equal(t, StatusLotSold, s.Auction.Status)
	assertFundsConserved(t, s)

	_, err := e.Apply(s, Command{Type: CmdSellCurrentPlayer, Caller: ctrl})
	require.ErrorIs(t, err, ErrLotNotFound, "a lot cannot be settled twice")
	assert.Len(t, bob.PurchasedPlayers, 1)
}

func TestSellCurrentPlayer_NoBidder(t *testing.T) {
	e := newTestEngine(mkPlayer("kohli", roster.RoleBatter, marquee))
	s := newRoom(t, e, DefaultRules(), "alice", "bob")
	startAuction(t, e, s, nil)
	before := s.Snapshot()

	events, err := e.Apply(s, Command{Type: CmdSellCurrentPlayer, Caller: ctrl})
	require.ErrorIs(t, err, ErrNoBidder)
	assert.Empty(t, events, "no sale, no timer")
	assert.Equal(t, StatusLotOpen, s.Auction.Status)
	assert.Equal(t, before, s.Snapshot())
	for _, p := range s.Participants {
		assert.True(t, p.BudgetRemaining.Equal(d("100")), "%s was charged", p.Username)
		assert.Empty(t, p.PurchasedPlayers)
	}

	// The lot is still live: it can take a bid and then be sold.
	mustApply(t, e, s, bid("alice", "3"))
	events = mustApply(t, e, s, Command{Type: CmdSellCurrentPlayer, Caller: ctrl})
	assert.Equal(t, 1, countEvents(events, EvtPlayerSold))
	assertFundsConserved(t, s)
}

func TestPlaceBid_PriceIsMaxAccepted(t *testing.T) {
	e := newTestEngine(mkPlayer("kohli", roster.RoleBatter))
	s := newRoom(t, e, DefaultRules(), "alice", "bob")
	startAuction(t, e, s, nil)

	steps := []struct {
		cmd        Command
		wantReason Reason
		wantPrice  string
		wantBidder roster.FranchiseID
	}{
		{bid("alice", "2"), ReasonBidTooLow, "2", ""},
		{bid("alice", "3"), "", "3", "csk"},
		{bid("bob", "3"), ReasonBidTooLow, "3", "csk"},
		{bid("bob", "2.5"), ReasonBidTooLow, "3", "csk"},
		{bid("bob", "4.5"), "", "4.5", "mi"},
		{bid("alice", "101"), ReasonInsufficientBudget, "4.5", "mi"},
		{bid("alice", "4.5"), ReasonBidTooLow, "4.5", "mi"},
		{Command{Type: CmdPlaceBid, Caller: as("alice"), FranchiseID: "mi", Amount: d("9")}, ReasonNotYourFranchise, "4.5", "mi"},
		{bid("alice", "5"), "", "5", "csk"},
	}
	accepted := 0
	for i, st := range steps {
		events, err := e.Apply(s, st.cmd)
		if st.wantReason != "" {
			require.ErrorIs(t, err, ErrBidRejected, "step %d", i)
			assert.Equal(t, st.wantReason, reasonOf(err), "step %d", i)
			assert.Nil(t, events)
		} else {
			require.NoError(t, err, "step %d", i)
			accepted++
			ev := findEvent(t, events, EvtBidAccepted).Data.(BidAccepted)
			assert.Equal(t, st.wantBidder, ev.FranchiseID)
		}
		assert.True(t, s.Auction.Bid.CurrentPrice.Equal(d(st.wantPrice)), "step %d price %s", i, s.Auction.Bid.CurrentPrice)
		assert.Equal(t, st.wantBidder, s.Auction.Bid.CurrentBidder, "step %d", i)
	}
	assert.Len(t, s.Auction.Bid.History, accepted)
}

func TestPlaceBid_Rejections(t *testing.T) {
	t.Run("no lot open", func(t *testing.T) {
		e := newTestEngine(mkPlayer("kohli", roster.RoleBatter))
		s := newRoom(t, e, DefaultRules(), "alice")
		_, err := e.Apply(s, bid("alice", "3"))
		require.ErrorIs(t, err, ErrBidRejected)
		assert.Equal(t, ReasonNoLotOpen, reasonOf(err))
	})

	t.Run("controller cannot bid", func(t *testing.T) {
		e := newTestEngine(mkPlayer("kohli", roster.RoleBatter))
		s := newRoom(t, e, DefaultRules(), "alice")
		startAuction(t, e, s, nil)
		_, err := e.Apply(s, Command{Type: CmdPlaceBid, Caller: ctrl, Amount: d("3")})
		require.ErrorIs(t, err, ErrInvalidRole)
		assert.Equal(t, KindProtocol, KindOf(err))
	})

	t.Run("stale lot is structural", func(t *testing.T) {
		e := newTestEngine(mkPlayer("kohli", roster.RoleBatter))
		s := newRoom(t, e, DefaultRules(), "alice")
		startAuction(t, e, s, nil)
		_, err := e.Apply(s, Command{Type: CmdPlaceBid, Caller: as("alice"), PlayerID: "dhoni", Amount: d("3")})
		require.ErrorIs(t, err, ErrLotNotFound)
		assert.Equal(t, KindStructural, KindOf(err))
		assert.Empty(t, s.Auction.Bid.History)
	})

	t.Run("squad full", func(t *testing.T) {
		e := newTestEngine(
			mkPlayer("dhoni", roster.RoleWicketKeeper, from("csk")),
			mkPlayer("kohli", roster.RoleBatter),
		)
		rules := DefaultRules()
		rules.SquadSize = 1
		s := newRoom(t, e, rules, "alice", "bob")
		startAuction(t, e, s, map[string][]string{"alice": {"dhoni"}})

		_, err := e.Apply(s, bid("alice", "3"))
		require.ErrorIs(t, err, ErrBidRejected)
		assert.Equal(t, ReasonSquadFull, reasonOf(err))
		mustApply(t, e, s, bid("bob", "3"))
	})
}

func TestPlaceBid_NationalityCapsFollowFlag(t *testing.T) {
	for _, enforce := range []bool{false, true} {
		e := newTestEngine(
			mkPlayer("conway", roster.RoleBatter, overseas, from("csk")),
			mkPlayer("buttler", roster.RoleWicketKeeper, overseas),
		)
		rules := DefaultRules()
		rules.MaxOverseasSlots = 1
		rules.EnforceCapsInAuction = enforce
		s := newRoom(t, e, rules, "alice")
		startAuction(t, e, s, map[string][]string{"alice": {"conway"}})

		_, err := e.Apply(s, bid("alice", "3"))
		if enforce {
			require.ErrorIs(t, err, ErrBidRejected)
			assert.Equal(t, ReasonOverseasCap, reasonOf(err))
		} else {
			require.NoError(t, err)
		}
	}
}

func TestLotTraversal_UnsoldRequeuedLast(t *testing.T) {
	e := newTestEngine(
		mkPlayer("m1", roster.RoleBatter, marquee),
		mkPlayer("w1", roster.RoleWicketKeeper),
		mkPlayer("b1", roster.RoleBatter),
	)
	s := newRoom(t, e, DefaultRules(), "alice", "bob")
	events := startAuction(t, e, s, nil)
	assert.Equal(t, "m1", findEvent(t, events, EvtLotOpened).Data.(LotOpened).Player.ID)

	events = mustApply(t, e, s, Command{Type: CmdMarkUnsold, Caller: ctrl})
	assert.True(t, ContainsEvent(events, EvtPlayerUnsold))
	assert.Equal(t, TimerPresentation, findEvent(t, events, EvtTimerStarted).Timer)
	assert.Equal(t, StatusLotUnsold, s.Auction.Status)

	// Manual advance beats the presentation timer.
	events = mustApply(t, e, s, Command{Type: CmdAdvanceToNextLot, Caller: ctrl})
	assert.True(t, ContainsEvent(events, EvtTimerCancelled))
	assert.Equal(t, CategoryWK, findEvent(t, events, EvtCategoryOpened).Data.(CategoryOpened).Category)
	assert.Equal(t, "w1", findEvent(t, events, EvtLotOpened).Data.(LotOpened).Player.ID)

	// The timer that lost the race is a no-op.
	events, err := e.Apply(s, SystemCommand(CmdPresentationElapsed))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, "w1", s.Snapshot().CurrentPlayer.ID)

	_, err = e.Apply(s, Command{Type: CmdAdvanceToNextLot, Caller: ctrl})
	require.ErrorIs(t, err, ErrLotStillOpen)

	mustApply(t, e, s, bid("bob", "3"))
	_, err = e.Apply(s, Command{Type: CmdMarkUnsold, Caller: ctrl})
	require.ErrorIs(t, err, ErrHasBidder)
	mustApply(t, e, s, Command{Type: CmdSellCurrentPlayer, Caller: ctrl})

	events = mustApply(t, e, s, SystemCommand(CmdPresentationElapsed))
	assert.Equal(t, "b1", findEvent(t, events, EvtLotOpened).Data.(LotOpened).Player.ID)
	mustApply(t, e, s, Command{Type: CmdMarkUnsold, Caller: ctrl})

	// AR, SPIN and FAST are empty; UNSOLD opens with the carryover in order.
	events = mustApply(t, e, s, SystemCommand(CmdPresentationElapsed))
	assert.Equal(t, CategoryUnsold, findEvent(t, events, EvtCategoryOpened).Data.(CategoryOpened).Category)
	assert.Equal(t, "m1", findEvent(t, events, EvtLotOpened).Data.(LotOpened).Player.ID)

	snap := s.Snapshot()
	assert.Equal(t, CategoryUnsold, snap.Category)
	assert.Equal(t, 2, snap.CategorySize)
	assert.Equal(t, 1, snap.PositionInCategory)
	assert.Equal(t, 1, snap.PlayersLeftInCategory)
	assert.Equal(t, 0, snap.UnsoldCount)

	mustApply(t, e, s, Command{Type: CmdMarkUnsold, Caller: ctrl})
	mustApply(t, e, s, Command{Type: CmdAdvanceToNextLot, Caller: ctrl})
	mustApply(t, e, s, Command{Type: CmdMarkUnsold, Caller: ctrl})
	events = mustApply(t, e, s, Command{Type: CmdAdvanceToNextLot, Caller: ctrl})

	assert.True(t, ContainsEvent(events, EvtAuctionComplete))
	assert.Equal(t, PhaseSquadFinalization, s.Phase)
	snap = s.Snapshot()
	assert.Equal(t, StatusComplete, snap.Status)
	assert.Nil(t, snap.CurrentPlayer)
	assert.Equal(t, 2, snap.UnsoldCount)

	events, err = e.Apply(s, SystemCommand(CmdPresentationElapsed))
	require.NoError(t, err)
	assert.Empty(t, events)
	assertFundsConserved(t, s)
}

func TestSystemCommands_RequireSystemCaller(t *testing.T) {
	e := newTestEngine(mkPlayer("kohli", roster.RoleBatter))
	s := newRoom(t, e, DefaultRules(), "alice")
	startAuction(t, e, s, nil)

	for _, typ := range []CommandType{CmdPresentationElapsed, CmdRTMDeadline, CmdRetentionDeadline} {
		_, err := e.Apply(s, Command{Type: typ, Caller: ctrl})
		require.ErrorIs(t, err, ErrInvalidRole, "%s", typ)
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	e := newTestEngine(
		mkPlayer("kohli", roster.RoleBatter, marquee),
		mkPlayer("bumrah", roster.RoleBowler, bowls(roster.BowlingFast), from("mi")),
	)
	s := newRoom(t, e, DefaultRules(), "alice", "bob")
	startAuction(t, e, s, nil)
	mustApply(t, e, s, bid("alice", "4"))

	first := s.Snapshot()
	second := s.Snapshot()
	assert.Equal(t, first, second)

	require.NotNil(t, first.CurrentPlayer)
	assert.Equal(t, "kohli", first.CurrentPlayer.ID)
	assert.True(t, first.CurrentPlayer.CurrentBid.Equal(d("4")))
	assert.Equal(t, roster.FranchiseID("csk"), first.CurrentPlayer.CurrentBidder)
	assert.Equal(t, 1, first.CurrentPlayer.BidCount)
	assert.Equal(t, CategoryMarquee, first.Category)
	assert.Equal(t, 0, first.PlayersLeftInCategory)
	assert.Len(t, first.Participants, 2)
}

func TestEndAuction_ForcesCompletion(t *testing.T) {
	e := newTestEngine(
		mkPlayer("kohli", roster.RoleBatter),
		mkPlayer("gill", roster.RoleBatter),
	)
	s := newRoom(t, e, DefaultRules(), "alice", "bob")
	startAuction(t, e, s, nil)
	mustApply(t, e, s, bid("alice", "3"))

	_, err := e.Apply(s, Command{Type: CmdEndAuction, Caller: as("alice")})
	require.ErrorIs(t, err, ErrInvalidRole)

	events := mustApply(t, e, s, Command{Type: CmdEndAuction, Caller: ctrl})
	assert.True(t, findEvent(t, events, EvtAuctionComplete).Data.(AuctionComplete).Forced)
	assert.True(t, ContainsEvent(events, EvtPlayerUnsold))
	assert.Equal(t, PhaseSquadFinalization, s.Phase)
	assert.Equal(t, 1, s.Snapshot().UnsoldCount)
	assert.Empty(t, s.Participants["alice"].PurchasedPlayers)
}

func TestResetAuction_AllowsSecondRun(t *testing.T) {
	e := newTestEngine(mkPlayer("kohli", roster.RoleBatter))
	s := newRoom(t, e, DefaultRules(), "alice", "bob")
	startAuction(t, e, s, nil)

	_, err := e.Apply(s, Command{Type: CmdStartAuctionPool, Caller: ctrl})
	require.ErrorIs(t, err, ErrAuctionAlreadyInitialized)

	mustApply(t, e, s, bid("bob", "7"))
	mustApply(t, e, s, Command{Type: CmdSellCurrentPlayer, Caller: ctrl})

	events := mustApply(t, e, s, Command{Type: CmdResetAuction, Caller: ctrl})
	assert.True(t, ContainsEvent(events, EvtAuctionReset))
	assert.Nil(t, s.Auction)
	assert.Equal(t, PhaseRetention, s.Phase)
	assert.True(t, s.Participants["bob"].BudgetRemaining.Equal(d("100")))
	assert.Empty(t, s.Participants["bob"].PurchasedPlayers)
	assertFundsConserved(t, s)

	events = mustApply(t, e, s, Command{Type: CmdStartAuctionPool, Caller: ctrl})
	assert.Equal(t, "kohli", findEvent(t, events, EvtLotOpened).Data.(LotOpened).Player.ID)
}
