package engine

import (
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseLobby             Phase = "lobby"
	PhaseTeamAssignment    Phase = "team_assignment"
	PhaseRetention         Phase = "retention"
	PhaseAuctionPool       Phase = "auction_pool"
	PhaseSquadFinalization Phase = "squad_finalization"
	PhaseRated             Phase = "rated"
)

// Role is the caller's role inside a room, as bound into its session.
type Role string

const (
	RoleController  Role = "controller"
	RoleParticipant Role = "participant"
	// RoleSystem is reserved for deferred transitions raised by the room's own timers.
	RoleSystem Role = "system"
)

type Category string

const (
	CategoryMarquee Category = "MARQUEE"
	CategoryWK      Category = "WK"
	CategoryBAT     Category = "BAT"
	CategoryAR      Category = "AR"
	CategorySpin    Category = "SPIN"
	CategoryFast    Category = "FAST"
	CategoryUnsold  Category = "UNSOLD"
)

// CategoryOrder is the traversal order of an auction run.
var CategoryOrder = []Category{
	CategoryMarquee,
	CategoryWK,
	CategoryBAT,
	CategoryAR,
	CategorySpin,
	CategoryFast,
	CategoryUnsold,
}

// UncategorizedPolicy decides what happens to players that match no category.
type UncategorizedPolicy string

const (
	UncategorizedExclude UncategorizedPolicy = "exclude"
	UncategorizedUnsold  UncategorizedPolicy = "unsold"
)

type Rules struct {
	SquadSize  int             `json:"squad_size"`
	TotalPurse decimal.Decimal `json:"total_purse"`
	// Zero means no cap.
	MaxIndianSlots   int `json:"max_indian_slots"`
	MaxOverseasSlots int `json:"max_overseas_slots"`
	RTMCards         int `json:"rtm_cards"`
	// Retention always honours the nationality caps; live bids and RTM
	// accepts only do when this is set.
	EnforceCapsInAuction bool                `json:"enforce_caps_in_auction"`
	Uncategorized        UncategorizedPolicy `json:"uncategorized_policy"`
}

func DefaultRules() Rules {
	return Rules{
		SquadSize:        25,
		TotalPurse:       decimal.NewFromInt(100),
		MaxIndianSlots:   4,
		MaxOverseasSlots: 3,
		RTMCards:         2,
		Uncategorized:    UncategorizedExclude,
	}
}

// WithDefaults fills fields a client may leave out.
func (r Rules) WithDefaults() Rules {
	if r.Uncategorized == "" {
		r.Uncategorized = UncategorizedExclude
	}
	return r
}

func (r Rules) Validate() error {
	switch {
	case r.SquadSize <= 0:
		return ErrInvalidRules.because("", "squad size must be positive")
	case !r.TotalPurse.IsPositive():
		return ErrInvalidRules.because("", "total purse must be positive")
	case r.MaxIndianSlots < 0, r.MaxOverseasSlots < 0:
		return ErrInvalidRules.because("", "nationality caps cannot be negative")
	case r.RTMCards < 0:
		return ErrInvalidRules.because("", "rtm cards cannot be negative")
	}
	switch r.Uncategorized {
	case UncategorizedExclude, UncategorizedUnsold:
	default:
		return ErrInvalidRules.because("", "unknown uncategorized policy")
	}
	return nil
}

// Timing holds the windows of the room's deferred transitions.
type Timing struct {
	RetentionWindow   time.Duration
	RTMWindow         time.Duration
	PresentationDelay time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		RetentionWindow:   90 * time.Second,
		RTMWindow:         30 * time.Second,
		PresentationDelay: 3 * time.Second,
	}
}

type Purchase struct {
	Player           roster.Player      `json:"player"`
	Price            decimal.Decimal    `json:"price"`
	BuyerFranchiseID roster.FranchiseID `json:"buyer_franchise_id"`
	ViaRTM           bool               `json:"via_rtm"`
}

type Participant struct {
	Username           string
	FranchiseID        roster.FranchiseID
	ConnectionRef      string
	Connected          bool
	BudgetRemaining    decimal.Decimal
	RTMCards           int
	RetainedPlayers    []roster.Player
	PurchasedPlayers   []Purchase
	RetentionSubmitted bool
	HasUsedReshuffle   bool
}

// SquadCount is the number of players held, retained plus purchased.
func (p *Participant) SquadCount() int {
	return len(p.RetainedPlayers) + len(p.PurchasedPlayers)
}

func (p *Participant) nationalityCounts() (indian, overseas int) {
	count := func(pl roster.Player) {
		if pl.Overseas {
			overseas++
		} else {
			indian++
		}
	}
	for _, pl := range p.RetainedPlayers {
		count(pl)
	}
	for _, pu := range p.PurchasedPlayers {
		count(pu.Player)
	}
	return indian, overseas
}

type BidRecord struct {
	FranchiseID roster.FranchiseID `json:"franchise_id"`
	Username    string             `json:"username"`
	Amount      decimal.Decimal    `json:"amount"`
	At          time.Time          `json:"at"`
}

type BidState struct {
	CurrentPrice  decimal.Decimal
	CurrentBidder roster.FranchiseID
	History       []BidRecord
}

type AuctionStatus string

const (
	StatusIdle       AuctionStatus = "idle"
	StatusLotOpen    AuctionStatus = "lot_open"
	StatusLotSold    AuctionStatus = "lot_sold"
	StatusLotUnsold  AuctionStatus = "lot_unsold"
	StatusRTMPending AuctionStatus = "rtm_pending"
	StatusLotClosed  AuctionStatus = "lot_closed"
	StatusComplete   AuctionStatus = "complete"
)

type RTMOffer struct {
	Player              roster.Player
	OriginalFranchiseID roster.FranchiseID
	WinningBid          decimal.Decimal
	WinningFranchiseID  roster.FranchiseID
	Deadline            time.Time
	Resolved            bool
}

// Auction is one run over the categorized pool.
type Auction struct {
	Status        AuctionStatus
	Categories    map[Category][]roster.Player
	CategoryIndex int
	// Cursor indexes the current category; -1 until the first lot opens.
	Cursor    int
	Bid       BidState
	Carryover []roster.Player
	RTM       *RTMOffer
	Excluded  int
}

func (a *Auction) category() Category {
	if a.CategoryIndex >= len(CategoryOrder) {
		return ""
	}
	return CategoryOrder[a.CategoryIndex]
}

// currentPlayer is the player on the block, including a lot that has just
// been settled and is waiting for the next one.
func (a *Auction) currentPlayer() (roster.Player, bool) {
	if a.Status == StatusIdle || a.Status == StatusComplete {
		return roster.Player{}, false
	}
	players := a.Categories[a.category()]
	if a.Cursor < 0 || a.Cursor >= len(players) {
		return roster.Player{}, false
	}
	return players[a.Cursor], true
}

type RetentionState struct {
	Open          bool
	Deadline      time.Time
	ReadyNotified bool
}

// State is everything a room knows. It is owned by exactly one goroutine.
type State struct {
	Code                string
	ControllerID        string
	ControllerConnected bool
	Phase               Phase
	Rules               Rules
	Participants        map[string]*Participant
	JoinOrder           []string
	TeamsAssigned       bool
	Retention           RetentionState
	Auction             *Auction
}

func NewState(code, controller string, rules Rules) *State {
	return &State{
		Code:         code,
		ControllerID: controller,
		Phase:        PhaseLobby,
		Rules:        rules,
		Participants: make(map[string]*Participant),
	}
}

// orderedParticipants returns participants in join order.
func (s *State) orderedParticipants() []*Participant {
	out := make([]*Participant, 0, len(s.JoinOrder))
	for _, name := range s.JoinOrder {
		if p := s.Participants[name]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (s *State) participantByFranchise(id roster.FranchiseID) *Participant {
	if id == "" {
		return nil
	}
	for _, p := range s.orderedParticipants() {
		if p.FranchiseID == id {
			return p
		}
	}
	return nil
}
