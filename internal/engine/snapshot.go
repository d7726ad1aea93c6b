package engine

import (
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
)

// LotView is the player on the block with the live bid merged in.
type LotView struct {
	roster.Player
	CurrentBid    decimal.Decimal    `json:"current_bid"`
	CurrentBidder roster.FranchiseID `json:"current_bidder,omitempty"`
	BidCount      int                `json:"bid_count"`
}

type RTMView struct {
	PlayerID            string             `json:"player_id"`
	OriginalFranchiseID roster.FranchiseID `json:"original_franchise_id"`
	WinningFranchiseID  roster.FranchiseID `json:"winning_franchise_id"`
	WinningBid          decimal.Decimal    `json:"winning_bid"`
	Deadline            time.Time          `json:"deadline"`
}

type ParticipantView struct {
	Username           string             `json:"username"`
	FranchiseID        roster.FranchiseID `json:"franchise_id,omitempty"`
	Connected          bool               `json:"connected"`
	BudgetRemaining    decimal.Decimal    `json:"budget_remaining"`
	SquadCount         int                `json:"squad_count"`
	RTMCards           int                `json:"rtm_cards"`
	RetentionSubmitted bool               `json:"retention_submitted"`
}

// Snapshot is a total description of a room. A client can apply it
// unconditionally, whatever it missed.
type Snapshot struct {
	Room                  string            `json:"room"`
	Phase                 Phase             `json:"phase"`
	Rules                 Rules             `json:"rules"`
	Status                AuctionStatus     `json:"status,omitempty"`
	CurrentPlayer         *LotView          `json:"current_player"`
	Category              Category          `json:"category,omitempty"`
	CategorySize          int               `json:"category_size"`
	PositionInCategory    int               `json:"position_in_category"`
	PlayersLeftInCategory int               `json:"players_left_in_category"`
	UnsoldCount           int               `json:"unsold_count"`
	RTM                   *RTMView          `json:"rtm,omitempty"`
	RetentionDeadline     *time.Time        `json:"retention_deadline,omitempty"`
	ControllerConnected   bool              `json:"controller_connected"`
	Participants          []ParticipantView `json:"participants"`
}

// Snapshot is a pure read of s.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Room:                s.Code,
		Phase:               s.Phase,
		Rules:               s.Rules,
		ControllerConnected: s.ControllerConnected,
		Participants:        make([]ParticipantView, 0, len(s.JoinOrder)),
	}
	for _, p := range s.orderedParticipants() {
		snap.Participants = append(snap.Participants, ParticipantView{
			Username:           p.Username,
			FranchiseID:        p.FranchiseID,
			Connected:          p.Connected,
			BudgetRemaining:    p.BudgetRemaining,
			SquadCount:         p.SquadCount(),
			RTMCards:           p.RTMCards,
			RetentionSubmitted: p.RetentionSubmitted,
		})
	}
	if s.Phase == PhaseRetention && s.Retention.Open {
		deadline := s.Retention.Deadline
		snap.RetentionDeadline = &deadline
	}

	a := s.Auction
	if a == nil {
		return snap
	}
	snap.Status = a.Status
	snap.UnsoldCount = len(a.Carryover)

	if a.Status == StatusComplete {
		return snap
	}
	cat := a.category()
	size := len(a.Categories[cat])
	snap.Category = cat
	snap.CategorySize = size
	if a.Cursor >= 0 {
		snap.PositionInCategory = a.Cursor + 1
		snap.PlayersLeftInCategory = size - a.Cursor - 1
	} else {
		snap.PlayersLeftInCategory = size
	}

	if player, ok := a.currentPlayer(); ok {
		snap.CurrentPlayer = &LotView{
			Player:        player,
			CurrentBid:    a.Bid.CurrentPrice,
			CurrentBidder: a.Bid.CurrentBidder,
			BidCount:      len(a.Bid.History),
		}
	}
	if a.RTM != nil {
		snap.RTM = &RTMView{
			PlayerID:            a.RTM.Player.ID,
			OriginalFranchiseID: a.RTM.OriginalFranchiseID,
			WinningFranchiseID:  a.RTM.WinningFranchiseID,
			WinningBid:          a.RTM.WinningBid,
			Deadline:            a.RTM.Deadline,
		}
	}
	return snap
}

type SquadCounts struct {
	Total    int `json:"total"`
	Indian   int `json:"indian"`
	Overseas int `json:"overseas"`
}

type SquadLimits struct {
	SquadSize   int `json:"squad_size"`
	MaxIndian   int `json:"max_indian"`
	MaxOverseas int `json:"max_overseas"`
}

type SquadView struct {
	Username        string           `json:"username"`
	Franchise       roster.Franchise `json:"franchise"`
	Retained        []roster.Player  `json:"retained"`
	Purchased       []Purchase       `json:"purchased"`
	BudgetRemaining decimal.Decimal  `json:"budget_remaining"`
	RTMCards        int              `json:"rtm_cards"`
	Counts          SquadCounts      `json:"counts"`
	Limits          SquadLimits      `json:"limits"`
}

func (e *Engine) Squad(s *State, username string) (SquadView, error) {
	if s == nil {
		return SquadView{}, ErrRoomNotFound
	}
	p, ok := s.Participants[username]
	if !ok {
		return SquadView{}, ErrParticipantNotFound
	}
	indian, overseas := p.nationalityCounts()
	return SquadView{
		Username:        p.Username,
		Franchise:       e.franchise(p.FranchiseID),
		Retained:        append([]roster.Player{}, p.RetainedPlayers...),
		Purchased:       append([]Purchase{}, p.PurchasedPlayers...),
		BudgetRemaining: p.BudgetRemaining,
		RTMCards:        p.RTMCards,
		Counts:          SquadCounts{Total: p.SquadCount(), Indian: indian, Overseas: overseas},
		Limits: SquadLimits{
			SquadSize:   s.Rules.SquadSize,
			MaxIndian:   s.Rules.MaxIndianSlots,
			MaxOverseas: s.Rules.MaxOverseasSlots,
		},
	}, nil
}
