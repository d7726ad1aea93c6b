package types

import (
	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/shopspring/decimal"
)

// ClientMessage is one inbound frame. Which fields matter depends on Type.
type ClientMessage struct {
	Type        string          `json:"type"`
	FranchiseID string          `json:"franchise_id,omitempty"`
	Username    string          `json:"username,omitempty"`
	PlayerID    string          `json:"player_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Selection   []string        `json:"selection,omitempty"`
	Accept      bool            `json:"accept,omitempty"`
	Rules       *engine.Rules   `json:"rules,omitempty"`
}

// Server message types that are not engine events.
const (
	TypeStateSnapshot = "stateSnapshot"
	TypeSquadUpdate   = "squadUpdate"
	TypeError         = "error"
)

type ServerMessage struct {
	Type     string           `json:"type"` // engine event type | "stateSnapshot" | "squadUpdate" | "error"
	Version  int              `json:"version,omitempty"`
	Data     any              `json:"data,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Error    *ErrorBody       `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	// Resync asks the client to apply the attached snapshot, or pull one,
	// instead of retrying.
	Resync bool `json:"resync,omitempty"`
}
