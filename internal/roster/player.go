package roster

import "github.com/shopspring/decimal"

type Role string

const (
	RoleWicketKeeper Role = "WK"
	RoleBatter       Role = "BAT"
	RoleAllRounder   Role = "AR"
	RoleBowler       Role = "BOWL"
	RoleUnknown      Role = ""
)

type BowlingType string

const (
	BowlingSpin BowlingType = "SPIN"
	BowlingFast BowlingType = "FAST"
	BowlingNone BowlingType = ""
)

type Stats struct {
	Matches      int     `json:"matches,omitempty" yaml:"matches,omitempty"`
	Runs         int     `json:"runs,omitempty" yaml:"runs,omitempty"`
	StrikeRate   float64 `json:"strike_rate,omitempty" yaml:"strike_rate,omitempty"`
	Wickets      int     `json:"wickets,omitempty" yaml:"wickets,omitempty"`
	Economy      float64 `json:"economy,omitempty" yaml:"economy,omitempty"`
	HighestScore string  `json:"highest_score,omitempty" yaml:"highest_score,omitempty"`
}

// Player is a validated roster record. Every field is already in canonical
// form; nothing downstream should look at the raw record again.
type Player struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Role                Role            `json:"role"`
	BowlingType         BowlingType     `json:"bowling_type,omitempty"`
	Nationality         string          `json:"nationality"`
	Overseas            bool            `json:"overseas"`
	Marquee             bool            `json:"marquee,omitempty"`
	OriginalFranchiseID FranchiseID     `json:"original_franchise_id,omitempty"`
	BasePrice           decimal.Decimal `json:"base_price"`
	Stats               Stats           `json:"stats"`
}
