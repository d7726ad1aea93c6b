package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one raw roster entry as it appears in a data file. Exported
// datasets disagree on key spellings ("player name", "Player_Name", "name"),
// so lookups go through canonical keys only.
type Record map[string]any

var ErrMissingName = errors.New("record has no player name")

var defaultBasePrice = decimal.NewFromInt(2)

var recordKeys = map[string][]string{
	"id":           {"id", "playerid"},
	"name":         {"playername", "name", "player"},
	"role":         {"playerrole", "role", "type"},
	"bowling":      {"bowlingtype", "bowlingstyle", "bowling"},
	"nationality":  {"nationality", "country"},
	"team":         {"teamname", "team", "franchise", "iplteam"},
	"baseprice":    {"baseprice", "base", "price"},
	"marquee":      {"marquee", "ismarquee"},
	"matches":      {"matches", "matchesplayed"},
	"runs":         {"totalruns", "runs"},
	"strikerate":   {"strikerate", "sr"},
	"wickets":      {"wickets", "totalwickets"},
	"economy":      {"economyrate", "economy"},
	"highestscore": {"highestscore", "hs"},
}

func canonicalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if r == ' ' || r == '_' || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r Record) lookup(field string) (any, bool) {
	byKey := make(map[string]any, len(r))
	for k, v := range r {
		byKey[canonicalKey(k)] = v
	}
	for _, k := range recordKeys[field] {
		if v, ok := byKey[k]; ok && v != nil {
			return v, true
		}
	}
	// Some exports prefix the team column ("IPL Team 2024", "team_name_old").
	if field == "team" {
		for k, v := range byKey {
			if strings.Contains(k, "team") && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func (r Record) str(field string) string {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func (r Record) number(field string) float64 {
	s := strings.TrimSpace(strings.TrimSuffix(r.str(field), "*"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Normalize converts a raw record into a Player.
func (r Record) Normalize() (Player, error) {
	name := r.str("name")
	if name == "" {
		return Player{}, ErrMissingName
	}
	price, err := parsePrice(r.str("baseprice"))
	if err != nil {
		return Player{}, fmt.Errorf("player %q: %w", name, err)
	}

	id := r.str("id")
	if id == "" {
		id = strings.Join(strings.Fields(name), "_")
	}

	nationality, overseas := normalizeNationality(r.str("nationality"))
	return Player{
		ID:                  id,
		Name:                name,
		Role:                normalizeRole(r.str("role")),
		BowlingType:         normalizeBowling(r.str("bowling")),
		Nationality:         nationality,
		Overseas:            overseas,
		Marquee:             parseFlag(r.str("marquee")),
		OriginalFranchiseID: NormalizeFranchiseName(r.str("team")),
		BasePrice:           price,
		Stats: Stats{
			Matches:      int(r.number("matches")),
			Runs:         int(r.number("runs")),
			StrikeRate:   r.number("strikerate"),
			Wickets:      int(r.number("wickets")),
			Economy:      r.number("economy"),
			HighestScore: r.str("highestscore"),
		},
	}, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, unit := range []string{"crore", "cr", "₹"} {
		s = strings.ReplaceAll(s, unit, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultBasePrice, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid base price %q", raw)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative base price %q", raw)
	}
	return d, nil
}

func normalizeRole(raw string) Role {
	u := strings.ToUpper(raw)
	switch {
	case strings.Contains(u, "WK"), strings.Contains(u, "KEEPER"):
		return RoleWicketKeeper
	case strings.Contains(u, "BAT"):
		return RoleBatter
	case u == "AR", strings.Contains(u, "ALLROUND"), strings.Contains(u, "ALL-ROUND"),
		strings.Contains(u, "ALL ROUND"), hasToken(u, "AR"):
		return RoleAllRounder
	case strings.Contains(u, "BOWL"):
		return RoleBowler
	}
	return RoleUnknown
}

func normalizeBowling(raw string) BowlingType {
	u := strings.ToUpper(raw)
	switch {
	case strings.Contains(u, "SPIN"), strings.Contains(u, "BREAK"), strings.Contains(u, "ORTHODOX"):
		return BowlingSpin
	case strings.Contains(u, "FAST"), strings.Contains(u, "PACE"), strings.Contains(u, "MEDIUM"), strings.Contains(u, "SEAM"):
		return BowlingFast
	}
	return BowlingNone
}

func normalizeNationality(raw string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(raw))
	switch n {
	case "", "ind", "india", "indian":
		return "Indian", false
	}
	return "Overseas", true
}

func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

func hasToken(s, tok string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '/' || r == '-' || r == ','
	}) {
		if f == tok {
			return true
		}
	}
	return false
}
