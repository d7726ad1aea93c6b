package engine

import (
	"github.com/DoyleJ11/franchise-auction/internal/roster"
)

func requireController(cmd Command) error {
	if cmd.Caller.Role != RoleController {
		return ErrInvalidRole
	}
	return nil
}

func requireSystem(cmd Command) error {
	if cmd.Caller.Role != RoleSystem {
		return ErrInvalidRole
	}
	return nil
}

// callingParticipant resolves the participant issuing cmd.
func callingParticipant(s *State, cmd Command) (*Participant, error) {
	if cmd.Caller.Role != RoleParticipant {
		return nil, ErrInvalidRole
	}
	p, ok := s.Participants[cmd.Caller.Username]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// capViolation reports the nationality cap that adding pl to p's squad would
// break, or "" when it fits.
func capViolation(r Rules, p *Participant, pl roster.Player) Reason {
	indian, overseas := p.nationalityCounts()
	if pl.Overseas {
		if r.MaxOverseasSlots > 0 && overseas >= r.MaxOverseasSlots {
			return ReasonOverseasCap
		}
		return ""
	}
	if r.MaxIndianSlots > 0 && indian >= r.MaxIndianSlots {
		return ReasonIndianCap
	}
	return ""
}

func removePurchase(purchases []Purchase, playerID string) ([]Purchase, bool) {
	for i, pu := range purchases {
		if pu.Player.ID == playerID {
			return append(purchases[:i:i], purchases[i+1:]...), true
		}
	}
	return purchases, false
}
