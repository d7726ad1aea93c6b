package engine

import (
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/roster"
)

// RosterProvider is the read-only player source shared by every room.
type RosterProvider interface {
	Players() []roster.Player
	ByFranchise(id roster.FranchiseID) []roster.Player
}

type Deps struct {
	Roster     RosterProvider
	Franchises []roster.Franchise
	Timing     Timing
	Now        func() time.Time
	// Shuffle permutes n elements in place through swap.
	Shuffle func(n int, swap func(i, j int))
	// Intn returns a uniform int in [0, n).
	Intn func(n int) int
}

// Engine applies commands to a room State. It holds no room data and never
// blocks: deferred transitions are requested through timer events and come
// back as system commands.
type Engine struct {
	deps Deps
}

func New(deps Deps) *Engine {
	if deps.Roster == nil {
		deps.Roster = roster.NewCatalog(nil)
	}
	if deps.Franchises == nil {
		deps.Franchises = roster.Franchises()
	}
	if deps.Timing == (Timing{}) {
		deps.Timing = DefaultTiming()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Shuffle == nil {
		deps.Shuffle = rand.Shuffle
	}
	if deps.Intn == nil {
		deps.Intn = rand.IntN
	}
	return &Engine{deps: deps}
}

func (e *Engine) Timing() Timing { return e.deps.Timing }

// Apply validates cmd against s and, only if it is accepted, mutates s.
// A rejected command returns an *Error and leaves s untouched. A deferred
// transition whose guard no longer holds returns no events and no error.
func (e *Engine) Apply(s *State, cmd Command) ([]Event, error) {
	if s == nil {
		return nil, ErrRoomNotFound
	}

	switch cmd.Type {
	case CmdSetRules:
		return e.setRules(s, cmd)
	case CmdAssignTeams:
		return e.assignTeams(s, cmd)
	case CmdRequestReshuffle:
		return e.requestReshuffle(s, cmd)
	case CmdForceReshuffle:
		return e.forceReshuffle(s, cmd)
	case CmdStartRetention:
		return e.startRetention(s, cmd)
	case CmdSubmitRetention:
		return e.submitRetention(s, cmd)
	case CmdRetentionDeadline:
		return e.retentionDeadline(s, cmd)
	case CmdStartAuctionPool:
		return e.startAuctionPool(s, cmd)
	case CmdPlaceBid:
		return e.placeBid(s, cmd)
	case CmdSellCurrentPlayer:
		return e.sellCurrentPlayer(s, cmd)
	case CmdMarkUnsold:
		return e.markUnsold(s, cmd)
	case CmdAdvanceToNextLot:
		return e.advanceToNextLot(s, cmd)
	case CmdPresentationElapsed:
		return e.presentationElapsed(s, cmd)
	case CmdSubmitRTMDecision:
		return e.submitRTMDecision(s, cmd)
	case CmdRTMDeadline:
		return e.rtmDeadline(s, cmd)
	case CmdEndAuction:
		return e.endAuction(s, cmd)
	case CmdResetAuction:
		return e.resetAuction(s, cmd)
	default:
		return nil, ErrUnsupportedCommand
	}
}

// Admit registers username in the room ahead of its first connection. New
// participants are only accepted in the lobby; a known username is always
// admitted again.
func (e *Engine) Admit(s *State, username string, role Role) ([]Event, error) {
	if s == nil {
		return nil, ErrRoomNotFound
	}
	switch role {
	case RoleController:
		if username != s.ControllerID {
			return nil, ErrInvalidRole
		}
		return nil, nil
	case RoleParticipant:
	default:
		return nil, ErrInvalidRole
	}

	if username == "" || username == s.ControllerID {
		return nil, ErrInvalidRole
	}
	if _, ok := s.Participants[username]; ok {
		return nil, nil
	}
	if s.Phase != PhaseLobby {
		return nil, ErrWrongPhase.because("", "room is no longer accepting new participants")
	}
	if len(s.Participants) >= len(e.deps.Franchises) {
		return nil, ErrNoFranchiseAvailable.because("", "room is full")
	}

	s.Participants[username] = &Participant{
		Username:        username,
		BudgetRemaining: s.Rules.TotalPurse,
		RTMCards:        s.Rules.RTMCards,
	}
	s.JoinOrder = append(s.JoinOrder, username)
	return []Event{controllerEvent(EvtParticipantJoined, ParticipantNotice{
		Username: username,
		Total:    len(s.Participants),
	})}, nil
}

// Connect binds a live connection to an admitted user.
func (e *Engine) Connect(s *State, username string, role Role, ref string) ([]Event, error) {
	if s == nil {
		return nil, ErrRoomNotFound
	}
	if role == RoleController {
		if username != s.ControllerID {
			return nil, ErrInvalidRole
		}
		s.ControllerConnected = true
		return []Event{roomEvent(EvtControllerConnected, ParticipantNotice{Username: username})}, nil
	}

	p, ok := s.Participants[username]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	reconnect := p.ConnectionRef != ""
	p.ConnectionRef = ref
	p.Connected = true
	if !reconnect {
		return nil, nil
	}
	return []Event{controllerEvent(EvtParticipantReconnected, ParticipantNotice{
		Username:    username,
		FranchiseID: p.FranchiseID,
		Total:       len(s.Participants),
	})}, nil
}

// Disconnect marks a user offline. Participants are never removed. A
// disconnect from a connection that has since been replaced is ignored.
func (e *Engine) Disconnect(s *State, username string, role Role, ref string) []Event {
	if s == nil {
		return nil
	}
	if role == RoleController {
		if username != s.ControllerID || !s.ControllerConnected {
			return nil
		}
		s.ControllerConnected = false
		return []Event{roomEvent(EvtControllerDisconnected, ParticipantNotice{Username: username})}
	}

	p, ok := s.Participants[username]
	if !ok || p.ConnectionRef != ref || !p.Connected {
		return nil
	}
	p.Connected = false
	return []Event{controllerEvent(EvtParticipantDisconnected, ParticipantNotice{
		Username:    username,
		FranchiseID: p.FranchiseID,
		Total:       len(s.Participants),
	})}
}

func (e *Engine) franchise(id roster.FranchiseID) roster.Franchise {
	for _, f := range e.deps.Franchises {
		if f.ID == id {
			return f
		}
	}
	return roster.Franchise{ID: id}
}
