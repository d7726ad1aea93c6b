package engine

import (
	"testing"

	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit(t *testing.T) {
	e := newTestEngine()
	s := NewState("IPL200", "host", DefaultRules())

	events, err := e.Admit(s, "alice", RoleParticipant)
	require.NoError(t, err)
	notice := findEvent(t, events, EvtParticipantJoined)
	assert.Equal(t, AudienceController, notice.Audience)
	assert.Equal(t, 1, notice.Data.(ParticipantNotice).Total)

	alice := s.Participants["alice"]
	require.NotNil(t, alice)
	assert.True(t, alice.BudgetRemaining.Equal(d("100")))
	assert.Equal(t, 2, alice.RTMCards)

	events, err = e.Admit(s, "alice", RoleParticipant)
	require.NoError(t, err)
	assert.Empty(t, events, "a known participant is admitted again silently")
	assert.Equal(t, []string{"alice"}, s.JoinOrder)

	_, err = e.Admit(s, "host", RoleParticipant)
	require.ErrorIs(t, err, ErrInvalidRole)
	_, err = e.Admit(s, "mallory", RoleController)
	require.ErrorIs(t, err, ErrInvalidRole)
	_, err = e.Admit(s, "host", RoleController)
	require.NoError(t, err)

	mustApply(t, e, s, Command{Type: CmdAssignTeams, Caller: ctrl})
	_, err = e.Admit(s, "bob", RoleParticipant)
	require.ErrorIs(t, err, ErrWrongPhase)
	_, err = e.Admit(s, "alice", RoleParticipant)
	require.NoError(t, err)
}

func TestAdmit_RoomFull(t *testing.T) {
	e := New(Deps{Franchises: roster.Franchises()[:2]})
	s := NewState("IPL201", "host", DefaultRules())
	for _, n := range []string{"alice", "bob"} {
		_, err := e.Admit(s, n, RoleParticipant)
		require.NoError(t, err)
	}
	_, err := e.Admit(s, "carol", RoleParticipant)
	require.ErrorIs(t, err, ErrNoFranchiseAvailable)
}

func TestConnectDisconnect(t *testing.T) {
	e := newTestEngine()
	s := NewState("IPL202", "host", DefaultRules())
	_, err := e.Admit(s, "alice", RoleParticipant)
	require.NoError(t, err)

	events, err := e.Connect(s, "alice", RoleParticipant, "c1")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, s.Participants["alice"].Connected)

	events, err = e.Connect(s, "alice", RoleParticipant, "c2")
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtParticipantReconnected))

	// The first connection closing late must not mark alice offline.
	assert.Empty(t, e.Disconnect(s, "alice", RoleParticipant, "c1"))
	assert.True(t, s.Participants["alice"].Connected)

	events = e.Disconnect(s, "alice", RoleParticipant, "c2")
	assert.True(t, ContainsEvent(events, EvtParticipantDisconnected))
	assert.False(t, s.Participants["alice"].Connected)
	assert.Contains(t, s.Participants, "alice", "participants are never removed")

	_, err = e.Connect(s, "ghost", RoleParticipant, "c3")
	require.ErrorIs(t, err, ErrParticipantNotFound)

	events, err = e.Connect(s, "host", RoleController, "c4")
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtControllerConnected))
	assert.True(t, s.Snapshot().ControllerConnected)

	events = e.Disconnect(s, "host", RoleController, "c4")
	ev := findEvent(t, events, EvtControllerDisconnected)
	assert.Equal(t, AudienceRoom, ev.Audience)
	assert.False(t, s.ControllerConnected)
}

func TestAssignTeams_DistinctFranchises(t *testing.T) {
	e := New(Deps{})
	s := NewState("IPL203", "host", DefaultRules())
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, n := range names {
		_, err := e.Admit(s, n, RoleParticipant)
		require.NoError(t, err)
	}

	events := mustApply(t, e, s, Command{Type: CmdAssignTeams, Caller: ctrl})
	assert.Equal(t, len(names), countEvents(events, EvtTeamAssigned))
	mapping := findEvent(t, events, EvtTeamMapping)
	assert.Equal(t, AudienceController, mapping.Audience)
	assert.Len(t, mapping.Data.(TeamMapping).Mapping, len(names))

	seen := make(map[roster.FranchiseID]bool)
	for _, n := range names {
		id := s.Participants[n].FranchiseID
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "franchise %s assigned twice", id)
		seen[id] = true
	}
	assert.Equal(t, PhaseTeamAssignment, s.Phase)

	_, err := e.Apply(s, Command{Type: CmdAssignTeams, Caller: ctrl})
	require.ErrorIs(t, err, ErrWrongPhase)

	// Every franchise is taken, so there is nowhere to move.
	_, err = e.Apply(s, Command{Type: CmdRequestReshuffle, Caller: as("a")})
	require.ErrorIs(t, err, ErrNoFranchiseAvailable)
	assert.False(t, s.Participants["a"].HasUsedReshuffle)
}

func TestRequestReshuffle_OncePerParticipant(t *testing.T) {
	e := newTestEngine()
	s := NewState("IPL204", "host", DefaultRules())
	_, err := e.Admit(s, "alice", RoleParticipant)
	require.NoError(t, err)

	_, err = e.Apply(s, Command{Type: CmdRequestReshuffle, Caller: as("alice")})
	require.ErrorIs(t, err, ErrTeamsNotAssigned)

	mustApply(t, e, s, Command{Type: CmdAssignTeams, Caller: ctrl})
	require.Equal(t, roster.FranchiseID("csk"), s.Participants["alice"].FranchiseID)

	events := mustApply(t, e, s, Command{Type: CmdRequestReshuffle, Caller: as("alice")})
	assigned := findEvent(t, events, EvtTeamAssigned)
	assert.Equal(t, "alice", assigned.Username)
	assert.False(t, assigned.Data.(TeamAssigned).CanReshuffle)
	reshuffled := findEvent(t, events, EvtReshuffled).Data.(Reshuffled)
	assert.Equal(t, roster.FranchiseID("csk"), reshuffled.From)
	assert.Equal(t, roster.FranchiseID("mi"), reshuffled.To.ID)
	assert.False(t, reshuffled.Forced)
	assert.Equal(t, roster.FranchiseID("mi"), s.Participants["alice"].FranchiseID)

	_, err = e.Apply(s, Command{Type: CmdRequestReshuffle, Caller: as("alice")})
	require.ErrorIs(t, err, ErrReshuffleUsed)

	// The controller can still move alice.
	events = mustApply(t, e, s, Command{Type: CmdForceReshuffle, Caller: ctrl, Username: "alice"})
	assert.True(t, findEvent(t, events, EvtReshuffled).Data.(Reshuffled).Forced)
	assert.Equal(t, roster.FranchiseID("csk"), s.Participants["alice"].FranchiseID)

	_, err = e.Apply(s, Command{Type: CmdForceReshuffle, Caller: ctrl, Username: "ghost"})
	require.ErrorIs(t, err, ErrParticipantNotFound)
	_, err = e.Apply(s, Command{Type: CmdForceReshuffle, Caller: as("alice"), Username: "alice"})
	require.ErrorIs(t, err, ErrInvalidRole)

	mustApply(t, e, s, Command{Type: CmdStartRetention, Caller: ctrl})
	_, err = e.Apply(s, Command{Type: CmdForceReshuffle, Caller: ctrl, Username: "alice"})
	require.ErrorIs(t, err, ErrWrongPhase)
}

func TestSetRules(t *testing.T) {
	e := newTestEngine()
	s := NewState("IPL205", "host", DefaultRules())
	_, err := e.Admit(s, "alice", RoleParticipant)
	require.NoError(t, err)

	rules := Rules{SquadSize: 18, TotalPurse: d("90.5"), RTMCards: 1}
	events := mustApply(t, e, s, Command{Type: CmdSetRules, Caller: ctrl, Rules: &rules})
	got := findEvent(t, events, EvtRulesUpdated).Data.(RulesUpdated).Rules
	assert.Equal(t, UncategorizedExclude, got.Uncategorized)
	assert.Equal(t, 18, s.Rules.SquadSize)
	assert.True(t, s.Participants["alice"].BudgetRemaining.Equal(d("90.5")))
	assert.Equal(t, 1, s.Participants["alice"].RTMCards)

	invalid := []Rules{
		{SquadSize: 0, TotalPurse: d("100")},
		{SquadSize: 5, TotalPurse: decimal.Zero},
		{SquadSize: 5, TotalPurse: d("100"), MaxOverseasSlots: -1},
		{SquadSize: 5, TotalPurse: d("100"), RTMCards: -1},
		{SquadSize: 5, TotalPurse: d("100"), Uncategorized: "drop"},
	}
	for i, r := range invalid {
		_, err := e.Apply(s, Command{Type: CmdSetRules, Caller: ctrl, Rules: &r})
		require.ErrorIs(t, err, ErrInvalidRules, "case %d", i)
	}
	_, err = e.Apply(s, Command{Type: CmdSetRules, Caller: ctrl})
	require.ErrorIs(t, err, ErrInvalidRules)
	assert.Equal(t, 18, s.Rules.SquadSize, "rejected rules leave the room untouched")

	mustApply(t, e, s, Command{Type: CmdAssignTeams, Caller: ctrl})
	mustApply(t, e, s, Command{Type: CmdStartRetention, Caller: ctrl})
	_, err = e.Apply(s, Command{Type: CmdSetRules, Caller: ctrl, Rules: &rules})
	require.ErrorIs(t, err, ErrWrongPhase)
}
