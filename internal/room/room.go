package room

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/DoyleJ11/franchise-auction/internal/types"
	"go.uber.org/zap"
)

type Msg interface{ isRoomMsg() }

// Admit reserves a username in the room before its first connection.
type Admit struct {
	Username string
	Role     engine.Role
	Reply    chan error
}

func (Admit) isRoomMsg() {}

type Join struct {
	ClientID string
	Username string
	Role     engine.Role
	Outbox   chan types.ServerMessage // where this client wants to receive messages
	Reply    chan error
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

// FromClient carries a command from a joined client. The caller identity is
// taken from the connection, never from the command.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isRoomMsg() {}

// Resync unicasts the current snapshot to one client.
type Resync struct{ ClientID string }

func (Resync) isRoomMsg() {}

// RequestSquad unicasts a squad view to one client. An empty Username means
// the client's own squad.
type RequestSquad struct {
	ClientID string
	Username string
}

func (RequestSquad) isRoomMsg() {}

type GetSnapshot struct {
	Reply chan SnapshotReply
}

func (GetSnapshot) isRoomMsg() {}

type SnapshotReply struct {
	Version  int
	Snapshot engine.Snapshot
}

type GetSquad struct {
	Username string
	Reply    chan SquadReply
}

func (GetSquad) isRoomMsg() {}

type SquadReply struct {
	Squad engine.SquadView
	Err   error
}

// TimerFired is posted by a room timer. Gen identifies the arming it belongs
// to; a fire from an earlier arming is dropped.
type TimerFired struct {
	Kind engine.TimerKind
	Gen  uint64
}

func (TimerFired) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	Version    int
	NumClients int
	Snapshot   engine.Snapshot
	Timers     map[engine.TimerKind]bool
}

var ErrClosed = errors.New("room closed")

type Config struct {
	Code       string
	Controller string
	Rules      engine.Rules
	Engine     *engine.Engine
	Logger     *zap.Logger
}

// Room owns one auction room. Every read and write of its state happens on
// the loop goroutine.
type Room struct {
	code    string
	inbox   chan Msg
	engine  *engine.Engine
	state   *engine.State
	version int
	clients map[string]*client
	timers  map[engine.TimerKind]*time.Timer
	gens    map[engine.TimerKind]uint64
	gone    []*client
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

type client struct {
	id       string
	username string
	role     engine.Role
	out      chan types.ServerMessage
}

func New(parent context.Context, cfg Config) *Room {
	ctx, cancel := context.WithCancel(parent)

	eng := cfg.Engine
	if eng == nil {
		eng = engine.New(engine.Deps{})
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &Room{
		code:    cfg.Code,
		inbox:   make(chan Msg, 64),
		engine:  eng,
		state:   engine.NewState(cfg.Code, cfg.Controller, cfg.Rules),
		clients: make(map[string]*client),
		timers:  make(map[engine.TimerKind]*time.Timer),
		gens:    make(map[engine.TimerKind]uint64),
		log:     log.With(zap.String("room", cfg.Code)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

// Inbox exposes the mailbox so the hub, the gateway and tests can post messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Close stops the room without going through its inbox. The loop releases
// clients and timers on its way out.
func (r *Room) Close() { r.cancel() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Admit:
				events, err := r.engine.Admit(r.state, msg.Username, msg.Role)
				msg.Reply <- err
				if err == nil {
					r.publish(events)
				}

			case Join:
				r.join(msg)

			case Leave:
				c, ok := r.clients[msg.ClientID]
				if !ok {
					break
				}
				delete(r.clients, c.id)
				close(c.out)
				r.log.Info("client left", zap.String("client", c.id), zap.String("username", c.username))
				r.disconnect(c)

			case FromClient:
				r.apply(msg.ClientID, msg.Cmd)

			case Resync:
				if c, ok := r.clients[msg.ClientID]; ok {
					r.send(c, r.snapshotMessage())
				}

			case RequestSquad:
				r.requestSquad(msg)

			case GetSnapshot:
				msg.Reply <- SnapshotReply{Version: r.version, Snapshot: r.state.Snapshot()}

			case GetSquad:
				view, err := r.engine.Squad(r.state, msg.Username)
				msg.Reply <- SquadReply{Squad: view, Err: err}

			case TimerFired:
				r.fire(msg)

			case GetState:
				// test-only: reflect internal state without data races
				timers := make(map[engine.TimerKind]bool, len(r.timers))
				for kind := range r.timers {
					timers[kind] = true
				}
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					Snapshot:   r.state.Snapshot(),
					Timers:     timers,
				}

			case Shutdown:
				r.shutdown()
				return
			}
			r.flushGone()
		}
	}
}

func (r *Room) join(msg Join) {
	events, err := r.engine.Connect(r.state, msg.Username, msg.Role, msg.ClientID)
	if err != nil {
		msg.Reply <- err
		return
	}
	c := &client{id: msg.ClientID, username: msg.Username, role: msg.Role, out: msg.Outbox}
	r.clients[c.id] = c
	r.log.Info("client joined",
		zap.String("client", c.id),
		zap.String("username", c.username),
		zap.String("role", string(c.role)),
	)

	if len(events) > 0 {
		r.publish(events)
	} else {
		r.send(c, r.snapshotMessage())
	}
	if c.role == engine.RoleParticipant {
		r.pushSquad(c.username)
	}
	msg.Reply <- nil
}

// disconnect reports a closed connection to the engine. A user only goes
// offline once their last connection is gone; until then a participant's
// connection ref moves to a surviving client.
func (r *Room) disconnect(c *client) {
	for _, other := range r.clients {
		if other.role != c.role || other.username != c.username {
			continue
		}
		if c.role == engine.RoleParticipant {
			// Already online, so the reconnect notice is not news.
			_, _ = r.engine.Connect(r.state, other.username, other.role, other.id)
		}
		return
	}
	r.publish(r.engine.Disconnect(r.state, c.username, c.role, c.id))
}

func (r *Room) flushGone() {
	for len(r.gone) > 0 {
		c := r.gone[0]
		r.gone = r.gone[1:]
		r.disconnect(c)
	}
}

func (r *Room) apply(clientID string, cmd engine.Command) {
	c, ok := r.clients[clientID]
	if !ok {
		r.log.Warn("command from unknown client", zap.String("client", clientID), zap.String("command", string(cmd.Type)))
		return
	}
	cmd.Caller = engine.Caller{Username: c.username, Role: c.role}

	events, err := r.engine.Apply(r.state, cmd)
	if err != nil {
		r.reject(c, cmd, err)
		return
	}
	r.log.Debug("command applied",
		zap.String("command", string(cmd.Type)),
		zap.String("username", c.username),
		zap.Int("events", len(events)),
	)
	r.publish(events)
}

func (r *Room) fire(msg TimerFired) {
	if _, armed := r.timers[msg.Kind]; !armed || msg.Gen != r.gens[msg.Kind] {
		r.log.Debug("stale timer dropped", zap.String("timer", string(msg.Kind)), zap.Uint64("gen", msg.Gen))
		return
	}
	delete(r.timers, msg.Kind)

	events, err := r.engine.Apply(r.state, msg.Kind.Command())
	if err != nil {
		r.log.Error("timer command failed", zap.String("timer", string(msg.Kind)), zap.Error(err))
		return
	}
	r.publish(events)
}

func (r *Room) startTimer(kind engine.TimerKind, after time.Duration) {
	r.stopTimer(kind)
	gen := r.gens[kind]
	r.timers[kind] = time.AfterFunc(after, func() {
		select {
		case r.inbox <- TimerFired{Kind: kind, Gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) stopTimer(kind engine.TimerKind) {
	if t, ok := r.timers[kind]; ok {
		t.Stop()
		delete(r.timers, kind)
	}
	r.gens[kind]++
}

// publish applies the side effects of an accepted command: timers are armed
// or cancelled, events go to their audience, squad views are pushed, and the
// room gets a fresh snapshot.
func (r *Room) publish(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	r.version++
	snap := r.state.Snapshot()

	var squads []string
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtTimerStarted:
			r.startTimer(ev.Timer, ev.After)
			continue
		case engine.EvtTimerCancelled:
			r.stopTimer(ev.Timer)
			continue
		case engine.EvtSquadChanged:
			squads = append(squads, ev.Username)
			continue
		}

		r.logEvent(ev)
		msg := types.ServerMessage{Type: string(ev.Type), Version: r.version, Data: ev.Data}
		if ev.Type == engine.EvtBidAccepted {
			msg.Snapshot = &snap
		}
		r.deliver(ev, msg)
	}

	for _, name := range squads {
		r.pushSquad(name)
	}
	r.broadcast(types.ServerMessage{Type: types.TypeStateSnapshot, Version: r.version, Snapshot: &snap})
}

func (r *Room) deliver(ev engine.Event, msg types.ServerMessage) {
	for _, c := range r.clients {
		switch ev.Audience {
		case engine.AudienceRoom:
		case engine.AudienceUser:
			if c.role != engine.RoleParticipant || c.username != ev.Username {
				continue
			}
		case engine.AudienceController:
			if c.role != engine.RoleController {
				continue
			}
		default:
			continue
		}
		r.send(c, msg)
	}
}

func (r *Room) logEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EvtPhaseChanged, engine.EvtAuctionStarted, engine.EvtPlayerSold, engine.EvtPlayerUnsold,
		engine.EvtRTMOffered, engine.EvtRTMResolved, engine.EvtAuctionComplete, engine.EvtAuctionReset:
		r.log.Info(string(ev.Type), zap.Int("version", r.version), zap.Any("data", ev.Data))
	}
}

func (r *Room) pushSquad(username string) {
	view, err := r.engine.Squad(r.state, username)
	if err != nil {
		return
	}
	msg := types.ServerMessage{Type: types.TypeSquadUpdate, Version: r.version, Data: view}
	for _, c := range r.clients {
		if c.role == engine.RoleParticipant && c.username == username {
			r.send(c, msg)
		}
	}
}

func (r *Room) requestSquad(msg RequestSquad) {
	c, ok := r.clients[msg.ClientID]
	if !ok {
		return
	}
	username := msg.Username
	if username == "" {
		username = c.username
	}
	view, err := r.engine.Squad(r.state, username)
	if err != nil {
		r.reject(c, engine.Command{}, err)
		return
	}
	r.send(c, types.ServerMessage{Type: types.TypeSquadUpdate, Version: r.version, Data: view})
}

// reject reports err to the caller alone. A structural error carries the
// snapshot the client should resync from.
func (r *Room) reject(c *client, cmd engine.Command, err error) {
	body := types.ErrorBody{Code: "INTERNAL", Message: err.Error()}
	var e *engine.Error
	if errors.As(err, &e) {
		body = types.ErrorBody{
			Code:    string(e.Code),
			Reason:  string(e.Reason),
			Message: e.Message,
			Resync:  e.Kind == engine.KindStructural,
		}
	}

	fields := []zap.Field{
		zap.String("command", string(cmd.Type)),
		zap.String("username", c.username),
		zap.String("code", body.Code),
		zap.String("reason", body.Reason),
	}
	if engine.KindOf(err) == engine.KindProtocol {
		r.log.Warn("protocol violation", fields...)
	} else {
		r.log.Debug("command rejected", fields...)
	}

	msg := types.ServerMessage{Type: types.TypeError, Version: r.version, Error: &body}
	if body.Resync {
		snap := r.state.Snapshot()
		msg.Snapshot = &snap
	}
	r.send(c, msg)
}

func (r *Room) snapshotMessage() types.ServerMessage {
	snap := r.state.Snapshot()
	return types.ServerMessage{Type: types.TypeStateSnapshot, Version: r.version, Snapshot: &snap}
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for _, c := range r.clients {
		r.send(c, msg)
	}
}

func (r *Room) send(c *client, msg types.ServerMessage) {
	if _, ok := r.clients[c.id]; !ok {
		return
	}
	select {
	case c.out <- msg:
		// ok
	default:
		// Client is slow/full - drop them.
		r.log.Warn("dropping slow client", zap.String("client", c.id), zap.String("username", c.username))
		delete(r.clients, c.id)
		close(c.out)
		r.gone = append(r.gone, c)
	}
}

func (r *Room) shutdown() {
	for kind, t := range r.timers {
		t.Stop()
		delete(r.timers, kind)
	}
	for id, c := range r.clients {
		close(c.out) // Tell client no more messages
		delete(r.clients, id)
	}
	r.cancel()
	r.log.Info("room shut down")
}
