package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/DoyleJ11/franchise-auction/internal/room"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// CreateRoom starts a room under a fresh code.
type CreateRoom struct {
	Controller string
	Rules      engine.Rules
	Reply      chan Created
}

type Created struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// RemoveRoom closes a room and forgets it. Reply may be nil.
type RemoveRoom struct {
	Code  string
	Reply chan bool
}

type ShutdownHub struct {
	Done chan struct{}
}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// maxCodeAttempts bounds code generation when the code space is crowded.
const maxCodeAttempts = 32

var (
	ErrNoCodeAvailable = errors.New("no room code available")
	ErrClosed          = errors.New("hub closed")
)

type Config struct {
	Engine *engine.Engine
	Logger *zap.Logger
	// NewCode generates a candidate room code. Defaults to GenerateCode.
	NewCode func() (string, error)
}

// Hub is the room registry. It owns the code -> room map; rooms own
// everything else.
type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	engine  *engine.Engine
	newCode func() (string, error)
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Engine == nil {
		cfg.Engine = engine.New(engine.Deps{})
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewCode == nil {
		cfg.NewCode = GenerateCode
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		engine:  cfg.Engine,
		newCode: cfg.NewCode,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			clear(h.rooms)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				rm, ok := h.rooms[msg.Code]
				if ok {
					delete(h.rooms, msg.Code)
					rm.Close()
					h.log.Info("room removed", zap.String("room", msg.Code))
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case ShutdownHub:
				// Rooms run under the hub's context, so cancelling it stops them all.
				rooms := make([]*room.Room, 0, len(h.rooms))
				for _, rm := range h.rooms {
					rooms = append(rooms, rm)
				}
				clear(h.rooms)
				h.cancel()
				for _, rm := range rooms {
					<-rm.Done()
				}
				h.log.Info("hub shut down", zap.Int("rooms", len(rooms)))
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateRoom) Created {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := h.newCode()
		if err != nil {
			return Created{Err: err}
		}
		if _, taken := h.rooms[code]; taken {
			h.log.Debug("collision on code, regenerating", zap.String("room", code))
			continue
		}
		rm := room.New(h.ctx, room.Config{
			Code:       code,
			Controller: msg.Controller,
			Rules:      msg.Rules,
			Engine:     h.engine,
			Logger:     h.log,
		})
		h.rooms[code] = rm
		h.log.Info("room created", zap.String("room", code), zap.String("controller", msg.Controller))
		return Created{Room: rm}
	}
	return Created{Err: ErrNoCodeAvailable}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	if h.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Create(ctx context.Context, controller string, rules engine.Rules) (*room.Room, error) {
	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateRoom{Controller: controller, Rules: rules, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Room, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the room for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := h.send(ctx, GetRoom{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rm := <-reply:
		return rm, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Remove(ctx context.Context, code string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.send(ctx, RemoveRoom{Code: code, Reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Shutdown stops every room and the hub itself.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.send(ctx, ShutdownHub{Done: done}); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
