package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/DoyleJ11/franchise-auction/internal/hub"
	"github.com/DoyleJ11/franchise-auction/internal/room"
	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/DoyleJ11/franchise-auction/internal/session"
	"github.com/DoyleJ11/franchise-auction/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 32

	defaultPingInterval = 15 * time.Second
	defaultPingTimeout  = 10 * time.Second
)

// Options tunes the server-side keepalive. Zero values use the defaults.
// Clients may stay silent indefinitely; a connection is only dropped when
// it stops answering pings.
type Options struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = defaultPingTimeout
	}
	return o
}

// Client-only message types answered by the room without touching the engine.
const (
	typeRequestSnapshot = "requestStateSnapshot"
	typeRequestSquad    = "requestSquad"
)

func Handler(h *hub.Hub, iss *session.Issuer, log *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		id, err := iss.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		rm, err := h.Get(r.Context(), id.Room)
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Error("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		log := log.With(zap.String("room", id.Room), zap.String("client", clientID), zap.String("username", id.Username))

		// The room owns out and closes it on Leave or when this client falls behind.
		out := make(chan types.ServerMessage, outboxSize)
		if err := rm.Join(r.Context(), clientID, id.Username, id.Role, out); err != nil {
			log.Warn("join rejected", zap.Error(err))
			conn.Close(websocket.StatusPolicyViolation, "join rejected")
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = rm.Send(ctx, room.Leave{ClientID: clientID})
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			for msg := range out {
				if err := write(ctx, conn, msg); err != nil {
					if ctx.Err() == nil {
						log.Error("websocket write", zap.Error(err))
					}
					return
				}
			}
			// Outbox closed by the room: this connection was dropped.
		}()

		// Keepalive goroutine. Pongs are read by the reader loop below.
		go func() {
			defer cancel()
			ticker := time.NewTicker(opts.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
					err := conn.Ping(pingCtx)
					pingCancel()
					if err != nil {
						if ctx.Err() == nil {
							log.Info("websocket ping failed", zap.Error(err))
						}
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						log.Debug("websocket read", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, errorMessage("bad json"))
				continue
			}

			var msg room.Msg
			switch cm.Type {
			case typeRequestSnapshot:
				msg = room.Resync{ClientID: clientID}
			case typeRequestSquad:
				msg = room.RequestSquad{ClientID: clientID, Username: cm.Username}
			default:
				cmd, ok := toEngineCommand(cm)
				if !ok {
					_ = write(ctx, conn, errorMessage("unknown type "+cm.Type))
					continue
				}
				msg = room.FromClient{ClientID: clientID, Cmd: cmd}
			}
			if err := rm.Send(ctx, msg); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func errorMessage(text string) types.ServerMessage {
	return types.ServerMessage{
		Type:  types.TypeError,
		Error: &types.ErrorBody{Code: string(engine.CodeUnsupportedCommand), Message: text},
	}
}

// toEngineCommand maps an inbound frame to an engine command. The caller is
// filled in by the room from the connection.
func toEngineCommand(m types.ClientMessage) (engine.Command, bool) {
	var t engine.CommandType
	switch m.Type {
	case "setRules":
		return engine.Command{Type: engine.CmdSetRules, Rules: m.Rules}, true
	case "assignTeams":
		t = engine.CmdAssignTeams
	case "requestReshuffle":
		t = engine.CmdRequestReshuffle
	case "forceReshuffle":
		return engine.Command{Type: engine.CmdForceReshuffle, Username: m.Username}, true
	case "startRetention":
		t = engine.CmdStartRetention
	case "submitRetention":
		return engine.Command{
			Type:        engine.CmdSubmitRetention,
			FranchiseID: roster.FranchiseID(m.FranchiseID),
			Selection:   m.Selection,
		}, true
	case "startAuctionPool":
		t = engine.CmdStartAuctionPool
	case "placeBid":
		return engine.Command{
			Type:        engine.CmdPlaceBid,
			FranchiseID: roster.FranchiseID(m.FranchiseID),
			PlayerID:    m.PlayerID,
			Amount:      m.Amount,
		}, true
	case "sellCurrentPlayer":
		t = engine.CmdSellCurrentPlayer
	case "markCurrentPlayerUnsold", "skipPlayer":
		t = engine.CmdMarkUnsold
	case "advanceToNextLot":
		t = engine.CmdAdvanceToNextLot
	case "submitRTMDecision":
		return engine.Command{
			Type:        engine.CmdSubmitRTMDecision,
			FranchiseID: roster.FranchiseID(m.FranchiseID),
			PlayerID:    m.PlayerID,
			Accept:      m.Accept,
			Amount:      m.Amount,
		}, true
	case "endAuction":
		t = engine.CmdEndAuction
	case "resetAuction":
		t = engine.CmdResetAuction
	default:
		return engine.Command{}, false
	}
	return engine.Command{Type: t}, true
}
