package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/DoyleJ11/franchise-auction/internal/hub"
	"github.com/DoyleJ11/franchise-auction/internal/room"
	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/DoyleJ11/franchise-auction/internal/session"
	"github.com/DoyleJ11/franchise-auction/internal/types"
	"github.com/DoyleJ11/franchise-auction/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxUsernameLen = 32

type Deps struct {
	Hub       *hub.Hub
	Issuer    *session.Issuer
	// Rules new rooms start with when the request carries none.
	Rules     engine.Rules
	Logger    *zap.Logger
	Keepalive ws.Options
}

type createRoomRequest struct {
	Username string        `json:"username"`
	Rules    *engine.Rules `json:"rules,omitempty"`
}

type joinRoomRequest struct {
	Username string `json:"username"`
}

type tokenResponse struct {
	Code     string      `json:"code"`
	Username string      `json:"username"`
	Role     engine.Role `json:"role"`
	Token    string      `json:"token"`
}

type snapshotResponse struct {
	Version  int             `json:"version"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

func CreateRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "bad json")
			return
		}
		username, ok := cleanUsername(req.Username)
		if !ok {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "username must be 1-32 characters")
			return
		}
		rules := d.Rules
		if req.Rules != nil {
			rules = req.Rules.WithDefaults()
		}
		if err := rules.Validate(); err != nil {
			writeEngineError(w, err)
			return
		}

		rm, err := d.Hub.Create(r.Context(), username, rules)
		if err != nil {
			d.Logger.Error("create room", zap.Error(err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		issueToken(w, d, http.StatusCreated, session.Identity{Username: username, Room: rm.Code(), Role: engine.RoleController})
	}
}

// JoinRoom admits a participant and hands back the token for /ws. A known
// username is admitted again so a player can reconnect from a new device.
func JoinRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "bad json")
			return
		}
		username, ok := cleanUsername(req.Username)
		if !ok {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "username must be 1-32 characters")
			return
		}
		rm, ok := lookupRoom(w, r, d)
		if !ok {
			return
		}
		if err := rm.Admit(r.Context(), username, engine.RoleParticipant); err != nil {
			writeEngineError(w, err)
			return
		}
		issueToken(w, d, http.StatusOK, session.Identity{Username: username, Room: rm.Code(), Role: engine.RoleParticipant})
	}
}

func GetSnapshot(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, d); !ok {
			return
		}
		rm, ok := lookupRoom(w, r, d)
		if !ok {
			return
		}
		res, err := rm.Snapshot(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshotResponse{Version: res.Version, Snapshot: res.Snapshot})
	}
}

func GetSquad(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, d); !ok {
			return
		}
		rm, ok := lookupRoom(w, r, d)
		if !ok {
			return
		}
		view, err := rm.Squad(r.Context(), chi.URLParam(r, "username"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// DeleteRoom shuts a room down. Controller only.
func DeleteRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authorize(w, r, d)
		if !ok {
			return
		}
		if id.Role != engine.RoleController {
			writeEngineError(w, engine.ErrInvalidRole)
			return
		}
		removed, err := d.Hub.Remove(r.Context(), id.Room)
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if !removed {
			writeEngineError(w, engine.ErrRoomNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListFranchises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, roster.Franchises())
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func cleanUsername(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	return name, n > 0 && n <= maxUsernameLen
}

func lookupRoom(w http.ResponseWriter, r *http.Request, d Deps) (*room.Room, bool) {
	rm, err := d.Hub.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	if rm == nil {
		writeEngineError(w, engine.ErrRoomNotFound)
		return nil, false
	}
	return rm, true
}

// authorize checks the bearer token against the room in the path.
func authorize(w http.ResponseWriter, r *http.Request, d Deps) (session.Identity, bool) {
	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || raw == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return session.Identity{}, false
	}
	id, err := d.Issuer.Verify(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
		return session.Identity{}, false
	}
	if id.Room != chi.URLParam(r, "code") {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "token is for another room")
		return session.Identity{}, false
	}
	return id, true
}

func issueToken(w http.ResponseWriter, d Deps, status int, id session.Identity) {
	token, err := d.Issuer.Issue(id)
	if err != nil {
		d.Logger.Error("issue token", zap.Error(err))
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, tokenResponse{Code: id.Room, Username: id.Username, Role: id.Role, Token: token})
}

func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, room.ErrClosed) {
		err = engine.ErrRoomNotFound
	}
	var e *engine.Error
	if !errors.As(err, &e) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	status := http.StatusConflict
	switch e.Kind {
	case engine.KindStructural:
		status = http.StatusNotFound
	case engine.KindProtocol:
		status = http.StatusForbidden
	case engine.KindValidation:
		if e.Code == engine.CodeInvalidRules {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, types.ServerMessage{
		Type:  types.TypeError,
		Error: &types.ErrorBody{Code: string(e.Code), Reason: string(e.Reason), Message: e.Message},
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ServerMessage{
		Type:  types.TypeError,
		Error: &types.ErrorBody{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
