package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/franchises", ListFranchises)
	r.Post("/rooms", CreateRoom(d))
	r.Post("/rooms/{code}/join", JoinRoom(d))

	// Bearer token routes
	r.Get("/rooms/{code}/snapshot", GetSnapshot(d))
	r.Get("/rooms/{code}/squads/{username}", GetSquad(d))
	r.Delete("/rooms/{code}", DeleteRoom(d))

	// Token in the query string; browsers cannot set headers on a websocket.
	r.Get("/ws", ws.Handler(d.Hub, d.Issuer, d.Logger, d.Keepalive))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
