package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the local surface under /api.
func NewRouter(logger *slog.Logger, state *StateHandler, ws *WSHandler, commands *CommandHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", state.GetState)
		r.Get("/state/poll", state.Poll)
		r.Method(http.MethodGet, "/state/ws", ws)
		r.Get("/view", state.GetView)
		r.Get("/stats", state.GetStats)
		r.Delete("/notice", state.DismissNotice)

		r.Route("/commands", func(r chi.Router) {
			r.Post("/credit/{amount}", commands.InsertCredit)
			r.Post("/select/{code}", commands.SelectProduct)
			r.Post("/withdrawn", commands.WithdrawCredit)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("HTTP_REQUEST",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
