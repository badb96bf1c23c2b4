// internal/httpserver/server.go
//
// HTTP server wiring for the patterngrid backend.
// Responsibilities:
//   - Router + middleware (request IDs, panic recovery, timeouts, JSON, CORS,
//     request logging).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): /game/*.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /rounds/mine.
//   - Debug endpoints exposing the direct mutation surface (DEBUG_ROUTES only).
//
// Notes:
//   - Every round belongs to one owner: the signed-in user, or the anonymous
//     cookie ID for guests. Sessions owned by someone else answer 404.
//   - Finished rounds are recorded best-effort; a failed write is logged and
//     never fails the reveal that finished the round.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/avallbona/patterngrid/internal/config"
	"github.com/avallbona/patterngrid/internal/daily"
	"github.com/avallbona/patterngrid/internal/game"
	"github.com/avallbona/patterngrid/internal/results"
	"github.com/avallbona/patterngrid/internal/store"
)

// Server bundles router, session store, DB handle and configuration.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	sessions store.Store
	db       *sql.DB
	results  *results.Store
	daily    *daily.Store
	gameOpts []game.Option
	now      func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithGameOptions applies opts to every game.State the server creates.
func WithGameOptions(opts ...game.Option) Option {
	return func(s *Server) { s.gameOpts = append(s.gameOpts, opts...) }
}

// WithClock replaces time.Now for daily date keys.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB, opts ...Option) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		sessions: st,
		db:       db,
		results:  results.NewStore(db),
		daily:    daily.NewStore(db),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(cors(cfg.ClientOrigin))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "patterngrid",
			"endpoints": []string{"/health", "POST /game/new", "POST /game/{id}/reveal", "/daily/*", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.sessions.Len()})
	})

	// Game + daily: optional auth, guests can play.
	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountGame(r)
		s.mountDaily(r)
		if cfg.DebugRoutes {
			s.mountDebug(r)
		}
	})

	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// newState builds a game.State with the server-wide options plus extra.
func (s *Server) newState(extra ...game.Option) *game.State {
	opts := append(append([]game.Option{}, s.gameOpts...), extra...)
	return game.New(opts...)
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
