// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's round (creates or reuses the session)
//   - POST /daily/reveal      → reveal a tile in today's round
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Everyone gets the same pattern on a given UTC date (seeded from
// HMAC(salt, date)). Each owner gets one attempt per day: starting a session
// spends it (daily_attempts), and a live session is reused until it finishes.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/avallbona/patterngrid/internal/daily"
	"github.com/avallbona/patterngrid/internal/game"
	"github.com/avallbona/patterngrid/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv     *Server
	mu      sync.Mutex          // guards byOwner
	byOwner map[dailyKey]string // live session ID per owner and date
}

type dailyKey struct {
	owner string
	date  string
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{srv: s, byOwner: make(map[dailyKey]string)}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/reveal", dd.handleReveal)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// newRes is returned by /daily/new.
type newRes struct {
	GameID string     `json:"gameId"`
	Date   string     `json:"date"`
	Played bool       `json:"played"`
	State  *stateView `json:"state,omitempty"`
}

// handleNew creates or reuses the caller's session for today.
//   - A stored result or a spent attempt for today → Played=true, no session.
//   - A live session for today → reused.
//   - Otherwise the attempt is spent and a new seeded session starts.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	o := d.srv.ownerOf(w, r)
	now := d.srv.now()
	date := daily.DateKey(now)

	played, err := d.srv.daily.AlreadyPlayed(r.Context(), o.ID, date)
	if err != nil {
		log.Error().Err(err).Msg("daily already played")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if played {
		writeJSON(w, http.StatusOK, newRes{Date: date, Played: true})
		return
	}

	key := dailyKey{owner: o.ID, date: date}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked(date)
	if id, ok := d.byOwner[key]; ok {
		if sess, err := d.srv.sessions.Get(r.Context(), id, o.ID); err == nil {
			v := buildView(sess, sess.State.Snapshot())
			writeJSON(w, http.StatusOK, newRes{GameID: sess.ID, Date: date, State: &v})
			return
		}
		delete(d.byOwner, key)
	}

	started, err := d.srv.daily.StartAttempt(r.Context(), o.ID, date)
	if err != nil {
		log.Error().Err(err).Msg("daily start attempt")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if !started {
		// Spent by a session that was reaped or abandoned.
		writeJSON(w, http.StatusOK, newRes{Date: date, Played: true})
		return
	}

	sess, err := d.srv.startSession(r.Context(), o, store.ModeDaily, date,
		game.WithSeed(daily.Seed(now, d.srv.cfg.DailySalt)))
	if err != nil {
		log.Error().Err(err).Msg("save daily session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	d.byOwner[key] = sess.ID
	v := buildView(sess, sess.State.Snapshot())
	writeJSON(w, http.StatusOK, newRes{GameID: sess.ID, Date: date, State: &v})
}

// pruneLocked drops index entries for dates other than today.
func (d *dailyServer) pruneLocked(today string) {
	for k := range d.byOwner {
		if k.date != today {
			delete(d.byOwner, k)
		}
	}
}

// handleReveal reveals a tile in a daily session.
func (d *dailyServer) handleReveal(w http.ResponseWriter, r *http.Request) {
	o := d.srv.ownerOf(w, r)
	var req revealReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == "" || req.Row == nil || req.Col == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, err := d.srv.sessions.Get(r.Context(), req.GameID, o.ID)
	if err != nil || sess.Mode != store.ModeDaily {
		writeError(w, http.StatusConflict, "no_session")
		return
	}
	d.srv.reveal(w, r, sess, o, *req.Row, *req.Col)
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.now())
	}
	rows, err := d.srv.daily.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
