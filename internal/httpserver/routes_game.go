// internal/httpserver/routes_game.go
//
// HTTP routes for free-play rounds:
//   - POST   /game/new             → start a session (first round already running)
//   - GET    /game/{id}            → current state (pattern masked while hidden)
//   - POST   /game/{id}/reveal     → reveal one tile by coordinates
//   - POST   /game/{id}/visibility → show/hide every tile
//   - POST   /game/{id}/restart    → new round in the same session
//   - DELETE /game/{id}            → drop the session and its timers
//
// The reveal that finishes a round records it in the history tables.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avallbona/patterngrid/internal/daily"
	"github.com/avallbona/patterngrid/internal/game"
	"github.com/avallbona/patterngrid/internal/results"
	"github.com/avallbona/patterngrid/internal/store"
)

func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetGame)
		r.Post("/reveal", s.handleReveal)
		r.Post("/visibility", s.handleVisibility)
		r.Post("/restart", s.handleRestart)
		r.Delete("/", s.handleDeleteGame)
	})
}

// startSession creates and stores a session for o.
func (s *Server) startSession(ctx context.Context, o owner, mode store.Mode, date string, extra ...game.Option) (*store.Session, error) {
	id := uuid.NewString()
	extra = append(extra, game.WithLogger(log.With().Str("gameId", id).Logger()))
	sess := &store.Session{
		ID:    id,
		Owner: o.ID,
		Mode:  mode,
		Date:  date,
		State: s.newState(extra...),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		sess.State.Close()
		return nil, err
	}
	return sess, nil
}

// loadSession resolves {id} for the caller; false means a 404 was written.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*store.Session, owner, bool) {
	o := s.ownerOf(w, r)
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"), o.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, o, false
	}
	return sess, o, true
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	o := s.ownerOf(w, r)
	sess, err := s.startSession(r.Context(), o, store.ModeFree, "")
	if err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusOK, buildView(sess, sess.State.Snapshot()))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, buildView(sess, sess.State.Snapshot()))
}

// revealReq uses pointers so that a missing coordinate is a 400, not (0,0).
type revealReq struct {
	GameID string `json:"gameId,omitempty"`
	Row    *int   `json:"row"`
	Col    *int   `json:"col"`
}

type revealRes struct {
	game.Reveal
	State stateView `json:"state"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, o, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req revealReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Row == nil || req.Col == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.reveal(w, r, sess, o, *req.Row, *req.Col)
}

// reveal applies one reveal and records the round when it just finished.
func (s *Server) reveal(w http.ResponseWriter, r *http.Request, sess *store.Session, o owner, row, col int) {
	res, snap, err := sess.State.RevealAndSnapshot(row, col)
	if errors.Is(err, game.ErrOutOfRange) {
		writeError(w, http.StatusBadRequest, "out_of_range")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reveal_failed")
		return
	}
	if res.Applied && res.Finished {
		s.recordFinished(r.Context(), sess, o, snap)
	}
	writeJSON(w, http.StatusOK, revealRes{Reveal: res, State: buildView(sess, snap)})
}

// recordFinished writes the round to history (and the daily table for daily
// sessions). Failures are logged only.
func (s *Server) recordFinished(ctx context.Context, sess *store.Session, o owner, snap game.Snapshot) {
	started := snap.StartedAt
	finished := time.Now()
	if _, err := s.results.Record(ctx, results.Round{
		SessionID:   sess.ID,
		Round:       snap.Round,
		UserID:      o.UserID,
		AnonymousID: o.AnonID,
		Mode:        string(sess.Mode),
		StartedAt:   started,
		FinishedAt:  finished,
		Revealed:    snap.RevealedTiles,
		Hits:        snap.SuccessCount,
	}); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("record round")
	}

	if sess.Mode == store.ModeDaily {
		if err := s.daily.InsertResult(ctx, daily.Result{
			OwnerID:   o.ID,
			Date:      sess.Date,
			Hits:      snap.SuccessCount,
			ElapsedMs: int(finished.Sub(started).Milliseconds()),
		}); err != nil {
			log.Warn().Err(err).Str("gameId", sess.ID).Msg("record daily result")
		}
	}
	log.Info().Str("gameId", sess.ID).Uint64("round", snap.Round).Int("hits", snap.SuccessCount).Msg("round finished")
}

type visibilityReq struct {
	Show bool `json:"show"`
}

// handleVisibility toggles every tile. Showing is refused mid-round so the
// pattern cannot be re-flashed on demand.
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req visibilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if req.Show && !sess.State.Snapshot().Finished {
		writeError(w, http.StatusConflict, "round_in_progress")
		return
	}
	sess.State.TogglePatternVisibility(req.Show)
	writeJSON(w, http.StatusOK, buildView(sess, sess.State.Snapshot()))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if sess.Mode == store.ModeDaily {
		writeError(w, http.StatusConflict, "daily_restart_forbidden")
		return
	}
	sess.State.NewGame()
	writeJSON(w, http.StatusOK, buildView(sess, sess.State.Snapshot()))
}

// handleDeleteGame drops a free-play session. Daily sessions hold the day's
// only attempt and cannot be dropped.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	sess, o, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if sess.Mode == store.ModeDaily {
		writeError(w, http.StatusConflict, "daily_delete_forbidden")
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID, o.ID); err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
