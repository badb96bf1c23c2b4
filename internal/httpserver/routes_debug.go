package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/avallbona/patterngrid/internal/game"
)

// mountDebug exposes the direct mutation surface of game.State. Only mounted
// with DEBUG_ROUTES=true; the raw endpoint leaks the hidden pattern.
func (s *Server) mountDebug(r chi.Router) {
	r.Route("/debug/game/{id}", func(r chi.Router) {
		r.Get("/raw", s.handleDebugRaw)
		r.Put("/matrix", s.handleDebugMatrix)
		r.Put("/tiles/{row}/{col}", s.handleDebugTile)
		r.Put("/revealed", s.handleDebugRevealed)
		r.Post("/end", s.handleDebugEnd)
	})
}

func (s *Server) handleDebugRaw(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.State.Snapshot())
}

func (s *Server) handleDebugMatrix(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var g game.Grid
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil || len(g) == 0 {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	for _, row := range g {
		if len(row) != len(g) {
			writeError(w, http.StatusBadRequest, "grid_not_square")
			return
		}
	}
	sess.State.UpdateMatrix(g)
	writeJSON(w, http.StatusOK, sess.State.Snapshot())
}

func (s *Server) handleDebugTile(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	row, errRow := strconv.Atoi(chi.URLParam(r, "row"))
	col, errCol := strconv.Atoi(chi.URLParam(r, "col"))
	if errRow != nil || errCol != nil {
		writeError(w, http.StatusBadRequest, "bad_coordinates")
		return
	}
	var t game.Tile
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if err := sess.State.UpdateTile(row, col, t); errors.Is(err, game.ErrOutOfRange) {
		writeError(w, http.StatusBadRequest, "out_of_range")
		return
	}
	writeJSON(w, http.StatusOK, sess.State.Snapshot())
}

func (s *Server) handleDebugRevealed(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var u game.RevealedUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess.State.SetRevealedTiles(u)
	writeJSON(w, http.StatusOK, sess.State.Snapshot())
}

func (s *Server) handleDebugEnd(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	sess.State.OnEndGame()
	writeJSON(w, http.StatusOK, sess.State.Snapshot())
}
