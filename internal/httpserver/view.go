package httpserver

import (
	"github.com/avallbona/patterngrid/internal/game"
	"github.com/avallbona/patterngrid/internal/store"
)

// tileView is the client-facing tile. Content is withheld while the tile is
// not displayed so the hidden pattern never leaves the server.
type tileView struct {
	Display    bool         `json:"display"`
	Content    game.Content `json:"content,omitempty"`
	ShowResult bool         `json:"showResult"`
}

// stateView is the client-facing round state.
type stateView struct {
	GameID        string       `json:"gameId"`
	Mode          store.Mode   `json:"mode"`
	Date          string       `json:"date,omitempty"`
	Matrix        [][]tileView `json:"matrix"`
	RevealedTiles int          `json:"revealedTiles"`
	LastSuccess   bool         `json:"lastSuccess"`
	SuccessCount  int          `json:"successCount"`
	Finished      bool         `json:"finished"`
	Round         uint64       `json:"round"`
	Version       uint64       `json:"version"`
}

func buildView(sess *store.Session, snap game.Snapshot) stateView {
	m := make([][]tileView, len(snap.Matrix))
	for r, row := range snap.Matrix {
		m[r] = make([]tileView, len(row))
		for c, t := range row {
			v := tileView{Display: t.Display, ShowResult: t.ShowResult}
			if t.Display || t.ShowResult {
				v.Content = t.Content
			}
			m[r][c] = v
		}
	}
	return stateView{
		GameID:        sess.ID,
		Mode:          sess.Mode,
		Date:          sess.Date,
		Matrix:        m,
		RevealedTiles: snap.RevealedTiles,
		LastSuccess:   snap.LastSuccess,
		SuccessCount:  snap.SuccessCount,
		Finished:      snap.Finished,
		Round:         snap.Round,
		Version:       snap.Version,
	}
}
