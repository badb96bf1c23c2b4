// internal/game/types.go
//
// Core type definitions for the pattern game engine.
// Defines:
//   - Content: what a tile holds (hidden ground truth or a recorded reveal).
//   - Tile:    a single grid cell.
//   - Grid:    the square, row-major board.
//   - Snapshot/Reveal/RevealedUpdate: values exchanged with callers.

package game

import (
	"errors"
	"time"
)

// Content represents what a tile holds.
// Possible values:
//   - "empty":         not part of the pattern.
//   - "pattern":       part of the hidden pattern.
//   - "click-success": revealed by the player, was a pattern tile.
//   - "click-error":   revealed by the player, was not a pattern tile.
type Content string

const (
	ContentEmpty        Content = "empty"
	ContentPattern      Content = "pattern"
	ContentClickSuccess Content = "click-success"
	ContentClickError   Content = "click-error"
)

const (
	// Size is the fixed grid dimension; the pattern also has Size tiles.
	Size = 4

	// PatternFlash is how long the pattern stays visible after NewGame.
	PatternFlash = 2500 * time.Millisecond

	// SweepStep is the per-tile delay of the end-of-round reveal sweep.
	SweepStep = 200 * time.Millisecond
)

var (
	ErrOutOfRange      = errors.New("tile out of range")
	ErrPatternTooLarge = errors.New("pattern larger than free cells")
	ErrBadSize         = errors.New("grid size must be positive")
)

// Tile is one grid cell.
type Tile struct {
	Display    bool    `json:"display"`    // content currently visible to the player
	Content    Content `json:"content"`    // ground truth or recorded reveal
	ShowResult bool    `json:"showResult"` // processed by the end-of-round sweep
}

// Grid is a square board addressed as Grid[row][column].
type Grid [][]Tile

// RevealedUpdate is the payload of State.SetRevealedTiles.
type RevealedUpdate struct {
	Revealed int  `json:"revealed"`
	Success  bool `json:"success"`
}

// Reveal is the outcome of State.RevealTile.
type Reveal struct {
	Applied  bool `json:"applied"`  // false when the round was already over
	Success  bool `json:"success"`  // tile was part of the pattern
	Finished bool `json:"finished"` // this reveal (or an earlier one) ended the round
}

// Snapshot is a deep copy of a State, safe to read without locks.
type Snapshot struct {
	Matrix        Grid      `json:"matrix"`
	RevealedTiles int       `json:"revealedTiles"`
	LastSuccess   bool      `json:"lastSuccess"`
	SuccessCount  int       `json:"successCount"`
	Finished      bool      `json:"finished"`
	Round         uint64    `json:"round"`
	Version       uint64    `json:"version"`
	StartedAt     time.Time `json:"startedAt"`
}
