// internal/game/engine.go
//
// Core engine for a single pattern round.
// Responsibilities:
//   - Create rounds: fresh grid, random pattern, zeroed counters.
//   - Flash the pattern at round start, then conceal it after PatternFlash.
//   - Apply reveals: score against the pattern, count attempts, end the round
//     after Size attempts.
//   - Run the end-of-round sweep that uncovers every tile in row-major order.
//
// Notes:
//   - All state is guarded by one mutex; deferred work runs through a
//     Scheduler so tests can drive virtual time.
//   - Deferred tasks belong to the round that scheduled them. NewGame and
//     Close stop them, and a task that fires for a stale round does nothing.
package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State holds one player's game: the grid, the reveal counters and the
// tasks pending for the current round.
type State struct {
	mu sync.Mutex

	rng   *rand.Rand
	sched Scheduler
	log   zerolog.Logger

	matrix       Grid
	revealed     int
	lastSuccess  bool
	successCount int
	round        uint64
	version      uint64
	startedAt    time.Time
	endTriggered bool
	closed       bool
	pending      roundTasks
}

// Option configures a State.
type Option func(*State)

// WithScheduler replaces the default TimerScheduler.
func WithScheduler(s Scheduler) Option { return func(st *State) { st.sched = s } }

// WithRand sets the random source used for pattern placement.
func WithRand(r *rand.Rand) Option { return func(st *State) { st.rng = r } }

// WithSeed makes pattern placement deterministic.
func WithSeed(seed uint64) Option {
	return func(st *State) { st.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLogger attaches a logger for round lifecycle events.
func WithLogger(l zerolog.Logger) Option { return func(st *State) { st.log = l } }

// New constructs a State and starts its first round.
func New(opts ...Option) *State {
	s := &State{
		sched: TimerScheduler{},
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.NewGame()
	return s
}

// NewGame replaces the grid, zeroes the counters, cancels everything still
// pending from the previous round and schedules the pattern concealment.
func (s *State) NewGame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := InitGrid(Size, s.rng)
	if err != nil {
		// Size is a positive constant, so InitGrid cannot fail.
		panic(err)
	}
	if n := s.pending.stopAll(); n > 0 {
		s.log.Debug().Uint64("round", s.round).Int("cancelled", n).Msg("cancelled pending tasks")
	}

	s.round++
	s.matrix = g
	s.revealed = 0
	s.lastSuccess = false
	s.successCount = 0
	s.endTriggered = false
	s.startedAt = time.Now()
	s.version++

	s.scheduleLocked(PatternFlash, func() { s.toggleLocked(false) })
	s.log.Debug().Uint64("round", s.round).Msg("round started")
}

// TogglePatternVisibility sets Display on every tile; Content and
// ShowResult are left untouched.
func (s *State) TogglePatternVisibility(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggleLocked(show)
}

func (s *State) toggleLocked(show bool) {
	for row := range s.matrix {
		for col := range s.matrix[row] {
			s.matrix[row][col].Display = show
		}
	}
	s.version++
}

// RevealTile uncovers the tile at (row, col) and scores it.
//
// Once Size reveals have been made the round is over and RevealTile is a
// no-op returning Applied == false. Revealing an already revealed tile still
// counts as an attempt and is recorded as an error. The reveal that reaches
// Size starts the end-of-round sweep.
func (s *State) RevealTile(row, col int) (Reveal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealLocked(row, col)
}

// RevealAndSnapshot is RevealTile followed by Snapshot under the same lock,
// so the snapshot always describes the round the reveal was applied to.
func (s *State) RevealAndSnapshot(row, col int) (Reveal, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.revealLocked(row, col)
	if err != nil {
		return res, Snapshot{}, err
	}
	return res, s.snapshotLocked(), nil
}

func (s *State) revealLocked(row, col int) (Reveal, error) {
	if s.revealed >= Size {
		return Reveal{Finished: true}, nil
	}
	if !s.matrix.inBounds(row, col) {
		return Reveal{}, ErrOutOfRange
	}

	tile := &s.matrix[row][col]
	success := tile.Content == ContentPattern
	if success {
		tile.Content = ContentClickSuccess
		s.successCount++
	} else {
		tile.Content = ContentClickError
	}
	tile.Display = true
	s.revealed++
	s.lastSuccess = success
	s.version++

	finished := s.revealed >= Size
	if finished && !s.endTriggered {
		s.endTriggered = true
		s.onEndGameLocked()
	}
	return Reveal{Applied: true, Success: success, Finished: finished}, nil
}

// OnEndGame schedules the cascading reveal: the tile at row-major index i is
// displayed and marked ShowResult after i*SweepStep.
func (s *State) OnEndGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEndGameLocked()
}

func (s *State) onEndGameLocked() {
	size := len(s.matrix)
	for row := range s.matrix {
		for col := range s.matrix[row] {
			idx := row*size + col
			s.scheduleLocked(time.Duration(idx)*SweepStep, func() {
				// UpdateMatrix may have reshaped the grid since scheduling.
				if !s.matrix.inBounds(row, col) {
					return
				}
				s.matrix[row][col].Display = true
				s.matrix[row][col].ShowResult = true
				s.version++
			})
		}
	}
	s.log.Debug().Uint64("round", s.round).Int("tiles", size*size).Msg("end sweep scheduled")
}

// UpdateMatrix replaces the grid with a deep copy of g.
func (s *State) UpdateMatrix(g Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrix = g.Clone()
	s.version++
}

// SetRevealedTiles overwrites the attempt counter and the last-reveal flag.
// The cumulative success count is not touched.
func (s *State) SetRevealedTiles(u RevealedUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revealed = u.Revealed
	s.lastSuccess = u.Success
	s.version++
}

// UpdateTile replaces the tile at (row, col).
func (s *State) UpdateTile(row, col int, t Tile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.matrix.inBounds(row, col) {
		return ErrOutOfRange
	}
	s.matrix[row][col] = t
	s.version++
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Matrix:        s.matrix.Clone(),
		RevealedTiles: s.revealed,
		LastSuccess:   s.lastSuccess,
		SuccessCount:  s.successCount,
		Finished:      s.revealed >= Size,
		Round:         s.round,
		Version:       s.version,
		StartedAt:     s.startedAt,
	}
}

// Close stops every pending task. Tasks that already fired become no-ops.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending.stopAll()
}

// scheduleLocked registers f to run under the lock after d, but only if the
// round that scheduled it is still current and the State is open.
func (s *State) scheduleLocked(d time.Duration, f func()) {
	if s.closed {
		return
	}
	round := s.round
	t := s.sched.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.round != round {
			s.log.Debug().Uint64("round", round).Msg("dropped stale task")
			return
		}
		f()
	})
	s.pending.add(t)
}
