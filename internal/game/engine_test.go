package game

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"
)

// manualScheduler runs tasks only when the test advances virtual time.
type manualScheduler struct {
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	t := &manualTask{at: m.now + d, f: f}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance fires every due task in deadline order.
func (m *manualScheduler) Advance(d time.Duration) {
	m.now += d
	due := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !t.stopped && !t.fired && t.at <= m.now {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fired = true
		t.f()
	}
}

// firedAnyway runs every stopped task, simulating timers that raced past Stop.
func (m *manualScheduler) firedAnyway() {
	for _, t := range m.tasks {
		if t.stopped && !t.fired {
			t.fired = true
			t.f()
		}
	}
}

func newTestState(t *testing.T, seed uint64) (*State, *manualScheduler) {
	t.Helper()
	ms := &manualScheduler{}
	return New(WithScheduler(ms), WithSeed(seed)), ms
}

func patternCells(g Grid) [][2]int {
	var out [][2]int
	for r := range g {
		for c := range g[r] {
			if g[r][c].Content == ContentPattern {
				out = append(out, [2]int{r, c})
			}
		}
	}
	return out
}

func emptyCells(g Grid) [][2]int {
	var out [][2]int
	for r := range g {
		for c := range g[r] {
			if g[r][c].Content == ContentEmpty {
				out = append(out, [2]int{r, c})
			}
		}
	}
	return out
}

func TestInitGridPatternCount(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for n := 1; n <= 12; n++ {
		g, err := InitGrid(n, rng)
		if err != nil {
			t.Fatalf("InitGrid(%d): %v", n, err)
		}
		if len(g) != n {
			t.Fatalf("InitGrid(%d): got %d rows", n, len(g))
		}
		for r := range g {
			if len(g[r]) != n {
				t.Fatalf("InitGrid(%d): row %d has %d cols", n, r, len(g[r]))
			}
			for c := range g[r] {
				tile := g[r][c]
				if !tile.Display || tile.ShowResult {
					t.Fatalf("InitGrid(%d): tile (%d,%d) = %+v", n, r, c, tile)
				}
			}
		}
		if got := g.Count(ContentPattern); got != n {
			t.Errorf("InitGrid(%d): pattern tiles = %d, want %d", n, got, n)
		}
		if got := g.Count(ContentEmpty); got != n*n-n {
			t.Errorf("InitGrid(%d): empty tiles = %d, want %d", n, got, n*n-n)
		}
	}
}

func TestInitGridBadSize(t *testing.T) {
	if _, err := InitGrid(0, rand.New(rand.NewPCG(1, 1))); !errors.Is(err, ErrBadSize) {
		t.Fatalf("expected ErrBadSize, got %v", err)
	}
}

func TestPlacePatternSkipsExistingPattern(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	g, _ := InitGrid(3, rng)
	if err := PlacePattern(g, 4, rng); err != nil {
		t.Fatalf("PlacePattern: %v", err)
	}
	if got := g.Count(ContentPattern); got != 7 {
		t.Fatalf("pattern tiles = %d, want 7", got)
	}
	if err := PlacePattern(g, 3, rng); !errors.Is(err, ErrPatternTooLarge) {
		t.Fatalf("expected ErrPatternTooLarge, got %v", err)
	}
	if err := PlacePattern(g, 2, rng); err != nil {
		t.Fatalf("fill remaining: %v", err)
	}
	if got := g.Count(ContentPattern); got != 9 {
		t.Fatalf("pattern tiles = %d, want 9", got)
	}
}

func TestSeededPatternIsDeterministic(t *testing.T) {
	a, _ := newTestState(t, 42)
	b, _ := newTestState(t, 42)
	pa := patternCells(a.Snapshot().Matrix)
	pb := patternCells(b.Snapshot().Matrix)
	if len(pa) != Size {
		t.Fatalf("pattern size = %d", len(pa))
	}
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("seeded patterns differ: %v vs %v", pa, pb)
		}
	}
}

func TestNewGameFlashThenConceal(t *testing.T) {
	s, ms := newTestState(t, 1)
	snap := s.Snapshot()
	if snap.RevealedTiles != 0 || snap.Finished {
		t.Fatalf("fresh round: %+v", snap)
	}
	for r := range snap.Matrix {
		for c := range snap.Matrix[r] {
			if !snap.Matrix[r][c].Display {
				t.Fatalf("tile (%d,%d) hidden before flash ends", r, c)
			}
		}
	}

	ms.Advance(PatternFlash - time.Millisecond)
	if !s.Snapshot().Matrix[0][0].Display {
		t.Fatalf("concealed too early")
	}

	ms.Advance(time.Millisecond)
	snap = s.Snapshot()
	for r := range snap.Matrix {
		for c := range snap.Matrix[r] {
			if snap.Matrix[r][c].Display {
				t.Fatalf("tile (%d,%d) still displayed after flash", r, c)
			}
		}
	}
	if got := snap.Matrix.Count(ContentPattern); got != Size {
		t.Fatalf("concealment changed content: %d pattern tiles", got)
	}
}

func TestTogglePatternVisibilityKeepsContent(t *testing.T) {
	s, _ := newTestState(t, 3)
	before := s.Snapshot()
	s.TogglePatternVisibility(false)
	after := s.Snapshot()
	for r := range after.Matrix {
		for c := range after.Matrix[r] {
			if after.Matrix[r][c].Display {
				t.Fatalf("tile (%d,%d) displayed", r, c)
			}
			if after.Matrix[r][c].Content != before.Matrix[r][c].Content {
				t.Fatalf("tile (%d,%d) content changed", r, c)
			}
		}
	}
	if after.Version <= before.Version {
		t.Fatalf("version did not advance")
	}
}

func TestRevealTileSuccessAndError(t *testing.T) {
	s, ms := newTestState(t, 5)
	ms.Advance(PatternFlash)
	snap := s.Snapshot()
	p := patternCells(snap.Matrix)[0]
	e := emptyCells(snap.Matrix)[0]

	res, err := s.RevealTile(p[0], p[1])
	if err != nil || !res.Applied || !res.Success {
		t.Fatalf("reveal pattern: %+v %v", res, err)
	}
	res, err = s.RevealTile(e[0], e[1])
	if err != nil || !res.Applied || res.Success {
		t.Fatalf("reveal empty: %+v %v", res, err)
	}

	snap = s.Snapshot()
	if tile := snap.Matrix[p[0]][p[1]]; tile.Content != ContentClickSuccess || !tile.Display {
		t.Fatalf("pattern tile after reveal: %+v", tile)
	}
	if tile := snap.Matrix[e[0]][e[1]]; tile.Content != ContentClickError || !tile.Display {
		t.Fatalf("empty tile after reveal: %+v", tile)
	}
	if snap.RevealedTiles != 2 || snap.SuccessCount != 1 || snap.LastSuccess {
		t.Fatalf("counters: %+v", snap)
	}
}

func TestRevealSameTileTwiceCountsAsError(t *testing.T) {
	s, _ := newTestState(t, 6)
	p := patternCells(s.Snapshot().Matrix)[0]
	_, _ = s.RevealTile(p[0], p[1])
	res, _ := s.RevealTile(p[0], p[1])
	if !res.Applied || res.Success {
		t.Fatalf("second reveal: %+v", res)
	}
	snap := s.Snapshot()
	if snap.RevealedTiles != 2 || snap.Matrix[p[0]][p[1]].Content != ContentClickError {
		t.Fatalf("after double reveal: %+v", snap)
	}
}

func TestRevealTileOutOfRange(t *testing.T) {
	s, _ := newTestState(t, 8)
	before := s.Snapshot()
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {Size, 0}, {0, Size}} {
		if _, err := s.RevealTile(rc[0], rc[1]); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("RevealTile(%d,%d): expected ErrOutOfRange, got %v", rc[0], rc[1], err)
		}
	}
	if after := s.Snapshot(); after.RevealedTiles != 0 || after.Version != before.Version {
		t.Fatalf("out-of-range reveal mutated state: %+v", after)
	}
}

func TestRevealAndSnapshotDescribesRevealedRound(t *testing.T) {
	st, _ := newTestState(t, 17)
	cells := patternCells(st.Snapshot().Matrix)

	var (
		res  Reveal
		snap Snapshot
		err  error
	)
	for _, rc := range cells {
		res, snap, err = st.RevealAndSnapshot(rc[0], rc[1])
		if err != nil {
			t.Fatalf("reveal %v: %v", rc, err)
		}
	}
	st.NewGame()

	if !res.Applied || !res.Finished {
		t.Fatalf("last reveal = %+v", res)
	}
	if snap.Round != 1 || snap.RevealedTiles != Size || snap.SuccessCount != Size || snap.StartedAt.IsZero() {
		t.Fatalf("snapshot = round %d revealed %d hits %d started %v",
			snap.Round, snap.RevealedTiles, snap.SuccessCount, snap.StartedAt)
	}
	if _, _, err := st.RevealAndSnapshot(Size, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("out of range err = %v", err)
	}
}

func TestRevealAndSnapshotUnderConcurrentRestart(t *testing.T) {
	st, _ := newTestState(t, 23)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			st.NewGame()
		}
	}()

	for i := 0; i < 3000; i++ {
		res, snap, err := st.RevealAndSnapshot(i%Size, (i/Size)%Size)
		if err != nil {
			t.Fatalf("reveal: %v", err)
		}
		if res.Applied && snap.RevealedTiles == 0 {
			t.Fatalf("applied reveal paired with a fresh round: %+v", snap)
		}
		if res.Applied && res.Finished && snap.RevealedTiles != Size {
			t.Fatalf("finishing reveal snapshot has %d reveals", snap.RevealedTiles)
		}
	}
	wg.Wait()
}

func TestFullRoundScenario(t *testing.T) {
	s, ms := newTestState(t, 11)
	snap := s.Snapshot()
	if got := snap.Matrix.Count(ContentPattern); got != 4 {
		t.Fatalf("pattern tiles = %d, want 4", got)
	}
	if got := snap.Matrix.Count(ContentEmpty); got != 12 {
		t.Fatalf("empty tiles = %d, want 12", got)
	}
	ms.Advance(PatternFlash)

	pattern := patternCells(snap.Matrix)
	for i, p := range pattern {
		res, err := s.RevealTile(p[0], p[1])
		if err != nil || !res.Applied || !res.Success {
			t.Fatalf("reveal %d: %+v %v", i, res, err)
		}
		if res.Finished != (i == len(pattern)-1) {
			t.Fatalf("reveal %d: finished = %v", i, res.Finished)
		}
	}
	snap = s.Snapshot()
	if snap.RevealedTiles != 4 || snap.SuccessCount != 4 || !snap.Finished {
		t.Fatalf("after round: %+v", snap)
	}

	// Fifth reveal is a no-op.
	e := emptyCells(snap.Matrix)[0]
	res, err := s.RevealTile(e[0], e[1])
	if err != nil || res.Applied || !res.Finished {
		t.Fatalf("fifth reveal: %+v %v", res, err)
	}
	after := s.Snapshot()
	if after.RevealedTiles != 4 || after.Matrix[e[0]][e[1]] != snap.Matrix[e[0]][e[1]] {
		t.Fatalf("fifth reveal mutated state")
	}
}

func TestEndSweepCascadesRowMajor(t *testing.T) {
	s, ms := newTestState(t, 12)
	ms.Advance(PatternFlash)
	for _, e := range emptyCells(s.Snapshot().Matrix)[:Size] {
		_, _ = s.RevealTile(e[0], e[1])
	}

	// Index 0 is due immediately.
	ms.Advance(0)
	snap := s.Snapshot()
	if !snap.Matrix[0][0].ShowResult {
		t.Fatalf("tile 0 not processed at t=0")
	}
	if snap.Matrix[0][1].ShowResult {
		t.Fatalf("tile 1 processed too early")
	}

	for idx := 1; idx < Size*Size; idx++ {
		ms.Advance(SweepStep)
		snap = s.Snapshot()
		for j := 0; j < Size*Size; j++ {
			tile := snap.Matrix[j/Size][j%Size]
			if want := j <= idx; tile.ShowResult != want {
				t.Fatalf("after step %d: tile %d ShowResult = %v", idx, j, tile.ShowResult)
			}
			if j <= idx && !tile.Display {
				t.Fatalf("after step %d: tile %d not displayed", idx, j)
			}
		}
	}
}

func TestEndSweepTriggeredOnce(t *testing.T) {
	s, ms := newTestState(t, 13)
	cells := emptyCells(s.Snapshot().Matrix)
	for _, e := range cells[:Size] {
		_, _ = s.RevealTile(e[0], e[1])
	}
	before := len(ms.tasks)
	for _, e := range cells[Size : Size+3] {
		_, _ = s.RevealTile(e[0], e[1])
	}
	if len(ms.tasks) != before {
		t.Fatalf("excess reveals scheduled %d more tasks", len(ms.tasks)-before)
	}
	// 1 concealment + Size*Size sweep tasks.
	if before != 1+Size*Size {
		t.Fatalf("scheduled tasks = %d, want %d", before, 1+Size*Size)
	}
}

func TestNewGameCancelsPendingSweep(t *testing.T) {
	s, ms := newTestState(t, 21)
	for _, e := range emptyCells(s.Snapshot().Matrix)[:Size] {
		_, _ = s.RevealTile(e[0], e[1])
	}
	ms.Advance(SweepStep) // tiles 0 and 1 processed

	s.NewGame()
	fresh := s.Snapshot()
	if fresh.Round != 2 || fresh.RevealedTiles != 0 {
		t.Fatalf("new round: %+v", fresh)
	}

	ms.Advance(time.Hour)
	// Only the new round's concealment ran; no tile got ShowResult.
	snap := s.Snapshot()
	for r := range snap.Matrix {
		for c := range snap.Matrix[r] {
			if snap.Matrix[r][c].ShowResult {
				t.Fatalf("stale sweep touched (%d,%d)", r, c)
			}
			if snap.Matrix[r][c].Display {
				t.Fatalf("tile (%d,%d) not concealed", r, c)
			}
		}
	}

	// Callbacks that raced past Stop must still be no-ops.
	ms.firedAnyway()
	if got := s.Snapshot(); got.Version != snap.Version {
		t.Fatalf("stale callback mutated new round")
	}
}

func TestCloseStopsTasks(t *testing.T) {
	s, ms := newTestState(t, 22)
	s.Close()
	ms.Advance(PatternFlash)
	if !s.Snapshot().Matrix[0][0].Display {
		t.Fatalf("concealment ran after Close")
	}
}

func TestSetRevealedTilesOverwrites(t *testing.T) {
	s, _ := newTestState(t, 30)
	p := patternCells(s.Snapshot().Matrix)[0]
	_, _ = s.RevealTile(p[0], p[1])

	s.SetRevealedTiles(RevealedUpdate{Revealed: 3, Success: false})
	snap := s.Snapshot()
	if snap.RevealedTiles != 3 || snap.LastSuccess || snap.SuccessCount != 1 {
		t.Fatalf("after SetRevealedTiles: %+v", snap)
	}

	s.SetRevealedTiles(RevealedUpdate{Revealed: Size, Success: true})
	if res, _ := s.RevealTile(0, 0); res.Applied {
		t.Fatalf("reveal applied after counter set to Size")
	}
}

func TestUpdateTile(t *testing.T) {
	s, _ := newTestState(t, 31)
	want := Tile{Display: false, Content: ContentClickError, ShowResult: true}
	if err := s.UpdateTile(2, 3, want); err != nil {
		t.Fatalf("UpdateTile: %v", err)
	}
	if got := s.Snapshot().Matrix[2][3]; got != want {
		t.Fatalf("tile = %+v, want %+v", got, want)
	}
	if err := s.UpdateTile(Size, 0, want); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestUpdateMatrixAndSnapshotDoNotAlias(t *testing.T) {
	s, _ := newTestState(t, 32)
	g, _ := InitGrid(Size, rand.New(rand.NewPCG(9, 9)))
	s.UpdateMatrix(g)

	g[0][0].Content = ContentClickSuccess
	if s.Snapshot().Matrix[0][0].Content == ContentClickSuccess {
		t.Fatalf("UpdateMatrix kept caller's rows")
	}

	snap := s.Snapshot()
	snap.Matrix[1][1].Content = ContentClickError
	if s.Snapshot().Matrix[1][1].Content == ContentClickError {
		t.Fatalf("Snapshot aliases internal rows")
	}
}

func TestSweepSurvivesReshapedMatrix(t *testing.T) {
	s, ms := newTestState(t, 33)
	s.OnEndGame()
	small, _ := InitGrid(2, rand.New(rand.NewPCG(1, 1)))
	s.UpdateMatrix(small)
	ms.Advance(time.Hour)
	snap := s.Snapshot()
	for r := range snap.Matrix {
		for c := range snap.Matrix[r] {
			if !snap.Matrix[r][c].ShowResult {
				t.Fatalf("tile (%d,%d) not swept", r, c)
			}
		}
	}
}

func TestTimerSchedulerFires(t *testing.T) {
	done := make(chan struct{})
	TimerScheduler{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer did not fire")
	}
}
