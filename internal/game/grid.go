package game

import (
	"math/rand/v2"
)

// InitGrid builds a size×size grid of visible, empty tiles and places a
// pattern of size tiles on it.
func InitGrid(size int, rng *rand.Rand) (Grid, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	g := make(Grid, size)
	for row := range g {
		g[row] = make([]Tile, size)
		for col := range g[row] {
			g[row][col] = Tile{Display: true, Content: ContentEmpty}
		}
	}
	if err := PlacePattern(g, size, rng); err != nil {
		return nil, err
	}
	return g, nil
}

// PlacePattern marks count distinct non-pattern cells as pattern.
// Cells are drawn with a shuffle-and-take over the free cells, so the number
// of random draws is bounded by the grid size.
func PlacePattern(g Grid, count int, rng *rand.Rand) error {
	if count <= 0 {
		return nil
	}
	size := len(g)
	free := make([]int, 0, size*size)
	for row := range g {
		for col := range g[row] {
			if g[row][col].Content != ContentPattern {
				free = append(free, row*size+col)
			}
		}
	}
	if count > len(free) {
		return ErrPatternTooLarge
	}
	// Partial Fisher-Yates: only the first count slots are needed.
	for i := 0; i < count; i++ {
		j := i + rng.IntN(len(free)-i)
		free[i], free[j] = free[j], free[i]
		g[free[i]/size][free[i]%size].Content = ContentPattern
	}
	return nil
}

// Clone returns a deep copy of g; no row is shared with the original.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for row := range g {
		out[row] = append([]Tile(nil), g[row]...)
	}
	return out
}

// Count returns how many tiles hold content c.
func (g Grid) Count(c Content) int {
	n := 0
	for row := range g {
		for col := range g[row] {
			if g[row][col].Content == c {
				n++
			}
		}
	}
	return n
}

// inBounds reports whether (row, col) addresses a tile of g.
func (g Grid) inBounds(row, col int) bool {
	return row >= 0 && row < len(g) && col >= 0 && col < len(g[row])
}
