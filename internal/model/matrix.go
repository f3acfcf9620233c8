package model

// PopularityMatrix maps every (year, rank) pair of a window to an item. A nil *Item is the
// empty sentinel: every year always holds exactly Ranks slots.
type PopularityMatrix struct {
	Window Window `json:"window"`
	Ranks  int    `json:"ranks"`
	// Rows is keyed by year; Rows[year][rank-1] is the item at rank.
	Rows map[int][]*Item `json:"rows"`
	// DegradedYears lists years whose fetch failed and were filled with empty cells.
	DegradedYears []int `json:"degradedYears,omitempty"`
	// Digest fingerprints the identity layout (year, rank, item id) of the matrix.
	Digest string `json:"digest"`
}

// NewPopularityMatrix allocates a matrix with every slot set to the empty sentinel.
func NewPopularityMatrix(window Window, ranks int) *PopularityMatrix {
	m := &PopularityMatrix{
		Window: window,
		Ranks:  ranks,
		Rows:   make(map[int][]*Item, window.Size),
	}
	for _, year := range window.Years() {
		m.Rows[year] = make([]*Item, ranks)
	}
	return m
}

// At returns the item at (year, rank), or nil for an empty or out-of-window cell.
func (m *PopularityMatrix) At(year, rank int) *Item {
	row, ok := m.Rows[year]
	if !ok || rank < 1 || rank > len(row) {
		return nil
	}
	return row[rank-1]
}

// Cells counts every addressable cell, empty ones included.
func (m *PopularityMatrix) Cells() int {
	n := 0
	for _, row := range m.Rows {
		n += len(row)
	}
	return n
}

type AnnotatedCell struct {
	Year int   `json:"year"`
	Rank int   `json:"rank"`
	Item *Item `json:"item"`
	// Title is the resolved display title; empty for empty cells.
	Title   string `json:"title,omitempty"`
	Watched bool   `json:"watched"`
}

func (c AnnotatedCell) Empty() bool {
	return c.Item == nil
}

type AnnotatedMatrix struct {
	Window Window                  `json:"window"`
	Ranks  int                     `json:"ranks"`
	Digest string                  `json:"digest"`
	Rows   map[int][]AnnotatedCell `json:"rows"`
}

func (m *AnnotatedMatrix) At(year, rank int) (AnnotatedCell, bool) {
	row, ok := m.Rows[year]
	if !ok || rank < 1 || rank > len(row) {
		return AnnotatedCell{}, false
	}
	return row[rank-1], true
}

// WatchedCount counts annotated cells holding a watched item.
func (m *AnnotatedMatrix) WatchedCount() int {
	n := 0
	for _, row := range m.Rows {
		for _, cell := range row {
			if cell.Watched {
				n++
			}
		}
	}
	return n
}
