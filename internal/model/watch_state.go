package model

type WatchCell struct {
	Watched bool `json:"watched"`
	// Manual marks a cell edited by the user since the last full replace.
	Manual bool `json:"manual,omitempty"`
}

// WatchState is the user-editable overlay keyed by year then rank.
type WatchState map[int]map[int]WatchCell

func (s WatchState) Get(year, rank int) WatchCell {
	return s[year][rank]
}

func (s WatchState) Set(year, rank int, cell WatchCell) {
	row, ok := s[year]
	if !ok {
		row = make(map[int]WatchCell)
		s[year] = row
	}
	row[rank] = cell
}

func (s WatchState) Clone() WatchState {
	c := make(WatchState, len(s))
	for year, row := range s {
		r := make(map[int]WatchCell, len(row))
		for rank, cell := range row {
			r[rank] = cell
		}
		c[year] = r
	}
	return c
}

// EmptyWatchState returns a state with every cell of the window unwatched.
func EmptyWatchState(window Window, ranks int) WatchState {
	s := make(WatchState, window.Size)
	for _, year := range window.Years() {
		row := make(map[int]WatchCell, ranks)
		for rank := 1; rank <= ranks; rank++ {
			row[rank] = WatchCell{}
		}
		s[year] = row
	}
	return s
}

type RefreshMode string

const (
	// RefreshMerge keeps manual edits and overwrites every other cell.
	RefreshMerge RefreshMode = "merge"
	// RefreshReplace discards manual edits.
	RefreshReplace RefreshMode = "replace"
)

func (m RefreshMode) Valid() bool {
	return m == RefreshMerge || m == RefreshReplace
}
