package cardutil

import (
	"github.com/pkg/errors"

	"animebingo.dev/backend-next/internal/model"
)

var ErrCellOutOfRange = errors.New("cardutil: cell out of range")

// Replace derives a fresh watch state from annotated, discarding every manual edit.
func Replace(annotated *model.AnnotatedMatrix) model.WatchState {
	state := make(model.WatchState, len(annotated.Rows))
	for year, row := range annotated.Rows {
		for _, cell := range row {
			state.Set(year, cell.Rank, model.WatchCell{Watched: cell.Watched})
		}
	}
	return state
}

// Merge derives a watch state from annotated while keeping every manual cell of prev.
// Cells of prev outside annotated's window are dropped.
func Merge(prev model.WatchState, annotated *model.AnnotatedMatrix) model.WatchState {
	state := Replace(annotated)
	for year, row := range state {
		for rank := range row {
			if old, ok := prev[year][rank]; ok && old.Manual {
				row[rank] = old
			}
		}
	}
	return state
}

// Reconcile applies mode to prev and annotated.
func Reconcile(mode model.RefreshMode, prev model.WatchState, annotated *model.AnnotatedMatrix) model.WatchState {
	if mode == model.RefreshReplace {
		return Replace(annotated)
	}
	return Merge(prev, annotated)
}

// Set returns a copy of state where (year, rank) is watched as given and marked manual.
func Set(state model.WatchState, window model.Window, ranks, year, rank int, watched bool) (model.WatchState, error) {
	if err := checkCell(window, ranks, year, rank); err != nil {
		return nil, err
	}
	next := state.Clone()
	next.Set(year, rank, model.WatchCell{Watched: watched, Manual: true})
	return next, nil
}

// Toggle returns a copy of state where (year, rank) is flipped and marked manual.
func Toggle(state model.WatchState, window model.Window, ranks, year, rank int) (model.WatchState, error) {
	return Set(state, window, ranks, year, rank, !state.Get(year, rank).Watched)
}

// Overlay returns a copy of annotated whose watched flags come from state, which is what
// the user sees after manual edits.
func Overlay(annotated *model.AnnotatedMatrix, state model.WatchState) *model.AnnotatedMatrix {
	out := &model.AnnotatedMatrix{
		Window: annotated.Window,
		Ranks:  annotated.Ranks,
		Digest: annotated.Digest,
		Rows:   make(map[int][]model.AnnotatedCell, len(annotated.Rows)),
	}
	for year, row := range annotated.Rows {
		cells := make([]model.AnnotatedCell, len(row))
		copy(cells, row)
		for i := range cells {
			if cell, ok := state[year][cells[i].Rank]; ok {
				cells[i].Watched = cell.Watched
			}
		}
		out.Rows[year] = cells
	}
	return out
}

func checkCell(window model.Window, ranks, year, rank int) error {
	if !window.Contains(year) || rank < 1 || rank > ranks {
		return errors.Wrapf(ErrCellOutOfRange, "(%d, %d) not in window %s with %d ranks", year, rank, window, ranks)
	}
	return nil
}
