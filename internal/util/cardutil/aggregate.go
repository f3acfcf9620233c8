// Package cardutil holds the pure functions of a bingo card: annotating a popularity matrix
// with a watched set, and reconciling the result with the stored watch state.
package cardutil

import (
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"

	"animebingo.dev/backend-next/internal/model"
)

// DisplayTitle is the title shown for item: the localized name when present and non-empty,
// otherwise the original name. Empty cells have no title.
func DisplayTitle(item *model.Item) string {
	return item.DisplayTitle()
}

// Aggregate annotates every cell of matrix with whether its item id is in watched.
// It never mutates its inputs and returns the same result for the same inputs.
func Aggregate(matrix *model.PopularityMatrix, watched model.WatchedIDSet) *model.AnnotatedMatrix {
	annotated := &model.AnnotatedMatrix{
		Window: matrix.Window,
		Ranks:  matrix.Ranks,
		Digest: matrix.Digest,
		Rows:   make(map[int][]model.AnnotatedCell, matrix.Window.Size),
	}

	for _, year := range matrix.Window.Years() {
		row := make([]model.AnnotatedCell, matrix.Ranks)
		for i := range row {
			rank := i + 1
			item := matrix.At(year, rank)
			cell := model.AnnotatedCell{Year: year, Rank: rank}
			if item != nil {
				cell.Item = item
				cell.Title = DisplayTitle(item)
				cell.Watched = watched.Has(item.ID)
			}
			row[i] = cell
		}
		annotated.Rows[year] = row
	}

	return annotated
}

// Digest fingerprints the (year, rank, item id) layout of matrix. Two matrices with the same
// digest annotate identically for any watched set.
func Digest(matrix *model.PopularityMatrix) string {
	years := make([]int, 0, len(matrix.Rows))
	for year := range matrix.Rows {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	h := xxh3.New()
	buf := make([]byte, 0, 64)
	for _, year := range years {
		for i, item := range matrix.Rows[year] {
			buf = buf[:0]
			buf = strconv.AppendInt(buf, int64(year), 10)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(i+1), 10)
			buf = append(buf, '=')
			if item == nil {
				buf = append(buf, '-')
			} else {
				buf = strconv.AppendInt(buf, int64(item.ID), 10)
			}
			buf = append(buf, ';')
			_, _ = h.Write(buf)
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
