package card

import (
	"fmt"
	"io"

	"github.com/samber/lo"

	"animebingo.dev/backend-next/internal/model"
)

const (
	markWatched   = "●"
	markUnwatched = "○"
)

type renderOptions struct {
	WatchedOnly   bool
	FailedOffsets []int
	DegradedYears []int
}

// render prints the card year by year, newest first, one rank per line.
func render(w io.Writer, info *model.UserInfo, card *model.AnnotatedMatrix, opts renderOptions) error {
	p := &printer{w: w}

	p.printf("%s: %d/%d watched, window %s\n", info.DisplayName(), card.WatchedCount(), card.Window.Size*card.Ranks, card.Window)
	if len(opts.FailedOffsets) > 0 {
		p.printf("warning: collection pages at offsets %v could not be fetched\n", opts.FailedOffsets)
	}

	for _, year := range card.Window.Years() {
		row := card.Rows[year]
		watched := lo.CountBy(row, func(cell model.AnnotatedCell) bool { return cell.Watched })
		p.printf("\n%d (%d/%d)", year, watched, len(row))
		if lo.Contains(opts.DegradedYears, year) {
			p.printf(" unavailable")
		}
		p.printf("\n")

		for _, cell := range row {
			if opts.WatchedOnly && !cell.Watched {
				continue
			}
			if cell.Empty() {
				p.printf("  %2d %s -\n", cell.Rank, markUnwatched)
				continue
			}
			p.printf("  %2d %s %s\n", cell.Rank, lo.Ternary(cell.Watched, markWatched, markUnwatched), cell.Title)
		}
	}

	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
