package model

import (
	"fmt"
	"strconv"
	"time"
)

const (
	DefaultWindowSize   = 30
	DefaultRanksPerYear = 20
)

// Window is the descending range of years [End, End-Size+1] covered by a card.
type Window struct {
	End  int `json:"end"`
	Size int `json:"size"`
}

// WindowEndingAt returns a window ending at the given year. A non-positive end falls back
// to the calendar year of now.
func WindowEndingAt(end int, size int, now time.Time) Window {
	if end <= 0 {
		end = now.Year()
	}
	return Window{End: end, Size: size}
}

func (w Window) Validate() error {
	if w.Size <= 0 {
		return fmt.Errorf("window size must be positive, got %d", w.Size)
	}
	if w.End-w.Size+1 < 1 {
		return fmt.Errorf("window %s reaches before year 1", w)
	}
	return nil
}

func (w Window) Start() int {
	return w.End - w.Size + 1
}

// Years returns the years of the window, newest first.
func (w Window) Years() []int {
	if w.Size <= 0 {
		return []int{}
	}
	years := make([]int, w.Size)
	for i := range years {
		years[i] = w.End - i
	}
	return years
}

func (w Window) Contains(year int) bool {
	return year <= w.End && year >= w.Start()
}

func (w Window) String() string {
	return strconv.Itoa(w.End) + "-" + strconv.Itoa(w.Size)
}
