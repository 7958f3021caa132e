package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nfcexposure/internal/model"
)

const DefaultClockLayout = "15:04:05"

// Grid is the per-experiment timeline: every second from Start to End inclusive.
// Only the time of day is meaningful, so an experiment must not cross midnight.
type Grid struct {
	Start time.Time
	End   time.Time
}

func NewGrid(start, end time.Time) (Grid, error) {
	start = start.Truncate(time.Second)
	end = end.Truncate(time.Second)
	if end.Before(start) {
		return Grid{}, fmt.Errorf("grid end %s before start %s", end.Format(DefaultClockLayout), start.Format(DefaultClockLayout))
	}
	return Grid{Start: start, End: end}, nil
}

func (g Grid) Len() int {
	return int(g.End.Sub(g.Start)/time.Second) + 1
}

func (g Grid) At(i int) time.Time {
	return g.Start.Add(time.Duration(i) * time.Second)
}

// Index returns the offset of t from the start of the grid in whole seconds.
func (g Grid) Index(t time.Time) int {
	return int(t.Sub(g.Start) / time.Second)
}

func (g Grid) Contains(t time.Time) bool {
	return !t.Before(g.Start) && !t.After(g.End)
}

// Normalize projects one device's records onto the grid. A grid instant with
// records is true when any of them satisfies detect; an instant without records
// repeats the previous value, and the first instant defaults to false.
func Normalize(records []model.DetectionRecord, grid Grid, detect model.Detector) []bool {
	n := grid.Len()
	out := make([]bool, n)

	cursor := 0
	for cursor < len(records) && records[cursor].Timestamp.Before(grid.Start) {
		cursor++
	}

	prev := false
	for i := 0; i < n; i++ {
		t := grid.At(i)
		seen := false
		hit := false
		for cursor < len(records) && records[cursor].Timestamp.Equal(t) {
			seen = true
			if !hit && detect(records[cursor]) {
				hit = true
			}
			cursor++
		}
		if seen {
			prev = hit
		}
		out[i] = prev
	}
	return out
}

// ParseClock parses a zero-padded 24h time of day. The date part of the result is
// the zero date used by time.Parse, so values compare by time of day only.
func ParseClock(value, layout string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if layout == "" {
		layout = DefaultClockLayout
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
	}
	return t, nil
}

func FormatClock(t time.Time) string {
	return t.Format(DefaultClockLayout)
}
