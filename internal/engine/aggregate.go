package engine

import (
	"errors"
	"fmt"
)

var (
	ErrLengthMismatch = errors.New("engine: series length mismatch")
	ErrNoSeries       = errors.New("engine: no series to aggregate")
)

// Aggregate ORs the per-device series into one study-wide series. Every input
// must have been normalized against the same grid.
func Aggregate(series ...[]bool) ([]bool, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}
	n := len(series[0])
	for i, s := range series {
		if len(s) != n {
			return nil, fmt.Errorf("%w: series %d has %d values, series 0 has %d", ErrLengthMismatch, i, len(s), n)
		}
	}
	fused := make([]bool, n)
	for _, s := range series {
		for i, v := range s {
			if v {
				fused[i] = true
			}
		}
	}
	return fused, nil
}
