package engine

import (
	"errors"
	"fmt"

	"nfcexposure/internal/config"
	"nfcexposure/internal/model"
)

var (
	ErrSwitchIndex          = errors.New("engine: switch index out of range")
	ErrInsufficientFreeTime = errors.New("engine: insufficient free time")
)

// Splitter cuts a fused series into the fixed-size task and free windows.
type Splitter struct {
	taskSecs int
	freeSecs int
	na       float64
}

func NewSplitter(study config.StudyConfig) *Splitter {
	return &Splitter{taskSecs: study.TaskSecs, freeSecs: study.FreeSecs, na: study.NAValue}
}

// Split returns task = fused[:switchIndex] clipped to taskSecs and right-padded
// with the NA value, and free = fused[switchIndex+1:] clipped to freeSecs. The
// switch instant itself belongs to neither window. The free window is never
// padded, so at least freeSecs values must follow the switch instant unless the
// free window is blanked by an option.
func (s *Splitter) Split(fused []bool, switchIndex int, opts model.Options) (model.WindowResult, error) {
	if switchIndex < 0 || switchIndex >= len(fused) {
		return model.WindowResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrSwitchIndex, switchIndex, len(fused))
	}

	task := s.blank(s.taskSecs)
	for i, v := range clip(fused[:switchIndex], s.taskSecs) {
		task[i] = boolValue(v)
	}

	freeRaw := clip(fused[switchIndex+1:], s.freeSecs)
	blankFree := opts.Has(model.OptionNFCOffFree) || opts.Has(model.OptionPayNFC)
	if len(freeRaw) < s.freeSecs && !blankFree {
		return model.WindowResult{}, fmt.Errorf("%w: %d seconds after switch, %d required", ErrInsufficientFreeTime, len(freeRaw), s.freeSecs)
	}
	free := make([]float64, s.freeSecs)
	for i, v := range freeRaw {
		free[i] = boolValue(v)
	}

	if opts.Has(model.OptionNFCOffFree) {
		free = s.blank(s.freeSecs)
	}
	if opts.Has(model.OptionPayNFC) {
		task = s.blank(s.taskSecs)
		free = s.blank(s.freeSecs)
	}
	return model.WindowResult{Task: task, Free: free}, nil
}

func (s *Splitter) blank(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.na
	}
	return out
}

func clip(v []bool, n int) []bool {
	if len(v) > n {
		return v[:n]
	}
	return v
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Summarize counts the attackable seconds of one window. NA values count
// towards the total but never as attackable.
func Summarize(window []float64) model.Summary {
	sum := model.Summary{Total: len(window)}
	for _, v := range window {
		if v == 1 {
			sum.Attackable++
		}
	}
	if sum.Total > 0 {
		sum.Percent = float64(sum.Attackable) / float64(sum.Total) * 100
	}
	sum.Minutes = float64(sum.Total) / 60
	return sum
}
