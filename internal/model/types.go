package model

import "time"

// Variant tags the smartphone model a participant carried; it selects the detector.
type Variant string

const (
	VariantA60       Variant = "A60"
	VariantA60Always Variant = "A60'"
	VariantF         Variant = "F"
	VariantHuaweiPay Variant = "HuaweiPay"
)

// Excluded reports whether experiments of this variant are dropped from analysis altogether.
func (v Variant) Excluded() bool {
	return v == VariantA60Always
}

type Option string

const (
	OptionModifyTaskStart Option = "modify_task_start_time"
	OptionNFCOffFree      Option = "nfc_off_free"
	OptionPayNFC          Option = "pay_nfc"
)

func KnownOption(o Option) bool {
	switch o {
	case OptionModifyTaskStart, OptionNFCOffFree, OptionPayNFC:
		return true
	}
	return false
}

type Options map[Option]struct{}

func NewOptions(values ...Option) Options {
	out := make(Options, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func (o Options) Has(opt Option) bool {
	_, ok := o[opt]
	return ok
}

func (o Options) List() []string {
	out := make([]string, 0, len(o))
	for _, opt := range []Option{OptionModifyTaskStart, OptionNFCOffFree, OptionPayNFC} {
		if o.Has(opt) {
			out = append(out, string(opt))
		}
	}
	return out
}

// DetectionRecord is one polling round of one reader: time of day plus one raw
// target string per polled signature (empty when nothing answered).
type DetectionRecord struct {
	Timestamp time.Time
	Fields    []string
}

func (r DetectionRecord) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Detector decides whether a single record shows the phone in an attackable state.
// Implementations must be pure.
type Detector func(DetectionRecord) bool

type ExperimentConfig struct {
	RunID         string
	ID            string
	LogDir        string
	TaskStartTime time.Time
	TaskEndTime   time.Time
	Variant       Variant
	Options       Options
}

type WindowResult struct {
	Task []float64 `json:"task"`
	Free []float64 `json:"free"`
}

type Summary struct {
	Attackable int     `json:"attackable"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
	Minutes    float64 `json:"minutes"`
}

type ExperimentResult struct {
	RunID        string        `json:"run_id"`
	ExperimentID string        `json:"experiment_id"`
	Variant      Variant       `json:"variant"`
	Options      []string      `json:"options,omitempty"`
	Excluded     bool          `json:"excluded"`
	Window       *WindowResult `json:"window,omitempty"`
	TaskSummary  Summary       `json:"task_summary"`
	FreeSummary  Summary       `json:"free_summary"`
	Devices      int           `json:"devices"`
	GridSeconds  int           `json:"grid_seconds"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Issue records an experiment that aborted during a batch run.
type Issue struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	ExperimentID string    `json:"experiment_id"`
	Kind         string    `json:"kind"`
	Message      string    `json:"message"`
}
