package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"nfcexposure/internal/model"
)

const (
	summarySheet = "summary"
	taskSheet    = "task"
	freeSheet    = "free"
)

// BuildXLSX writes a summary sheet with one line per experiment, excluded ones
// included, and one sheet per window holding the per-second values.
func BuildXLSX(results []model.ExperimentResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{taskSheet, freeSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	header := []interface{}{
		"Experiment", "Variant", "Options", "Excluded",
		"Task attackable", "Task seconds", "Task %",
		"Free attackable", "Free seconds", "Free %",
	}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, r := range results {
		row := []interface{}{
			r.ExperimentID, string(r.Variant), strings.Join(r.Options, " "), r.Excluded,
			r.TaskSummary.Attackable, r.TaskSummary.Total, r.TaskSummary.Percent,
			r.FreeSummary.Attackable, r.FreeSummary.Total, r.FreeSummary.Percent,
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	rows := Rows(results)
	if err := writeSeries(f, taskSheet, rows, func(w *model.WindowResult) []float64 { return w.Task }); err != nil {
		return nil, err
	}
	if err := writeSeries(f, freeSheet, rows, func(w *model.WindowResult) []float64 { return w.Free }); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteXLSX(path string, results []model.ExperimentResult) error {
	data, err := BuildXLSX(results)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeSeries(f *excelize.File, sheet string, rows []model.ExperimentResult, pick func(*model.WindowResult) []float64) error {
	if err := f.SetCellValue(sheet, "A1", "Second"); err != nil {
		return err
	}
	for col, r := range rows {
		cell, err := excelize.CoordinatesToCellName(col+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, fmt.Sprintf("P%d %s", col+1, r.ExperimentID)); err != nil {
			return err
		}
		values := pick(r.Window)
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+2, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if len(rows) > 0 {
		for i := range pick(rows[0].Window) {
			if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), i); err != nil {
				return err
			}
		}
	}
	return nil
}
