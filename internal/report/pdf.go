package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"

	"nfcexposure/internal/config"
	"nfcexposure/internal/model"
)

const (
	pageMarginMM   = 12.0
	labelWidthMM   = 12.0
	stripGapMM     = 4.0
	rowHeightMM    = 5.0
	rowGapMM       = 1.5
	tickHeightMM   = 1.5
	legendBoxMM    = 4.0
	secondsPerTick = 60
)

// Rows returns the results that are drawn, in input order. Excluded
// experiments never get a row.
func Rows(results []model.ExperimentResult) []model.ExperimentResult {
	out := make([]model.ExperimentResult, 0, len(results))
	for _, r := range results {
		if r.Excluded || r.Window == nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// BuildPDF renders one row per experiment with a task strip and a free strip;
// attackable seconds are black, not attackable white and unavailable gray.
func BuildPDF(results []model.ExperimentResult, study config.StudyConfig) ([]byte, error) {
	rows := Rows(results)
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(false, pageMarginMM)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	usable := pageW - 2*pageMarginMM - labelWidthMM - stripGapMM
	total := float64(study.TaskSecs + study.FreeSecs)
	taskW := usable * float64(study.TaskSecs) / total
	freeW := usable * float64(study.FreeSecs) / total
	taskX := pageMarginMM + labelWidthMM
	freeX := taskX + taskW + stripGapMM

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, "Attackable time per participant")
	pdf.Ln(9)

	y := pdf.GetY()
	pdf.SetFont("Courier", "", 8)
	for i, r := range rows {
		if y+rowHeightMM > pageH-pageMarginMM-20 {
			pdf.AddPage()
			y = pageMarginMM
		}
		pdf.SetXY(pageMarginMM, y)
		pdf.CellFormat(labelWidthMM-1, rowHeightMM, fmt.Sprintf("P%d", i+1), "", 0, "R", false, 0, "")
		drawStrip(pdf, r.Window.Task, taskX, y, taskW)
		drawStrip(pdf, r.Window.Free, freeX, y, freeW)
		y += rowHeightMM + rowGapMM
	}

	pdf.SetFont("Arial", "", 7)
	drawAxis(pdf, taskX, y, taskW, study.TaskSecs)
	drawAxis(pdf, freeX, y, freeW, study.FreeSecs)
	pdf.SetFont("Arial", "", 8)
	pdf.SetXY(taskX, y+6)
	pdf.CellFormat(taskW, 4, "Task Time [min]", "", 0, "C", false, 0, "")
	pdf.SetXY(freeX, y+6)
	pdf.CellFormat(freeW, 4, "Free Time [min]", "", 0, "C", false, 0, "")

	drawLegend(pdf, taskX, y+14, study.NAValue)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WritePDF(path string, results []model.ExperimentResult, study config.StudyConfig) error {
	data, err := BuildPDF(results, study)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// drawStrip fills runs of equal values as single rectangles.
func drawStrip(pdf *gofpdf.Fpdf, values []float64, x, y, w float64) {
	if len(values) == 0 {
		return
	}
	step := w / float64(len(values))
	start := 0
	for i := 1; i <= len(values); i++ {
		if i < len(values) && values[i] == values[start] {
			continue
		}
		g := grayLevel(values[start])
		pdf.SetFillColor(g, g, g)
		pdf.Rect(x+float64(start)*step, y, float64(i-start)*step, rowHeightMM, "F")
		start = i
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, w, rowHeightMM, "D")
}

func drawAxis(pdf *gofpdf.Fpdf, x, y, w float64, secs int) {
	if secs <= 0 {
		return
	}
	step := w / float64(secs)
	for s := 0; s <= secs; s += secondsPerTick {
		tx := x + float64(s)*step
		pdf.Line(tx, y, tx, y+tickHeightMM)
		pdf.SetXY(tx-3, y+tickHeightMM)
		pdf.CellFormat(6, 3, fmt.Sprintf("%d", s/secondsPerTick), "", 0, "C", false, 0, "")
	}
}

func drawLegend(pdf *gofpdf.Fpdf, x, y, na float64) {
	entries := []struct {
		label string
		value float64
	}{
		{"Attackable", 1},
		{"Not Attackable", 0},
		{"Not Available", na},
	}
	for _, e := range entries {
		g := grayLevel(e.value)
		pdf.SetFillColor(g, g, g)
		pdf.Rect(x, y, legendBoxMM, legendBoxMM, "FD")
		pdf.SetXY(x+legendBoxMM+1, y)
		pdf.CellFormat(30, legendBoxMM, e.label, "", 0, "L", false, 0, "")
		x += legendBoxMM + 36
	}
}

// grayLevel maps 1 to black and 0 to white, like a binary colormap.
func grayLevel(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int((1-v)*255 + 0.5)
}
