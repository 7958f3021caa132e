package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"nfcexposure/internal/model"
	"nfcexposure/internal/normalize"
)

var (
	ErrMalformedLog = errors.New("ingest: malformed log")
	ErrLogCount     = errors.New("ingest: unexpected device log set")
)

// Parser turns one reader's CSV log into detection records. Rows are
// `HH:MM:SS,<sig1>,...,<sigN>`; an empty signature field means no answer.
type Parser struct {
	fields int
	layout string
}

func NewParser(fields int, layout string) *Parser {
	if fields <= 0 {
		fields = 3
	}
	if layout == "" {
		layout = normalize.DefaultClockLayout
	}
	return &Parser{fields: fields, layout: layout}
}

// Parse returns the records in file order. Records are not re-sorted; an
// out-of-order log is the producer's fault.
func (p *Parser) Parse(r io.Reader) ([]model.DetectionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	records := make([]model.DetectionRecord, 0, 4096)
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedLog, row, err)
		}
		rec, err := p.parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedLog, row, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Parser) ParseLine(line string) (model.DetectionRecord, error) {
	cr := csv.NewReader(strings.NewReader(line))
	fields, err := cr.Read()
	if err != nil {
		return model.DetectionRecord{}, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	rec, err := p.parseRecord(fields)
	if err != nil {
		return model.DetectionRecord{}, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	return rec, nil
}

func (p *Parser) parseRecord(fields []string) (model.DetectionRecord, error) {
	if len(fields) != p.fields+1 {
		return model.DetectionRecord{}, fmt.Errorf("expected timestamp and %d signal fields, got %d fields", p.fields, len(fields))
	}
	ts, err := normalize.ParseClock(fields[0], p.layout)
	if err != nil {
		return model.DetectionRecord{}, err
	}
	signals := make([]string, p.fields)
	for i := range signals {
		signals[i] = strings.TrimSpace(fields[i+1])
	}
	return model.DetectionRecord{Timestamp: ts, Fields: signals}, nil
}
