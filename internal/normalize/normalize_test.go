package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nfcexposure/internal/model"
)

func clock(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := ParseClock(v, "")
	require.NoError(t, err)
	return ts
}

func rec(t *testing.T, ts string, a string) model.DetectionRecord {
	return model.DetectionRecord{Timestamp: clock(t, ts), Fields: []string{a, "", ""}}
}

func unlocked(r model.DetectionRecord) bool {
	return strings.Contains(r.Field(0), "sel_res=60")
}

func TestGridLength(t *testing.T) {
	g, err := NewGrid(clock(t, "10:00:00"), clock(t, "10:30:00"))
	require.NoError(t, err)
	require.Equal(t, 1801, g.Len())
	require.Equal(t, "10:15:00", FormatClock(g.At(900)))
	require.Equal(t, 900, g.Index(clock(t, "10:15:00")))

	single, err := NewGrid(clock(t, "10:00:00"), clock(t, "10:00:00"))
	require.NoError(t, err)
	require.Equal(t, 1, single.Len())

	_, err = NewGrid(clock(t, "10:00:01"), clock(t, "10:00:00"))
	require.Error(t, err)
}

func TestNormalizeLengthMatchesGrid(t *testing.T) {
	g, err := NewGrid(clock(t, "09:59:58"), clock(t, "10:00:10"))
	require.NoError(t, err)
	records := []model.DetectionRecord{
		rec(t, "10:00:00", ""),
		rec(t, "10:00:03", "sel_res=60"),
	}
	got := Normalize(records, g, unlocked)
	require.Len(t, got, g.Len())
	require.Len(t, Normalize(nil, g, unlocked), g.Len())
}

func TestNormalizeCarryForward(t *testing.T) {
	g, err := NewGrid(clock(t, "10:00:00"), clock(t, "10:00:07"))
	require.NoError(t, err)
	records := []model.DetectionRecord{
		rec(t, "10:00:02", "106A sens_res=0344 sel_res=60"),
		rec(t, "10:00:05", ""),
	}
	got := Normalize(records, g, unlocked)
	require.Equal(t, []bool{false, false, true, true, true, false, false, false}, got)
}

func TestNormalizeTiesAreOred(t *testing.T) {
	g, err := NewGrid(clock(t, "10:00:00"), clock(t, "10:00:02"))
	require.NoError(t, err)
	records := []model.DetectionRecord{
		rec(t, "10:00:01", ""),
		rec(t, "10:00:01", "sel_res=60"),
		rec(t, "10:00:01", ""),
		rec(t, "10:00:02", ""),
	}
	got := Normalize(records, g, unlocked)
	require.Equal(t, []bool{false, true, false}, got)
}

func TestNormalizeSkipsRecordsBeforeGrid(t *testing.T) {
	g, err := NewGrid(clock(t, "10:00:00"), clock(t, "10:00:03"))
	require.NoError(t, err)
	records := []model.DetectionRecord{
		rec(t, "09:59:58", "sel_res=60"),
		rec(t, "09:59:59", "sel_res=60"),
		rec(t, "10:00:02", "sel_res=60"),
	}
	got := Normalize(records, g, unlocked)
	require.Equal(t, []bool{false, false, true, true}, got)
}

func TestParseClockRejectsGarbage(t *testing.T) {
	_, err := ParseClock("", "")
	require.Error(t, err)
	_, err = ParseClock("25:00:00", "")
	require.Error(t, err)
	_, err = ParseClock("2024-01-01", "")
	require.Error(t, err)
}
