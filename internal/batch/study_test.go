package batch

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nfcexposure/internal/model"
)

func TestReadStudyLinesSkipsBlankAndComments(t *testing.T) {
	in := "# participants\n10:00:00 10:15:00 A60\n\n  \n10:30:00 10:45:00 F nfc_off_free\n"
	lines, err := ReadStudyLines(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"10:00:00 10:15:00 A60", "10:30:00 10:45:00 F nfc_off_free"}, lines)
}

func TestParseStudyLine(t *testing.T) {
	exp, err := ParseStudyLine("10:00:00  10:15:00 F pay_nfc modify_task_start_time", "15:04:05")
	require.NoError(t, err)
	require.Equal(t, model.VariantF, exp.Variant)
	require.Equal(t, "10:00:00", exp.TaskStartTime.Format("15:04:05"))
	require.Equal(t, "10:15:00", exp.TaskEndTime.Format("15:04:05"))
	require.True(t, exp.Options.Has(model.OptionPayNFC))
	require.True(t, exp.Options.Has(model.OptionModifyTaskStart))
	require.False(t, exp.Options.Has(model.OptionNFCOffFree))
}

func TestParseStudyLineKeepsUnknownVariant(t *testing.T) {
	exp, err := ParseStudyLine("10:00:00 10:15:00 Pixel", "15:04:05")
	require.NoError(t, err)
	require.Equal(t, model.Variant("Pixel"), exp.Variant)
}

func TestParseStudyLineRejectsMalformed(t *testing.T) {
	cases := []string{
		"10:00:00 10:15:00",
		"10:00 10:15:00 A60",
		"10:00:00 later A60",
		"10:00:00 10:15:00 A60 nfc_always",
	}
	for _, line := range cases {
		_, err := ParseStudyLine(line, "15:04:05")
		require.Truef(t, errors.Is(err, ErrMalformedLine), "line %q: %v", line, err)
	}
}

func TestDiscoverExperimentsSortsAndFilters(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"20240102090000_02", "20240101090000_01", "scratch", "2024010109000_01"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "20240103090000_03"), []byte("file"), 0o644))

	dirs, err := DiscoverExperiments(root, regexp.MustCompile(`^[0-9]{14}_[0-9]{2}$`))
	require.NoError(t, err)
	require.Equal(t, []string{"20240101090000_01", "20240102090000_02"}, dirs)
}
