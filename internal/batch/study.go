package batch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"nfcexposure/internal/model"
	"nfcexposure/internal/normalize"
)

var (
	ErrMalformedLine = errors.New("batch: malformed study line")
	ErrCountMismatch = errors.New("batch: experiment count mismatch")
)

// ReadStudyLines returns the non-blank lines of a study file. Lines starting
// with '#' are comments.
func ReadStudyLines(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

func readStudyFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadStudyLines(f)
}

// ParseStudyLine turns "start end variant [option...]" into an experiment.
// The variant is not checked here; the detector registry rejects unknown tags.
func ParseStudyLine(line, layout string) (model.ExperimentConfig, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 3 {
		return model.ExperimentConfig{}, fmt.Errorf("%w: %q needs start, end and variant", ErrMalformedLine, line)
	}
	start, err := normalize.ParseClock(tokens[0], layout)
	if err != nil {
		return model.ExperimentConfig{}, fmt.Errorf("%w: task start %q: %v", ErrMalformedLine, tokens[0], err)
	}
	end, err := normalize.ParseClock(tokens[1], layout)
	if err != nil {
		return model.ExperimentConfig{}, fmt.Errorf("%w: task end %q: %v", ErrMalformedLine, tokens[1], err)
	}
	opts := make([]model.Option, 0, len(tokens)-3)
	for _, tok := range tokens[3:] {
		opt := model.Option(tok)
		if !model.KnownOption(opt) {
			return model.ExperimentConfig{}, fmt.Errorf("%w: unknown option %q", ErrMalformedLine, tok)
		}
		opts = append(opts, opt)
	}
	return model.ExperimentConfig{
		TaskStartTime: start,
		TaskEndTime:   end,
		Variant:       model.Variant(tokens[2]),
		Options:       model.NewOptions(opts...),
	}, nil
}

// DiscoverExperiments lists the sub-directories of root whose name matches
// pattern, in lexical order.
func DiscoverExperiments(root string, pattern *regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !pattern.MatchString(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
