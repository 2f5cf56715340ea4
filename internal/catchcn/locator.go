// Package catchcn finds and reads monthly Catchment-CN land model output
// and turns its native variables into the CF names ILAMB expects.
package catchcn

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/embell139/prep-ILAMB/internal/model"
)

// ErrSourceNotFound is returned when no file matches a period.
type ErrSourceNotFound struct {
	Pattern string
}

func (e *ErrSourceNotFound) Error() string {
	return fmt.Sprintf("no file found matching %q", e.Pattern)
}

// ErrAmbiguousSource is returned when more than one file matches a period.
type ErrAmbiguousSource struct {
	Pattern string
	Matches []string
}

func (e *ErrAmbiguousSource) Error() string {
	return fmt.Sprintf("%d files match %q: %s", len(e.Matches), e.Pattern, strings.Join(e.Matches, ", "))
}

// Locator finds the monthly file of a period below InputDir, which is laid
// out as Y<yyyy>/M<mm>/<name>.nc4.
type Locator struct {
	InputDir string
	// FileType is a substring of the file name; "*" or "" matches any file.
	FileType string
}

// Pattern returns the glob used for p.
func (l Locator) Pattern(p model.Period) string {
	ft := l.FileType
	if ft == "" {
		ft = "*"
	}
	return filepath.Join(l.InputDir,
		fmt.Sprintf("Y%04d", p.Year),
		fmt.Sprintf("M%02d", int(p.Month)),
		"*"+ft+"*.nc4")
}

// Locate returns the single file for p.
func (l Locator) Locate(p model.Period) (string, error) {
	pattern := l.Pattern(p)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %q: %w", pattern, err)
	}
	switch len(matches) {
	case 0:
		return "", &ErrSourceNotFound{Pattern: pattern}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &ErrAmbiguousSource{Pattern: pattern, Matches: matches}
	}
}

// OutputName derives the output file name from an input path:
// "x.monthly.200001.nc4" with suffix "-ILAMB" becomes "x.monthly.200001-ILAMB.nc".
func OutputName(input, suffix string) string {
	return strings.TrimSuffix(filepath.Base(input), ".nc4") + suffix + ".nc"
}
