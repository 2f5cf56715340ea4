package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunID represents a UUIDv7 run identifier, either passed in by the
// orchestrator or minted with NewRunID.
type RunID string

// NewRunID returns a fresh time-ordered run identifier.
func NewRunID() (RunID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run-id: %w", err)
	}
	return RunID(id.String()), nil
}

// Validate checks that the RunID is a valid UUIDv7.
func (r RunID) Validate() error {
	if r == "" {
		return fmt.Errorf("run-id cannot be empty")
	}
	id, err := uuid.Parse(string(r))
	if err != nil {
		return fmt.Errorf("run-id must be a valid UUID: %w", err)
	}
	if id.Version() != uuid.Version(7) {
		return fmt.Errorf("run-id must be a UUIDv7, got v%d", id.Version())
	}
	return nil
}

// String returns the run ID as a string.
func (r RunID) String() string {
	return string(r)
}

// Period is one monthly model output file.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses the "2006-01" form produced by String.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("period must look like YYYY-MM: %w", err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Validate checks that the month is in range and the year is positive.
func (p Period) Validate() error {
	if p.Year < 1 {
		return fmt.Errorf("year must be positive, got %d", p.Year)
	}
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("month must be between 1 and 12, got %d", int(p.Month))
	}
	return nil
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Before reports whether p is earlier than q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Range returns every period from start to end inclusive.
func Range(start, end Period) ([]Period, error) {
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s is before start %s", end, start)
	}
	var out []Period
	for p := start; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out, nil
}

// Months returns, for every year from startYear to endYear inclusive, the
// months from startMonth to endMonth inclusive.
func Months(startYear, endYear int, startMonth, endMonth time.Month) ([]Period, error) {
	if endYear < startYear {
		return nil, fmt.Errorf("end year %d is before start year %d", endYear, startYear)
	}
	if endMonth < startMonth {
		return nil, fmt.Errorf("end month %d is before start month %d", int(endMonth), int(startMonth))
	}
	var out []Period
	for y := startYear; y <= endYear; y++ {
		for m := startMonth; m <= endMonth; m++ {
			p := Period{Year: y, Month: m}
			if err := p.Validate(); err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}
