package model

import (
	"testing"
	"time"
)

func TestRunID_Validate(t *testing.T) {
	tests := []struct {
		name    string
		runID   RunID
		wantErr bool
	}{
		{
			name:    "valid UUIDv7",
			runID:   RunID("01890c24-905b-7122-b170-b60814e6ee06"),
			wantErr: false,
		},
		{
			name:    "empty string",
			runID:   RunID(""),
			wantErr: true,
		},
		{
			name:    "invalid UUID format",
			runID:   RunID("not-a-uuid"),
			wantErr: true,
		},
		{
			name:    "UUIDv4 rejected",
			runID:   RunID("550e8400-e29b-41d4-a716-446655440000"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.runID.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	id, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	if err := id.Validate(); err != nil {
		t.Fatalf("NewRunID() produced invalid id %q: %v", id, err)
	}
}

func TestPeriod_String(t *testing.T) {
	p := Period{Year: 1995, Month: time.March}
	if got := p.String(); got != "1995-03" {
		t.Errorf("String() = %v, want %v", got, "1995-03")
	}
}

func TestPeriod_Validate(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		wantErr bool
	}{
		{name: "valid", period: Period{Year: 2000, Month: time.June}},
		{name: "month zero", period: Period{Year: 2000, Month: 0}, wantErr: true},
		{name: "month thirteen", period: Period{Year: 2000, Month: 13}, wantErr: true},
		{name: "year zero", period: Period{Year: 0, Month: time.June}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("1987-12")
	if err != nil {
		t.Fatalf("ParsePeriod() error = %v", err)
	}
	if p != (Period{Year: 1987, Month: time.December}) {
		t.Errorf("ParsePeriod() = %+v", p)
	}
	if _, err := ParsePeriod("1987/12"); err == nil {
		t.Error("expected error for malformed period")
	}
}

func TestPeriod_Next(t *testing.T) {
	if got := (Period{Year: 1999, Month: time.December}).Next(); got != (Period{Year: 2000, Month: time.January}) {
		t.Errorf("Next() of December = %v", got)
	}
	if got := (Period{Year: 1999, Month: time.April}).Next(); got != (Period{Year: 1999, Month: time.May}) {
		t.Errorf("Next() of April = %v", got)
	}
}

func TestRange(t *testing.T) {
	got, err := Range(Period{Year: 1999, Month: time.November}, Period{Year: 2000, Month: time.February})
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	want := []string{"1999-11", "1999-12", "2000-01", "2000-02"}
	if len(got) != len(want) {
		t.Fatalf("Range() returned %d periods, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("period %d = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := Range(Period{Year: 2000, Month: time.March}, Period{Year: 2000, Month: time.January}); err == nil {
		t.Error("expected error when end precedes start")
	}
}

func TestMonths(t *testing.T) {
	tests := []struct {
		name       string
		startYear  int
		endYear    int
		startMonth time.Month
		endMonth   time.Month
		want       []string
		wantErr    bool
	}{
		{
			name:      "summer of two years",
			startYear: 2001, endYear: 2002,
			startMonth: time.June, endMonth: time.August,
			want: []string{"2001-06", "2001-07", "2001-08", "2002-06", "2002-07", "2002-08"},
		},
		{
			name:      "single month",
			startYear: 2010, endYear: 2010,
			startMonth: time.December, endMonth: time.December,
			want: []string{"2010-12"},
		},
		{
			name:      "years reversed",
			startYear: 2002, endYear: 2001,
			startMonth: time.January, endMonth: time.December,
			wantErr: true,
		},
		{
			name:      "months reversed",
			startYear: 2001, endYear: 2001,
			startMonth: time.May, endMonth: time.April,
			wantErr: true,
		},
		{
			name:      "month out of range",
			startYear: 2001, endYear: 2001,
			startMonth: time.November, endMonth: 13,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Months(tt.startYear, tt.endYear, tt.startMonth, tt.endMonth)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Months() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Months() returned %d periods, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].String() != tt.want[i] {
					t.Errorf("period %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
