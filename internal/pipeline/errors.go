package pipeline

import (
	"fmt"

	"github.com/embell139/prep-ILAMB/internal/model"
)

// Step names a stage of processing one period.
type Step string

const (
	StepLocate  Step = "locate"
	StepRead    Step = "read"
	StepRegrid  Step = "regrid"
	StepWrite   Step = "write"
	StepStore   Step = "store"
	StepLoad    Step = "load"
	StepCatalog Step = "catalog"
	StepSeries  Step = "series"
)

// StepError wraps a failure with the step and period it happened in.
type StepError struct {
	Step   Step
	Period model.Period
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Period, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
