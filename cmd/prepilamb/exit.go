package main

import (
	"errors"
	"fmt"

	"github.com/embell139/prep-ILAMB/internal/exitcode"
	"github.com/embell139/prep-ILAMB/internal/pipeline"
	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// exitError carries an exit code decided where the failure happened.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, regrid.ErrInvalidConfiguration) {
		return exitcode.ConfigError
	}
	var se *pipeline.StepError
	if errors.As(err, &se) {
		switch se.Step {
		case pipeline.StepLocate, pipeline.StepRead, pipeline.StepRegrid:
			return exitcode.DataError
		case pipeline.StepWrite, pipeline.StepStore, pipeline.StepSeries:
			return exitcode.StorageError
		case pipeline.StepLoad, pipeline.StepCatalog:
			return exitcode.NetworkError
		}
	}
	return exitcode.ApplicationError
}
