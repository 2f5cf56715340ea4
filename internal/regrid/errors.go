package regrid

import "errors"

var (
	// ErrInsufficientSourceData is returned when the source points cannot
	// support the requested operation: fewer than 3 points, or all of them
	// collinear, for interpolation; no points at all for the mask.
	ErrInsufficientSourceData = errors.New("insufficient source data")

	// ErrDimensionMismatch signals that the grid, interpolation and mask
	// disagree on the number of cells. It indicates a defect, not bad input.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidConfiguration is returned before any computation starts when
	// resolution, max distance, batch size or array lengths are unusable.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
