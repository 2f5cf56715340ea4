// Package regrid interpolates scattered lon/lat samples onto a regular
// raster and blanks raster cells that have no source sample nearby.
//
// Interpolation is piecewise linear over a Delaunay triangulation of the
// samples. Cells whose nearest sample is farther than a configurable
// distance are overwritten with a no-data value, which keeps the
// triangulation from bridging oceans when the samples cover land only.
// Both steps measure distance in the flat lon/lat plane.
package regrid

import (
	"fmt"
	"math"
	"sync"
)

// Options configures Regrid and Regridder.
type Options struct {
	// MaxDistance, in degrees, is the validity radius around source points.
	MaxDistance float64
	// BatchSize and Workers tune mask construction; see MaskOptions.
	BatchSize int
	Workers   int
	// NoData, if set, is written to masked cells. Nil means NaN.
	NoData *float64
	// Progress, if set, observes mask construction.
	Progress ProgressFunc
}

// DefaultOptions returns options with the given mask radius, the default
// batch size, sequential batches and NaN as no-data value.
func DefaultOptions(maxDistance float64) Options {
	return Options{
		MaxDistance: maxDistance,
		BatchSize:   DefaultBatchSize,
		Workers:     1,
	}
}

// NoDataValue returns a pointer to v for Options.NoData.
func NoDataValue(v float64) *float64 {
	return &v
}

// Validate reports unusable mask settings with ErrInvalidConfiguration.
func (o Options) Validate() error {
	return o.mask().validate()
}

func (o Options) noData() float64 {
	if o.NoData == nil {
		return math.NaN()
	}
	return *o.NoData
}

func (o Options) mask() MaskOptions {
	return MaskOptions{
		MaxDistance: o.MaxDistance,
		BatchSize:   o.BatchSize,
		Workers:     o.Workers,
		Progress:    o.Progress,
	}
}

// Field is a regridded variable. Values are stored latitude-major, see Grid.
type Field struct {
	Grid   *Grid
	Values []float64
}

// At returns the value of cell (j, i).
func (f *Field) At(j, i int) float64 {
	return f.Values[f.Grid.Index(j, i)]
}

// Regridder holds everything that depends only on the source locations and
// the target grid, so several variables sampled at the same points can be
// regridded without rebuilding the triangulation, the triangle lookup or the
// mask.
type Regridder struct {
	grid     *Grid
	targets  Points
	interp   *Interpolator
	stencils []stencil
	masker   *MaskBuilder
	opts     Options

	once    sync.Once
	mask    []bool
	maskErr error
}

// NewRegridder validates the configuration, builds the target grid,
// triangulates src and locates every grid cell in the triangulation. The
// mask is computed on first use.
func NewRegridder(src Points, spec GridSpec, opts Options) (*Regridder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	grid, err := spec.Build()
	if err != nil {
		return nil, err
	}
	interp, err := NewInterpolator(src)
	if err != nil {
		return nil, err
	}
	masker, err := NewMaskBuilder(src)
	if err != nil {
		return nil, err
	}
	targets := grid.Points()
	return &Regridder{
		grid:     grid,
		targets:  targets,
		interp:   interp,
		stencils: interp.locate(targets),
		masker:   masker,
		opts:     opts,
	}, nil
}

// Grid returns the target grid.
func (r *Regridder) Grid() *Grid {
	return r.grid
}

// Mask returns the validity mask over the grid cells, true where a cell is
// farther than MaxDistance from every source point. The slice is shared;
// callers must not modify it.
func (r *Regridder) Mask() ([]bool, error) {
	r.once.Do(func() {
		r.mask, r.maskErr = r.masker.Build(r.targets, r.opts.mask())
	})
	return r.mask, r.maskErr
}

// Regrid interpolates values, one per source point, onto the grid and
// writes NoData into every masked cell, whatever the interpolation gave.
func (r *Regridder) Regrid(values []float64) (*Field, error) {
	raw, err := r.interp.apply(r.stencils, values)
	if err != nil {
		return nil, err
	}
	mask, err := r.Mask()
	if err != nil {
		return nil, err
	}
	if len(raw) != r.grid.Len() || len(mask) != len(raw) {
		return nil, fmt.Errorf("%w: grid has %d cells, interpolation %d, mask %d",
			ErrDimensionMismatch, r.grid.Len(), len(raw), len(mask))
	}
	noData := r.opts.noData()
	for k, invalid := range mask {
		if invalid {
			raw[k] = noData
		}
	}
	return &Field{Grid: r.grid, Values: raw}, nil
}

// Regrid is the single-variable form of Regridder.
func Regrid(src Points, values []float64, spec GridSpec, opts Options) (*Field, error) {
	if err := src.validate("source points"); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(values) != src.Len() {
		return nil, fmt.Errorf("%w: %d values for %d source points",
			ErrInvalidConfiguration, len(values), src.Len())
	}
	r, err := NewRegridder(src, spec, opts)
	if err != nil {
		return nil, err
	}
	return r.Regrid(values)
}
