package regrid

import (
	"fmt"
	"math"
)

// GridSpec describes a regular lon/lat raster. Cell centres run from the
// minimum (inclusive) towards the maximum (exclusive) in steps of the given
// resolution, the same convention as numpy.arange.
type GridSpec struct {
	LonStep, LatStep float64
	LonMin, LonMax   float64
	LatMin, LatMax   float64
}

// GlobalGrid returns a spec covering [-180, 180) x [-90, 90).
func GlobalGrid(lonStep, latStep float64) GridSpec {
	return GridSpec{
		LonStep: lonStep,
		LatStep: latStep,
		LonMin:  -180,
		LonMax:  180,
		LatMin:  -90,
		LatMax:  90,
	}
}

// Validate reports whether the spec can produce a non-empty grid.
func (s GridSpec) Validate() error {
	if !(s.LonStep > 0) || !(s.LatStep > 0) {
		return fmt.Errorf("%w: grid resolution must be positive, got lon %v lat %v",
			ErrInvalidConfiguration, s.LonStep, s.LatStep)
	}
	if !(s.LonMax > s.LonMin) || !(s.LatMax > s.LatMin) {
		return fmt.Errorf("%w: empty grid extent lon [%v, %v) lat [%v, %v)",
			ErrInvalidConfiguration, s.LonMin, s.LonMax, s.LatMin, s.LatMax)
	}
	return nil
}

// Build generates the coordinate axes of the grid.
func (s GridSpec) Build() (*Grid, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Grid{
		Lons: arange(s.LonMin, s.LonMax, s.LonStep),
		Lats: arange(s.LatMin, s.LatMax, s.LatStep),
	}, nil
}

// arange tolerates quotients like 1799.9999999999998 so a 0.1 degree step
// over 180 degrees yields 1800 centres.
func arange(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop-start)/step - 1e-9))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Grid is a regular raster. Cells are stored latitude-major: the cell at
// latitude index j and longitude index i lives at j*len(Lons)+i, so a 2-D
// view has dimensions (lat, lon).
type Grid struct {
	Lons []float64
	Lats []float64
}

// NLon returns the number of longitude centres.
func (g *Grid) NLon() int { return len(g.Lons) }

// NLat returns the number of latitude centres.
func (g *Grid) NLat() int { return len(g.Lats) }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.Lons) * len(g.Lats) }

// Index returns the flat offset of cell (j, i).
func (g *Grid) Index(j, i int) int { return j*len(g.Lons) + i }

// Points flattens the cell centres in storage order.
func (g *Grid) Points() Points {
	n := g.Len()
	p := Points{Lon: make([]float64, n), Lat: make([]float64, n)}
	k := 0
	for _, lat := range g.Lats {
		for _, lon := range g.Lons {
			p.Lon[k] = lon
			p.Lat[k] = lat
			k++
		}
	}
	return p
}
