package regrid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/fogleman/delaunay"
)

// barycentric weights down to -baryEps still count as inside, so targets
// on a shared edge resolve to the first triangle found.
const baryEps = 1e-12

// triangle is one Delaunay facet. The embedded polygon gives the R-tree its
// bounding box; v holds the source point indices of the corners.
type triangle struct {
	geom.Polygon
	v [3]int
}

// Interpolator performs piecewise-linear interpolation over the Delaunay
// triangulation of a fixed set of source points. The triangulation and its
// spatial index are built once and reused for every value array.
//
// Coordinates are treated as a flat Euclidean plane in degrees. That is an
// approximation: it is reasonable for fine, regional source meshes and
// degrades towards the poles and across the antimeridian.
type Interpolator struct {
	src   Points
	index *rtree.Rtree
}

// NewInterpolator triangulates src. It fails with ErrInsufficientSourceData
// when fewer than three non-collinear points are supplied.
func NewInterpolator(src Points) (*Interpolator, error) {
	if err := src.validate("source points"); err != nil {
		return nil, err
	}
	n := src.Len()
	if n < 3 {
		return nil, fmt.Errorf("%w: %d source points, need at least 3", ErrInsufficientSourceData, n)
	}
	if collinear(src) {
		return nil, fmt.Errorf("%w: all %d source points are collinear", ErrInsufficientSourceData, n)
	}

	pts := make([]delaunay.Point, n)
	for i := range pts {
		pts[i] = delaunay.Point{X: src.Lon[i], Y: src.Lat[i]}
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, fmt.Errorf("%w: triangulation: %v", ErrInsufficientSourceData, err)
	}
	if len(tri.Triangles) == 0 {
		return nil, fmt.Errorf("%w: triangulation produced no triangles", ErrInsufficientSourceData)
	}

	index := rtree.NewTree(25, 50)
	for t := 0; t+2 < len(tri.Triangles); t += 3 {
		a, b, c := tri.Triangles[t], tri.Triangles[t+1], tri.Triangles[t+2]
		pa := geom.Point{X: src.Lon[a], Y: src.Lat[a]}
		pb := geom.Point{X: src.Lon[b], Y: src.Lat[b]}
		pc := geom.Point{X: src.Lon[c], Y: src.Lat[c]}
		index.Insert(triangle{
			Polygon: geom.Polygon{{pa, pb, pc, pa}},
			v:       [3]int{a, b, c},
		})
	}
	return &Interpolator{src: src, index: index}, nil
}

// Interpolate evaluates values, one per source point, at every target.
// Targets outside the convex hull of the source points get NaN.
func (in *Interpolator) Interpolate(values []float64, targets Points) ([]float64, error) {
	if len(values) != in.src.Len() {
		return nil, fmt.Errorf("%w: %d values for %d source points",
			ErrInvalidConfiguration, len(values), in.src.Len())
	}
	if err := targets.validate("target points"); err != nil {
		return nil, err
	}
	return in.apply(in.locate(targets), values)
}

// stencil is the interpolation recipe of one target: n is 0 outside the
// hull, 1 on a source vertex v[0], and 3 inside triangle v with weights w.
type stencil struct {
	v [3]int
	w [3]float64
	n uint8
}

// locate finds the enclosing triangle and barycentric weights of every
// target. The result depends only on the source locations, so it can be
// applied to any number of value arrays.
func (in *Interpolator) locate(targets Points) []stencil {
	out := make([]stencil, targets.Len())
	for k := range out {
		out[k] = in.stencilAt(targets.Lon[k], targets.Lat[k])
	}
	return out
}

func (in *Interpolator) apply(st []stencil, values []float64) ([]float64, error) {
	if len(values) != in.src.Len() {
		return nil, fmt.Errorf("%w: %d values for %d source points",
			ErrInvalidConfiguration, len(values), in.src.Len())
	}
	out := make([]float64, len(st))
	for k, c := range st {
		switch c.n {
		case 0:
			out[k] = math.NaN()
		case 1:
			out[k] = values[c.v[0]]
		default:
			out[k] = c.w[0]*values[c.v[0]] + c.w[1]*values[c.v[1]] + c.w[2]*values[c.v[2]]
		}
	}
	return out, nil
}

func (in *Interpolator) stencilAt(x, y float64) stencil {
	p := geom.Point{X: x, Y: y}
	for _, g := range in.index.SearchIntersect(p.Bounds()) {
		if c, ok := in.weights(g.(triangle), x, y); ok {
			return c
		}
	}
	return stencil{}
}

// weights returns the barycentric stencil of t at (x, y), and false when the
// point is outside t.
func (in *Interpolator) weights(t triangle, x, y float64) (stencil, bool) {
	var xs, ys [3]float64
	for c, i := range t.v {
		xs[c], ys[c] = in.src.Lon[i], in.src.Lat[i]
		if xs[c] == x && ys[c] == y {
			return stencil{v: [3]int{i}, n: 1}, true
		}
	}
	det := (ys[1]-ys[2])*(xs[0]-xs[2]) + (xs[2]-xs[1])*(ys[0]-ys[2])
	if det == 0 {
		return stencil{}, false
	}
	w0 := ((ys[1]-ys[2])*(x-xs[2]) + (xs[2]-xs[1])*(y-ys[2])) / det
	w1 := ((ys[2]-ys[0])*(x-xs[2]) + (xs[0]-xs[2])*(y-ys[2])) / det
	w2 := 1 - w0 - w1
	if w0 < -baryEps || w1 < -baryEps || w2 < -baryEps {
		return stencil{}, false
	}
	return stencil{v: t.v, w: [3]float64{w0, w1, w2}, n: 3}, true
}

// collinearEps bounds, relative to the extent of the points, how far a point
// may sit from the line through the others and still count as on it.
const collinearEps = 1e-10

// collinear reports whether every point lies on one line (or coincides),
// within collinearEps of the point extent.
func collinear(p Points) bool {
	x0, y0 := p.Lon[0], p.Lat[0]
	// anchor the line on the point farthest from the first one
	j, far := -1, 0.0
	for i := 1; i < p.Len(); i++ {
		if d := math.Hypot(p.Lon[i]-x0, p.Lat[i]-y0); d > far {
			j, far = i, d
		}
	}
	if j < 0 {
		return true
	}
	dx, dy := (p.Lon[j]-x0)/far, (p.Lat[j]-y0)/far
	tol := collinearEps * far
	for i := 1; i < p.Len(); i++ {
		if math.Abs(dx*(p.Lat[i]-y0)-dy*(p.Lon[i]-x0)) > tol {
			return false
		}
	}
	return true
}

// Interpolate triangulates src and evaluates values at targets in one call.
func Interpolate(src Points, values []float64, targets Points) ([]float64, error) {
	if err := targets.validate("target points"); err != nil {
		return nil, err
	}
	if len(values) != src.Len() {
		return nil, fmt.Errorf("%w: %d values for %d source points",
			ErrInvalidConfiguration, len(values), src.Len())
	}
	in, err := NewInterpolator(src)
	if err != nil {
		return nil, err
	}
	return in.Interpolate(values, targets)
}
