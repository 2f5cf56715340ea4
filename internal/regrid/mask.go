package regrid

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// DefaultBatchSize is the number of targets queried per batch when
// MaskOptions.BatchSize is zero.
const DefaultBatchSize = 10000

// Progress describes mask construction after a batch completes.
type Progress struct {
	Done    int           // targets processed so far
	Total   int           // targets in the call
	Batch   int           // targets in the batch just finished
	Elapsed time.Duration // since the first batch started
	Took    time.Duration // time spent on the batch just finished
}

// Rate returns the throughput of the last batch in points per second.
func (p Progress) Rate() float64 {
	if p.Took <= 0 {
		return 0
	}
	return float64(p.Batch) / p.Took.Seconds()
}

// ProgressFunc observes mask construction. Calls are serialised even when
// batches run on several workers.
type ProgressFunc func(Progress)

// MaskOptions controls BuildMask.
type MaskOptions struct {
	// MaxDistance is the largest distance, in degrees, from a target to its
	// nearest source point for the target to stay valid.
	MaxDistance float64
	// BatchSize is the number of targets per query batch. Zero means
	// DefaultBatchSize. It never changes the result.
	BatchSize int
	// Workers is the number of batches evaluated concurrently. Zero or one
	// runs batches sequentially.
	Workers int
	// Progress, if set, is called after every batch.
	Progress ProgressFunc
}

func (o MaskOptions) validate() error {
	if !(o.MaxDistance > 0) {
		return fmt.Errorf("%w: max distance must be positive, got %v", ErrInvalidConfiguration, o.MaxDistance)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must not be negative, got %d", ErrInvalidConfiguration, o.BatchSize)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfiguration, o.Workers)
	}
	return nil
}

// lonLat is a k-d tree key. Distance is the squared Euclidean distance in
// degree space.
type lonLat struct{ lon, lat float64 }

func (p lonLat) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(lonLat)
	switch d {
	case 0:
		return p.lon - q.lon
	case 1:
		return p.lat - q.lat
	default:
		panic("illegal dimension")
	}
}

func (p lonLat) Dims() int { return 2 }

func (p lonLat) Distance(c kdtree.Comparable) float64 {
	q := c.(lonLat)
	dx := p.lon - q.lon
	dy := p.lat - q.lat
	return dx*dx + dy*dy
}

type lonLats []lonLat

func (p lonLats) Index(i int) kdtree.Comparable         { return p[i] }
func (p lonLats) Len() int                              { return len(p) }
func (p lonLats) Slice(start, end int) kdtree.Interface { return p[start:end] }
func (p lonLats) Pivot(d kdtree.Dim) int {
	pl := plane{lonLats: p, Dim: d}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

// plane sorts lonLats along one dimension for median selection.
type plane struct {
	lonLats
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.lonLats[i].lon < p.lonLats[j].lon
	}
	return p.lonLats[i].lat < p.lonLats[j].lat
}
func (p plane) Swap(i, j int) { p.lonLats[i], p.lonLats[j] = p.lonLats[j], p.lonLats[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{lonLats: p.lonLats[start:end], Dim: p.Dim}
}

// MaskBuilder answers nearest-source-distance queries against a k-d tree
// built once over the source points. The tree is read-only after
// construction, so one builder may serve concurrent batches.
type MaskBuilder struct {
	tree *kdtree.Tree
}

// NewMaskBuilder indexes src. At least one point is required.
func NewMaskBuilder(src Points) (*MaskBuilder, error) {
	if err := src.validate("source points"); err != nil {
		return nil, err
	}
	if src.Len() == 0 {
		return nil, fmt.Errorf("%w: no source points to index", ErrInsufficientSourceData)
	}
	keys := make(lonLats, src.Len())
	for i := range keys {
		keys[i] = lonLat{lon: src.Lon[i], lat: src.Lat[i]}
	}
	return &MaskBuilder{tree: kdtree.New(keys, false)}, nil
}

// Nearest returns the Euclidean distance from (lon, lat) to the closest
// source point.
func (m *MaskBuilder) Nearest(lon, lat float64) float64 {
	_, d := m.tree.Nearest(lonLat{lon: lon, lat: lat})
	return math.Sqrt(d)
}

// Build marks every target whose nearest source point is farther than
// opts.MaxDistance. A target at exactly MaxDistance is valid.
func (m *MaskBuilder) Build(targets Points, opts MaskOptions) ([]bool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := targets.validate("target points"); err != nil {
		return nil, err
	}
	batch := opts.BatchSize
	if batch == 0 {
		batch = DefaultBatchSize
	}
	workers := max(opts.Workers, 1)

	total := targets.Len()
	mask := make([]bool, total)
	start := time.Now()

	var (
		mu   sync.Mutex
		done int
	)
	report := func(n int, took time.Duration) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done += n
		opts.Progress(Progress{
			Done:    done,
			Total:   total,
			Batch:   n,
			Elapsed: time.Since(start),
			Took:    took,
		})
	}

	query := func(lo, hi int) {
		t0 := time.Now()
		for k := lo; k < hi; k++ {
			mask[k] = m.Nearest(targets.Lon[k], targets.Lat[k]) > opts.MaxDistance
		}
		report(hi-lo, time.Since(t0))
	}

	if workers == 1 {
		for lo := 0; lo < total; lo += batch {
			query(lo, min(lo+batch, total))
		}
		return mask, nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < total; lo += batch {
		hi := min(lo+batch, total)
		g.Go(func() error {
			query(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mask, nil
}

// BuildMask indexes src and evaluates the validity mask for targets.
func BuildMask(src, targets Points, opts MaskOptions) ([]bool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := targets.validate("target points"); err != nil {
		return nil, err
	}
	m, err := NewMaskBuilder(src)
	if err != nil {
		return nil, err
	}
	return m.Build(targets, opts)
}
