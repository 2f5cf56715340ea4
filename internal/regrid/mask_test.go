package regrid

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
)

func TestBuildMask_SinglePointRadius(t *testing.T) {
	src := Points{Lon: []float64{0}, Lat: []float64{0}}
	grid, err := GridSpec{LonStep: 1, LatStep: 1, LonMin: -2, LonMax: 3, LatMin: -2, LatMax: 3}.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	mask, err := BuildMask(src, grid.Points(), MaskOptions{MaxDistance: 1})
	if err != nil {
		t.Fatalf("BuildMask() error = %v", err)
	}

	valid := 0
	for j, lat := range grid.Lats {
		for i, lon := range grid.Lons {
			want := math.Hypot(lon, lat) > 1
			if got := mask[grid.Index(j, i)]; got != want {
				t.Errorf("cell (%v, %v): masked = %v, want %v", lon, lat, got, want)
			}
			if !mask[grid.Index(j, i)] {
				valid++
			}
		}
	}
	// origin plus its four neighbours at exactly distance 1
	if valid != 5 {
		t.Errorf("expected 5 valid cells, got %d", valid)
	}
}

func TestBuildMask_DistanceEqualToRadiusIsValid(t *testing.T) {
	src := Points{Lon: []float64{10}, Lat: []float64{20}}
	targets := Points{
		Lon: []float64{10.5, 10.5000001, 10},
		Lat: []float64{20, 20, 19.5},
	}

	mask, err := BuildMask(src, targets, MaskOptions{MaxDistance: 0.5})
	if err != nil {
		t.Fatalf("BuildMask() error = %v", err)
	}
	want := []bool{false, true, false}
	for k := range want {
		if mask[k] != want[k] {
			t.Errorf("target %d: masked = %v, want %v", k, mask[k], want[k])
		}
	}
}

func TestBuildMask_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := randomPoints(rng, 200, -10, 10)
	targets := randomPoints(rng, 1000, -12, 12)
	const maxDistance = 0.8

	mask, err := BuildMask(src, targets, MaskOptions{MaxDistance: maxDistance, BatchSize: 64})
	if err != nil {
		t.Fatalf("BuildMask() error = %v", err)
	}
	for k := range mask {
		best := math.Inf(1)
		for i := range src.Lon {
			dx := targets.Lon[k] - src.Lon[i]
			dy := targets.Lat[k] - src.Lat[i]
			best = math.Min(best, dx*dx+dy*dy)
		}
		if want := math.Sqrt(best) > maxDistance; mask[k] != want {
			t.Fatalf("target %d: masked = %v, want %v", k, mask[k], want)
		}
	}
}

func TestBuildMask_BatchingDoesNotChangeResult(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := randomPoints(rng, 150, 0, 5)
	targets := randomPoints(rng, 777, -1, 6)

	reference, err := BuildMask(src, targets, MaskOptions{MaxDistance: 0.3, BatchSize: targets.Len()})
	if err != nil {
		t.Fatalf("BuildMask() error = %v", err)
	}

	tests := []struct {
		name string
		opts MaskOptions
	}{
		{name: "batch of one", opts: MaskOptions{MaxDistance: 0.3, BatchSize: 1}},
		{name: "default batch", opts: MaskOptions{MaxDistance: 0.3}},
		{name: "uneven batches", opts: MaskOptions{MaxDistance: 0.3, BatchSize: 100}},
		{name: "concurrent workers", opts: MaskOptions{MaxDistance: 0.3, BatchSize: 50, Workers: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildMask(src, targets, tt.opts)
			if err != nil {
				t.Fatalf("BuildMask() error = %v", err)
			}
			for k := range reference {
				if got[k] != reference[k] {
					t.Fatalf("target %d differs: got %v, want %v", k, got[k], reference[k])
				}
			}
		})
	}
}

func TestBuildMask_Progress(t *testing.T) {
	src := Points{Lon: []float64{0, 1}, Lat: []float64{0, 1}}
	targets := randomPoints(rand.New(rand.NewSource(3)), 25, 0, 1)

	for _, workers := range []int{1, 3} {
		var (
			mu    sync.Mutex
			calls []Progress
		)
		opts := MaskOptions{
			MaxDistance: 1,
			BatchSize:   10,
			Workers:     workers,
			Progress: func(p Progress) {
				mu.Lock()
				defer mu.Unlock()
				calls = append(calls, p)
			},
		}
		if _, err := BuildMask(src, targets, opts); err != nil {
			t.Fatalf("BuildMask() error = %v", err)
		}

		if len(calls) != 3 {
			t.Fatalf("workers=%d: expected 3 progress calls, got %d", workers, len(calls))
		}
		sum := 0
		for i, p := range calls {
			sum += p.Batch
			if p.Done != sum {
				t.Errorf("workers=%d call %d: Done = %d, want running total %d", workers, i, p.Done, sum)
			}
			if p.Total != 25 {
				t.Errorf("workers=%d call %d: Total = %d, want 25", workers, i, p.Total)
			}
		}
		if last := calls[len(calls)-1]; last.Done != 25 {
			t.Errorf("workers=%d: final Done = %d, want 25", workers, last.Done)
		}
	}
}

func TestBuildMask_InvalidOptions(t *testing.T) {
	src := Points{Lon: []float64{0}, Lat: []float64{0}}
	targets := Points{Lon: []float64{1}, Lat: []float64{1}}

	tests := []struct {
		name string
		opts MaskOptions
	}{
		{name: "zero distance", opts: MaskOptions{}},
		{name: "negative distance", opts: MaskOptions{MaxDistance: -1}},
		{name: "NaN distance", opts: MaskOptions{MaxDistance: math.NaN()}},
		{name: "negative batch", opts: MaskOptions{MaxDistance: 1, BatchSize: -5}},
		{name: "negative workers", opts: MaskOptions{MaxDistance: 1, Workers: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildMask(src, targets, tt.opts)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestBuildMask_RaggedTargetsBeforeIndexing(t *testing.T) {
	_, err := BuildMask(Points{}, Points{Lon: []float64{0, 1}, Lat: []float64{0}}, MaskOptions{MaxDistance: 1})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestNewMaskBuilder_Empty(t *testing.T) {
	_, err := NewMaskBuilder(Points{})
	if !errors.Is(err, ErrInsufficientSourceData) {
		t.Fatalf("expected ErrInsufficientSourceData, got %v", err)
	}
}

func randomPoints(rng *rand.Rand, n int, lo, hi float64) Points {
	p := Points{Lon: make([]float64, n), Lat: make([]float64, n)}
	for i := 0; i < n; i++ {
		p.Lon[i] = lo + rng.Float64()*(hi-lo)
		p.Lat[i] = lo + rng.Float64()*(hi-lo)
	}
	return p
}
