package ncwrite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"

	"github.com/embell139/prep-ILAMB/internal/cftime"
	"github.com/embell139/prep-ILAMB/internal/model"
	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// Series describes a single-variable file spanning consecutive months.
// Variable.Values is ignored; months are added with SeriesWriter.Append.
type Series struct {
	Variable Variable
	Grid     *regrid.Grid

	RunID   model.RunID
	Created time.Time
	LogFile string
}

// SeriesName is the file name of the series for variable over [start, end],
// e.g. gpp_catchcn.tavg.monthly_201501-201512.nc.
func SeriesName(variable, fileType string, start, end model.Period) string {
	return fmt.Sprintf("%s_%s_%04d%02d-%04d%02d.nc",
		variable, fileType, start.Year, int(start.Month), end.Year, int(end.Month))
}

// SeriesWriter streams months into a file whose time dimension is the
// record dimension, so only one month is held in memory at a time.
type SeriesWriter struct {
	path  string
	tmp   string
	ff    *os.File
	f     *cdf.File
	name  string
	cells int
	n     int
	last  model.Period
}

// CreateSeries starts a series at path. Nothing appears at path until Close.
func CreateSeries(path string, s *Series) (*SeriesWriter, error) {
	if s.Grid == nil {
		return nil, fmt.Errorf("series has no grid")
	}
	if err := checkName(s.Variable.Name); err != nil {
		return nil, err
	}

	h := cdf.NewHeader(
		[]string{"time", "nv", "lat", "lon"},
		[]int{0, 2, s.Grid.NLat(), s.Grid.NLon()})
	h.AddAttribute("", "Conventions", "CF-1.8")
	h.AddAttribute("", "source", "Catchment-CN")
	h.AddAttribute("", "run_id", s.RunID.String())
	h.AddAttribute("", "Date", s.Created.UTC().Format(time.RFC3339))
	if s.LogFile != "" {
		h.AddAttribute("", "logfile", filepath.Base(s.LogFile))
	}
	defineCoordinates(h)
	defineVariable(h, s.Variable)
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("netcdf header: %w", errs[0])
	}

	w := &SeriesWriter{
		path:  path,
		tmp:   path + ".tmp",
		name:  s.Variable.Name,
		cells: s.Grid.Len(),
	}
	ff, err := os.Create(w.tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", w.tmp, err)
	}
	w.ff = ff
	if w.f, err = cdf.Create(ff, h); err != nil {
		w.Abort()
		return nil, fmt.Errorf("write netcdf header: %w", err)
	}
	if err := w.put("lat", nil, s.Grid.Lats); err != nil {
		w.Abort()
		return nil, err
	}
	if err := w.put("lon", nil, s.Grid.Lons); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

// Append writes the next month. Months must be strictly increasing.
func (w *SeriesWriter) Append(p model.Period, values []float64) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if w.n > 0 && !w.last.Before(p) {
		return fmt.Errorf("series %s: month %s does not follow %s", w.name, p, w.last)
	}
	if len(values) != w.cells {
		return fmt.Errorf("series %s: %d values for %d grid cells", w.name, len(values), w.cells)
	}
	bounds, err := cftime.MonthBounds(p.Year, p.Month)
	if err != nil {
		return err
	}

	// time and time_bnds precede the data variable in each record, so the
	// file ends on a whole record after every Append.
	if err := w.put("time", []int{w.n}, []float64{bounds[0]}); err != nil {
		return err
	}
	if err := w.put("time_bnds", []int{w.n, 0}, bounds[:]); err != nil {
		return err
	}
	if err := w.put(w.name, []int{w.n, 0, 0}, toFloat32(values)); err != nil {
		return err
	}
	w.n++
	w.last = p
	return nil
}

// Len is the number of months appended so far.
func (w *SeriesWriter) Len() int { return w.n }

// Path is where Close places the file.
func (w *SeriesWriter) Path() string { return w.path }

// Close records the month count in the header and moves the file into place.
// An empty series is discarded with an error.
func (w *SeriesWriter) Close() error {
	if w.n == 0 {
		w.Abort()
		return fmt.Errorf("series %s has no months", w.name)
	}
	if err := cdf.UpdateNumRecs(w.ff); err != nil {
		w.Abort()
		return fmt.Errorf("update record count: %w", err)
	}
	if err := w.ff.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("close %s: %w", w.tmp, err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("rename %s: %w", w.tmp, err)
	}
	return nil
}

// Abort discards the partial file.
func (w *SeriesWriter) Abort() {
	w.ff.Close()
	os.Remove(w.tmp)
}

// put writes data starting at begin. With a nil end a fixed variable is
// written whole and a record variable runs on from begin, one record here.
func (w *SeriesWriter) put(name string, begin []int, data any) error {
	if _, err := w.f.Writer(name, begin, nil).Write(data); err != nil {
		return fmt.Errorf("write variable %s: %w", name, err)
	}
	return nil
}
