// Package ncwrite writes regridded monthly fields as CF-style NetCDF files
// that ILAMB can ingest.
package ncwrite

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ctessum/cdf"

	"github.com/embell139/prep-ILAMB/internal/cftime"
	"github.com/embell139/prep-ILAMB/internal/model"
	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// FillValue replaces NaN in every data variable.
const FillValue float32 = 1e20

// Variable is one regridded field; Values are latitude-major over the grid.
type Variable struct {
	Name     string
	LongName string
	Units    string
	Values   []float64
}

// Output is the content of one file.
type Output struct {
	Period    model.Period
	Grid      *regrid.Grid
	Variables []Variable

	RunID   model.RunID
	Input   string
	Created time.Time
	// LogFile, if set, names the processed-files log of the run.
	LogFile string
}

// WriteFile writes o to path. The file is written next to path and renamed
// into place, so path never holds a partial file.
func WriteFile(path string, o *Output) error {
	if err := o.validate(); err != nil {
		return err
	}
	bounds, err := cftime.MonthBounds(o.Period.Year, o.Period.Month)
	if err != nil {
		return err
	}
	vars := append([]Variable(nil), o.Variables...)
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })

	h := cdf.NewHeader(
		[]string{"time", "nv", "lat", "lon"},
		[]int{1, 2, o.Grid.NLat(), o.Grid.NLon()})
	h.AddAttribute("", "Conventions", "CF-1.8")
	h.AddAttribute("", "source", "Catchment-CN")
	h.AddAttribute("", "run_id", o.RunID.String())
	h.AddAttribute("", "input_file", filepath.Base(o.Input))
	h.AddAttribute("", "created", o.Created.UTC().Format(time.RFC3339))
	if o.LogFile != "" {
		h.AddAttribute("", "logfile", filepath.Base(o.LogFile))
	}

	defineCoordinates(h)
	for _, v := range vars {
		defineVariable(h, v)
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("netcdf header: %w", errs[0])
	}

	tmp := path + ".tmp"
	ff, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := write(ff, h, o, vars, bounds); err != nil {
		ff.Close()
		os.Remove(tmp)
		return err
	}
	if err := ff.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// defineCoordinates adds time, time_bnds, lat and lon to h. time is a record
// dimension in a series and fixed at one otherwise.
func defineCoordinates(h *cdf.Header) {
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "long_name", "time")
	h.AddAttribute("time", "units", cftime.Units)
	h.AddAttribute("time", "calendar", cftime.Calendar)
	h.AddAttribute("time", "bounds", "time_bnds")
	h.AddAttribute("time", "cell_methods", "time: minimum")

	h.AddVariable("time_bnds", []string{"time", "nv"}, []float64{0})
	h.AddAttribute("time_bnds", "long_name", "time bounds")
	h.AddAttribute("time_bnds", "units", cftime.Units)

	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "long_name", "latitude")
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddAttribute("lat", "units", "degrees_north")

	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "long_name", "longitude")
	h.AddAttribute("lon", "standard_name", "longitude")
	h.AddAttribute("lon", "units", "degrees_east")
}

func defineVariable(h *cdf.Header, v Variable) {
	h.AddVariable(v.Name, []string{"time", "lat", "lon"}, []float32{0})
	if v.LongName != "" {
		h.AddAttribute(v.Name, "long_name", v.LongName)
	}
	if v.Units != "" {
		h.AddAttribute(v.Name, "units", v.Units)
	}
	h.AddAttribute(v.Name, "_FillValue", []float32{FillValue})
}

func checkName(name string) error {
	switch name {
	case "":
		return fmt.Errorf("variable name is empty")
	case "time", "time_bnds", "lat", "lon":
		return fmt.Errorf("variable name %q clashes with a coordinate", name)
	}
	return nil
}

func write(ff *os.File, h *cdf.Header, o *Output, vars []Variable, bounds [2]float64) error {
	f, err := cdf.Create(ff, h) // writes the header to ff
	if err != nil {
		return fmt.Errorf("write netcdf header: %w", err)
	}
	put := func(name string, data any) error {
		end := f.Header.Lengths(name)
		if _, err := f.Writer(name, make([]int, len(end)), end).Write(data); err != nil {
			return fmt.Errorf("write variable %s: %w", name, err)
		}
		return nil
	}

	if err := put("time", []float64{bounds[0]}); err != nil {
		return err
	}
	if err := put("time_bnds", bounds[:]); err != nil {
		return err
	}
	if err := put("lat", o.Grid.Lats); err != nil {
		return err
	}
	if err := put("lon", o.Grid.Lons); err != nil {
		return err
	}
	for _, v := range vars {
		if err := put(v.Name, toFloat32(v.Values)); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(ff)
}

func (o *Output) validate() error {
	if o.Grid == nil {
		return fmt.Errorf("output has no grid")
	}
	if err := o.Period.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(o.Variables))
	for _, v := range o.Variables {
		if err := checkName(v.Name); err != nil {
			return err
		}
		switch {
		case seen[v.Name]:
			return fmt.Errorf("variable name %q is repeated", v.Name)
		case len(v.Values) != o.Grid.Len():
			return fmt.Errorf("variable %s has %d values for %d grid cells", v.Name, len(v.Values), o.Grid.Len())
		}
		seen[v.Name] = true
	}
	return nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = FillValue
			continue
		}
		out[i] = float32(v)
	}
	return out
}
