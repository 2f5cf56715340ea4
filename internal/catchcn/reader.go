package catchcn

import (
	"fmt"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// Dataset is one monthly file reduced to its mapped variables.
type Dataset struct {
	Path   string
	Points regrid.Points
	Vars   map[string]Variable
}

// Names returns the variable names in sorted order.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.Vars))
	for n := range d.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reader reads files through a fixed variable map.
type Reader struct {
	Variables VariableMap
}

// Read implements the pipeline's source reader.
func (r Reader) Read(path string) (*Dataset, error) {
	return ReadFile(path, r.Variables)
}

// ReadFile opens a NetCDF file of tile-based output, reads the lon/lat tile
// coordinates and the native variables of vm, and applies vm. Variables with
// a leading time dimension contribute their first time step.
func ReadFile(path string, vm VariableMap) (*Dataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	lon, err := readVariable(nc, "lon")
	if err != nil {
		return nil, err
	}
	lat, err := readVariable(nc, "lat")
	if err != nil {
		return nil, err
	}
	if len(lon.Values) != len(lat.Values) {
		return nil, fmt.Errorf("%s: %d longitudes but %d latitudes", path, len(lon.Values), len(lat.Values))
	}

	raw := make(map[string]Variable, len(vm.Rename))
	for _, name := range vm.Sources() {
		v, err := readVariable(nc, name)
		if err != nil {
			return nil, err
		}
		if len(v.Values) != len(lon.Values) {
			return nil, fmt.Errorf("%s: variable %q has %d values for %d tiles", path, name, len(v.Values), len(lon.Values))
		}
		raw[name] = v
	}
	vars, err := vm.Apply(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Dataset{
		Path:   path,
		Points: regrid.Points{Lon: lon.Values, Lat: lat.Values},
		Vars:   vars,
	}, nil
}

func readVariable(nc api.Group, name string) (Variable, error) {
	v, err := nc.GetVariable(name)
	if err != nil {
		return Variable{}, fmt.Errorf("read variable %q: %w", name, err)
	}
	values, err := toFloat64(v.Values)
	if err != nil {
		return Variable{}, fmt.Errorf("variable %q: %w", name, err)
	}
	out := Variable{Name: name, Values: values}
	if v.Attributes == nil {
		return out, nil
	}
	if fill, ok := v.Attributes.Get("_FillValue"); ok {
		f, err := scalar(fill)
		if err != nil {
			return Variable{}, fmt.Errorf("variable %q: _FillValue: %w", name, err)
		}
		replaceFill(out.Values, f)
	}
	out.LongName = stringAttr(v.Attributes, "long_name")
	out.Units = stringAttr(v.Attributes, "units")
	return out, nil
}

// toFloat64 flattens 1-D values, or the first row of 2-D values.
func toFloat64(values any) ([]float64, error) {
	switch x := values.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []float32:
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = float64(v)
		}
		return out, nil
	case [][]float64:
		if len(x) == 0 {
			return nil, fmt.Errorf("empty leading dimension")
		}
		return toFloat64(x[0])
	case [][]float32:
		if len(x) == 0 {
			return nil, fmt.Errorf("empty leading dimension")
		}
		return toFloat64(x[0])
	default:
		return nil, fmt.Errorf("unsupported value type %T", values)
	}
}

func scalar(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []float64:
		if len(x) > 0 {
			return x[0], nil
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), nil
		}
	}
	return 0, fmt.Errorf("unsupported attribute type %T", v)
}

func stringAttr(attrs api.AttributeMap, key string) string {
	v, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
