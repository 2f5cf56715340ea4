package catchcn

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Variable is one field sampled at the tile locations of a Dataset.
type Variable struct {
	Name     string
	LongName string
	Units    string
	Values   []float64
}

// DerivedVariable is computed from two mapped variables as Expr, which has
// the form "a-b".
type DerivedVariable struct {
	Name     string `toml:"name"`
	Expr     string `toml:"expr"`
	LongName string `toml:"long_name"`
	Units    string `toml:"units"`
}

func (d DerivedVariable) operands() (string, string, error) {
	a, b, ok := strings.Cut(d.Expr, "-")
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !ok || a == "" || b == "" {
		return "", "", fmt.Errorf("derived variable %q: expression %q is not of the form a-b", d.Name, d.Expr)
	}
	return a, b, nil
}

// VariableMap selects native variables, renames them and adds derived ones.
// Derived variables are evaluated in order, so later entries may use
// earlier ones.
type VariableMap struct {
	Rename  map[string]string `toml:"rename"`
	Derived []DerivedVariable `toml:"derived"`
}

// DefaultVariableMap maps the carbon cycle output to ILAMB names and derives
// heterotrophic and autotrophic respiration.
func DefaultVariableMap() VariableMap {
	return VariableMap{
		Rename: map[string]string{
			"CNNPP": "npp",
			"CNGPP": "gpp",
			"LAI":   "lai",
			"CNSR":  "re",
		},
		Derived: []DerivedVariable{
			{Name: "rh", Expr: "gpp-npp", LongName: "heterotrophic_respiration", Units: "kg m-2 s-1"},
			{Name: "ra", Expr: "re-rh", LongName: "autotrophic_respiration", Units: "kg m-2 s-1"},
		},
	}
}

// LoadVariableMap decodes a TOML variable map such as
//
//	[rename]
//	CNGPP = "gpp"
//	CNNPP = "npp"
//
//	[[derived]]
//	name = "rh"
//	expr = "gpp-npp"
//	long_name = "heterotrophic_respiration"
//	units = "kg m-2 s-1"
func LoadVariableMap(path string) (VariableMap, error) {
	var vm VariableMap
	md, err := toml.DecodeFile(path, &vm)
	if err != nil {
		return VariableMap{}, fmt.Errorf("decode variable map %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return VariableMap{}, fmt.Errorf("variable map %s: unknown keys %v", path, undecoded)
	}
	if err := vm.Validate(); err != nil {
		return VariableMap{}, fmt.Errorf("variable map %s: %w", path, err)
	}
	return vm, nil
}

// Validate checks that names are unique and every derived expression only
// refers to variables defined before it.
func (vm VariableMap) Validate() error {
	if len(vm.Rename) == 0 {
		return fmt.Errorf("no variables to rename")
	}
	defined := make(map[string]bool, len(vm.Rename)+len(vm.Derived))
	for native, name := range vm.Rename {
		if name == "" {
			return fmt.Errorf("variable %q has an empty target name", native)
		}
		if isCoordinate(name) {
			return fmt.Errorf("variable %q cannot be renamed to coordinate %q", native, name)
		}
		if defined[name] {
			return fmt.Errorf("target name %q is used more than once", name)
		}
		defined[name] = true
	}
	for _, d := range vm.Derived {
		a, b, err := d.operands()
		if err != nil {
			return err
		}
		for _, op := range []string{a, b} {
			if !defined[op] {
				return fmt.Errorf("derived variable %q: operand %q is not defined before it", d.Name, op)
			}
		}
		if d.Name == "" || defined[d.Name] || isCoordinate(d.Name) {
			return fmt.Errorf("derived variable name %q is empty or already used", d.Name)
		}
		defined[d.Name] = true
	}
	return nil
}

// Sources returns the native variable names to read, sorted.
func (vm VariableMap) Sources() []string {
	names := make([]string, 0, len(vm.Rename))
	for native := range vm.Rename {
		names = append(names, native)
	}
	sort.Strings(names)
	return names
}

// Apply renames the native variables in raw and appends the derived ones.
// Variables absent from the map are dropped.
func (vm VariableMap) Apply(raw map[string]Variable) (map[string]Variable, error) {
	out := make(map[string]Variable, len(vm.Rename)+len(vm.Derived))
	for _, native := range vm.Sources() {
		v, ok := raw[native]
		if !ok {
			return nil, fmt.Errorf("variable %q not found", native)
		}
		v.Name = vm.Rename[native]
		out[v.Name] = v
	}
	for _, d := range vm.Derived {
		a, b, err := d.operands()
		if err != nil {
			return nil, err
		}
		va, ok := out[a]
		if !ok {
			return nil, fmt.Errorf("derived variable %q: operand %q not found", d.Name, a)
		}
		vb, ok := out[b]
		if !ok {
			return nil, fmt.Errorf("derived variable %q: operand %q not found", d.Name, b)
		}
		if len(va.Values) != len(vb.Values) {
			return nil, fmt.Errorf("derived variable %q: %q has %d values, %q has %d",
				d.Name, a, len(va.Values), b, len(vb.Values))
		}
		values := make([]float64, len(va.Values))
		for i := range values {
			values[i] = va.Values[i] - vb.Values[i]
		}
		out[d.Name] = Variable{Name: d.Name, LongName: d.LongName, Units: d.Units, Values: values}
	}
	return out, nil
}

func isCoordinate(name string) bool {
	return name == "lon" || name == "lat" || name == "time"
}

// replaceFill maps every occurrence of fill to NaN in place.
func replaceFill(values []float64, fill float64) {
	if math.IsNaN(fill) {
		return
	}
	for i, v := range values {
		if v == fill {
			values[i] = math.NaN()
		}
	}
}
