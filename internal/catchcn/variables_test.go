package catchcn

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func rawVars() map[string]Variable {
	return map[string]Variable{
		"CNNPP": {Name: "CNNPP", LongName: "net primary production", Units: "kg m-2 s-1", Values: []float64{1, 2, math.NaN()}},
		"CNGPP": {Name: "CNGPP", LongName: "gross primary production", Units: "kg m-2 s-1", Values: []float64{3, 5, 1}},
		"LAI":   {Name: "LAI", Units: "1", Values: []float64{0.5, 0.6, 0.7}},
		"CNSR":  {Name: "CNSR", Units: "kg m-2 s-1", Values: []float64{4, 4, 4}},
		"SNOW":  {Name: "SNOW", Values: []float64{9, 9, 9}},
	}
}

func TestVariableMap_Apply_Default(t *testing.T) {
	vars, err := DefaultVariableMap().Apply(rawVars())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for _, name := range []string{"npp", "gpp", "lai", "re", "rh", "ra"} {
		if _, ok := vars[name]; !ok {
			t.Errorf("expected variable %q", name)
		}
	}
	if len(vars) != 6 {
		t.Errorf("expected unmapped variables to be dropped, got %d variables", len(vars))
	}
	if gpp := vars["gpp"]; gpp.Name != "gpp" || gpp.LongName != "gross primary production" {
		t.Errorf("rename lost attributes: %+v", gpp)
	}

	rh := vars["rh"]
	if rh.Values[0] != 2 || rh.Values[1] != 3 || !math.IsNaN(rh.Values[2]) {
		t.Errorf("rh = %v, want [2 3 NaN]", rh.Values)
	}
	if rh.LongName != "heterotrophic_respiration" || rh.Units != "kg m-2 s-1" {
		t.Errorf("rh attributes = %q, %q", rh.LongName, rh.Units)
	}

	// ra uses rh, so derived variables must be evaluated in order
	ra := vars["ra"]
	if ra.Values[0] != 2 || ra.Values[1] != 1 || !math.IsNaN(ra.Values[2]) {
		t.Errorf("ra = %v, want [2 1 NaN]", ra.Values)
	}
	if ra.LongName != "autotrophic_respiration" {
		t.Errorf("ra long name = %q", ra.LongName)
	}
}

func TestVariableMap_Apply_MissingNative(t *testing.T) {
	raw := rawVars()
	delete(raw, "CNSR")

	_, err := DefaultVariableMap().Apply(raw)
	if err == nil || !strings.Contains(err.Error(), "CNSR") {
		t.Fatalf("expected error naming CNSR, got %v", err)
	}
}

func TestVariableMap_Apply_MissingOperand(t *testing.T) {
	vm := VariableMap{
		Rename:  map[string]string{"CNGPP": "gpp"},
		Derived: []DerivedVariable{{Name: "rh", Expr: "gpp-npp"}},
	}

	_, err := vm.Apply(rawVars())
	if err == nil || !strings.Contains(err.Error(), `"npp"`) {
		t.Fatalf("expected error naming npp, got %v", err)
	}
}

func TestVariableMap_Validate(t *testing.T) {
	tests := []struct {
		name    string
		vm      VariableMap
		wantErr bool
	}{
		{name: "default", vm: DefaultVariableMap()},
		{name: "empty", vm: VariableMap{}, wantErr: true},
		{
			name:    "duplicate target",
			vm:      VariableMap{Rename: map[string]string{"A": "x", "B": "x"}},
			wantErr: true,
		},
		{
			name:    "rename onto coordinate",
			vm:      VariableMap{Rename: map[string]string{"A": "lat"}},
			wantErr: true,
		},
		{
			name: "derived uses later variable",
			vm: VariableMap{
				Rename: map[string]string{"A": "a", "B": "b"},
				Derived: []DerivedVariable{
					{Name: "c", Expr: "a-d"},
					{Name: "d", Expr: "a-b"},
				},
			},
			wantErr: true,
		},
		{
			name: "bad expression",
			vm: VariableMap{
				Rename:  map[string]string{"A": "a", "B": "b"},
				Derived: []DerivedVariable{{Name: "c", Expr: "a+b"}},
			},
			wantErr: true,
		},
		{
			name: "derived shadows renamed",
			vm: VariableMap{
				Rename:  map[string]string{"A": "a", "B": "b"},
				Derived: []DerivedVariable{{Name: "a", Expr: "a-b"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vm.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadVariableMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variables.toml")
	content := `
[rename]
CNGPP = "gpp"
CNNPP = "npp"

[[derived]]
name = "rh"
expr = "gpp - npp"
long_name = "heterotrophic_respiration"
units = "kg m-2 s-1"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	vm, err := LoadVariableMap(path)
	if err != nil {
		t.Fatalf("LoadVariableMap() error = %v", err)
	}
	if vm.Rename["CNGPP"] != "gpp" || vm.Rename["CNNPP"] != "npp" {
		t.Errorf("Rename = %v", vm.Rename)
	}
	if len(vm.Derived) != 1 || vm.Derived[0].Name != "rh" || vm.Derived[0].Units != "kg m-2 s-1" {
		t.Errorf("Derived = %+v", vm.Derived)
	}
	if got := vm.Sources(); len(got) != 2 || got[0] != "CNGPP" || got[1] != "CNNPP" {
		t.Errorf("Sources() = %v", got)
	}
}

func TestLoadVariableMap_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: "[rename\nCNGPP = gpp"},
		{name: "unknown key", content: "[rename]\nCNGPP = \"gpp\"\n[[derived]]\nname = \"x\"\nformula = \"gpp-gpp\"\n"},
		{name: "invalid map", content: "[rename]\nCNGPP = \"lon\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "variables.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadVariableMap(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := LoadVariableMap(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
