package domain

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockGridStore struct {
	mu     sync.Mutex
	values map[string]*GridValue
	err    error
	calls  []string
}

func (m *mockGridStore) GetValue(
	ctx context.Context,
	variable string,
	timestamp time.Time,
	lat float32,
	lon float32,
) (*GridValue, error) {
	m.mu.Lock()
	m.calls = append(m.calls, variable)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	value, ok := m.values[variable]
	if !ok {
		return nil, ErrGridValueNotFound
	}

	return value, nil
}

func TestService_GetVariables(t *testing.T) {
	catalogID, _ := uuid.NewV7()
	value := float32(2.5e-8)
	unit := "kg m-2 s-1"
	lat := float32(-3.05)
	lon := float32(-60.15)
	timestamp := time.Date(2015, time.April, 1, 0, 0, 0, 0, time.UTC)
	service := NewService(&mockGridStore{
		values: map[string]*GridValue{
			"gpp": {Value: value, Unit: unit, Lat: lat, Lon: lon, Timestamp: timestamp, CatalogID: catalogID},
			"lai": {Value: 4.2, Unit: "1", Lat: lat, Lon: lon, Timestamp: timestamp, CatalogID: catalogID},
		},
	})

	variables, err := service.GetVariables(t.Context(), timestamp.Add(72*time.Hour), lat, lon, []string{"lai", "gpp"})
	if err != nil {
		t.Fatalf("GetVariables returned error: %v", err)
	}
	if len(variables) != 2 {
		t.Fatalf("GetVariables returned wrong number of variables: %v", variables)
	}
	if variables[0].Name != "lai" || variables[1].Name != "gpp" {
		t.Errorf("GetVariables did not keep request order: %v, %v", variables[0].Name, variables[1].Name)
	}
	variable := variables[1]
	if variable.Unit != unit {
		t.Errorf("GetVariables returned wrong unit: %v", variable.Unit)
	}
	if variable.Lat != lat {
		t.Errorf("GetVariables returned wrong latitude: %v", variable.Lat)
	}
	if variable.Lon != lon {
		t.Errorf("GetVariables returned wrong longitude: %v", variable.Lon)
	}
	if !variable.Timestamp.Equal(timestamp) {
		t.Errorf("GetVariables returned wrong timestamp: %v", variable.Timestamp)
	}
	if variable.CatalogID != catalogID {
		t.Errorf("GetVariables returned wrong catalogID: %v", variable.CatalogID)
	}
	if variable.Value != value {
		t.Errorf("GetVariables returned wrong value: %v", variable.Value)
	}
}

func TestService_GetVariables_Deduplicates(t *testing.T) {
	store := &mockGridStore{values: map[string]*GridValue{"gpp": {Value: 1}}}

	variables, err := NewService(store).GetVariables(t.Context(), time.Now(), 0, 0, []string{"gpp", "gpp"})
	if err != nil {
		t.Fatalf("GetVariables returned error: %v", err)
	}
	if len(variables) != 1 || len(store.calls) != 1 {
		t.Errorf("expected one lookup and one result, got %d calls and %d results", len(store.calls), len(variables))
	}
}

func TestService_GetVariables_NotFound(t *testing.T) {
	service := NewService(&mockGridStore{values: map[string]*GridValue{"gpp": {Value: 1}}})

	_, err := service.GetVariables(t.Context(), time.Now(), 10, 20, []string{"gpp", "nbp"})
	var notFound *ErrVariableNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrVariableNotFound, got %v", err)
	}
	if notFound.Variable != "nbp" || notFound.Lat != 10 || notFound.Lon != 20 {
		t.Errorf("unexpected error fields: %+v", notFound)
	}
}

func TestService_GetVariables_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	service := NewService(&mockGridStore{err: storeErr})

	_, err := service.GetVariables(t.Context(), time.Now(), 0, 0, []string{"gpp"})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	var notFound *ErrVariableNotFound
	if errors.As(err, &notFound) {
		t.Fatal("store failures must not be reported as not found")
	}
}

func TestService_GetVariables_InvalidQuery(t *testing.T) {
	tests := []struct {
		name string
		lat  float32
		lon  float32
		vars []string
	}{
		{name: "no variables", vars: nil},
		{name: "empty name", vars: []string{"gpp", ""}},
		{name: "latitude", lat: 91, vars: []string{"gpp"}},
		{name: "longitude", lon: -180.5, vars: []string{"gpp"}},
		{name: "NaN latitude", lat: float32(math.NaN()), vars: []string{"gpp"}},
		{name: "NaN longitude", lon: float32(math.NaN()), vars: []string{"gpp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockGridStore{}
			_, err := NewService(store).GetVariables(t.Context(), time.Now(), tt.lat, tt.lon, tt.vars)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("expected ErrInvalidQuery, got %v", err)
			}
			if len(store.calls) != 0 {
				t.Errorf("store should not be queried, got %v", store.calls)
			}
		})
	}
}
