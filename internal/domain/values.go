package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidQuery is returned before any lookup when the query itself is unusable.
var ErrInvalidQuery = errors.New("invalid query")

type ErrVariableNotFound struct {
	Variable  string
	Timestamp time.Time
	Lat       float32
	Lon       float32
}

func (e *ErrVariableNotFound) Error() string {
	return fmt.Sprintf(
		"variable %q not found at time: %v lat: %v lon: %v",
		e.Variable,
		e.Timestamp,
		e.Lat,
		e.Lon,
	)
}

// VariableResult is the regridded value of one ILAMB variable at the grid
// cell nearest to the requested location, from the latest month at or
// before the requested time.
type VariableResult struct {
	Name      string
	Value     float32
	Unit      string
	Timestamp time.Time
	Lat       float32
	Lon       float32
	CatalogID uuid.UUID
}

type Service struct {
	store GridStore
}

func NewService(store GridStore) *Service {
	return &Service{store: store}
}

// GetVariables looks every variable up concurrently. Results keep the order
// of vars; repeated names are looked up once.
func (s *Service) GetVariables(
	ctx context.Context,
	ts time.Time,
	lat, lon float32,
	vars []string,
) ([]VariableResult, error) {
	vars, err := validateQuery(lat, lon, vars)
	if err != nil {
		return nil, err
	}

	results := make([]VariableResult, len(vars))
	g, ctx := errgroup.WithContext(ctx)

	for i, variable := range vars {
		g.Go(func() error {
			result, err := s.getVariable(ctx, variable, ts, lat, lon)
			if err != nil {
				return err
			}
			results[i] = *result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func validateQuery(lat, lon float32, vars []string) ([]string, error) {
	if math.IsNaN(float64(lat)) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: latitude %v out of range", ErrInvalidQuery, lat)
	}
	if math.IsNaN(float64(lon)) || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: longitude %v out of range", ErrInvalidQuery, lon)
	}
	seen := make(map[string]bool, len(vars))
	unique := make([]string, 0, len(vars))
	for _, v := range vars {
		if v == "" {
			return nil, fmt.Errorf("%w: empty variable name", ErrInvalidQuery)
		}
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: no variables requested", ErrInvalidQuery)
	}
	return unique, nil
}

func (s *Service) getVariable(
	ctx context.Context,
	variable string,
	ts time.Time,
	lat, lon float32,
) (*VariableResult, error) {
	gridValue, err := s.store.GetValue(ctx, variable, ts, lat, lon)
	if errors.Is(err, ErrGridValueNotFound) {
		return nil, &ErrVariableNotFound{Variable: variable, Timestamp: ts, Lat: lat, Lon: lon}
	}
	if err != nil {
		return nil, fmt.Errorf("getting variable %q: %w", variable, err)
	}

	return &VariableResult{
		Name:      variable,
		Value:     gridValue.Value,
		Unit:      gridValue.Unit,
		Timestamp: gridValue.Timestamp,
		Lat:       gridValue.Lat,
		Lon:       gridValue.Lon,
		CatalogID: gridValue.CatalogID,
	}, nil
}
