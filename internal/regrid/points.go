package regrid

import "fmt"

// Points is an ordered set of (lon, lat) locations held as parallel slices.
// Coordinates are degrees and are used as given; nothing is wrapped or
// normalised.
type Points struct {
	Lon []float64
	Lat []float64
}

// Len returns the number of points.
func (p Points) Len() int {
	return len(p.Lon)
}

func (p Points) validate(name string) error {
	if len(p.Lon) != len(p.Lat) {
		return fmt.Errorf("%w: %s has %d longitudes but %d latitudes",
			ErrInvalidConfiguration, name, len(p.Lon), len(p.Lat))
	}
	return nil
}
