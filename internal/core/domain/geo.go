package domain

import "encoding/json"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PixelPoint represents a position on the source raster, in pixels.
// The origin is the top-left corner; x grows right, y grows down.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GeoBounds is the axis-aligned envelope of a georeferenced image, in degrees.
// Its JSON form is the nested pair [[south,west],[north,east]] consumed by map
// overlay layers; that exact shape is a wire contract and must not change.
type GeoBounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

// MarshalJSON encodes the bounds as [[south,west],[north,east]].
func (b GeoBounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2][2]float64{{b.South, b.West}, {b.North, b.East}})
}

// UnmarshalJSON decodes the [[south,west],[north,east]] nested-pair form.
func (b *GeoBounds) UnmarshalJSON(data []byte) error {
	var corners [2][2]float64
	if err := json.Unmarshal(data, &corners); err != nil {
		return err
	}
	b.South, b.West = corners[0][0], corners[0][1]
	b.North, b.East = corners[1][0], corners[1][1]
	return nil
}

// Valid reports whether the bounds are ordered and within WGS 84 ranges.
func (b GeoBounds) Valid() bool {
	if b.South > b.North || b.West > b.East {
		return false
	}
	if b.South < -90 || b.North > 90 {
		return false
	}
	return b.West >= -180 && b.East <= 180
}
