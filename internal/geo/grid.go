// Package geo builds the sampling grid used to re-query the places directory
// around a center point, and looks up postcodes inside a bounding box.
package geo

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

const (
	// EarthRadiusKM is the spherical Earth radius used by the bounding box math.
	EarthRadiusKM = 6368.0

	// ExpansionFactor widens the nominal radius so that nine circles of the
	// expanded radius centered on a 3x3 grid cover the original circle.
	ExpansionFactor = 1.618

	// GridSize is the number of sample points in a SampleGrid.
	GridSize = 9
)

// ErrPolarBox is returned when a bounding box would cross a pole.
var ErrPolarBox = eris.New("geo: bounding box crosses a pole")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the point as "lat,lng", the form the places API expects.
func (p Point) String() string {
	return fmt.Sprintf("%.7f,%.7f", p.Lat, p.Lng)
}

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// SampleGrid holds the nine sub-query centers for one search area, ordered
// row by row from (MinLat, MinLng) to (MaxLat, MaxLng).
type SampleGrid [GridSize]Point

// ExpandedRadiusMeters returns the sub-query radius for a nominal radius.
func ExpandedRadiusMeters(radiusMeters int) int {
	return int(math.Round(float64(radiusMeters) * ExpansionFactor))
}

// BoundingBoxFor derives a bounding box around center using an
// equirectangular approximation. The longitude span is widened by
// 1/cos(lat) to account for meridian convergence.
func BoundingBoxFor(center Point, radiusKM float64) (BoundingBox, error) {
	latRad := center.Lat * math.Pi / 180
	lngRad := center.Lng * math.Pi / 180
	angular := radiusKM / EarthRadiusKM

	minLat := (latRad - angular) * 180 / math.Pi
	maxLat := (latRad + angular) * 180 / math.Pi
	if minLat < -90 || maxLat > 90 {
		return BoundingBox{}, eris.Wrapf(ErrPolarBox, "center %s radius %.3fkm", center, radiusKM)
	}

	lngDelta := angular / math.Cos(latRad)
	if lngDelta*180/math.Pi >= 180 {
		return BoundingBox{}, eris.Wrapf(ErrPolarBox, "center %s radius %.3fkm", center, radiusKM)
	}

	return BoundingBox{
		MinLat: Round7(minLat),
		MaxLat: Round7(maxLat),
		MinLng: Round7(wrapLng((lngRad - lngDelta) * 180 / math.Pi)),
		MaxLng: Round7(wrapLng((lngRad + lngDelta) * 180 / math.Pi)),
	}, nil
}

// NewSampleGrid builds the 3x3 grid of sub-query centers for a search of
// radiusMeters around center: the four box corners, the four edge midpoints
// and the center itself. The box is computed from the expanded radius.
func NewSampleGrid(center Point, radiusMeters int) (SampleGrid, error) {
	if radiusMeters <= 0 {
		return SampleGrid{}, eris.Errorf("geo: radius must be positive, got %d", radiusMeters)
	}

	radiusKM := float64(radiusMeters) * ExpansionFactor / 1000
	box, err := BoundingBoxFor(center, radiusKM)
	if err != nil {
		return SampleGrid{}, err
	}

	return SampleGrid{
		{box.MinLat, box.MinLng}, {box.MinLat, center.Lng}, {box.MinLat, box.MaxLng},
		{center.Lat, box.MinLng}, {center.Lat, center.Lng}, {center.Lat, box.MaxLng},
		{box.MaxLat, box.MinLng}, {box.MaxLat, center.Lng}, {box.MaxLat, box.MaxLng},
	}, nil
}

// Round7 rounds a coordinate to 7 decimal places (about 1cm).
func Round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}

// wrapLng normalizes a longitude into [-180, 180].
func wrapLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
