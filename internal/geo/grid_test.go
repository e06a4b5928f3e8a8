package geo

import (
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxFor_London(t *testing.T) {
	box, err := BoundingBoxFor(Point{Lat: 51.5, Lng: -0.12}, 5000*ExpansionFactor/1000)
	require.NoError(t, err)

	assert.InDelta(t, 51.4272106, box.MinLat, 1e-7)
	assert.InDelta(t, 51.5727894, box.MaxLat, 1e-7)
	assert.InDelta(t, -0.236928, box.MinLng, 1e-7)
	assert.InDelta(t, -0.003072, box.MaxLng, 1e-7)
}

func TestBoundingBoxFor_LongitudeWiderThanLatitude(t *testing.T) {
	box, err := BoundingBoxFor(Point{Lat: 60, Lng: 10}, 10)
	require.NoError(t, err)

	latSpan := box.MaxLat - box.MinLat
	lngSpan := box.MaxLng - box.MinLng
	// cos(60°) = 0.5, so the longitude span doubles.
	assert.InDelta(t, 2*latSpan, lngSpan, 1e-5)
}

func TestBoundingBoxFor_Polar(t *testing.T) {
	_, err := BoundingBoxFor(Point{Lat: 89.99, Lng: 0}, 50)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrPolarBox))

	_, err = BoundingBoxFor(Point{Lat: -89.99, Lng: 0}, 50)
	assert.True(t, eris.Is(err, ErrPolarBox))
}

func TestBoundingBoxFor_WrapsAntimeridian(t *testing.T) {
	box, err := BoundingBoxFor(Point{Lat: 0, Lng: 179.99}, 10)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, box.MaxLng, -180.0)
	assert.LessOrEqual(t, box.MaxLng, 180.0)
	assert.Less(t, box.MaxLng, 0.0, "max longitude should wrap to the western hemisphere")
}

func TestNewSampleGrid_NineDistinctPoints(t *testing.T) {
	centers := []Point{
		{Lat: 51.5, Lng: -0.12},
		{Lat: 51.6214, Lng: -3.9436},
		{Lat: -33.86, Lng: 151.21},
		{Lat: 0, Lng: 0},
	}
	for _, c := range centers {
		for _, radius := range []int{100, 1000, 5000, 25000} {
			grid, err := NewSampleGrid(c, radius)
			require.NoError(t, err)

			seen := make(map[Point]bool, GridSize)
			for _, p := range grid {
				seen[p] = true
			}
			assert.Len(t, seen, GridSize, "center %s radius %d", c, radius)
		}
	}
}

func TestNewSampleGrid_Layout(t *testing.T) {
	center := Point{Lat: 51.5, Lng: -0.12}
	grid, err := NewSampleGrid(center, 5000)
	require.NoError(t, err)

	assert.Equal(t, center, grid[4])
	assert.InDelta(t, 51.4272106, grid[0].Lat, 1e-7)
	assert.InDelta(t, -0.236928, grid[0].Lng, 1e-7)
	assert.Equal(t, center.Lng, grid[1].Lng)
	assert.Equal(t, center.Lat, grid[3].Lat)
	assert.InDelta(t, 51.5727894, grid[8].Lat, 1e-7)
	assert.InDelta(t, -0.003072, grid[8].Lng, 1e-7)
}

func TestNewSampleGrid_InvalidRadius(t *testing.T) {
	_, err := NewSampleGrid(Point{Lat: 51.5, Lng: -0.12}, 0)
	assert.Error(t, err)

	_, err = NewSampleGrid(Point{Lat: 51.5, Lng: -0.12}, -10)
	assert.Error(t, err)
}

func TestExpandedRadiusMeters(t *testing.T) {
	assert.Equal(t, 8090, ExpandedRadiusMeters(5000))
	assert.Equal(t, 1618, ExpandedRadiusMeters(1000))
}

func TestPointString(t *testing.T) {
	assert.Equal(t, "51.5000000,-0.1200000", Point{Lat: 51.5, Lng: -0.12}.String())
}

func TestMarshalGrid(t *testing.T) {
	data, err := MarshalGrid(Point{Lat: 51.5, Lng: -0.12}, 5000)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1+GridSize)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	for _, f := range fc.Features[1:] {
		assert.Equal(t, "Point", f.Geometry.Type)
	}
}
