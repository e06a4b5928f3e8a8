package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection renders the grid points and the bounding box that
// produced them as GeoJSON, for eyeballing coverage on a map.
func FeatureCollection(center Point, radiusMeters int) (*geojson.FeatureCollection, error) {
	grid, err := NewSampleGrid(center, radiusMeters)
	if err != nil {
		return nil, err
	}

	box, err := BoundingBoxFor(center, float64(radiusMeters)*ExpansionFactor/1000)
	if err != nil {
		return nil, err
	}

	fc := &geojson.FeatureCollection{}
	fc.Features = append(fc.Features, &geojson.Feature{
		ID:       "bbox",
		Geometry: box.Polygon(),
		Properties: map[string]any{
			"radius_m":          radiusMeters,
			"expanded_radius_m": ExpandedRadiusMeters(radiusMeters),
		},
	})

	for i, p := range grid {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}).SetSRID(4326),
			Properties: map[string]any{
				"cell":     i,
				"radius_m": ExpandedRadiusMeters(radiusMeters),
			},
		})
	}

	return fc, nil
}

// Polygon returns the box as a closed WGS84 polygon ring.
func (b BoundingBox) Polygon() *geom.Polygon {
	ring := []float64{
		b.MinLng, b.MinLat,
		b.MaxLng, b.MinLat,
		b.MaxLng, b.MaxLat,
		b.MinLng, b.MaxLat,
		b.MinLng, b.MinLat,
	}
	return geom.NewPolygonFlat(geom.XY, ring, []int{len(ring)}).SetSRID(4326)
}

// MarshalGrid encodes the grid feature collection to JSON bytes.
func MarshalGrid(center Point, radiusMeters int) ([]byte, error) {
	fc, err := FeatureCollection(center, radiusMeters)
	if err != nil {
		return nil, err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal geojson")
	}
	return data, nil
}
