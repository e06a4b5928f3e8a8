package geo

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// PostcodeDB queries a local table of UK postcode centroids:
//
//	all_uk_postcodes(postcode TEXT, lat REAL, long REAL)
type PostcodeDB struct {
	db *sql.DB
}

// OpenPostcodeDB opens the SQLite postcode database at path.
func OpenPostcodeDB(path string) (*PostcodeDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open postcode db")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "geo: configure postcode db")
	}
	return &PostcodeDB{db: db}, nil
}

// Close releases the underlying database handle.
func (p *PostcodeDB) Close() error {
	return p.db.Close()
}

// Within returns the postcodes strictly inside box, ordered west to east.
func (p *PostcodeDB) Within(ctx context.Context, box BoundingBox) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT postcode FROM all_uk_postcodes
		 WHERE lat > ? AND lat < ? AND long > ? AND long < ?
		 ORDER BY long ASC`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
	)
	if err != nil {
		return nil, eris.Wrap(err, "geo: query postcodes")
	}
	defer rows.Close() //nolint:errcheck

	var postcodes []string
	for rows.Next() {
		var pc string
		if err := rows.Scan(&pc); err != nil {
			return nil, eris.Wrap(err, "geo: scan postcode")
		}
		postcodes = append(postcodes, pc)
	}
	return postcodes, eris.Wrap(rows.Err(), "geo: iterate postcodes")
}

// Region returns the postcodes within radiusKM of center along with the
// bounding box used to select them.
func (p *PostcodeDB) Region(ctx context.Context, center Point, radiusKM float64) ([]string, BoundingBox, error) {
	box, err := BoundingBoxFor(center, radiusKM)
	if err != nil {
		return nil, BoundingBox{}, err
	}
	postcodes, err := p.Within(ctx, box)
	if err != nil {
		return nil, box, err
	}
	return postcodes, box, nil
}
