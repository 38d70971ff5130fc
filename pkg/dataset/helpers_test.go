package dataset

import (
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collectRows(t *testing.T, h *Handle) []Row {
	t.Helper()
	var rows []Row
	for row, err := range h.Rows(context.Background()) {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

// gpkgBlob encodes g as a GeoPackage geometry blob with no envelope
func gpkgBlob(t *testing.T, g orb.Geometry, srsID uint32, flags byte) []byte {
	t.Helper()
	body, err := wkb.Marshal(g)
	require.NoError(t, err)

	header := []byte{'G', 'P', 0, flags | 0x01, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(header[4:], srsID)
	return append(header, body...)
}

// createGeoPackage writes a minimal GeoPackage with a feature layer, an
// attribute layer and a layer whose geometry column is not registered
func createGeoPackage(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT)`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES ('WGS 84 geodetic', 4326, 'EPSG', 4326, 'GEOGCS["WGS 84"]', NULL)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT,
			description TEXT DEFAULT '',
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL)`,
		`CREATE TABLE gpkg_data_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			name TEXT, title TEXT, description TEXT, mime_type TEXT,
			constraint_name TEXT)`,
		`CREATE TABLE gpkg_data_column_constraints (
			constraint_name TEXT NOT NULL,
			constraint_type TEXT NOT NULL,
			value TEXT,
			min NUMERIC, min_is_inclusive BOOLEAN,
			max NUMERIC, max_is_inclusive BOOLEAN,
			description TEXT)`,
		`CREATE TABLE roads (fid INTEGER PRIMARY KEY AUTOINCREMENT, geom BLOB, name TEXT NOT NULL, lanes INTEGER)`,
		`CREATE TABLE owners (id INTEGER PRIMARY KEY, owner TEXT, status TEXT)`,
		`CREATE TABLE broken (fid INTEGER PRIMARY KEY, shape BLOB)`,
		`INSERT INTO gpkg_contents (table_name, data_type, srs_id) VALUES
			('roads', 'features', 4326), ('owners', 'attributes', NULL), ('broken', 'features', 4326)`,
		`INSERT INTO gpkg_geometry_columns VALUES ('roads', 'geom', 'LINESTRING', 4326, 0, 0)`,
		`INSERT INTO gpkg_data_columns (table_name, column_name, constraint_name) VALUES
			('owners', 'status', 'status_codes'), ('roads', 'lanes', 'lane_range')`,
		`INSERT INTO gpkg_data_column_constraints (constraint_name, constraint_type, value) VALUES
			('status_codes', 'enum', 'active'), ('status_codes', 'enum', 'retired')`,
		`INSERT INTO gpkg_data_column_constraints (constraint_name, constraint_type, min, max) VALUES
			('lane_range', 'range', 1, 8)`,
		`INSERT INTO owners (id, owner, status) VALUES (1, 'county', 'active'), (2, NULL, 'unknown')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	line := orb.LineString{{0, 0}, {1, 1}, {2, 0}}
	_, err = db.Exec(`INSERT INTO roads (fid, geom, name, lanes) VALUES (10, ?, 'main', 2)`, gpkgBlob(t, line, 4326, 0))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO roads (fid, geom, name, lanes) VALUES (20, NULL, 'side', NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO roads (fid, geom, name, lanes) VALUES (30, ?, 'bad', 1)`, []byte("XX-not-a-geometry"))
	require.NoError(t, err)
}
