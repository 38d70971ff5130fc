package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for GeoPackage files
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// GeoPackageDriver reads the feature and attribute layers of a GeoPackage.
// "file.gpkg" is a workspace; "file.gpkg/layer" addresses one layer.
type GeoPackageDriver struct{}

// NewGeoPackageDriver creates a GeoPackage driver
func NewGeoPackageDriver() *GeoPackageDriver {
	return &GeoPackageDriver{}
}

func (d *GeoPackageDriver) Name() string { return "gpkg" }

func (d *GeoPackageDriver) Probe(path string) bool {
	if isRemote(path) {
		return false
	}
	return hasExt(path, ".gpkg") || hasExt(filepath.Dir(path), ".gpkg")
}

func (d *GeoPackageDriver) Open(ctx context.Context, path string) (*Resolution, error) {
	file, layer := path, ""
	if !hasExt(path, ".gpkg") {
		file, layer = filepath.Dir(path), filepath.Base(path)
	}
	if _, err := statFile(file); err != nil {
		return nil, err
	}

	members, err := openGeoPackage(ctx, file)
	if err != nil {
		return nil, err
	}

	if layer == "" {
		return &Resolution{Path: path, Workspace: true, Members: members}, nil
	}
	for _, m := range members {
		if m.Name != layer {
			continue
		}
		if m.Err != nil {
			return nil, m.Err
		}
		return single(path, m.Handle), nil
	}
	return nil, &NotFoundError{Path: path, Err: fmt.Errorf("layer %q not in %s", layer, file)}
}

func openSQLite(file string) (*sql.DB, error) {
	return sql.Open("sqlite3", "file:"+file+"?mode=ro&immutable=1")
}

type gpkgLayer struct {
	table    string
	dataType string
}

func openGeoPackage(ctx context.Context, file string) ([]Member, error) {
	db, err := openSQLite(file)
	if err != nil {
		return nil, unsupported(file, "cannot open SQLite database", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT table_name, data_type
		FROM gpkg_contents
		WHERE data_type IN ('features', 'attributes')
		ORDER BY table_name`)
	if err != nil {
		return nil, unsupported(file, "not a GeoPackage", err)
	}
	var layers []gpkgLayer
	for rows.Next() {
		var l gpkgLayer
		if err := rows.Scan(&l.table, &l.dataType); err != nil {
			rows.Close()
			return nil, unsupported(file, "cannot read gpkg_contents", err)
		}
		layers = append(layers, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, unsupported(file, "cannot read gpkg_contents", err)
	}

	hasDomains := hasDomainTables(ctx, db)
	members := make([]Member, 0, len(layers))
	for _, l := range layers {
		path := file + "/" + l.table
		h, err := describeLayer(ctx, db, file, l, hasDomains)
		if err != nil {
			members = append(members, Member{Name: l.table, Path: path, Err: unsupported(path, "cannot read layer", err)})
			continue
		}
		members = append(members, Member{Name: l.table, Path: path, Handle: h})
	}
	sortMembers(members)
	return members, nil
}

func describeLayer(ctx context.Context, db *sql.DB, file string, l gpkgLayer, hasDomains bool) (*Handle, error) {
	h := &Handle{
		Path:         file + "/" + l.table,
		Name:         l.table,
		Format:       FormatGeoPackage,
		GeometryType: GeometryNone,
		SourceFile:   file,
	}

	var geomCol string
	if l.dataType == "features" {
		var typeName string
		var srsID int64
		err := db.QueryRowContext(ctx,
			`SELECT column_name, geometry_type_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`,
			l.table,
		).Scan(&geomCol, &typeName, &srsID)
		if err != nil {
			return nil, fmt.Errorf("geometry column: %w", err)
		}
		h.GeometryType = gpkgGeometryType(typeName)
		sr, err := lookupSpatialRef(ctx, db, srsID)
		if err != nil {
			return nil, err
		}
		h.SpatialRef = sr
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(l.table)))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	var pk string
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pkIndex  int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pkIndex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("table info: %w", err)
		}
		if strings.EqualFold(name, geomCol) {
			continue
		}
		ft := sqliteFieldType(declType)
		if pkIndex > 0 && pk == "" && ft == FieldInteger {
			pk = name
		}
		h.Fields = append(h.Fields, FieldSpec{
			Name:     name,
			Type:     ft,
			Nullable: notNull == 0 && pkIndex == 0,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	if len(h.Fields) == 0 && geomCol == "" {
		return nil, errors.New("table has no columns")
	}

	if hasDomains {
		domains, err := loadDomains(ctx, db, l.table)
		if err != nil {
			return nil, err
		}
		for i := range h.Fields {
			if d, ok := domains[h.Fields[i].Name]; ok {
				h.Fields[i].Domain = d
			}
		}
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(l.table)).Scan(&h.Count); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	h.scan = gpkgScan(file, l.table, pk, geomCol, h.Fields)
	return h, nil
}

func gpkgScan(file, table, pk, geomCol string, fields []FieldSpec) scanFunc {
	cols := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		cols = append(cols, quoteIdent(f.Name))
	}
	if geomCol != "" {
		cols = append(cols, quoteIdent(geomCol))
	}
	order := "rowid"
	if pk != "" {
		order = quoteIdent(pk)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(cols, ", "), quoteIdent(table), order)

	return func(ctx context.Context, yield func(Row) bool) error {
		db, err := openSQLite(file)
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query %s: %w", table, err)
		}
		defer rows.Close()

		vals := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}

		var ordinal int64
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return fmt.Errorf("scan %s: %w", table, err)
			}
			ordinal++

			row := Row{FID: ordinal, Values: make(map[string]any, len(fields))}
			for i, f := range fields {
				row.Values[f.Name] = sqliteValue(vals[i], f.Type)
			}
			if pk != "" {
				if id, ok := row.Values[pk].(int64); ok {
					row.FID = id
				}
			}
			if geomCol != "" {
				switch blob := vals[len(fields)].(type) {
				case nil:
				case []byte:
					row.Geometry, row.GeometryErr = decodeGeoPackageBinary(blob)
				default:
					row.GeometryErr = fmt.Errorf("unexpected geometry value of type %T", blob)
				}
			}

			if !yield(row) {
				return nil
			}
		}
		return rows.Err()
	}
}

func hasDomainTables(ctx context.Context, db *sql.DB) bool {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('gpkg_data_columns', 'gpkg_data_column_constraints')`,
	).Scan(&n)
	return err == nil && n == 2
}

// loadDomains reads enum and range constraints declared for a table
func loadDomains(ctx context.Context, db *sql.DB, table string) (map[string]*Domain, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT dc.column_name, c.constraint_type, c.value, c.min, c.max
		FROM gpkg_data_columns dc
		JOIN gpkg_data_column_constraints c ON c.constraint_name = dc.constraint_name
		WHERE dc.table_name = ?
		ORDER BY dc.column_name, c.value`, table)
	if err != nil {
		return nil, fmt.Errorf("data column constraints: %w", err)
	}
	defer rows.Close()

	domains := make(map[string]*Domain)
	for rows.Next() {
		var (
			column, kind string
			value        sql.NullString
			lo, hi       sql.NullFloat64
		)
		if err := rows.Scan(&column, &kind, &value, &lo, &hi); err != nil {
			return nil, fmt.Errorf("data column constraints: %w", err)
		}
		d, ok := domains[column]
		if !ok {
			d = &Domain{}
			domains[column] = d
		}
		switch strings.ToLower(kind) {
		case "enum":
			if value.Valid {
				d.Values = append(d.Values, value.String)
			}
		case "range":
			if lo.Valid {
				v := lo.Float64
				d.Min = &v
			}
			if hi.Valid {
				v := hi.Float64
				d.Max = &v
			}
		}
	}
	return domains, rows.Err()
}

func lookupSpatialRef(ctx context.Context, db *sql.DB, srsID int64) (SpatialRef, error) {
	// 0 and -1 are the undefined geographic and cartesian systems
	if srsID <= 0 {
		return SpatialRef{}, nil
	}

	var name, org string
	var orgID int64
	err := db.QueryRowContext(ctx,
		`SELECT srs_name, organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`,
		srsID,
	).Scan(&name, &org, &orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return SpatialRef{}, nil
	}
	if err != nil {
		return SpatialRef{}, fmt.Errorf("spatial reference %d: %w", srsID, err)
	}

	srid := srsID
	if strings.EqualFold(org, "EPSG") && orgID > 0 {
		srid = orgID
	}
	return SpatialRef{SRID: int(srid), Name: name}, nil
}

func gpkgGeometryType(name string) GeometryType {
	switch strings.ToUpper(name) {
	case "POINT", "MULTIPOINT":
		return GeometryPoint
	case "LINESTRING", "MULTILINESTRING", "CURVE", "MULTICURVE":
		return GeometryLine
	case "POLYGON", "MULTIPOLYGON", "SURFACE", "MULTISURFACE":
		return GeometryPolygon
	case "GEOMETRYCOLLECTION":
		return GeometryMixed
	default:
		return GeometryUnknown
	}
}

func sqliteFieldType(decl string) FieldType {
	t := strings.ToUpper(decl)
	switch {
	case strings.Contains(t, "INT"):
		return FieldInteger
	case strings.HasPrefix(t, "BOOL"):
		return FieldBoolean
	case strings.Contains(t, "DATE"):
		return FieldDate
	case strings.Contains(t, "TEXT"), strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"):
		return FieldString
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"), strings.Contains(t, "NUMERIC"):
		return FieldDouble
	case strings.Contains(t, "BLOB"):
		return FieldBlob
	default:
		return FieldUnknown
	}
}

func sqliteValue(v any, t FieldType) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		if t == FieldString {
			return string(val)
		}
		return val
	default:
		return val
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// GeoPackage binary header envelope sizes by indicator
var envelopeSizes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// decodeGeoPackageBinary strips the "GP" header and decodes the WKB body
func decodeGeoPackageBinary(b []byte) (orb.Geometry, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, errors.New("not a GeoPackage geometry blob")
	}
	flags := b[3]
	if flags&0x20 != 0 {
		return nil, errors.New("extended GeoPackage geometry types are not supported")
	}
	size, ok := envelopeSizes[(flags>>1)&0x07]
	if !ok {
		return nil, fmt.Errorf("invalid envelope indicator in flags 0x%02x", flags)
	}
	offset := 8 + size
	if len(b) < offset {
		return nil, errors.New("truncated GeoPackage geometry header")
	}

	// Empty geometries are written as WKB with NaN coordinates for points,
	// so the flag has to win over whatever the body decodes to.
	if flags&0x10 != 0 {
		return orb.Collection{}, nil
	}
	return wkb.Unmarshal(b[offset:])
}
