package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

var wgs84 = SpatialRef{SRID: 4326, Name: "WGS 84"}

// GeoJSONDriver reads GeoJSON FeatureCollections without loading them into memory
type GeoJSONDriver struct{}

// NewGeoJSONDriver creates a GeoJSON driver
func NewGeoJSONDriver() *GeoJSONDriver {
	return &GeoJSONDriver{}
}

func (d *GeoJSONDriver) Name() string { return "geojson" }

func (d *GeoJSONDriver) Probe(path string) bool {
	return !isRemote(path) && hasExt(path, ".geojson", ".json")
}

func (d *GeoJSONDriver) Open(ctx context.Context, path string) (*Resolution, error) {
	if _, err := statFile(path); err != nil {
		return nil, err
	}

	h, err := openGeoJSON(ctx, path, filepath.Base(path), fileOpener(path))
	if err != nil {
		return nil, err
	}
	h.SourceFile = path
	return single(path, h), nil
}

// openGeoJSON infers the schema in one streaming pass and returns a handle
// that re-streams the source on every scan
func openGeoJSON(ctx context.Context, path, name string, open opener) (*Handle, error) {
	rc, err := open(ctx)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, unsupported(path, "cannot open GeoJSON", err)
	}
	defer rc.Close()

	schema := newSchemaBuilder()
	geomType := GeometryUnknown
	sr := wgs84
	var count int64
	var featureErr error

	err = walkFeatureCollection(rc,
		func(raw json.RawMessage) { sr = parseCRS(raw) },
		func(f rawFeature) bool {
			count++
			row, keys, err := f.row(count)
			if err != nil {
				featureErr = fmt.Errorf("feature %d: %w", count, err)
				return false
			}
			for _, k := range keys {
				schema.observe(k, row.Values[k])
			}
			if row.Geometry != nil {
				geomType = mergeGeometryType(geomType, GeometryTypeOf(row.Geometry))
			}
			return true
		})
	if err == nil {
		err = featureErr
	}
	if err != nil {
		return nil, unsupported(path, "invalid GeoJSON", err)
	}

	return &Handle{
		Path:         path,
		Name:         name,
		Format:       FormatGeoJSON,
		GeometryType: geomType,
		Fields:       schema.fields(),
		SpatialRef:   sr,
		Count:        count,
		scan:         geojsonScan(open),
	}, nil
}

func geojsonScan(open opener) scanFunc {
	return func(ctx context.Context, yield func(Row) bool) error {
		rc, err := open(ctx)
		if err != nil {
			return err
		}
		defer rc.Close()

		var n int64
		var rowErr error
		err = walkFeatureCollection(rc, nil, func(f rawFeature) bool {
			n++
			row, _, err := f.row(n)
			if err != nil {
				rowErr = fmt.Errorf("feature %d: %w", n, err)
				return false
			}
			return yield(row)
		})
		if err != nil {
			return err
		}
		return rowErr
	}
}

type rawFeature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// row converts the feature; an undecodable geometry is kept on the row
// rather than failing the scan
func (f rawFeature) row(fid int64) (Row, []string, error) {
	row := Row{FID: fid}

	keys, values, err := decodeProperties(f.Properties)
	if err != nil {
		return row, nil, fmt.Errorf("properties: %w", err)
	}
	row.Values = values

	if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
		g, err := geojson.UnmarshalGeometry(f.Geometry)
		if err != nil {
			row.GeometryErr = err
		} else {
			row.Geometry = g.Geometry()
		}
	}

	return row, keys, nil
}

// decodeProperties keeps key order so the inferred schema is deterministic
func decodeProperties(raw json.RawMessage) ([]string, map[string]any, error) {
	values := make(map[string]any)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected an object")
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = jsonValue(v)
	}

	return keys, values, nil
}

// walkFeatureCollection streams the members of a FeatureCollection. It stops
// early without error when onFeature returns false.
func walkFeatureCollection(r io.Reader, onCRS func(json.RawMessage), onFeature func(rawFeature) bool) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}

	sawType, sawFeatures := false, false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		switch key {
		case "type":
			var t string
			if err := dec.Decode(&t); err != nil {
				return err
			}
			if t != "FeatureCollection" {
				return fmt.Errorf("expected a FeatureCollection, found %q", t)
			}
			sawType = true
		case "crs":
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			if onCRS != nil {
				onCRS(raw)
			}
		case "features":
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return errors.New("features must be an array")
			}
			for dec.More() {
				var f rawFeature
				if err := dec.Decode(&f); err != nil {
					return err
				}
				if !onFeature(f) {
					return nil
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
			sawFeatures = true
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}

	if !sawType || !sawFeatures {
		return errors.New("not a GeoJSON FeatureCollection")
	}
	return nil
}

// parseCRS reads the legacy named crs member
func parseCRS(raw json.RawMessage) SpatialRef {
	var crs struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &crs); err != nil {
		return SpatialRef{}
	}
	return spatialRefFromName(crs.Properties.Name)
}

// spatialRefFromName understands "EPSG:n", OGC URNs and CRS84
func spatialRefFromName(name string) SpatialRef {
	upper := strings.ToUpper(name)
	if strings.Contains(upper, "CRS84") {
		return wgs84
	}

	idx := strings.LastIndex(upper, "EPSG")
	if idx < 0 {
		return SpatialRef{Name: name}
	}
	rest := strings.TrimLeft(upper[idx+len("EPSG"):], ":")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	srid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return SpatialRef{Name: name}
	}
	if srid == wgs84.SRID {
		return wgs84
	}
	return SpatialRef{SRID: srid, Name: fmt.Sprintf("EPSG:%d", srid)}
}
