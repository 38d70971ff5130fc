package dataset

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Format identifies the storage format a handle was opened from
type Format string

const (
	FormatGeoJSON    Format = "geojson"
	FormatCSV        Format = "csv"
	FormatGeoPackage Format = "gpkg"
	FormatXLSX       Format = "xlsx"
	FormatMemory     Format = "memory"
)

// GeometryType classifies the geometry stored in a dataset
type GeometryType string

const (
	GeometryNone    GeometryType = "table"
	GeometryPoint   GeometryType = "point"
	GeometryLine    GeometryType = "line"
	GeometryPolygon GeometryType = "polygon"
	GeometryMixed   GeometryType = "mixed"
	GeometryUnknown GeometryType = "unknown"
)

// IsSpatial reports whether rows of this type carry geometry
func (g GeometryType) IsSpatial() bool {
	return g != GeometryNone && g != ""
}

// GeometryTypeOf returns the dataset-level classification of a geometry
func GeometryTypeOf(g orb.Geometry) GeometryType {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return GeometryPoint
	case orb.LineString, orb.MultiLineString:
		return GeometryLine
	case orb.Ring, orb.Polygon, orb.MultiPolygon, orb.Bound:
		return GeometryPolygon
	case nil:
		return GeometryUnknown
	default:
		return GeometryMixed
	}
}

// mergeGeometryType folds the type of one more feature into a running type
func mergeGeometryType(current, next GeometryType) GeometryType {
	switch {
	case next == GeometryUnknown:
		return current
	case current == GeometryUnknown, current == "":
		return next
	case current == next:
		return current
	default:
		return GeometryMixed
	}
}

// FieldType is the declared type of an attribute field
type FieldType string

const (
	FieldInteger FieldType = "integer"
	FieldDouble  FieldType = "double"
	FieldString  FieldType = "string"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldBlob    FieldType = "blob"
	FieldUnknown FieldType = "unknown"
)

// ParseFieldType parses a configured field type name
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "smallinteger", "long":
		return FieldInteger, nil
	case "double", "float", "single", "real":
		return FieldDouble, nil
	case "string", "text":
		return FieldString, nil
	case "boolean", "bool":
		return FieldBoolean, nil
	case "date", "datetime":
		return FieldDate, nil
	case "blob", "binary":
		return FieldBlob, nil
	default:
		return FieldUnknown, fmt.Errorf("unknown field type %q", s)
	}
}

// Domain constrains the values a field may hold. A nil bound is open.
type Domain struct {
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// IsZero reports whether the domain imposes no constraint
func (d *Domain) IsZero() bool {
	return d == nil || (len(d.Values) == 0 && d.Min == nil && d.Max == nil)
}

// Contains reports whether v satisfies the domain. Null values always do.
func (d *Domain) Contains(v any) bool {
	if d.IsZero() || v == nil {
		return true
	}

	if len(d.Values) > 0 {
		s := FormatValue(v)
		found := false
		for _, allowed := range d.Values {
			if allowed == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if d.Min != nil || d.Max != nil {
		n, ok := numericValue(v)
		if !ok {
			return false
		}
		if d.Min != nil && n < *d.Min {
			return false
		}
		if d.Max != nil && n > *d.Max {
			return false
		}
	}

	return true
}

// String describes the domain for messages
func (d *Domain) String() string {
	if d.IsZero() {
		return "any"
	}
	parts := make([]string, 0, 2)
	if len(d.Values) > 0 {
		parts = append(parts, "one of ["+strings.Join(d.Values, ", ")+"]")
	}
	if d.Min != nil || d.Max != nil {
		lo, hi := "-inf", "+inf"
		if d.Min != nil {
			lo = strconv.FormatFloat(*d.Min, 'g', -1, 64)
		}
		if d.Max != nil {
			hi = strconv.FormatFloat(*d.Max, 'g', -1, 64)
		}
		parts = append(parts, "in ["+lo+", "+hi+"]")
	}
	return strings.Join(parts, " and ")
}

// FieldSpec describes one attribute field
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Nullable bool      `json:"nullable" yaml:"nullable"`
	Domain   *Domain   `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// SpatialRef identifies the coordinate reference system of a dataset
type SpatialRef struct {
	SRID int    `json:"srid" yaml:"srid"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Known reports whether the dataset declares a usable spatial reference
func (s SpatialRef) Known() bool {
	return s.SRID > 0
}

// String renders the reference as "name (WKID n)"
func (s SpatialRef) String() string {
	if !s.Known() {
		return "Unknown"
	}
	if s.Name == "" {
		return fmt.Sprintf("EPSG:%d", s.SRID)
	}
	return fmt.Sprintf("%s (WKID %d)", s.Name, s.SRID)
}

// Row is one feature or table record
type Row struct {
	FID         int64
	Values      map[string]any
	Geometry    orb.Geometry
	GeometryErr error
}

// Value returns the value of a field, or nil when absent
func (r Row) Value(field string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[field]
}

// scanFunc streams rows to yield until it returns false. Implementations
// acquire their storage handle on entry and release it before returning.
type scanFunc func(ctx context.Context, yield func(Row) bool) error

// Handle is an opened dataset. It is owned by the accessor for the duration
// of one validation run and is safe to scan from one goroutine at a time.
type Handle struct {
	Path         string       `json:"path" yaml:"path"`
	Name         string       `json:"name" yaml:"name"`
	Format       Format       `json:"format" yaml:"format"`
	GeometryType GeometryType `json:"geometry_type" yaml:"geometry_type"`
	Fields       []FieldSpec  `json:"fields" yaml:"fields"`
	SpatialRef   SpatialRef   `json:"spatial_ref" yaml:"spatial_ref"`
	Count        int64        `json:"count" yaml:"count"`

	// SourceFile is the local file backing the dataset, empty for remote data
	SourceFile string `json:"source_file,omitempty" yaml:"source_file,omitempty"`

	scan scanFunc
}

// ErrNoRowSource is returned when a handle was built without a row source
var ErrNoRowSource = errors.New("dataset: handle has no row source")

// Rows returns a lazy, restartable sequence of rows. Each call opens the
// underlying storage again; the storage is released when the loop ends,
// breaks, or panics. A scan error is yielded once as the final element.
func (h *Handle) Rows(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if h.scan == nil {
			yield(Row{}, ErrNoRowSource)
			return
		}

		stopped := false
		err := h.scan(ctx, func(row Row) bool {
			if !yield(row, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(Row{}, err)
		}
	}
}

// Field looks up a field by name, ignoring case
func (h *Handle) Field(name string) (FieldSpec, bool) {
	for _, f := range h.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the field names in schema order
func (h *Handle) FieldNames() []string {
	names := make([]string, len(h.Fields))
	for i, f := range h.Fields {
		names[i] = f.Name
	}
	return names
}

// IsNullOrBlank reports whether v is nil or a whitespace-only string
func IsNullOrBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []byte:
		return len(val) == 0
	}
	return false
}

// FormatValue renders a normalized value the way domains and keys compare it
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}
