package dataset

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestDomain_Contains(t *testing.T) {
	tests := []struct {
		name   string
		domain *Domain
		value  any
		want   bool
	}{
		{"nil domain", nil, "x", true},
		{"null value", &Domain{Values: []string{"a"}}, nil, true},
		{"coded value", &Domain{Values: []string{"a", "b"}}, "b", true},
		{"coded miss", &Domain{Values: []string{"a", "b"}}, "c", false},
		{"coded integer", &Domain{Values: []string{"1", "2"}}, int64(2), true},
		{"range inside", &Domain{Min: ptr(1), Max: ptr(8)}, int64(4), true},
		{"range below", &Domain{Min: ptr(1), Max: ptr(8)}, int64(0), false},
		{"range above", &Domain{Min: ptr(1), Max: ptr(8)}, 8.5, false},
		{"range open max", &Domain{Min: ptr(1)}, 1e9, true},
		{"range numeric string", &Domain{Min: ptr(1), Max: ptr(8)}, " 3 ", true},
		{"range non numeric", &Domain{Min: ptr(1)}, "many", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.domain.Contains(tt.value))
		})
	}
}

func TestDomain_String(t *testing.T) {
	var nilDomain *Domain
	assert.Equal(t, "any", nilDomain.String())
	assert.Equal(t, "one of [a, b]", (&Domain{Values: []string{"a", "b"}}).String())
	assert.Equal(t, "in [1, +inf]", (&Domain{Min: ptr(1)}).String())
}

func TestParseFieldType(t *testing.T) {
	ft, err := ParseFieldType("Int")
	require.NoError(t, err)
	assert.Equal(t, FieldInteger, ft)

	ft, err = ParseFieldType("text")
	require.NoError(t, err)
	assert.Equal(t, FieldString, ft)

	_, err = ParseFieldType("geometry")
	assert.Error(t, err)
}

func TestGeometryTypeOf(t *testing.T) {
	assert.Equal(t, GeometryPoint, GeometryTypeOf(orb.Point{1, 2}))
	assert.Equal(t, GeometryLine, GeometryTypeOf(orb.MultiLineString{}))
	assert.Equal(t, GeometryPolygon, GeometryTypeOf(orb.Polygon{}))
	assert.Equal(t, GeometryMixed, GeometryTypeOf(orb.Collection{}))
	assert.Equal(t, GeometryUnknown, GeometryTypeOf(nil))

	assert.Equal(t, GeometryPoint, mergeGeometryType(GeometryUnknown, GeometryPoint))
	assert.Equal(t, GeometryPoint, mergeGeometryType(GeometryPoint, GeometryUnknown))
	assert.Equal(t, GeometryMixed, mergeGeometryType(GeometryPoint, GeometryLine))
	assert.False(t, GeometryNone.IsSpatial())
	assert.True(t, GeometryMixed.IsSpatial())
}

func TestSpatialRef_String(t *testing.T) {
	assert.Equal(t, "Unknown", SpatialRef{}.String())
	assert.Equal(t, "EPSG:3857", SpatialRef{SRID: 3857}.String())
	assert.Equal(t, "WGS 84 (WKID 4326)", wgs84.String())
}

func TestFormatValueAndBlank(t *testing.T) {
	assert.Equal(t, "12", FormatValue(int64(12)))
	assert.Equal(t, "2.5", FormatValue(2.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "", FormatValue(nil))

	assert.True(t, IsNullOrBlank(nil))
	assert.True(t, IsNullOrBlank("   "))
	assert.False(t, IsNullOrBlank(int64(0)))
	assert.False(t, IsNullOrBlank(math.NaN()))
}

func TestHandle_RowsRestartable(t *testing.T) {
	h := NewMemoryHandle("pts", GeometryPoint, wgs84,
		[]FieldSpec{{Name: "id", Type: FieldInteger}},
		[]Row{
			{FID: 1, Values: map[string]any{"id": int64(1)}, Geometry: orb.Point{0, 0}},
			{FID: 2, Values: map[string]any{"id": int64(2)}, Geometry: orb.Point{1, 1}},
			{FID: 3, Values: map[string]any{"id": int64(3)}, Geometry: orb.Point{2, 2}},
		})

	first := 0
	for range h.Rows(context.Background()) {
		first++
		break
	}
	assert.Equal(t, 1, first)

	rows := collectRows(t, h)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[2].FID)
	assert.Equal(t, int64(3), h.Count)
	assert.Equal(t, "memory://pts", h.Path)
}

func TestHandle_RowsYieldsScanError(t *testing.T) {
	boom := errors.New("disk gone")
	h := NewStreamHandle(Handle{Name: "s"}, func(ctx context.Context, yield func(Row) bool) error {
		if !yield(Row{FID: 1}) {
			return nil
		}
		return boom
	})

	var rows int
	var errs []error
	for _, err := range h.Rows(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows++
	}
	assert.Equal(t, 1, rows)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)

	var empty Handle
	for _, err := range empty.Rows(context.Background()) {
		assert.ErrorIs(t, err, ErrNoRowSource)
	}
}

func TestHandle_Field(t *testing.T) {
	h := &Handle{Fields: []FieldSpec{{Name: "Parcel_ID"}, {Name: "owner"}}}

	f, ok := h.Field("parcel_id")
	assert.True(t, ok)
	assert.Equal(t, "Parcel_ID", f.Name)

	_, ok = h.Field("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"Parcel_ID", "owner"}, h.FieldNames())
}
