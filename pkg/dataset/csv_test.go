package dataset

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVDriver_WKTGeometry(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wells.csv", "\ufeffid,name,depth,WKT\n"+
		"1,alpha,10,POINT (1 2)\n"+
		"2,,2.5,POINT (3 4)\n"+
		"3,gamma,,\n"+
		"4,delta,7,POINT (oops)\n")

	res, err := NewCSVDriver().Open(context.Background(), path)
	require.NoError(t, err)
	h := res.Members[0].Handle
	require.NotNil(t, h)

	assert.Equal(t, FormatCSV, h.Format)
	assert.Equal(t, GeometryPoint, h.GeometryType)
	assert.False(t, h.SpatialRef.Known())
	assert.Equal(t, int64(4), h.Count)
	assert.Equal(t, []string{"id", "name", "depth"}, h.FieldNames())

	depth, ok := h.Field("depth")
	require.True(t, ok)
	assert.Equal(t, FieldDouble, depth.Type)

	rows := collectRows(t, h)
	require.Len(t, rows, 4)

	assert.Equal(t, int64(1), rows[0].Value("id"))
	assert.Equal(t, float64(10), rows[0].Value("depth"))
	assert.Equal(t, orb.Point{1, 2}, rows[0].Geometry)

	assert.Nil(t, rows[1].Value("name"))
	assert.Nil(t, rows[2].Value("depth"))
	assert.Nil(t, rows[2].Geometry)
	assert.NoError(t, rows[2].GeometryErr)

	assert.Nil(t, rows[3].Geometry)
	assert.Error(t, rows[3].GeometryErr)
}

func TestCSVDriver_PlainTable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "owners.csv", "owner_id,code\n7,007\n8,abc\n")

	res, err := NewCSVDriver().Open(context.Background(), path)
	require.NoError(t, err)
	h := res.Members[0].Handle

	assert.Equal(t, GeometryNone, h.GeometryType)
	code, _ := h.Field("code")
	assert.Equal(t, FieldString, code.Type)

	rows := collectRows(t, h)
	require.Len(t, rows, 2)
	assert.Equal(t, "007", rows[0].Value("code"))
	assert.Equal(t, int64(7), rows[0].Value("owner_id"))
}

func TestCSVDriver_Malformed(t *testing.T) {
	dir := t.TempDir()

	_, err := NewCSVDriver().Open(context.Background(), writeFile(t, dir, "ragged.csv", "a,b\n1\n"))
	var uf *UnsupportedFormatError
	assert.ErrorAs(t, err, &uf)

	_, err = NewCSVDriver().Open(context.Background(), writeFile(t, dir, "empty.csv", ""))
	assert.ErrorAs(t, err, &uf)
}
