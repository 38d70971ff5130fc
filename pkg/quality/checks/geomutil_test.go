package checks

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestSelfIntersects(t *testing.T) {
	tests := []struct {
		name string
		pts  []orb.Point
		want bool
	}{
		{"square ring", square, false},
		{"bowtie ring", bowtie, true},
		{"triangle", []orb.Point{{0, 0}, {1, 0}, {0, 1}, {0, 0}}, false},
		{"simple line", []orb.Point{{0, 0}, {1, 1}, {2, 0}}, false},
		{"crossing line", []orb.Point{{0, 0}, {2, 2}, {2, 0}, {0, 2}}, true},
		{"backtracking line", []orb.Point{{0, 0}, {2, 0}, {1, 0}}, true},
		{"endpoint touches interior", []orb.Point{{0, 0}, {2, 0}, {2, 1}, {1, 0}}, true},
		{"repeated vertex", []orb.Point{{0, 0}, {1, 0}, {1, 0}, {1, 1}}, false},
		{"closed line", []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, false},
		{"ring spike", []orb.Point{{0, 0}, {2, 0}, {3, 0}, {2, 0}, {2, 2}, {0, 0}}, true},
		{"single segment", []orb.Point{{0, 0}, {1, 1}}, false},
		{"ring touching itself at a vertex", []orb.Point{{0, 0}, {2, 2}, {4, 0}, {4, 4}, {2, 2}, {0, 4}, {0, 0}}, true},
		{"collinear overlap of distant segments", []orb.Point{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 0}, {3, 0}}, true},
		{"closing segment meets first segment", []orb.Point{{0, 0}, {3, 0}, {3, 3}, {0, 0}}, false},
		{"concave comb ring", []orb.Point{{0, 0}, {4, 0}, {4, 3}, {3, 1}, {2, 3}, {1, 1}, {0, 3}, {0, 0}}, false},
		{"star ring", []orb.Point{
			{0, 3}, {1, 1}, {3, 1}, {1.5, -0.5}, {2, -3}, {0, -1.5},
			{-2, -3}, {-1.5, -0.5}, {-3, 1}, {-1, 1}, {0, 3},
		}, false},
		{"zigzag line", []orb.Point{{0, 0}, {1, 1}, {2, 0}, {3, 1}, {4, 0}}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selfIntersects(tt.pts))
		})
	}
}

func TestGeometryCounts(t *testing.T) {
	mp := orb.MultiPolygon{{square}, {square, square}}
	assert.Equal(t, 15, countVertices(mp))
	assert.Equal(t, 2, countParts(mp))
	assert.Len(t, paths(mp), 3)

	coll := orb.Collection{orb.Point{0, 0}, orb.MultiPoint{{1, 1}, {2, 2}}}
	assert.Equal(t, 3, countVertices(coll))
	assert.Equal(t, 3, countParts(coll))
	assert.Empty(t, paths(coll))

	assert.Equal(t, 1, countParts(orb.Polygon{square}))
	assert.Equal(t, 0, countParts(nil))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, isEmpty(orb.LineString{}))
	assert.True(t, isEmpty(orb.Polygon{orb.Ring{}}))
	assert.True(t, isEmpty(orb.MultiPolygon{orb.Polygon{}}))
	assert.True(t, isEmpty(orb.Collection{}))
	assert.True(t, isEmpty(orb.MultiLineString{{}}))
	assert.True(t, isEmpty(orb.Point{math.NaN(), math.NaN()}))
	assert.False(t, isEmpty(orb.Point{0, 0}))
	assert.False(t, isEmpty(orb.Point{math.NaN(), 1}))
	assert.False(t, isEmpty(orb.Polygon{square}))
	assert.False(t, isEmpty(orb.Collection{orb.Point{1, 1}}))
}
