package checks

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// isEmpty reports whether g has no coordinates. Null geometries are handled
// separately by callers. WKB has no empty point, writers encode one as
// POINT(NaN NaN).
func isEmpty(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Point:
		return math.IsNaN(geom[0]) && math.IsNaN(geom[1])
	case orb.MultiPoint:
		return len(geom) == 0
	case orb.LineString:
		return len(geom) == 0
	case orb.Ring:
		return len(geom) == 0
	case orb.MultiLineString:
		for _, ls := range geom {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.Polygon:
		for _, r := range geom {
			if len(r) > 0 {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		for _, p := range geom {
			if !isEmpty(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range geom {
			if c != nil && !isEmpty(c) {
				return false
			}
		}
		return true
	}
	return false
}

func countVertices(g orb.Geometry) int {
	switch geom := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(geom)
	case orb.LineString:
		return len(geom)
	case orb.Ring:
		return len(geom)
	case orb.MultiLineString:
		n := 0
		for _, ls := range geom {
			n += len(ls)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range geom {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range geom {
			n += countVertices(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range geom {
			n += countVertices(c)
		}
		return n
	case orb.Bound:
		return 4
	}
	return 0
}

func countParts(g orb.Geometry) int {
	switch geom := g.(type) {
	case orb.MultiPoint:
		return len(geom)
	case orb.MultiLineString:
		return len(geom)
	case orb.MultiPolygon:
		return len(geom)
	case orb.Collection:
		n := 0
		for _, c := range geom {
			n += countParts(c)
		}
		return n
	case nil:
		return 0
	}
	return 1
}

// paths returns the lines and rings of g as point sequences
func paths(g orb.Geometry) [][]orb.Point {
	switch geom := g.(type) {
	case orb.LineString:
		return [][]orb.Point{geom}
	case orb.Ring:
		return [][]orb.Point{geom}
	case orb.MultiLineString:
		out := make([][]orb.Point, 0, len(geom))
		for _, ls := range geom {
			out = append(out, ls)
		}
		return out
	case orb.Polygon:
		out := make([][]orb.Point, 0, len(geom))
		for _, r := range geom {
			out = append(out, r)
		}
		return out
	case orb.MultiPolygon:
		var out [][]orb.Point
		for _, p := range geom {
			out = append(out, paths(p)...)
		}
		return out
	case orb.Collection:
		var out [][]orb.Point
		for _, c := range geom {
			out = append(out, paths(c)...)
		}
		return out
	}
	return nil
}

// dedupe drops consecutive repeated points
func dedupe(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for i, p := range pts {
		if i > 0 && p.Equal(pts[i-1]) {
			continue
		}
		out = append(out, p)
	}
	return out
}

type segment struct {
	a, b orb.Point
	idx  int
}

func (s segment) minX() float64 { return min(s.a[0], s.b[0]) }
func (s segment) maxX() float64 { return max(s.a[0], s.b[0]) }
func (s segment) minY() float64 { return min(s.a[1], s.b[1]) }
func (s segment) maxY() float64 { return max(s.a[1], s.b[1]) }

// selfIntersects reports whether a line or ring crosses or touches itself.
// Segments sharing a vertex only count when they fold back over each other.
func selfIntersects(pts []orb.Point) bool {
	pts = dedupe(pts)
	n := len(pts) - 1
	if n < 2 {
		return false
	}
	closed := n >= 3 && pts[0].Equal(pts[n])

	// consecutive segments running back along each other
	for i := 1; i < n; i++ {
		if backtracks(pts[i-1], pts[i], pts[i+1]) {
			return true
		}
	}
	if closed && backtracks(pts[n-1], pts[0], pts[1]) {
		return true
	}

	segs := make([]segment, n)
	for i := 0; i < n; i++ {
		segs[i] = segment{a: pts[i], b: pts[i+1], idx: i}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].minX() < segs[j].minX() })

	adjacent := func(i, j int) bool {
		d := i - j
		if d < 0 {
			d = -d
		}
		return d == 1 || (closed && d == n-1)
	}

	for i := range segs {
		for j := i + 1; j < len(segs) && segs[j].minX() <= segs[i].maxX(); j++ {
			s, t := segs[i], segs[j]
			if adjacent(s.idx, t.idx) {
				continue
			}
			if s.maxY() < t.minY() || t.maxY() < s.minY() {
				continue
			}
			if segmentsIntersect(s.a, s.b, t.a, t.b) {
				return true
			}
		}
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// backtracks reports whether b->c reverses along a->b
func backtracks(a, b, c orb.Point) bool {
	if orientation(a, b, c) != 0 {
		return false
	}
	return (b[0]-a[0])*(c[0]-b[0])+(b[1]-a[1])*(c[1]-b[1]) < 0
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// segmentsIntersect reports whether segments p1p2 and q1q2 share any point
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := sign(orientation(q1, q2, p1))
	d2 := sign(orientation(q1, q2, p2))
	d3 := sign(orientation(p1, p2, q1))
	d4 := sign(orientation(p1, p2, q2))

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return d1*d2 < 0 && d3*d4 < 0
}
