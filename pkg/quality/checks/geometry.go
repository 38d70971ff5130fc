package checks

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

// NullGeometryRule checks that every feature carries a usable geometry
type NullGeometryRule struct {
	BaseRule
}

// NewNullGeometryRule creates a new null geometry rule
func NewNullGeometryRule(cfg *quality.Config) *NullGeometryRule {
	return &NullGeometryRule{
		BaseRule: newBaseRule(cfg, "null-geometry", quality.CategoryGeometry, quality.SeverityError,
			"Features must have a non-empty, decodable geometry"),
	}
}

func (r *NullGeometryRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && h.GeometryType.IsSpatial()
}

func (r *NullGeometryRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	findings := make([]quality.Finding, 0)
	err := scanRows(ctx, h, func(row dataset.Row) {
		target := quality.FeatureTarget(row.FID, "")
		switch {
		case row.GeometryErr != nil:
			findings = append(findings, r.finding(target,
				fmt.Sprintf("Geometry cannot be decoded: %v", row.GeometryErr),
				"Repair or recreate the geometry"))
		case row.Geometry == nil:
			findings = append(findings, r.finding(target,
				"Geometry is null",
				"Digitize the feature or delete it"))
		case isEmpty(row.Geometry):
			findings = append(findings, r.findingWith(quality.SeverityWarning, target,
				"Geometry is empty",
				"Digitize the feature or delete it"))
		}
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// SelfIntersectionRule checks lines and polygon rings for self-intersections
type SelfIntersectionRule struct {
	BaseRule
}

// NewSelfIntersectionRule creates a new self intersection rule
func NewSelfIntersectionRule(cfg *quality.Config) *SelfIntersectionRule {
	return &SelfIntersectionRule{
		BaseRule: newBaseRule(cfg, "self-intersection", quality.CategoryGeometry, quality.SeverityError,
			"Lines and polygon rings must not intersect themselves"),
	}
}

func (r *SelfIntersectionRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && h.GeometryType.IsSpatial() && h.GeometryType != dataset.GeometryPoint
}

func (r *SelfIntersectionRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	limit := r.config.Geometry.VertexLimit
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		if row.Geometry == nil || (limit > 0 && countVertices(row.Geometry) > limit) {
			return
		}
		for _, path := range paths(row.Geometry) {
			if !selfIntersects(path) {
				continue
			}
			findings = append(findings, r.finding(quality.FeatureTarget(row.FID, ""),
				fmt.Sprintf("%s geometry intersects itself", row.Geometry.GeoJSONType()),
				"Repair the geometry so no segment crosses or touches another"))
			return
		}
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

var wgs84Bounds = quality.Bounds{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

// CoordinateBoundsRule checks that features lie inside the valid extent
type CoordinateBoundsRule struct {
	BaseRule
}

// NewCoordinateBoundsRule creates a new coordinate bounds rule
func NewCoordinateBoundsRule(cfg *quality.Config) *CoordinateBoundsRule {
	return &CoordinateBoundsRule{
		BaseRule: newBaseRule(cfg, "coordinate-bounds", quality.CategoryGeometry, quality.SeverityError,
			"Coordinates must lie within the valid extent"),
	}
}

// bounds returns the configured extent, or the lon/lat extent for
// geographic references
func (r *CoordinateBoundsRule) bounds(h *dataset.Handle) *quality.Bounds {
	if b := r.config.Geometry.Bounds; b != nil {
		return b
	}
	switch h.SpatialRef.SRID {
	case 4326, 4269:
		b := wgs84Bounds
		return &b
	}
	return nil
}

func (r *CoordinateBoundsRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && h.GeometryType.IsSpatial() && r.bounds(h) != nil
}

func (r *CoordinateBoundsRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	b := r.bounds(h)
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		if row.Geometry == nil || isEmpty(row.Geometry) {
			return
		}
		env := row.Geometry.Bound()
		if env.Min[0] >= b.MinX && env.Min[1] >= b.MinY && env.Max[0] <= b.MaxX && env.Max[1] <= b.MaxY {
			return
		}
		findings = append(findings, r.finding(quality.FeatureTarget(row.FID, ""),
			fmt.Sprintf("Envelope [%g %g, %g %g] extends outside [%g %g, %g %g]",
				env.Min[0], env.Min[1], env.Max[0], env.Max[1], b.MinX, b.MinY, b.MaxX, b.MaxY),
			"Check the coordinate system and axis order of the feature"))
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// FeatureComplexityRule flags features with too many vertices or parts
type FeatureComplexityRule struct {
	BaseRule
}

// NewFeatureComplexityRule creates a new feature complexity rule
func NewFeatureComplexityRule(cfg *quality.Config) *FeatureComplexityRule {
	return &FeatureComplexityRule{
		BaseRule: newBaseRule(cfg, "feature-complexity", quality.CategoryGeometry, quality.SeverityWarning,
			"Features should stay below the vertex and part limits"),
	}
}

func (r *FeatureComplexityRule) AppliesTo(h *dataset.Handle) bool {
	g := r.config.Geometry
	return r.enabled(h) && h.GeometryType.IsSpatial() && (g.VertexLimit > 0 || g.PartLimit > 0)
}

func (r *FeatureComplexityRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	vertexLimit := r.config.Geometry.VertexLimit
	partLimit := r.config.Geometry.PartLimit
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		if row.Geometry == nil {
			return
		}
		target := quality.FeatureTarget(row.FID, "")
		if n := countVertices(row.Geometry); vertexLimit > 0 && n > vertexLimit {
			findings = append(findings, r.finding(target,
				fmt.Sprintf("Feature has %d vertices, limit is %d", n, vertexLimit),
				"Generalize the geometry or split the feature"))
		}
		if n := countParts(row.Geometry); partLimit > 0 && n > partLimit {
			findings = append(findings, r.finding(target,
				fmt.Sprintf("Feature has %d parts, limit is %d", n, partLimit),
				"Explode the feature into single parts"))
		}
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// DuplicateGeometryRule flags features whose geometry repeats an earlier one
type DuplicateGeometryRule struct {
	BaseRule
}

// NewDuplicateGeometryRule creates a new duplicate geometry rule
func NewDuplicateGeometryRule(cfg *quality.Config) *DuplicateGeometryRule {
	return &DuplicateGeometryRule{
		BaseRule: newBaseRule(cfg, "duplicate-geometry", quality.CategoryGeometry, quality.SeverityWarning,
			"Features should not share an identical geometry"),
	}
}

func (r *DuplicateGeometryRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && h.GeometryType.IsSpatial()
}

func (r *DuplicateGeometryRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	first := make(map[[sha256.Size]byte]int64)
	findings := make([]quality.Finding, 0)
	var encodeErr error

	err := scanRows(ctx, h, func(row dataset.Row) {
		if encodeErr != nil || row.Geometry == nil || isEmpty(row.Geometry) {
			return
		}
		sum, err := geometryHash(row.Geometry)
		if err != nil {
			encodeErr = fmt.Errorf("encode geometry of feature %d: %w", row.FID, err)
			return
		}
		fid, seen := first[sum]
		if !seen {
			first[sum] = row.FID
			return
		}
		findings = append(findings, r.finding(quality.FeatureTarget(row.FID, ""),
			fmt.Sprintf("Geometry duplicates feature %d", fid),
			"Remove the duplicate feature or merge its attributes"))
	})
	if err != nil {
		return nil, err
	}
	if encodeErr != nil {
		return nil, encodeErr
	}
	return findings, nil
}

func geometryHash(g orb.Geometry) ([sha256.Size]byte, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
