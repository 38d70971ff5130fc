package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

// SpatialReferenceConsistencyRule checks that the feature datasets of a
// workspace share one spatial reference
type SpatialReferenceConsistencyRule struct {
	BaseRule
}

// NewSpatialReferenceConsistencyRule creates a new spatial reference consistency rule
func NewSpatialReferenceConsistencyRule(cfg *quality.Config) *SpatialReferenceConsistencyRule {
	return &SpatialReferenceConsistencyRule{
		BaseRule: newBaseRule(cfg, "spatial-reference-consistency", quality.CategoryWorkspace, quality.SeverityWarning,
			"Feature datasets in a workspace should share one spatial reference"),
	}
}

type srGroup struct {
	label string
	names []string
}

func (r *SpatialReferenceConsistencyRule) RunWorkspace(ctx context.Context, handles []*dataset.Handle) ([]quality.Finding, error) {
	findings := make([]quality.Finding, 0)

	groups := make(map[int]*srGroup)
	order := make([]int, 0)
	spatial := 0
	for _, h := range handles {
		if !h.GeometryType.IsSpatial() || !r.enabled(h) {
			continue
		}
		spatial++
		srid := h.SpatialRef.SRID
		g, ok := groups[srid]
		if !ok {
			g = &srGroup{label: h.SpatialRef.String()}
			groups[srid] = g
			order = append(order, srid)
		}
		g.names = append(g.names, h.Name)
	}
	if spatial < 2 || len(groups) < 2 {
		return findings, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ties go to the reference seen first
	majority := order[0]
	for _, srid := range order[1:] {
		if len(groups[srid].names) > len(groups[majority].names) {
			majority = srid
		}
	}
	want := groups[majority]

	for _, srid := range order {
		if srid == majority {
			continue
		}
		g := groups[srid]
		for _, name := range g.names {
			findings = append(findings, r.finding(quality.DatasetTarget(name),
				fmt.Sprintf("Dataset '%s' uses %s while %s use %s", name, g.label, strings.Join(want.names, ", "), want.label),
				fmt.Sprintf("Project the dataset to %s", want.label)))
		}
	}
	return findings, nil
}
