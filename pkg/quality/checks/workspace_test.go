package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

func layer(name string, srid int) *dataset.Handle {
	return dataset.NewMemoryHandle(name, dataset.GeometryPolygon, dataset.SpatialRef{SRID: srid}, nil, nil)
}

func TestSpatialReferenceConsistencyRule(t *testing.T) {
	rule := NewSpatialReferenceConsistencyRule(nil)
	ctx := context.Background()

	findings, err := rule.RunWorkspace(ctx, []*dataset.Handle{
		layer("a", 4326),
		layer("b", 4326),
		layer("c", 3857),
		tableHandle("owners", nil),
	})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, quality.DatasetTarget("c"), findings[0].Target)
	assert.Equal(t, "Dataset 'c' uses EPSG:3857 while a, b use EPSG:4326", findings[0].Message)
	assert.Equal(t, quality.CategoryWorkspace, findings[0].Category)

	findings, err = rule.RunWorkspace(ctx, []*dataset.Handle{layer("a", 4326), layer("b", 0)})
	require.NoError(t, err)
	require.Len(t, findings, 1, "ties keep the first reference")
	assert.Equal(t, "b", findings[0].Target.Dataset)
	assert.Contains(t, findings[0].Message, "Unknown")
}

func TestSpatialReferenceConsistencyRule_NoFindings(t *testing.T) {
	rule := NewSpatialReferenceConsistencyRule(nil)
	ctx := context.Background()

	tests := map[string][]*dataset.Handle{
		"empty":       nil,
		"single":      {layer("a", 4326)},
		"consistent":  {layer("a", 2193), layer("b", 2193)},
		"tables only": {tableHandle("x", nil), tableHandle("y", nil)},
	}
	for name, handles := range tests {
		t.Run(name, func(t *testing.T) {
			findings, err := rule.RunWorkspace(ctx, handles)
			require.NoError(t, err)
			assert.Empty(t, findings)
		})
	}

	cfg := configWith(func(c *quality.Config) {
		c.Datasets = map[string]quality.DatasetOverride{
			"c": {Rules: map[string]bool{"spatial-reference-consistency": false}},
		}
	})
	findings, err := NewSpatialReferenceConsistencyRule(cfg).RunWorkspace(ctx, []*dataset.Handle{
		layer("a", 4326), layer("b", 4326), layer("c", 3857),
	})
	require.NoError(t, err)
	assert.Empty(t, findings, "excluded datasets take no part")
}

func TestRegister(t *testing.T) {
	registry, err := NewRegistry(nil)
	require.NoError(t, err)
	assert.Equal(t, 16, registry.Len())
	require.Len(t, registry.WorkspaceRules(), 1)

	ids := make([]string, 0)
	for _, r := range registry.Rules() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{
		"required-fields", "field-types", "field-names", "spatial-reference",
		"required-values", "domain-values", "duplicate-keys", "duplicate-attributes",
		"completeness", "value-types",
		"null-geometry", "self-intersection", "coordinate-bounds", "feature-complexity", "duplicate-geometry",
	}, ids)

	err = Register(registry, nil)
	var dup *quality.DuplicateRuleError
	assert.ErrorAs(t, err, &dup)

	cfg := configWith(func(c *quality.Config) {
		c.Rules["spatial-reference-consistency"] = false
	})
	registry, err = NewRegistry(cfg)
	require.NoError(t, err)
	assert.Empty(t, registry.WorkspaceRules())
}

func TestRuleMetadata(t *testing.T) {
	for _, r := range Default(nil) {
		assert.NotEmpty(t, r.Description(), r.ID())
		assert.Contains(t, []quality.Category{quality.CategorySchema, quality.CategoryAttribute, quality.CategoryGeometry}, r.Category(), r.ID())
		assert.Contains(t, quality.Severities, r.Severity(), r.ID())
	}
}
