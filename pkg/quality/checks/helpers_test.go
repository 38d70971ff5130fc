package checks

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

var wgs84 = dataset.SpatialRef{SRID: 4326}

func field(name string, typ dataset.FieldType) dataset.FieldSpec {
	return dataset.FieldSpec{Name: name, Type: typ, Nullable: true}
}

// row builds a row from alternating field names and values
func row(fid int64, g orb.Geometry, kv ...any) dataset.Row {
	values := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i].(string)] = kv[i+1]
	}
	return dataset.Row{FID: fid, Values: values, Geometry: g}
}

func pointHandle(name string, fields []dataset.FieldSpec, rows ...dataset.Row) *dataset.Handle {
	return dataset.NewMemoryHandle(name, dataset.GeometryPoint, wgs84, fields, rows)
}

func tableHandle(name string, fields []dataset.FieldSpec, rows ...dataset.Row) *dataset.Handle {
	return dataset.NewMemoryHandle(name, dataset.GeometryNone, dataset.SpatialRef{}, fields, rows)
}

func configWith(fn func(*quality.Config)) *quality.Config {
	cfg := quality.DefaultConfig()
	fn(cfg)
	return cfg
}

// check runs rule against h after asserting it applies
func check(t *testing.T, rule quality.Rule, h *dataset.Handle) []quality.Finding {
	t.Helper()
	require.True(t, rule.AppliesTo(h), "%s should apply to %s", rule.ID(), h.Name)
	findings, err := rule.Run(context.Background(), h)
	require.NoError(t, err)
	for _, f := range findings {
		require.Equal(t, rule.ID(), f.Rule)
		require.Equal(t, rule.Category(), f.Category)
	}
	return findings
}

func featureIDs(findings []quality.Finding) []int64 {
	ids := make([]int64, len(findings))
	for i, f := range findings {
		ids[i] = f.Target.FeatureID
	}
	return ids
}
