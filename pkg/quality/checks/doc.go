// Package checks provides the built-in quality rules.
//
// # Rule Categories
//
// Schema: required fields, field types, field names, spatial reference
// Attribute: required values, domains, duplicate keys and rows, completeness, value types
// Geometry: null and empty geometry, self-intersection, coordinate bounds, complexity, duplicates
// Workspace: spatial reference consistency across datasets
//
// # Usage Example
//
//	cfg, err := quality.LoadConfigFromDir(".")
//	if err != nil {
//		return err
//	}
//
//	registry, err := checks.NewRegistry(cfg)
//	if err != nil {
//		return err
//	}
//
//	engine := quality.NewEngine(registry)
//	findings := engine.Evaluate(ctx, handle)
//
// Rules stream rows through Handle.Rows. Memory grows with the number of
// findings, plus the distinct keys or geometries for the duplicate rules.
package checks
