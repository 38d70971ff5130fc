// Package dataset opens spatial datasets and workspaces and exposes their
// schema and rows to the quality engine.
//
// # Overview
//
// A path resolves to a Resolution. A single feature collection or table
// resolves to one member; a workspace (a directory, a GeoPackage, an XLSX
// workbook or an S3 prefix) resolves to one member per contained dataset,
// ordered by name. Members that the storage driver cannot read carry an
// *UnsupportedFormatError instead of a Handle.
//
// # Drivers
//
//	GeoJSON     .geojson, .json    streamed FeatureCollection
//	CSV         .csv               table, optional WKT geometry column
//	GeoPackage  .gpkg, x.gpkg/lyr  workspace of gpkg_contents layers
//	XLSX        .xlsx              workspace of sheets
//	Directory   any directory      workspace of supported files
//	S3          s3://bucket/key    GeoJSON/CSV objects, prefixes are workspaces
//
// # Usage Example
//
//	accessor := dataset.NewAccessor(dataset.DefaultDrivers()...)
//	res, err := accessor.Open(ctx, "parcels.gpkg")
//	if err != nil {
//		return err
//	}
//	for _, m := range res.Members {
//		if m.Err != nil {
//			continue
//		}
//		for row, err := range m.Handle.Rows(ctx) {
//			...
//		}
//	}
//
// Rows are read lazily. Every call to Handle.Rows opens its own storage
// handle and releases it when iteration stops, so a dataset can be scanned
// any number of times without loading it into memory.
package dataset
