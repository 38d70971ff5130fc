package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
)

// geometryColumns are header names treated as a WKT geometry column
var geometryColumns = []string{"wkt", "geometry", "geom", "shape"}

// CSVDriver reads delimited tables. A WKT geometry column makes the table
// a feature dataset.
type CSVDriver struct{}

// NewCSVDriver creates a CSV driver
func NewCSVDriver() *CSVDriver {
	return &CSVDriver{}
}

func (d *CSVDriver) Name() string { return "csv" }

func (d *CSVDriver) Probe(path string) bool {
	return !isRemote(path) && hasExt(path, ".csv")
}

func (d *CSVDriver) Open(ctx context.Context, path string) (*Resolution, error) {
	if _, err := statFile(path); err != nil {
		return nil, err
	}

	h, err := openCSV(ctx, path, filepath.Base(path), fileOpener(path))
	if err != nil {
		return nil, err
	}
	h.SourceFile = path
	return single(path, h), nil
}

// csvLayout is the column layout derived from the header
type csvLayout struct {
	header  []string
	geomCol int
	types   []FieldType
}

func openCSV(ctx context.Context, path, name string, open opener) (*Handle, error) {
	rc, err := open(ctx)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, unsupported(path, "cannot open CSV", err)
	}
	defer rc.Close()

	r := newCSVReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, unsupported(path, "missing CSV header", err)
	}
	layout := newCSVLayout(header)

	schema := newSchemaBuilder()
	for i, col := range layout.header {
		if i != layout.geomCol {
			schema.declare(col)
		}
	}

	geomType := GeometryNone
	if layout.geomCol >= 0 {
		geomType = GeometryUnknown
	}

	var count int64
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, unsupported(path, "malformed CSV", err)
		}
		count++
		for i, cell := range record {
			if i == layout.geomCol {
				if g, err := wkt.Unmarshal(cell); err == nil {
					geomType = mergeGeometryType(geomType, GeometryTypeOf(g))
				}
				continue
			}
			schema.observe(layout.header[i], parseCell(cell))
		}
	}

	fields := schema.fields()
	layout.types = make([]FieldType, len(layout.header))
	for i, col := range layout.header {
		for _, f := range fields {
			if f.Name == col {
				layout.types[i] = f.Type
			}
		}
	}

	return &Handle{
		Path:         path,
		Name:         name,
		Format:       FormatCSV,
		GeometryType: geomType,
		Fields:       fields,
		Count:        count,
		scan:         csvScan(open, layout),
	}, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	return cr
}

func newCSVLayout(header []string) csvLayout {
	layout := csvLayout{header: make([]string, len(header)), geomCol: -1}
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		layout.header[i] = col
		if layout.geomCol >= 0 {
			continue
		}
		for _, g := range geometryColumns {
			if strings.EqualFold(col, g) {
				layout.geomCol = i
			}
		}
	}
	return layout
}

func csvScan(open opener, layout csvLayout) scanFunc {
	return func(ctx context.Context, yield func(Row) bool) error {
		rc, err := open(ctx)
		if err != nil {
			return err
		}
		defer rc.Close()

		r := newCSVReader(rc)
		if _, err := r.Read(); err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		var fid int64
		for {
			record, err := r.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			fid++
			if !yield(layout.row(fid, record)) {
				return nil
			}
		}
	}
}

func (l csvLayout) row(fid int64, record []string) Row {
	row := Row{FID: fid, Values: make(map[string]any, len(record))}
	for i, cell := range record {
		if i == l.geomCol {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			g, err := wkt.Unmarshal(cell)
			if err != nil {
				row.GeometryErr = err
				continue
			}
			row.Geometry = g
			continue
		}
		row.Values[l.header[i]] = convertCell(cell, l.types[i])
	}
	return row
}
