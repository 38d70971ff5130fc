package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/xuri/excelize/v2"
)

// XLSXDriver reads workbooks as workspaces of sheet tables. The first row
// of every sheet is its header.
type XLSXDriver struct{}

// NewXLSXDriver creates an XLSX driver
func NewXLSXDriver() *XLSXDriver {
	return &XLSXDriver{}
}

func (d *XLSXDriver) Name() string { return "xlsx" }

func (d *XLSXDriver) Probe(path string) bool {
	if isRemote(path) {
		return false
	}
	return hasExt(path, ".xlsx") || hasExt(filepath.Dir(path), ".xlsx")
}

func (d *XLSXDriver) Open(ctx context.Context, path string) (*Resolution, error) {
	file, sheet := path, ""
	if !hasExt(path, ".xlsx") {
		file, sheet = filepath.Dir(path), filepath.Base(path)
	}
	if _, err := statFile(file); err != nil {
		return nil, err
	}

	members, err := openWorkbook(file)
	if err != nil {
		return nil, err
	}

	if sheet == "" {
		return &Resolution{Path: path, Workspace: true, Members: members}, nil
	}
	for _, m := range members {
		if m.Name != sheet {
			continue
		}
		if m.Err != nil {
			return nil, m.Err
		}
		return single(path, m.Handle), nil
	}
	return nil, &NotFoundError{Path: path, Err: fmt.Errorf("sheet %q not in %s", sheet, file)}
}

func openWorkbook(file string) ([]Member, error) {
	f, err := excelize.OpenFile(file)
	if err != nil {
		return nil, unsupported(file, "cannot open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	members := make([]Member, 0, len(sheets))
	for _, sheet := range sheets {
		path := file + "/" + sheet
		h, err := describeSheet(f, file, sheet)
		if err != nil {
			members = append(members, Member{Name: sheet, Path: path, Err: unsupported(path, "cannot read sheet", err)})
			continue
		}
		members = append(members, Member{Name: sheet, Path: path, Handle: h})
	}
	sortMembers(members)
	return members, nil
}

func describeSheet(f *excelize.File, file, sheet string) (*Handle, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return nil, err
		}
		return nil, errors.New("sheet has no header row")
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, err
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
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		count++
		for i, cell := range layout.fit(record) {
			if i == layout.geomCol {
				if g, err := wkt.Unmarshal(cell); err == nil {
					geomType = mergeGeometryType(geomType, GeometryTypeOf(g))
				}
				continue
			}
			schema.observe(layout.header[i], parseCell(cell))
		}
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}

	fields := schema.fields()
	layout.types = make([]FieldType, len(layout.header))
	for i, col := range layout.header {
		for _, fs := range fields {
			if fs.Name == col {
				layout.types[i] = fs.Type
			}
		}
	}

	return &Handle{
		Path:         file + "/" + sheet,
		Name:         sheet,
		Format:       FormatXLSX,
		GeometryType: geomType,
		Fields:       fields,
		Count:        count,
		SourceFile:   file,
		scan:         sheetScan(file, sheet, layout),
	}, nil
}

func sheetScan(file, sheet string, layout csvLayout) scanFunc {
	return func(ctx context.Context, yield func(Row) bool) error {
		f, err := excelize.OpenFile(file)
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := f.Rows(sheet)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			return rows.Error()
		}
		var fid int64
		for rows.Next() {
			record, err := rows.Columns()
			if err != nil {
				return err
			}
			fid++
			if !yield(layout.row(fid, layout.fit(record))) {
				return nil
			}
		}
		return rows.Error()
	}
}

// fit pads or truncates a record to the header width. Spreadsheets omit
// trailing blank cells.
func (l csvLayout) fit(record []string) []string {
	if len(record) == len(l.header) {
		return record
	}
	out := make([]string, len(l.header))
	copy(out, record)
	return out
}
