package dataset

import "context"

// NewMemoryHandle builds a handle over rows held in memory. It backs
// generated datasets and tests.
func NewMemoryHandle(name string, geomType GeometryType, sr SpatialRef, fields []FieldSpec, rows []Row) *Handle {
	data := make([]Row, len(rows))
	copy(data, rows)

	return &Handle{
		Path:         "memory://" + name,
		Name:         name,
		Format:       FormatMemory,
		GeometryType: geomType,
		Fields:       fields,
		SpatialRef:   sr,
		Count:        int64(len(data)),
		scan: func(ctx context.Context, yield func(Row) bool) error {
			for _, row := range data {
				if !yield(row) {
					return nil
				}
			}
			return nil
		},
	}
}

// NewStreamHandle copies the metadata of base and streams rows from fn on
// every scan
func NewStreamHandle(base Handle, fn func(ctx context.Context, yield func(Row) bool) error) *Handle {
	h := base
	h.scan = fn
	return &h
}
