package dataset

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Driver opens one family of storage formats
type Driver interface {
	// Name identifies the driver in logs
	Name() string
	// Probe reports whether the driver should handle path. It must be cheap.
	Probe(path string) bool
	// Open resolves path into one or more members
	Open(ctx context.Context, path string) (*Resolution, error)
}

// Resolution is the result of opening a path
type Resolution struct {
	Path      string
	Workspace bool
	Members   []Member
}

// Member is one dataset of a resolution. Exactly one of Handle and Err is set.
type Member struct {
	Name   string
	Path   string
	Handle *Handle
	Err    error
}

// Handles returns the readable members' handles in member order
func (r *Resolution) Handles() []*Handle {
	handles := make([]*Handle, 0, len(r.Members))
	for _, m := range r.Members {
		if m.Handle != nil {
			handles = append(handles, m.Handle)
		}
	}
	return handles
}

func sortMembers(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})
}

func single(path string, h *Handle) *Resolution {
	return &Resolution{
		Path:    path,
		Members: []Member{{Name: h.Name, Path: h.Path, Handle: h}},
	}
}

// Accessor resolves paths using an ordered list of drivers
type Accessor struct {
	drivers []Driver
}

// NewAccessor creates an accessor. The first driver whose Probe matches wins.
func NewAccessor(drivers ...Driver) *Accessor {
	return &Accessor{drivers: drivers}
}

// DefaultDrivers returns the local-file drivers in probe order
func DefaultDrivers() []Driver {
	files := []Driver{
		NewGeoPackageDriver(),
		NewXLSXDriver(),
		NewGeoJSONDriver(),
		NewCSVDriver(),
	}
	return append(files, NewDirectoryDriver(files...))
}

// Open resolves path into a single dataset or a workspace
func (a *Accessor) Open(ctx context.Context, path string) (*Resolution, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &NotFoundError{Path: path}
	}

	for _, d := range a.drivers {
		if d.Probe(path) {
			return d.Open(ctx, path)
		}
	}

	if isRemote(path) {
		scheme, _, _ := strings.Cut(path, "://")
		return nil, unsupported(path, "no storage driver for scheme "+scheme, nil)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, unsupported(path, "cannot stat path", err)
	}
	return nil, unsupported(path, "no storage driver recognises "+filepath.Ext(path), nil)
}

// statFile checks that a local dataset file exists
func statFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, unsupported(path, "cannot stat file", err)
	}
	if info.IsDir() {
		return nil, unsupported(path, "expected a file, found a directory", nil)
	}
	return info, nil
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// opener opens a fresh reader over a dataset's bytes
type opener func(ctx context.Context) (io.ReadCloser, error)

func fileOpener(path string) opener {
	return func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	}
}

func isRemote(path string) bool {
	return strings.Contains(path, "://")
}
