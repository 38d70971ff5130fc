package dataset

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirectoryDriver treats a folder as a workspace of the files its member
// drivers recognise. Container files such as GeoPackages expand into their
// layers. Subdirectories and hidden files are ignored.
type DirectoryDriver struct {
	drivers []Driver
}

// NewDirectoryDriver creates a directory driver over the given file drivers
func NewDirectoryDriver(drivers ...Driver) *DirectoryDriver {
	return &DirectoryDriver{drivers: drivers}
}

func (d *DirectoryDriver) Name() string { return "directory" }

func (d *DirectoryDriver) Probe(path string) bool {
	if isRemote(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (d *DirectoryDriver) Open(ctx context.Context, path string) (*Resolution, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, unsupported(path, "cannot list directory", err)
	}

	res := &Resolution{Path: path, Workspace: true}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(path, e.Name())
		driver := d.driverFor(full)
		if driver == nil {
			continue
		}

		sub, err := driver.Open(ctx, full)
		if err != nil {
			res.Members = append(res.Members, Member{Name: e.Name(), Path: full, Err: err})
			continue
		}
		for _, m := range sub.Members {
			name := e.Name()
			if sub.Workspace {
				name = e.Name() + "/" + m.Name
			}
			m.Name = name
			if m.Handle != nil {
				m.Handle.Name = name
			}
			res.Members = append(res.Members, m)
		}
	}

	sortMembers(res.Members)
	return res, nil
}

func (d *DirectoryDriver) driverFor(path string) Driver {
	for _, drv := range d.drivers {
		if drv.Probe(path) {
			return drv
		}
	}
	return nil
}
