package dataset

import "fmt"

// NotFoundError is returned when a path does not resolve to any dataset
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset not found: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("dataset not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// UnsupportedFormatError is returned when the storage driver cannot read a dataset
type UnsupportedFormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("unsupported dataset format: %s", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

func unsupported(path, reason string, err error) *UnsupportedFormatError {
	return &UnsupportedFormatError{Path: path, Reason: reason, Err: err}
}
