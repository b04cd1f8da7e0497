package viewer

import "errors"

var (
	// ErrInvalidFileType is returned for files without an .stl extension.
	ErrInvalidFileType = errors.New("viewer: not an STL file")
	// ErrFileTooLarge is returned when a file exceeds the ingestion size limit.
	ErrFileTooLarge = errors.New("viewer: file too large")
	// ErrDecode wraps decoder failures. The displayed object is left untouched.
	ErrDecode = errors.New("viewer: cannot decode mesh")
	// ErrInvalidValue is returned by parameter setters for out-of-range values.
	ErrInvalidValue = errors.New("viewer: invalid value")
	// ErrNoModel is returned by operations that need a displayed object.
	ErrNoModel = errors.New("viewer: no model loaded")
)
