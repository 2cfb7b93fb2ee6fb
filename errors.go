package diskkit

import (
	"errors"
	"fmt"
)

// Common filesystem errors
var (
	ErrNotExist        = errors.New("file does not exist")
	ErrExist           = errors.New("file already exists")
	ErrPermission      = errors.New("permission denied")
	ErrNotDir          = errors.New("not a directory")
	ErrIsDir           = errors.New("is a directory")
	ErrNotSupported    = errors.New("operation not supported")
	ErrNotAllowed      = errors.New("operation not allowed")
	ErrPathOutsideRoot = errors.New("path is outside of the root")
	ErrPathTraversal   = errors.New("path traversal detected")
	ErrCorruptedPath   = errors.New("corrupted path")
	ErrUnknownMimeType = errors.New("unable to determine mime type")
	ErrListingConsumed = errors.New("directory listing already consumed")
)

// Registry errors
var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrDriverNotFound is returned when a disk is registered against an unknown driver name.
	ErrDriverNotFound = errors.New("driver not found")
	// ErrNoStorageManager is returned by AsDefault on a disk that was never registered.
	ErrNoStorageManager = errors.New("filesystem is not bound to a storage manager")
	// ErrNilDisk is returned when a nil disk is registered or made default.
	ErrNilDisk = errors.New("disk cannot be nil")
	// ErrEmptyDiskName is returned when a disk is registered without a name.
	// The empty name always addresses the default disk.
	ErrEmptyDiskName = errors.New("disk name cannot be empty")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// WrapPathErr wraps err in a *PathError unless it already is one.
func WrapPathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// ConfigError reports a driver argument or configuration value that could not
// be turned into a usable adapter.
type ConfigError struct {
	Driver string
	Field  string
	Err    error
}

// NewConfigError builds a *ConfigError with a formatted reason.
func NewConfigError(driver, field, format string, args ...any) *ConfigError {
	return &ConfigError{Driver: driver, Field: field, Err: fmt.Errorf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: invalid configuration: %v", e.Driver, e.Err)
	}
	return fmt.Sprintf("%s: invalid configuration for %q: %v", e.Driver, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// SymbolicLinkEncountered is returned when a symbolic link is met while the
// link policy disallows them.
type SymbolicLinkEncountered struct {
	Location string
}

func (e *SymbolicLinkEncountered) Error() string {
	return "unsupported symbolic link encountered at location " + e.Location
}

// UnableToGetStorageAttributes is returned when the metadata of a path cannot
// be read from the backend.
type UnableToGetStorageAttributes struct {
	Path string
	Err  error
}

func (e *UnableToGetStorageAttributes) Error() string {
	if e.Err == nil {
		return "unable to get storage attributes for " + e.Path
	}
	return fmt.Sprintf("unable to get storage attributes for %s: %v", e.Path, e.Err)
}

func (e *UnableToGetStorageAttributes) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsConfigError reports whether err comes from invalid driver arguments.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsSymbolicLink reports whether err is a *SymbolicLinkEncountered.
func IsSymbolicLink(err error) bool {
	var sl *SymbolicLinkEncountered
	return errors.As(err, &sl)
}
