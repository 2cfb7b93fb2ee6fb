package diskkit

import (
	"path"
	"strings"
)

// AttributeType distinguishes files from directories in a listing.
type AttributeType string

const (
	TypeFile      AttributeType = "file"
	TypeDirectory AttributeType = "dir"
)

// StorageAttributes is the portable metadata of a single entry. It is
// implemented only by *FileAttributes and *DirectoryAttributes.
type StorageAttributes interface {
	// Path is slash-separated and never carries a trailing slash, except for
	// the root itself.
	Path() string
	Type() AttributeType
	IsFile() bool
	IsDir() bool
	// Visibility returns the empty Visibility when unknown.
	Visibility() Visibility
	// LastModified returns unix seconds and whether the value is known.
	LastModified() (int64, bool)
	// WithPath returns a copy of the attributes bound to p.
	WithPath(p string) StorageAttributes

	sealed()
}

// FileAttributes describes a file. Values are immutable; the With* methods
// return modified copies.
type FileAttributes struct {
	path         string
	size         int64
	visibility   Visibility
	lastModified int64
	hasModified  bool
	mimeType     string
}

// NewFileAttributes returns attributes for the file at p with unknown size.
func NewFileAttributes(p string) *FileAttributes {
	return &FileAttributes{path: CleanAttributePath(p), size: -1}
}

func (f *FileAttributes) sealed() {}

func (f *FileAttributes) Path() string           { return f.path }
func (f *FileAttributes) Type() AttributeType    { return TypeFile }
func (f *FileAttributes) IsFile() bool           { return true }
func (f *FileAttributes) IsDir() bool            { return false }
func (f *FileAttributes) Visibility() Visibility { return f.visibility }
func (f *FileAttributes) MimeType() string       { return f.mimeType }

func (f *FileAttributes) LastModified() (int64, bool) {
	return f.lastModified, f.hasModified
}

// FileSize returns the size in bytes and whether it is known.
func (f *FileAttributes) FileSize() (int64, bool) {
	return f.size, f.size >= 0
}

func (f *FileAttributes) WithPath(p string) StorageAttributes {
	c := *f
	c.path = CleanAttributePath(p)
	return &c
}

// WithSize returns a copy with the given size. A negative size means unknown.
func (f *FileAttributes) WithSize(size int64) *FileAttributes {
	c := *f
	if size < 0 {
		size = -1
	}
	c.size = size
	return &c
}

func (f *FileAttributes) WithVisibility(v Visibility) *FileAttributes {
	c := *f
	c.visibility = v
	return &c
}

func (f *FileAttributes) WithLastModified(unix int64) *FileAttributes {
	c := *f
	c.lastModified = unix
	c.hasModified = true
	return &c
}

func (f *FileAttributes) WithMimeType(mimeType string) *FileAttributes {
	c := *f
	c.mimeType = mimeType
	return &c
}

// DirectoryAttributes describes a directory.
type DirectoryAttributes struct {
	path         string
	visibility   Visibility
	lastModified int64
	hasModified  bool
}

// NewDirectoryAttributes returns attributes for the directory at p.
func NewDirectoryAttributes(p string) *DirectoryAttributes {
	return &DirectoryAttributes{path: CleanAttributePath(p)}
}

func (d *DirectoryAttributes) sealed() {}

func (d *DirectoryAttributes) Path() string           { return d.path }
func (d *DirectoryAttributes) Type() AttributeType    { return TypeDirectory }
func (d *DirectoryAttributes) IsFile() bool           { return false }
func (d *DirectoryAttributes) IsDir() bool            { return true }
func (d *DirectoryAttributes) Visibility() Visibility { return d.visibility }

func (d *DirectoryAttributes) LastModified() (int64, bool) {
	return d.lastModified, d.hasModified
}

func (d *DirectoryAttributes) WithPath(p string) StorageAttributes {
	c := *d
	c.path = CleanAttributePath(p)
	return &c
}

func (d *DirectoryAttributes) WithVisibility(v Visibility) *DirectoryAttributes {
	c := *d
	c.visibility = v
	return &c
}

func (d *DirectoryAttributes) WithLastModified(unix int64) *DirectoryAttributes {
	c := *d
	c.lastModified = unix
	c.hasModified = true
	return &c
}

// CleanAttributePath converts backslashes to slashes and drops trailing
// slashes. The root ("" or "/") is returned unchanged.
func CleanAttributePath(p string) string {
	if p == "" || p == "/" {
		return p
	}
	p = strings.ReplaceAll(p, `\`, "/")
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Base returns the last element of the attribute path.
func Base(attrs StorageAttributes) string {
	return path.Base(attrs.Path())
}
