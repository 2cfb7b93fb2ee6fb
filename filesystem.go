package diskkit

import (
	"context"
	"fmt"
	"io"
)

// Operator is the uniform set of file operations every disk exposes.
type Operator interface {
	FileExists(ctx context.Context, path string) (bool, error)
	DirectoryExists(ctx context.Context, path string) (bool, error)
	// Has reports whether a file or a directory exists at path.
	Has(ctx context.Context, path string) (bool, error)

	Read(ctx context.Context, path string) ([]byte, error)
	ReadStream(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, contents []byte, opts ...Option) error
	WriteStream(ctx context.Context, path string, r io.Reader, opts ...Option) error
	Delete(ctx context.Context, path string) error
	DeleteDirectory(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string, opts ...Option) error
	Move(ctx context.Context, source, destination string, opts ...Option) error
	Copy(ctx context.Context, source, destination string, opts ...Option) error

	SetVisibility(ctx context.Context, path string, visibility Visibility) error
	Visibility(ctx context.Context, path string) (Visibility, error)
	MimeType(ctx context.Context, path string) (string, error)
	// LastModified returns the modification time in unix seconds.
	LastModified(ctx context.Context, path string) (int64, error)
	FileSize(ctx context.Context, path string) (int64, error)
	Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error)

	ListContents(ctx context.Context, path string, deep bool) *DirectoryListing
	// ListContentsWithMimeType is ListContents with the MIME type resolved
	// for every file entry.
	ListContentsWithMimeType(ctx context.Context, path string, deep bool) *DirectoryListing
}

// DefaultDiskSetter is the part of a storage manager a disk needs to promote
// itself to default.
type DefaultDiskSetter interface {
	SetDefaultDisk(disk Disk) error
}

// Disk is an Operator bound to a concrete Adapter that can be registered
// with a storage manager.
type Disk interface {
	Operator

	// Adapter returns the backend serving this disk.
	Adapter() Adapter

	// AsDefault makes this disk the default of the manager it is
	// registered with.
	AsDefault() error

	// SetStorageManager records the manager owning this disk.
	SetStorageManager(manager DefaultDiskSetter)
}

// Driver turns backend specific arguments into a ready disk.
type Driver interface {
	Open(args ...any) (Disk, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(args ...any) (Disk, error)

func (f DriverFunc) Open(args ...any) (Disk, error) {
	return f(args...)
}

// FilesystemOption configures a Filesystem.
type FilesystemOption func(*Filesystem)

// WithDefaults sets write options applied before the per-call ones.
func WithDefaults(opts ...Option) FilesystemOption {
	return func(f *Filesystem) {
		f.defaults = append(f.defaults, opts...)
	}
}

// WithPathNormalizer replaces the default path normalizer.
func WithPathNormalizer(n PathNormalizer) FilesystemOption {
	return func(f *Filesystem) {
		if n != nil {
			f.normalizer = n
		}
	}
}

// Filesystem is the Disk facade over an Adapter. Caller paths are
// normalized before they reach the adapter.
type Filesystem struct {
	adapter    Adapter
	defaults   []Option
	normalizer PathNormalizer
	owner      DefaultDiskSetter

	// outer is the value handed to the manager by AsDefault, so that
	// wrapping types are promoted rather than the embedded Filesystem.
	outer Disk
}

// NewFilesystem returns a Filesystem over adapter.
func NewFilesystem(adapter Adapter, options ...FilesystemOption) *Filesystem {
	f := &Filesystem{
		adapter:    adapter,
		normalizer: WhitespacePathNormalizer{},
	}
	for _, option := range options {
		option(f)
	}
	f.outer = f
	return f
}

func (f *Filesystem) Adapter() Adapter {
	return f.adapter
}

func (f *Filesystem) SetStorageManager(manager DefaultDiskSetter) {
	f.owner = manager
}

// StorageManager returns the manager the disk is registered with, or nil.
func (f *Filesystem) StorageManager() DefaultDiskSetter {
	return f.owner
}

func (f *Filesystem) AsDefault() error {
	if f.owner == nil {
		return ErrNoStorageManager
	}
	return f.owner.SetDefaultDisk(f.outer)
}

func (f *Filesystem) normalize(op, p string) (string, error) {
	normalized, err := f.normalizer.NormalizePath(p)
	if err != nil {
		return "", WrapPathErr(op, p, err)
	}
	return normalized, nil
}

func (f *Filesystem) options(opts []Option) *Options {
	if len(f.defaults) == 0 {
		return ApplyOptions(opts...)
	}
	all := make([]Option, 0, len(f.defaults)+len(opts))
	all = append(all, f.defaults...)
	all = append(all, opts...)
	return ApplyOptions(all...)
}

func (f *Filesystem) FileExists(ctx context.Context, path string) (bool, error) {
	p, err := f.normalize("fileexists", path)
	if err != nil {
		return false, err
	}
	return f.adapter.FileExists(ctx, p)
}

func (f *Filesystem) DirectoryExists(ctx context.Context, path string) (bool, error) {
	p, err := f.normalize("directoryexists", path)
	if err != nil {
		return false, err
	}
	return f.adapter.DirectoryExists(ctx, p)
}

func (f *Filesystem) Has(ctx context.Context, path string) (bool, error) {
	p, err := f.normalize("has", path)
	if err != nil {
		return false, err
	}
	ok, err := f.adapter.FileExists(ctx, p)
	if err != nil || ok {
		return ok, err
	}
	return f.adapter.DirectoryExists(ctx, p)
}

func (f *Filesystem) Read(ctx context.Context, path string) ([]byte, error) {
	p, err := f.normalize("read", path)
	if err != nil {
		return nil, err
	}
	return f.adapter.Read(ctx, p)
}

func (f *Filesystem) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	p, err := f.normalize("readstream", path)
	if err != nil {
		return nil, err
	}
	return f.adapter.ReadStream(ctx, p)
}

func (f *Filesystem) Write(ctx context.Context, path string, contents []byte, opts ...Option) error {
	p, err := f.normalize("write", path)
	if err != nil {
		return err
	}
	return f.adapter.Write(ctx, p, contents, f.options(opts))
}

func (f *Filesystem) WriteStream(ctx context.Context, path string, r io.Reader, opts ...Option) error {
	p, err := f.normalize("writestream", path)
	if err != nil {
		return err
	}
	return f.adapter.WriteStream(ctx, p, r, f.options(opts))
}

func (f *Filesystem) Delete(ctx context.Context, path string) error {
	p, err := f.normalize("delete", path)
	if err != nil {
		return err
	}
	return f.adapter.Delete(ctx, p)
}

func (f *Filesystem) DeleteDirectory(ctx context.Context, path string) error {
	p, err := f.normalize("deletedirectory", path)
	if err != nil {
		return err
	}
	return f.adapter.DeleteDirectory(ctx, p)
}

func (f *Filesystem) CreateDirectory(ctx context.Context, path string, opts ...Option) error {
	p, err := f.normalize("createdirectory", path)
	if err != nil {
		return err
	}
	return f.adapter.CreateDirectory(ctx, p, f.options(opts))
}

func (f *Filesystem) Move(ctx context.Context, source, destination string, opts ...Option) error {
	src, err := f.normalize("move", source)
	if err != nil {
		return err
	}
	dst, err := f.normalize("move", destination)
	if err != nil {
		return err
	}
	return f.adapter.Move(ctx, src, dst, f.options(opts))
}

func (f *Filesystem) Copy(ctx context.Context, source, destination string, opts ...Option) error {
	src, err := f.normalize("copy", source)
	if err != nil {
		return err
	}
	dst, err := f.normalize("copy", destination)
	if err != nil {
		return err
	}
	return f.adapter.Copy(ctx, src, dst, f.options(opts))
}

func (f *Filesystem) SetVisibility(ctx context.Context, path string, visibility Visibility) error {
	p, err := f.normalize("setvisibility", path)
	if err != nil {
		return err
	}
	if !visibility.Valid() {
		return &PathError{Op: "setvisibility", Path: path, Err: fmt.Errorf("%w: visibility %q", ErrNotSupported, visibility)}
	}
	return f.adapter.SetVisibility(ctx, p, visibility)
}

func (f *Filesystem) Visibility(ctx context.Context, path string) (Visibility, error) {
	p, err := f.normalize("visibility", path)
	if err != nil {
		return "", err
	}
	attrs, err := f.adapter.Visibility(ctx, p)
	if err != nil {
		return "", err
	}
	if attrs.Visibility() == "" {
		return "", &UnableToGetStorageAttributes{Path: path, Err: fmt.Errorf("visibility unknown")}
	}
	return attrs.Visibility(), nil
}

func (f *Filesystem) MimeType(ctx context.Context, path string) (string, error) {
	p, err := f.normalize("mimetype", path)
	if err != nil {
		return "", err
	}
	attrs, err := f.adapter.MimeType(ctx, p)
	if err != nil {
		return "", err
	}
	if attrs.MimeType() == "" {
		return "", &PathError{Op: "mimetype", Path: path, Err: ErrUnknownMimeType}
	}
	return attrs.MimeType(), nil
}

func (f *Filesystem) LastModified(ctx context.Context, path string) (int64, error) {
	p, err := f.normalize("lastmodified", path)
	if err != nil {
		return 0, err
	}
	attrs, err := f.adapter.LastModified(ctx, p)
	if err != nil {
		return 0, err
	}
	ts, ok := attrs.LastModified()
	if !ok {
		return 0, &UnableToGetStorageAttributes{Path: path, Err: fmt.Errorf("last modified unknown")}
	}
	return ts, nil
}

func (f *Filesystem) FileSize(ctx context.Context, path string) (int64, error) {
	p, err := f.normalize("filesize", path)
	if err != nil {
		return 0, err
	}
	attrs, err := f.adapter.FileSize(ctx, p)
	if err != nil {
		return 0, err
	}
	size, ok := attrs.FileSize()
	if !ok {
		return 0, &UnableToGetStorageAttributes{Path: path, Err: fmt.Errorf("file size unknown")}
	}
	return size, nil
}

// Checksum uses the adapter's native checksum when available and otherwise
// hashes the streamed contents.
func (f *Filesystem) Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error) {
	p, err := f.normalize("checksum", path)
	if err != nil {
		return "", err
	}
	if cs, ok := f.adapter.(CanChecksum); ok {
		return cs.Checksum(ctx, p, algorithm)
	}

	rc, err := f.adapter.ReadStream(ctx, p)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	sum, err := CalculateChecksum(rc, algorithm)
	if err != nil {
		return "", WrapPathErr("checksum", path, err)
	}
	return sum, nil
}

func (f *Filesystem) ListContents(ctx context.Context, path string, deep bool) *DirectoryListing {
	p, err := f.normalize("listcontents", path)
	if err != nil {
		return failedListing(err)
	}
	return NewDirectoryListing(f.adapter.ListContents(ctx, p, deep))
}

// ListContentsWithMimeType decorates file entries with their MIME type. An
// entry whose type cannot be resolved is yielded undecorated.
func (f *Filesystem) ListContentsWithMimeType(ctx context.Context, path string, deep bool) *DirectoryListing {
	return f.ListContents(ctx, path, deep).Map(func(attrs StorageAttributes) StorageAttributes {
		file, ok := attrs.(*FileAttributes)
		if !ok {
			return attrs
		}
		resolved, err := f.adapter.MimeType(ctx, file.Path())
		if err != nil || resolved.MimeType() == "" {
			return attrs
		}
		return file.WithMimeType(resolved.MimeType())
	})
}

// Watch returns a change token for pattern when the adapter supports it.
func (f *Filesystem) Watch(ctx context.Context, pattern string) (ChangeToken, error) {
	w, ok := f.adapter.(CanWatch)
	if !ok {
		return nil, &PathError{Op: "watch", Path: pattern, Err: ErrNotSupported}
	}
	return w.Watch(ctx, pattern)
}
