package diskkit

import (
	"context"
	"errors"
	"io"
	"iter"
)

// ErrReadOnly is returned when a write operation reaches a read-only adapter.
var ErrReadOnly = errors.New("disk is read-only")

// ReadOnlyAdapter wraps an Adapter and rejects every operation that would
// change the backend. Reads, listings and the optional checksum and watch
// capabilities are delegated.
//
//	adapter, _ := local.New(local.Config{Root: "/srv/assets"})
//	disk := diskkit.NewFilesystem(diskkit.NewReadOnlyAdapter(adapter))
//
//	err := disk.Write(ctx, "file.txt", data)
//	// errors.Is(err, diskkit.ErrReadOnly)
type ReadOnlyAdapter struct {
	adapter Adapter
	opts    ReadOnlyOptions
}

// ReadOnlyOptions configures a ReadOnlyAdapter.
type ReadOnlyOptions struct {
	// AllowCreateDirectory permits directory creation.
	AllowCreateDirectory bool

	// AllowDelete permits file deletion. Directory deletion stays blocked.
	AllowDelete bool

	// OnWriteAttempt is called for every blocked operation. Returning nil
	// lets the operation through; any other error replaces ErrReadOnly.
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for NewReadOnlyAdapter.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowCreateDirectory allows CreateDirectory.
func WithAllowCreateDirectory(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowCreateDirectory = allow
	}
}

// WithAllowDelete allows Delete.
func WithAllowDelete(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowDelete = allow
	}
}

// WithWriteAttemptHandler sets the handler consulted for blocked operations.
func WithWriteAttemptHandler(handler func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = handler
	}
}

// NewReadOnlyAdapter returns a read-only view of adapter.
func NewReadOnlyAdapter(adapter Adapter, opts ...ReadOnlyOption) *ReadOnlyAdapter {
	var options ReadOnlyOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &ReadOnlyAdapter{adapter: adapter, opts: options}
}

var (
	_ Adapter     = (*ReadOnlyAdapter)(nil)
	_ CanChecksum = (*ReadOnlyAdapter)(nil)
	_ CanWatch    = (*ReadOnlyAdapter)(nil)
)

// Unwrap returns the wrapped adapter.
func (r *ReadOnlyAdapter) Unwrap() Adapter {
	return r.adapter
}

func (r *ReadOnlyAdapter) deny(op, path string) error {
	if r.opts.OnWriteAttempt != nil {
		if err := r.opts.OnWriteAttempt(op, path); err != nil {
			return &PathError{Op: op, Path: path, Err: err}
		}
		return nil
	}
	return &PathError{Op: op, Path: path, Err: ErrReadOnly}
}

func (r *ReadOnlyAdapter) FileExists(ctx context.Context, path string) (bool, error) {
	return r.adapter.FileExists(ctx, path)
}

func (r *ReadOnlyAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	return r.adapter.DirectoryExists(ctx, path)
}

func (r *ReadOnlyAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	return r.adapter.Read(ctx, path)
}

func (r *ReadOnlyAdapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return r.adapter.ReadStream(ctx, path)
}

func (r *ReadOnlyAdapter) Write(ctx context.Context, path string, contents []byte, opts *Options) error {
	if err := r.deny("write", path); err != nil {
		return err
	}
	return r.adapter.Write(ctx, path, contents, opts)
}

func (r *ReadOnlyAdapter) WriteStream(ctx context.Context, path string, rd io.Reader, opts *Options) error {
	if err := r.deny("write", path); err != nil {
		return err
	}
	return r.adapter.WriteStream(ctx, path, rd, opts)
}

func (r *ReadOnlyAdapter) Delete(ctx context.Context, path string) error {
	if !r.opts.AllowDelete {
		if err := r.deny("delete", path); err != nil {
			return err
		}
	}
	return r.adapter.Delete(ctx, path)
}

func (r *ReadOnlyAdapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := r.deny("deletedirectory", path); err != nil {
		return err
	}
	return r.adapter.DeleteDirectory(ctx, path)
}

func (r *ReadOnlyAdapter) CreateDirectory(ctx context.Context, path string, opts *Options) error {
	if !r.opts.AllowCreateDirectory {
		if err := r.deny("createdirectory", path); err != nil {
			return err
		}
	}
	return r.adapter.CreateDirectory(ctx, path, opts)
}

func (r *ReadOnlyAdapter) SetVisibility(ctx context.Context, path string, visibility Visibility) error {
	if err := r.deny("setvisibility", path); err != nil {
		return err
	}
	return r.adapter.SetVisibility(ctx, path, visibility)
}

func (r *ReadOnlyAdapter) Visibility(ctx context.Context, path string) (*FileAttributes, error) {
	return r.adapter.Visibility(ctx, path)
}

func (r *ReadOnlyAdapter) MimeType(ctx context.Context, path string) (*FileAttributes, error) {
	return r.adapter.MimeType(ctx, path)
}

func (r *ReadOnlyAdapter) LastModified(ctx context.Context, path string) (*FileAttributes, error) {
	return r.adapter.LastModified(ctx, path)
}

func (r *ReadOnlyAdapter) FileSize(ctx context.Context, path string) (*FileAttributes, error) {
	return r.adapter.FileSize(ctx, path)
}

func (r *ReadOnlyAdapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[StorageAttributes, error] {
	return r.adapter.ListContents(ctx, path, deep)
}

// Move is blocked on the destination. The source is never removed.
func (r *ReadOnlyAdapter) Move(ctx context.Context, source, destination string, opts *Options) error {
	if err := r.deny("move", destination); err != nil {
		return err
	}
	return r.adapter.Move(ctx, source, destination, opts)
}

func (r *ReadOnlyAdapter) Copy(ctx context.Context, source, destination string, opts *Options) error {
	if err := r.deny("copy", destination); err != nil {
		return err
	}
	return r.adapter.Copy(ctx, source, destination, opts)
}

// Checksum delegates when the wrapped adapter hashes natively and streams
// the contents otherwise.
func (r *ReadOnlyAdapter) Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error) {
	if cs, ok := r.adapter.(CanChecksum); ok {
		return cs.Checksum(ctx, path, algorithm)
	}
	rc, err := r.adapter.ReadStream(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return CalculateChecksum(rc, algorithm)
}

// Watch delegates to the wrapped adapter or reports ErrNotSupported.
func (r *ReadOnlyAdapter) Watch(ctx context.Context, pattern string) (ChangeToken, error) {
	if w, ok := r.adapter.(CanWatch); ok {
		return w.Watch(ctx, pattern)
	}
	return nil, &PathError{Op: "watch", Path: pattern, Err: ErrNotSupported}
}

// IsReadOnlyError reports whether err was caused by a read-only adapter.
func IsReadOnlyError(err error) bool {
	return errors.Is(err, ErrReadOnly)
}
