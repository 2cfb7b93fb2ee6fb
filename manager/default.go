package manager

import (
	"context"
	"io"

	"github.com/gobeaver/diskkit"
)

// DefaultOperator forwards every operation to the current default disk of
// its manager. Changing the default disk redirects subsequent calls.
type DefaultOperator struct {
	m *StorageManager
}

var _ diskkit.Operator = (*DefaultOperator)(nil)

// Default returns an Operator bound to the default disk.
func (m *StorageManager) Default() *DefaultOperator {
	return &DefaultOperator{m: m}
}

func (d *DefaultOperator) disk() (diskkit.Disk, error) {
	return d.m.DefaultDisk()
}

func (d *DefaultOperator) FileExists(ctx context.Context, path string) (bool, error) {
	disk, err := d.disk()
	if err != nil {
		return false, err
	}
	return disk.FileExists(ctx, path)
}

func (d *DefaultOperator) DirectoryExists(ctx context.Context, path string) (bool, error) {
	disk, err := d.disk()
	if err != nil {
		return false, err
	}
	return disk.DirectoryExists(ctx, path)
}

func (d *DefaultOperator) Has(ctx context.Context, path string) (bool, error) {
	disk, err := d.disk()
	if err != nil {
		return false, err
	}
	return disk.Has(ctx, path)
}

func (d *DefaultOperator) Read(ctx context.Context, path string) ([]byte, error) {
	disk, err := d.disk()
	if err != nil {
		return nil, err
	}
	return disk.Read(ctx, path)
}

func (d *DefaultOperator) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	disk, err := d.disk()
	if err != nil {
		return nil, err
	}
	return disk.ReadStream(ctx, path)
}

func (d *DefaultOperator) Write(ctx context.Context, path string, contents []byte, opts ...diskkit.Option) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.Write(ctx, path, contents, opts...)
}

func (d *DefaultOperator) WriteStream(ctx context.Context, path string, r io.Reader, opts ...diskkit.Option) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.WriteStream(ctx, path, r, opts...)
}

func (d *DefaultOperator) Delete(ctx context.Context, path string) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.Delete(ctx, path)
}

func (d *DefaultOperator) DeleteDirectory(ctx context.Context, path string) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.DeleteDirectory(ctx, path)
}

func (d *DefaultOperator) CreateDirectory(ctx context.Context, path string, opts ...diskkit.Option) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.CreateDirectory(ctx, path, opts...)
}

func (d *DefaultOperator) Move(ctx context.Context, source, destination string, opts ...diskkit.Option) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.Move(ctx, source, destination, opts...)
}

func (d *DefaultOperator) Copy(ctx context.Context, source, destination string, opts ...diskkit.Option) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.Copy(ctx, source, destination, opts...)
}

func (d *DefaultOperator) SetVisibility(ctx context.Context, path string, visibility diskkit.Visibility) error {
	disk, err := d.disk()
	if err != nil {
		return err
	}
	return disk.SetVisibility(ctx, path, visibility)
}

func (d *DefaultOperator) Visibility(ctx context.Context, path string) (diskkit.Visibility, error) {
	disk, err := d.disk()
	if err != nil {
		return "", err
	}
	return disk.Visibility(ctx, path)
}

func (d *DefaultOperator) MimeType(ctx context.Context, path string) (string, error) {
	disk, err := d.disk()
	if err != nil {
		return "", err
	}
	return disk.MimeType(ctx, path)
}

func (d *DefaultOperator) LastModified(ctx context.Context, path string) (int64, error) {
	disk, err := d.disk()
	if err != nil {
		return 0, err
	}
	return disk.LastModified(ctx, path)
}

func (d *DefaultOperator) FileSize(ctx context.Context, path string) (int64, error) {
	disk, err := d.disk()
	if err != nil {
		return 0, err
	}
	return disk.FileSize(ctx, path)
}

func (d *DefaultOperator) Checksum(ctx context.Context, path string, algorithm diskkit.ChecksumAlgorithm) (string, error) {
	disk, err := d.disk()
	if err != nil {
		return "", err
	}
	return disk.Checksum(ctx, path, algorithm)
}

func (d *DefaultOperator) ListContents(ctx context.Context, path string, deep bool) *diskkit.DirectoryListing {
	disk, err := d.disk()
	if err != nil {
		return failed(err)
	}
	return disk.ListContents(ctx, path, deep)
}

func (d *DefaultOperator) ListContentsWithMimeType(ctx context.Context, path string, deep bool) *diskkit.DirectoryListing {
	disk, err := d.disk()
	if err != nil {
		return failed(err)
	}
	return disk.ListContentsWithMimeType(ctx, path, deep)
}

func failed(err error) *diskkit.DirectoryListing {
	return diskkit.NewDirectoryListing(func(yield func(diskkit.StorageAttributes, error) bool) {
		yield(nil, err)
	})
}
