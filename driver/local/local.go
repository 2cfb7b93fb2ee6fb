package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobeaver/diskkit"
)

// Adapter provides a local filesystem implementation of diskkit.LocalAdapter
type Adapter struct {
	root       string
	prefixer   *diskkit.PathPrefixer
	visibility diskkit.VisibilityConverter
	writeFlags WriteFlags
	links      LinkPolicy
	detector   diskkit.MimeTypeDetector
}

var (
	_ diskkit.LocalAdapter = (*Adapter)(nil)
	_ diskkit.CanChecksum  = (*Adapter)(nil)
	_ diskkit.CanWatch     = (*Adapter)(nil)
)

// New creates a local adapter from cfg. The root directory is created when
// missing.
func New(cfg Config) (*Adapter, error) {
	if cfg.Root == "" {
		return nil, diskkit.NewConfigError(DriverName, "root", "must not be empty")
	}
	if cfg.Visibility == nil {
		cfg.Visibility = diskkit.NewPortableVisibilityConverter()
	}
	if cfg.MimeTypeDetector == nil {
		cfg.MimeTypeDetector = diskkit.DefaultMimeTypeDetector{}
	}
	if cfg.Links == "" {
		cfg.Links = DisallowLinks
	}

	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &diskkit.PathError{Op: "new", Path: cfg.Root, Err: err}
	}

	// Ensure the root directory exists
	dirPerm := cfg.Visibility.ForDirectory(cfg.Visibility.DefaultForDirectories())
	if err := os.MkdirAll(absRoot, dirPerm); err != nil {
		return nil, &diskkit.PathError{Op: "new", Path: cfg.Root, Err: mapOSError(err)}
	}

	return &Adapter{
		root:       absRoot,
		prefixer:   diskkit.NewPathPrefixer(absRoot, string(filepath.Separator)),
		visibility: cfg.Visibility,
		writeFlags: cfg.WriteFlags,
		links:      cfg.Links,
		detector:   cfg.MimeTypeDetector,
	}, nil
}

// Root returns the absolute root directory.
func (a *Adapter) Root() string {
	return a.root
}

// AbsolutePath implements diskkit.LocalAdapter
func (a *Adapter) AbsolutePath(path string) string {
	return a.prefixer.PrefixPath(path)
}

// fullPath resolves path under the root and refuses anything outside it.
func (a *Adapter) fullPath(op, path string) (string, error) {
	full := filepath.Clean(a.prefixer.PrefixPath(path))
	if !isPathUnderRoot(a.root, full) {
		return "", &diskkit.PathError{Op: op, Path: path, Err: diskkit.ErrNotAllowed}
	}
	return full, nil
}

// FileExists implements diskkit.Adapter
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx, "fileexists", path); err != nil {
		return false, err
	}
	full, err := a.fullPath("fileexists", path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &diskkit.PathError{Op: "fileexists", Path: path, Err: mapOSError(err)}
	}
	return !info.IsDir(), nil
}

// DirectoryExists implements diskkit.Adapter
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx, "directoryexists", path); err != nil {
		return false, err
	}
	full, err := a.fullPath("directoryexists", path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &diskkit.PathError{Op: "directoryexists", Path: path, Err: mapOSError(err)}
	}
	return info.IsDir(), nil
}

// Read implements diskkit.Adapter
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.ReadStream(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &diskkit.PathError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// ReadStream implements diskkit.Adapter
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := checkContext(ctx, "read", path); err != nil {
		return nil, err
	}
	full, err := a.fullPath("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, &diskkit.PathError{Op: "read", Path: path, Err: mapOSError(err)}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &diskkit.PathError{Op: "read", Path: path, Err: mapOSError(err)}
	}
	if info.IsDir() {
		f.Close()
		return nil, &diskkit.PathError{Op: "read", Path: path, Err: diskkit.ErrIsDir}
	}
	return f, nil
}

// Write implements diskkit.Adapter
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, opts *diskkit.Options) error {
	return a.write(ctx, "write", path, bytes.NewReader(contents), opts)
}

// WriteStream implements diskkit.Adapter
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts *diskkit.Options) error {
	return a.write(ctx, "writestream", path, r, opts)
}

// write opens the file without truncating it, takes the configured lock and
// only then truncates, so concurrent writers never interleave.
func (a *Adapter) write(ctx context.Context, op, path string, r io.Reader, opts *diskkit.Options) (err error) {
	if err := checkContext(ctx, op, path); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	full, err := a.fullPath(op, path)
	if err != nil {
		return err
	}
	if full == a.root {
		return &diskkit.PathError{Op: op, Path: path, Err: diskkit.ErrIsDir}
	}

	if err := a.ensureDirectory(filepath.Dir(full), opts.DirectoryVisibility); err != nil {
		return &diskkit.PathError{Op: op, Path: path, Err: err}
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return &diskkit.PathError{Op: op, Path: path, Err: mapOSError(err)}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &diskkit.PathError{Op: op, Path: path, Err: cerr}
		}
	}()

	if a.writeFlags&(LockExclusive|LockShared) != 0 {
		if err := lockFile(f, a.writeFlags); err != nil {
			return &diskkit.PathError{Op: op, Path: path, Err: err}
		}
		defer unlockFile(f)
	}

	if err := f.Truncate(0); err != nil {
		return &diskkit.PathError{Op: op, Path: path, Err: err}
	}
	if _, err := io.Copy(f, r); err != nil {
		return &diskkit.PathError{Op: op, Path: path, Err: err}
	}

	if opts.Visibility != "" {
		if err := os.Chmod(full, a.visibility.ForFile(opts.Visibility)); err != nil {
			return &diskkit.PathError{Op: op, Path: path, Err: mapOSError(err)}
		}
	}
	return nil
}

// ensureDirectory creates dir and its parents with the permission of
// visibility, or of the converter default when visibility is empty.
func (a *Adapter) ensureDirectory(dir string, visibility diskkit.Visibility) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return diskkit.ErrNotDir
		}
		return nil
	}
	if visibility == "" {
		visibility = a.visibility.DefaultForDirectories()
	}
	if err := os.MkdirAll(dir, a.visibility.ForDirectory(visibility)); err != nil {
		return mapOSError(err)
	}
	return nil
}

// Delete implements diskkit.Adapter. Deleting a missing file succeeds.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := checkContext(ctx, "delete", path); err != nil {
		return err
	}
	full, err := a.fullPath("delete", path)
	if err != nil {
		return err
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &diskkit.PathError{Op: "delete", Path: path, Err: mapOSError(err)}
	}
	if info.IsDir() {
		return &diskkit.PathError{Op: "delete", Path: path, Err: diskkit.ErrIsDir}
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &diskkit.PathError{Op: "delete", Path: path, Err: mapOSError(err)}
	}
	return nil
}

// DeleteDirectory implements diskkit.Adapter. The root itself cannot be
// deleted; deleting a missing directory succeeds.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	if err := checkContext(ctx, "deletedirectory", path); err != nil {
		return err
	}
	full, err := a.fullPath("deletedirectory", path)
	if err != nil {
		return err
	}
	if full == a.root {
		return &diskkit.PathError{Op: "deletedirectory", Path: path, Err: diskkit.ErrNotAllowed}
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &diskkit.PathError{Op: "deletedirectory", Path: path, Err: mapOSError(err)}
	}
	if !info.IsDir() {
		return &diskkit.PathError{Op: "deletedirectory", Path: path, Err: diskkit.ErrNotDir}
	}

	if err := os.RemoveAll(full); err != nil {
		return &diskkit.PathError{Op: "deletedirectory", Path: path, Err: mapOSError(err)}
	}
	return nil
}

// CreateDirectory implements diskkit.Adapter
func (a *Adapter) CreateDirectory(ctx context.Context, path string, opts *diskkit.Options) error {
	if err := checkContext(ctx, "createdirectory", path); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	full, err := a.fullPath("createdirectory", path)
	if err != nil {
		return err
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = opts.DirectoryVisibility
	}

	info, err := os.Stat(full)
	switch {
	case err == nil && !info.IsDir():
		return &diskkit.PathError{Op: "createdirectory", Path: path, Err: diskkit.ErrExist}
	case err == nil:
		if visibility == "" {
			return nil
		}
	default:
		if err := a.ensureDirectory(full, visibility); err != nil {
			return &diskkit.PathError{Op: "createdirectory", Path: path, Err: err}
		}
		if visibility == "" {
			return nil
		}
	}

	// MkdirAll is subject to the umask; the leaf gets exact permissions.
	if err := os.Chmod(full, a.visibility.ForDirectory(visibility)); err != nil {
		return &diskkit.PathError{Op: "createdirectory", Path: path, Err: mapOSError(err)}
	}
	return nil
}

// SetVisibility implements diskkit.Adapter
func (a *Adapter) SetVisibility(ctx context.Context, path string, visibility diskkit.Visibility) error {
	if err := checkContext(ctx, "setvisibility", path); err != nil {
		return err
	}
	full, err := a.fullPath("setvisibility", path)
	if err != nil {
		return err
	}

	info, err := os.Stat(full)
	if err != nil {
		return &diskkit.PathError{Op: "setvisibility", Path: path, Err: mapOSError(err)}
	}

	perm := a.visibility.ForFile(visibility)
	if info.IsDir() {
		perm = a.visibility.ForDirectory(visibility)
	}
	if err := os.Chmod(full, perm); err != nil {
		return &diskkit.PathError{Op: "setvisibility", Path: path, Err: mapOSError(err)}
	}
	return nil
}

// Visibility implements diskkit.Adapter
func (a *Adapter) Visibility(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	info, err := a.stat(ctx, "visibility", path)
	if err != nil {
		return nil, err
	}
	visibility := a.visibility.InverseForFile(info.Mode().Perm())
	if info.IsDir() {
		visibility = a.visibility.InverseForDirectory(info.Mode().Perm())
	}
	return diskkit.NewFileAttributes(path).WithVisibility(visibility), nil
}

// MimeType implements diskkit.Adapter
func (a *Adapter) MimeType(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	rc, err := a.ReadStream(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	mimeType, err := diskkit.DetectMimeType(a.detector, path, rc)
	if err != nil {
		return nil, &diskkit.PathError{Op: "mimetype", Path: path, Err: err}
	}
	if mimeType == "" {
		return nil, &diskkit.PathError{Op: "mimetype", Path: path, Err: diskkit.ErrUnknownMimeType}
	}
	return diskkit.NewFileAttributes(path).WithMimeType(mimeType), nil
}

// LastModified implements diskkit.Adapter
func (a *Adapter) LastModified(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	info, err := a.stat(ctx, "lastmodified", path)
	if err != nil {
		return nil, err
	}
	return diskkit.NewFileAttributes(path).WithLastModified(info.ModTime().Unix()), nil
}

// FileSize implements diskkit.Adapter
func (a *Adapter) FileSize(ctx context.Context, path string) (*diskkit.FileAttributes, error) {
	info, err := a.stat(ctx, "filesize", path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &diskkit.PathError{Op: "filesize", Path: path, Err: diskkit.ErrIsDir}
	}
	return diskkit.NewFileAttributes(path).WithSize(info.Size()), nil
}

func (a *Adapter) stat(ctx context.Context, op, path string) (fs.FileInfo, error) {
	if err := checkContext(ctx, op, path); err != nil {
		return nil, err
	}
	full, err := a.fullPath(op, path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, &diskkit.PathError{Op: op, Path: path, Err: mapOSError(err)}
	}
	return info, nil
}

// FileInfo implements diskkit.LocalAdapter
func (a *Adapter) FileInfo(ctx context.Context, path string) (fs.FileInfo, error) {
	if err := checkContext(ctx, "fileinfo", path); err != nil {
		return nil, err
	}
	full, err := a.fullPath("fileinfo", path)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		return nil, &diskkit.PathError{Op: "fileinfo", Path: path, Err: mapOSError(err)}
	}
	return info, nil
}

// StorageAttributes implements diskkit.LocalAdapter. Links are refused under
// DisallowLinks and resolved to their target under SkipLinks.
func (a *Adapter) StorageAttributes(ctx context.Context, path string) (diskkit.StorageAttributes, error) {
	if err := checkContext(ctx, "storageattributes", path); err != nil {
		return nil, err
	}
	full, err := a.fullPath("storageattributes", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(full)
	if err != nil {
		return nil, &diskkit.UnableToGetStorageAttributes{Path: path, Err: mapOSError(err)}
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if a.links == DisallowLinks {
			return nil, &diskkit.SymbolicLinkEncountered{Location: path}
		}
		if info, err = os.Stat(full); err != nil {
			return nil, &diskkit.UnableToGetStorageAttributes{Path: path, Err: mapOSError(err)}
		}
	}

	rel, err := a.prefixer.StripPrefix(full)
	if err != nil {
		return nil, &diskkit.UnableToGetStorageAttributes{Path: path, Err: err}
	}
	return a.attributes(rel, info), nil
}

// attributes maps OS metadata onto the portable model.
func (a *Adapter) attributes(rel string, info fs.FileInfo) diskkit.StorageAttributes {
	perm := info.Mode().Perm()
	if info.IsDir() {
		return diskkit.NewDirectoryAttributes(rel).
			WithVisibility(a.visibility.InverseForDirectory(perm)).
			WithLastModified(info.ModTime().Unix())
	}
	return diskkit.NewFileAttributes(rel).
		WithSize(info.Size()).
		WithVisibility(a.visibility.InverseForFile(perm)).
		WithLastModified(info.ModTime().Unix())
}

// ListContents implements diskkit.Adapter. A missing directory lists as
// empty. Symbolic links are skipped under SkipLinks and end the listing with
// *diskkit.SymbolicLinkEncountered under DisallowLinks.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) iter.Seq2[diskkit.StorageAttributes, error] {
	return func(yield func(diskkit.StorageAttributes, error) bool) {
		if err := checkContext(ctx, "listcontents", path); err != nil {
			yield(nil, err)
			return
		}
		full, err := a.fullPath("listcontents", path)
		if err != nil {
			yield(nil, err)
			return
		}

		info, err := os.Stat(full)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				yield(nil, &diskkit.PathError{Op: "listcontents", Path: path, Err: mapOSError(err)})
			}
			return
		}
		if !info.IsDir() {
			return
		}

		if deep {
			a.walk(ctx, path, full, yield)
			return
		}

		entries, err := os.ReadDir(full)
		if err != nil {
			yield(nil, &diskkit.PathError{Op: "listcontents", Path: path, Err: mapOSError(err)})
			return
		}
		for _, entry := range entries {
			attrs, skip, err := a.entry(ctx, filepath.Join(full, entry.Name()), entry)
			if skip {
				continue
			}
			if !yield(attrs, err) || err != nil {
				return
			}
		}
	}
}

func (a *Adapter) walk(ctx context.Context, path, full string, yield func(diskkit.StorageAttributes, error) bool) {
	stopped := false
	err := filepath.WalkDir(full, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if walkPath == full {
			return nil
		}

		attrs, skip, err := a.entry(ctx, walkPath, d)
		if skip {
			return nil
		}
		if !yield(attrs, err) || err != nil {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !stopped {
		yield(nil, &diskkit.PathError{Op: "listcontents", Path: path, Err: mapOSError(err)})
	}
}

// entry resolves one listed entry. skip is true for links under SkipLinks
// and for entries removed while listing.
func (a *Adapter) entry(ctx context.Context, abs string, d fs.DirEntry) (attrs diskkit.StorageAttributes, skip bool, err error) {
	if err := checkContext(ctx, "listcontents", abs); err != nil {
		return nil, false, err
	}

	rel, err := a.prefixer.StripPrefix(abs)
	if err != nil {
		return nil, false, err
	}

	if d.Type()&fs.ModeSymlink != 0 {
		if a.links == SkipLinks {
			return nil, true, nil
		}
		return nil, false, &diskkit.SymbolicLinkEncountered{Location: rel}
	}

	info, err := d.Info()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, true, nil
		}
		return nil, false, &diskkit.UnableToGetStorageAttributes{Path: rel, Err: err}
	}
	return a.attributes(rel, info), false, nil
}

// Move implements diskkit.Adapter
func (a *Adapter) Move(ctx context.Context, source, destination string, opts *diskkit.Options) error {
	if err := checkContext(ctx, "move", source); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	srcPath, err := a.fullPath("move", source)
	if err != nil {
		return err
	}
	dstPath, err := a.fullPath("move", destination)
	if err != nil {
		return err
	}

	if _, err := os.Stat(srcPath); err != nil {
		return &diskkit.PathError{Op: "move", Path: source, Err: mapOSError(err)}
	}
	if err := a.ensureDirectory(filepath.Dir(dstPath), opts.DirectoryVisibility); err != nil {
		return &diskkit.PathError{Op: "move", Path: destination, Err: err}
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return &diskkit.PathError{Op: "move", Path: source, Err: mapOSError(err)}
	}
	return nil
}

// Copy implements diskkit.Adapter. The destination keeps the source
// permissions unless a visibility is given.
func (a *Adapter) Copy(ctx context.Context, source, destination string, opts *diskkit.Options) error {
	if err := checkContext(ctx, "copy", source); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	srcPath, err := a.fullPath("copy", source)
	if err != nil {
		return err
	}
	dstPath, err := a.fullPath("copy", destination)
	if err != nil {
		return err
	}

	srcFile, err := os.Open(srcPath)
	if err != nil {
		return &diskkit.PathError{Op: "copy", Path: source, Err: mapOSError(err)}
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return &diskkit.PathError{Op: "copy", Path: source, Err: mapOSError(err)}
	}
	if srcInfo.IsDir() {
		return &diskkit.PathError{Op: "copy", Path: source, Err: diskkit.ErrIsDir}
	}

	if err := a.ensureDirectory(filepath.Dir(dstPath), opts.DirectoryVisibility); err != nil {
		return &diskkit.PathError{Op: "copy", Path: destination, Err: err}
	}

	dstFile, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return &diskkit.PathError{Op: "copy", Path: destination, Err: mapOSError(err)}
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return &diskkit.PathError{Op: "copy", Path: destination, Err: err}
	}
	if err := dstFile.Close(); err != nil {
		return &diskkit.PathError{Op: "copy", Path: destination, Err: err}
	}

	perm := srcInfo.Mode().Perm()
	if opts.Visibility != "" {
		perm = a.visibility.ForFile(opts.Visibility)
	}
	if err := os.Chmod(dstPath, perm); err != nil {
		return &diskkit.PathError{Op: "copy", Path: destination, Err: mapOSError(err)}
	}
	return nil
}

// Checksum implements diskkit.CanChecksum by streaming the file through the
// hasher.
func (a *Adapter) Checksum(ctx context.Context, path string, algorithm diskkit.ChecksumAlgorithm) (string, error) {
	rc, err := a.ReadStream(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	sum, err := diskkit.CalculateChecksum(rc, algorithm)
	if err != nil {
		return "", &diskkit.PathError{Op: "checksum", Path: path, Err: err}
	}
	return sum, nil
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func checkContext(ctx context.Context, op, path string) error {
	select {
	case <-ctx.Done():
		return &diskkit.PathError{Op: op, Path: path, Err: ctx.Err()}
	default:
		return nil
	}
}

// mapOSError translates OS errors into the package sentinels while keeping
// the original error reachable.
func mapOSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", diskkit.ErrNotExist, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %w", diskkit.ErrExist, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", diskkit.ErrPermission, err)
	default:
		return err
	}
}
