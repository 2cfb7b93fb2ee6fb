package diskkit

import (
	"context"
	"io"
	"io/fs"
	"iter"
)

// ============================================================================
// Adapter Interfaces
// ============================================================================

// Adapter is the capability set every storage backend implements. Paths are
// relative, slash-separated and already normalized by the Filesystem facade.
//
// Every failure is returned as a *PathError, possibly wrapping one of the
// package sentinels (ErrNotExist, ErrNotDir, ...).
type Adapter interface {
	// FileExists reports whether a file exists at path.
	FileExists(ctx context.Context, path string) (bool, error)

	// DirectoryExists reports whether a directory exists at path.
	DirectoryExists(ctx context.Context, path string) (bool, error)

	// Read loads the whole file into memory.
	Read(ctx context.Context, path string) ([]byte, error)

	// ReadStream opens the file for streaming. The caller closes it.
	ReadStream(ctx context.Context, path string) (io.ReadCloser, error)

	// Write replaces the file at path with contents.
	Write(ctx context.Context, path string, contents []byte, opts *Options) error

	// WriteStream replaces the file at path with everything read from r.
	WriteStream(ctx context.Context, path string, r io.Reader, opts *Options) error

	Delete(ctx context.Context, path string) error

	// DeleteDirectory removes a directory and all its contents.
	DeleteDirectory(ctx context.Context, path string) error

	// CreateDirectory creates a directory and any missing parents.
	CreateDirectory(ctx context.Context, path string, opts *Options) error

	SetVisibility(ctx context.Context, path string, visibility Visibility) error

	Visibility(ctx context.Context, path string) (*FileAttributes, error)
	MimeType(ctx context.Context, path string) (*FileAttributes, error)
	LastModified(ctx context.Context, path string) (*FileAttributes, error)
	FileSize(ctx context.Context, path string) (*FileAttributes, error)

	// ListContents lazily yields the entries under path. When deep is true
	// all descendants are included. The sequence is finite and is not
	// restartable. A failure is yielded as the final element.
	ListContents(ctx context.Context, path string, deep bool) iter.Seq2[StorageAttributes, error]

	Move(ctx context.Context, source, destination string, opts *Options) error
	Copy(ctx context.Context, source, destination string, opts *Options) error
}

// LocalAdapter is an Adapter backed by a directory of the host filesystem.
type LocalAdapter interface {
	Adapter

	// AbsolutePath returns the OS path of path under the adapter root.
	AbsolutePath(path string) string

	// FileInfo returns the raw OS metadata of path without following links.
	FileInfo(ctx context.Context, path string) (fs.FileInfo, error)

	// StorageAttributes resolves the portable attributes of a single path.
	StorageAttributes(ctx context.Context, path string) (StorageAttributes, error)
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================
// Use type assertion to check if an adapter supports a capability:
//
//	if cs, ok := adapter.(CanChecksum); ok {
//	    cs.Checksum(ctx, path, ChecksumSHA256)
//	}

// ChecksumAlgorithm represents a supported checksum algorithm
type ChecksumAlgorithm string

const (
	// ChecksumMD5 is the MD5 hash algorithm (128-bit, fast but not cryptographically secure)
	ChecksumMD5 ChecksumAlgorithm = "md5"
	// ChecksumSHA1 is the SHA-1 hash algorithm (160-bit, legacy)
	ChecksumSHA1 ChecksumAlgorithm = "sha1"
	// ChecksumSHA256 is the SHA-256 hash algorithm (256-bit, recommended)
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	// ChecksumSHA512 is the SHA-512 hash algorithm
	ChecksumSHA512 ChecksumAlgorithm = "sha512"
	// ChecksumCRC32 is the CRC32 checksum (32-bit, fastest, for integrity only)
	ChecksumCRC32 ChecksumAlgorithm = "crc32"
	// ChecksumXXHash is the xxHash algorithm (64-bit, extremely fast)
	ChecksumXXHash ChecksumAlgorithm = "xxhash"
)

// CanChecksum indicates the adapter computes checksums natively.
type CanChecksum interface {
	// Checksum returns the hex-encoded checksum of the file at path.
	Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error)
}

// ChangeToken represents a change notification token.
//
// Consumers can either poll HasChanged or register a callback.
type ChangeToken interface {
	// HasChanged returns true if a change has occurred.
	// Once true, it remains true (tokens are single-use).
	HasChanged() bool

	// ActiveChangeCallbacks indicates if the token proactively raises callbacks.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers a callback to be invoked when change occurs.
	// Returns a function to unregister the callback.
	RegisterChangeCallback(callback func()) (unregister func())
}

// CanWatch indicates the adapter supports change notifications.
//
// Example:
//
//	if watcher, ok := adapter.(CanWatch); ok {
//	    token, err := watcher.Watch(ctx, "config/*.json")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    unregister := token.RegisterChangeCallback(reloadConfig)
//	    defer unregister()
//	}
type CanWatch interface {
	// Watch creates a change token for the glob pattern, relative to the
	// adapter root. The token fires once for the first matching change.
	Watch(ctx context.Context, pattern string) (ChangeToken, error)
}
