package diskkit

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// URLResolver derives the public base URL of a local root directory.
type URLResolver interface {
	// ResolveBaseURL returns the URL under which root is served, and false
	// when root is not publicly reachable.
	ResolveBaseURL(root string) (string, bool)
}

// DocumentRootResolver maps directories below a web server document root to
// URLs below BaseURL.
type DocumentRootResolver struct {
	// DocumentRoot is the directory served at BaseURL. Relative paths are
	// resolved against the working directory.
	DocumentRoot string
	// BaseURL is the absolute URL of DocumentRoot, e.g. "https://example.com".
	BaseURL string
}

func (r DocumentRootResolver) ResolveBaseURL(root string) (string, bool) {
	if r.DocumentRoot == "" || r.BaseURL == "" {
		return "", false
	}
	docRoot, err := filepath.Abs(r.DocumentRoot)
	if err != nil {
		return "", false
	}
	root = filepath.Clean(root)
	if root != docRoot && !strings.HasPrefix(root, docRoot+string(filepath.Separator)) {
		return "", false
	}
	rest := filepath.ToSlash(strings.TrimPrefix(root, docRoot))
	return strings.TrimRight(r.BaseURL, "/") + "/" + strings.Trim(rest, "/"), true
}

// LocalFilesystem is a Filesystem over a LocalAdapter. It exposes the OS
// paths and metadata of its files and can serve them over HTTP.
type LocalFilesystem struct {
	*Filesystem
	local LocalAdapter

	resolver     URLResolver
	mu           sync.Mutex
	baseURL      string
	hasBaseURL   bool
	baseResolved bool
}

// NewLocalFilesystem returns a LocalFilesystem over adapter.
func NewLocalFilesystem(adapter LocalAdapter, options ...FilesystemOption) *LocalFilesystem {
	l := &LocalFilesystem{
		Filesystem: NewFilesystem(adapter, options...),
		local:      adapter,
	}
	l.Filesystem.outer = l
	return l
}

// LocalAdapter returns the adapter with its local capabilities.
func (l *LocalFilesystem) LocalAdapter() LocalAdapter {
	return l.local
}

// AbsolutePath returns the OS path of path. An empty path is the root.
func (l *LocalFilesystem) AbsolutePath(path string) (string, error) {
	p, err := l.normalize("absolutepath", path)
	if err != nil {
		return "", err
	}
	return l.local.AbsolutePath(p), nil
}

// FileInfo returns the OS metadata of path without following links.
func (l *LocalFilesystem) FileInfo(ctx context.Context, path string) (fs.FileInfo, error) {
	p, err := l.normalize("fileinfo", path)
	if err != nil {
		return nil, err
	}
	return l.local.FileInfo(ctx, p)
}

// StorageAttributes resolves the portable attributes of path.
func (l *LocalFilesystem) StorageAttributes(ctx context.Context, path string) (StorageAttributes, error) {
	p, err := l.normalize("storageattributes", path)
	if err != nil {
		return nil, err
	}
	return l.local.StorageAttributes(ctx, p)
}

// Contents returns the file contents, or nil when the file is missing or
// unreadable.
func (l *LocalFilesystem) Contents(ctx context.Context, path string) []byte {
	ok, err := l.FileExists(ctx, path)
	if err != nil || !ok {
		return nil
	}
	data, err := l.Read(ctx, path)
	if err != nil {
		return nil
	}
	return data
}

// SetURLResolver sets the resolver used to compute the base URL and drops
// any base URL resolved earlier.
func (l *LocalFilesystem) SetURLResolver(resolver URLResolver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolver = resolver
	l.baseResolved = false
	l.hasBaseURL = false
	l.baseURL = ""
}

// SetBaseURL overrides the base URL of the disk.
func (l *LocalFilesystem) SetBaseURL(baseURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseURL = baseURL
	l.hasBaseURL = true
	l.baseResolved = true
}

// URL returns the public URL of path, and false when the disk root is not
// reachable over HTTP. The base URL is resolved once and cached.
func (l *LocalFilesystem) URL(path string) (string, bool) {
	base, ok := l.resolveBaseURL()
	if !ok {
		return "", false
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(filepath.ToSlash(path), "/"), true
}

func (l *LocalFilesystem) resolveBaseURL() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.baseResolved {
		l.baseResolved = true
		if l.resolver != nil {
			l.baseURL, l.hasBaseURL = l.resolver.ResolveBaseURL(l.local.AbsolutePath(""))
		}
	}
	return l.baseURL, l.hasBaseURL
}
