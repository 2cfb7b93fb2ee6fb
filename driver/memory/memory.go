package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/gobeaver/diskkit"
)

// ErrNoSpace is returned when a write would exceed the configured MaxSize.
var ErrNoSpace = errors.New("memory storage limit exceeded")

// memoryFile represents a file stored in memory
type memoryFile struct {
	content     []byte
	contentType string
	metadata    map[string]string
	modTime     time.Time
	visibility  diskkit.Visibility
}

// memoryDir represents a directory in memory
type memoryDir struct {
	modTime    time.Time
	visibility diskkit.Visibility
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	matcher glob.Glob
	token   *diskkit.CallbackChangeToken
}

// Adapter keeps files and directories in process memory. It is safe for
// concurrent use. Useful for tests and scratch disks.
type Adapter struct {
	mu         sync.RWMutex
	files      map[string]*memoryFile
	dirs       map[string]*memoryDir
	maxSize    int64 // Maximum total storage size (0 = unlimited)
	size       int64 // Current total size
	visibility diskkit.Visibility
	detector   diskkit.MimeTypeDetector

	// Watch support
	watchMu sync.RWMutex
	watches []*watchEntry
}

var (
	_ diskkit.Adapter     = (*Adapter)(nil)
	_ diskkit.CanChecksum = (*Adapter)(nil)
	_ diskkit.CanWatch    = (*Adapter)(nil)
)

// New creates an in-memory adapter from cfg.
func New(cfg Config) *Adapter {
	if cfg.Visibility == "" {
		cfg.Visibility = diskkit.Public
	}
	if cfg.MimeTypeDetector == nil {
		cfg.MimeTypeDetector = diskkit.DefaultMimeTypeDetector{}
	}

	a := &Adapter{
		maxSize:    cfg.MaxSize,
		visibility: cfg.Visibility,
		detector:   cfg.MimeTypeDetector,
	}
	a.reset()
	return a
}

// reset must be called with the lock held.
func (a *Adapter) reset() {
	a.files = make(map[string]*memoryFile)
	a.dirs = map[string]*memoryDir{"": {modTime: time.Now(), visibility: a.visibility}}
	a.size = 0
}

// FileExists implements diskkit.Adapter
func (a *Adapter) FileExists(ctx context.Context, p string) (bool, error) {
	if err := checkContext(ctx, "fileexists", p); err != nil {
		return false, err
	}
	key, err := cleanPath("fileexists", p)
	if err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.files[key]
	return ok, nil
}

// DirectoryExists implements diskkit.Adapter
func (a *Adapter) DirectoryExists(ctx context.Context, p string) (bool, error) {
	if err := checkContext(ctx, "directoryexists", p); err != nil {
		return false, err
	}
	key, err := cleanPath("directoryexists", p)
	if err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.dirs[key]
	return ok, nil
}

// Read implements diskkit.Adapter
func (a *Adapter) Read(ctx context.Context, p string) ([]byte, error) {
	file, err := a.file(ctx, "read", p)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(file.content), nil
}

// ReadStream implements diskkit.Adapter
func (a *Adapter) ReadStream(ctx context.Context, p string) (io.ReadCloser, error) {
	file, err := a.file(ctx, "readstream", p)
	if err != nil {
		return nil, err
	}
	// Stored content is never modified in place, so the reader needs no copy.
	return io.NopCloser(bytes.NewReader(file.content)), nil
}

// file returns a snapshot of the file at p.
func (a *Adapter) file(ctx context.Context, op, p string) (memoryFile, error) {
	if err := checkContext(ctx, op, p); err != nil {
		return memoryFile{}, err
	}
	key, err := cleanPath(op, p)
	if err != nil {
		return memoryFile{}, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, ok := a.files[key]
	if !ok {
		if _, isDir := a.dirs[key]; isDir {
			return memoryFile{}, &diskkit.PathError{Op: op, Path: p, Err: diskkit.ErrIsDir}
		}
		return memoryFile{}, &diskkit.PathError{Op: op, Path: p, Err: diskkit.ErrNotExist}
	}
	return *file, nil
}

// Write implements diskkit.Adapter
func (a *Adapter) Write(ctx context.Context, p string, contents []byte, opts *diskkit.Options) error {
	return a.WriteStream(ctx, p, bytes.NewReader(contents), opts)
}

// WriteStream implements diskkit.Adapter. Writes replace existing files.
func (a *Adapter) WriteStream(ctx context.Context, p string, r io.Reader, opts *diskkit.Options) error {
	if err := checkContext(ctx, "write", p); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	key, err := cleanPath("write", p)
	if err != nil {
		return err
	}
	if key == "" {
		return &diskkit.PathError{Op: "write", Path: p, Err: diskkit.ErrIsDir}
	}

	// Read content into memory
	data, err := io.ReadAll(r)
	if err != nil {
		return &diskkit.PathError{Op: "write", Path: p, Err: err}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = a.detector.DetectMimeType(key, head(data))
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = a.visibility
	}

	file := &memoryFile{
		content:     data,
		contentType: contentType,
		metadata:    cloneMetadata(opts.Metadata),
		modTime:     time.Now(),
		visibility:  visibility,
	}
	if err := a.store("write", p, key, file, opts.DirectoryVisibility); err != nil {
		return err
	}

	a.notifyWatchers(key)
	return nil
}

// store puts file at key, creating parent directories. It enforces the size
// limit and refuses to replace a directory.
func (a *Adapter) store(op, p, key string, file *memoryFile, dirVisibility diskkit.Visibility) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isDir := a.dirs[key]; isDir {
		return &diskkit.PathError{Op: op, Path: p, Err: diskkit.ErrIsDir}
	}
	if err := a.checkParents(key); err != nil {
		return &diskkit.PathError{Op: op, Path: p, Err: err}
	}

	newSize := a.size + int64(len(file.content))
	if existing, ok := a.files[key]; ok {
		// Subtract old file size
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		return &diskkit.PathError{Op: op, Path: p, Err: ErrNoSpace}
	}

	a.ensureParentDirs(key, dirVisibility)
	a.files[key] = file
	a.size = newSize
	return nil
}

// Delete implements diskkit.Adapter. Deleting a missing file succeeds.
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if err := checkContext(ctx, "delete", p); err != nil {
		return err
	}
	key, err := cleanPath("delete", p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if _, isDir := a.dirs[key]; isDir {
		a.mu.Unlock()
		return &diskkit.PathError{Op: "delete", Path: p, Err: diskkit.ErrIsDir}
	}
	file, ok := a.files[key]
	if ok {
		a.size -= int64(len(file.content))
		delete(a.files, key)
	}
	a.mu.Unlock()

	if ok {
		a.notifyWatchers(key)
	}
	return nil
}

// DeleteDirectory implements diskkit.Adapter. The root cannot be deleted;
// deleting a missing directory succeeds.
func (a *Adapter) DeleteDirectory(ctx context.Context, p string) error {
	if err := checkContext(ctx, "deletedirectory", p); err != nil {
		return err
	}
	key, err := cleanPath("deletedirectory", p)
	if err != nil {
		return err
	}
	if key == "" {
		return &diskkit.PathError{Op: "deletedirectory", Path: p, Err: diskkit.ErrNotAllowed}
	}

	a.mu.Lock()
	if _, ok := a.dirs[key]; !ok {
		_, isFile := a.files[key]
		a.mu.Unlock()
		if isFile {
			return &diskkit.PathError{Op: "deletedirectory", Path: p, Err: diskkit.ErrNotDir}
		}
		return nil
	}

	prefix := key + "/"
	var deleted []string
	for filePath, file := range a.files {
		if strings.HasPrefix(filePath, prefix) {
			a.size -= int64(len(file.content))
			deleted = append(deleted, filePath)
			delete(a.files, filePath)
		}
	}
	for dirPath := range a.dirs {
		if dirPath == key || strings.HasPrefix(dirPath, prefix) {
			delete(a.dirs, dirPath)
		}
	}
	a.mu.Unlock()

	a.notifyWatchers(deleted...)
	return nil
}

// CreateDirectory implements diskkit.Adapter
func (a *Adapter) CreateDirectory(ctx context.Context, p string, opts *diskkit.Options) error {
	if err := checkContext(ctx, "createdirectory", p); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	key, err := cleanPath("createdirectory", p)
	if err != nil {
		return err
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = opts.DirectoryVisibility
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.files[key]; exists {
		return &diskkit.PathError{Op: "createdirectory", Path: p, Err: diskkit.ErrExist}
	}
	if err := a.checkParents(key); err != nil {
		return &diskkit.PathError{Op: "createdirectory", Path: p, Err: err}
	}

	if dir, exists := a.dirs[key]; exists {
		if visibility != "" {
			dir.visibility = visibility
		}
		return nil
	}

	a.ensureParentDirs(key, opts.DirectoryVisibility)
	if visibility == "" {
		visibility = a.visibility
	}
	a.dirs[key] = &memoryDir{modTime: time.Now(), visibility: visibility}
	return nil
}

// SetVisibility implements diskkit.Adapter
func (a *Adapter) SetVisibility(ctx context.Context, p string, visibility diskkit.Visibility) error {
	if err := checkContext(ctx, "setvisibility", p); err != nil {
		return err
	}
	key, err := cleanPath("setvisibility", p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if file, ok := a.files[key]; ok {
		// Replace rather than mutate so snapshots handed out stay stable.
		c := *file
		c.visibility = visibility
		a.files[key] = &c
		return nil
	}
	if dir, ok := a.dirs[key]; ok {
		dir.visibility = visibility
		return nil
	}
	return &diskkit.PathError{Op: "setvisibility", Path: p, Err: diskkit.ErrNotExist}
}

// Visibility implements diskkit.Adapter
func (a *Adapter) Visibility(ctx context.Context, p string) (*diskkit.FileAttributes, error) {
	if err := checkContext(ctx, "visibility", p); err != nil {
		return nil, err
	}
	key, err := cleanPath("visibility", p)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, ok := a.files[key]; ok {
		return diskkit.NewFileAttributes(p).WithVisibility(file.visibility), nil
	}
	if dir, ok := a.dirs[key]; ok {
		return diskkit.NewFileAttributes(p).WithVisibility(dir.visibility), nil
	}
	return nil, &diskkit.PathError{Op: "visibility", Path: p, Err: diskkit.ErrNotExist}
}

// MimeType implements diskkit.Adapter
func (a *Adapter) MimeType(ctx context.Context, p string) (*diskkit.FileAttributes, error) {
	file, err := a.file(ctx, "mimetype", p)
	if err != nil {
		return nil, err
	}
	if file.contentType == "" {
		return nil, &diskkit.PathError{Op: "mimetype", Path: p, Err: diskkit.ErrUnknownMimeType}
	}
	return diskkit.NewFileAttributes(p).WithMimeType(file.contentType), nil
}

// LastModified implements diskkit.Adapter
func (a *Adapter) LastModified(ctx context.Context, p string) (*diskkit.FileAttributes, error) {
	file, err := a.file(ctx, "lastmodified", p)
	if err != nil {
		return nil, err
	}
	return diskkit.NewFileAttributes(p).WithLastModified(file.modTime.Unix()), nil
}

// FileSize implements diskkit.Adapter
func (a *Adapter) FileSize(ctx context.Context, p string) (*diskkit.FileAttributes, error) {
	file, err := a.file(ctx, "filesize", p)
	if err != nil {
		return nil, err
	}
	return diskkit.NewFileAttributes(p).WithSize(int64(len(file.content))), nil
}

// Metadata returns a copy of the metadata stored with the file at p.
func (a *Adapter) Metadata(ctx context.Context, p string) (map[string]string, error) {
	file, err := a.file(ctx, "metadata", p)
	if err != nil {
		return nil, err
	}
	return cloneMetadata(file.metadata), nil
}

// ListContents implements diskkit.Adapter. Entries are yielded in path order
// from a snapshot taken when iteration starts. A missing directory lists as
// empty.
func (a *Adapter) ListContents(ctx context.Context, p string, deep bool) iter.Seq2[diskkit.StorageAttributes, error] {
	return func(yield func(diskkit.StorageAttributes, error) bool) {
		if err := checkContext(ctx, "listcontents", p); err != nil {
			yield(nil, err)
			return
		}
		key, err := cleanPath("listcontents", p)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, attrs := range a.snapshot(key, deep) {
			if err := checkContext(ctx, "listcontents", p); err != nil {
				yield(nil, err)
				return
			}
			if !yield(attrs, nil) {
				return
			}
		}
	}
}

func (a *Adapter) snapshot(key string, deep bool) []diskkit.StorageAttributes {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.dirs[key]; !ok {
		return nil
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}
	// within reports whether candidate is listed under key.
	within := func(candidate string) bool {
		if candidate == "" || !strings.HasPrefix(candidate, prefix) {
			return false
		}
		return deep || !strings.Contains(candidate[len(prefix):], "/")
	}

	var out []diskkit.StorageAttributes
	for filePath, file := range a.files {
		if within(filePath) {
			out = append(out, diskkit.NewFileAttributes(filePath).
				WithSize(int64(len(file.content))).
				WithVisibility(file.visibility).
				WithLastModified(file.modTime.Unix()).
				WithMimeType(file.contentType))
		}
	}
	for dirPath, dir := range a.dirs {
		if within(dirPath) {
			out = append(out, diskkit.NewDirectoryAttributes(dirPath).
				WithVisibility(dir.visibility).
				WithLastModified(dir.modTime.Unix()))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Path() < out[j].Path()
	})
	return out
}

// Copy implements diskkit.Adapter. The copy keeps the source visibility
// unless opts sets one.
func (a *Adapter) Copy(ctx context.Context, source, destination string, opts *diskkit.Options) error {
	if err := checkContext(ctx, "copy", source); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	dst, err := cleanPath("copy", destination)
	if err != nil {
		return err
	}
	src, err := a.file(ctx, "copy", source)
	if err != nil {
		return err
	}

	copied := &memoryFile{
		content:     src.content,
		contentType: src.contentType,
		metadata:    cloneMetadata(src.metadata),
		modTime:     time.Now(),
		visibility:  src.visibility,
	}
	if opts.Visibility != "" {
		copied.visibility = opts.Visibility
	}
	if err := a.store("copy", destination, dst, copied, opts.DirectoryVisibility); err != nil {
		return err
	}

	a.notifyWatchers(dst)
	return nil
}

// Move implements diskkit.Adapter
func (a *Adapter) Move(ctx context.Context, source, destination string, opts *diskkit.Options) error {
	if err := checkContext(ctx, "move", source); err != nil {
		return err
	}
	if opts == nil {
		opts = &diskkit.Options{}
	}
	src, err := cleanPath("move", source)
	if err != nil {
		return err
	}
	dst, err := cleanPath("move", destination)
	if err != nil {
		return err
	}

	a.mu.Lock()
	file, ok := a.files[src]
	if !ok {
		a.mu.Unlock()
		return &diskkit.PathError{Op: "move", Path: source, Err: diskkit.ErrNotExist}
	}
	if src == dst {
		a.mu.Unlock()
		return nil
	}
	if _, isDir := a.dirs[dst]; isDir {
		a.mu.Unlock()
		return &diskkit.PathError{Op: "move", Path: destination, Err: diskkit.ErrIsDir}
	}
	if err := a.checkParents(dst); err != nil {
		a.mu.Unlock()
		return &diskkit.PathError{Op: "move", Path: destination, Err: err}
	}

	moved := *file
	moved.modTime = time.Now()
	if opts.Visibility != "" {
		moved.visibility = opts.Visibility
	}
	if existing, ok := a.files[dst]; ok {
		a.size -= int64(len(existing.content))
	}
	a.ensureParentDirs(dst, opts.DirectoryVisibility)
	a.files[dst] = &moved
	delete(a.files, src)
	a.mu.Unlock()

	a.notifyWatchers(src, dst)
	return nil
}

// Checksum implements diskkit.CanChecksum
func (a *Adapter) Checksum(ctx context.Context, p string, algorithm diskkit.ChecksumAlgorithm) (string, error) {
	file, err := a.file(ctx, "checksum", p)
	if err != nil {
		return "", err
	}

	checksum, err := diskkit.CalculateChecksum(bytes.NewReader(file.content), algorithm)
	if err != nil {
		return "", &diskkit.PathError{Op: "checksum", Path: p, Err: err}
	}
	return checksum, nil
}

// Clear removes all files and directories from the memory filesystem
// Useful for testing cleanup
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

// Size returns the current total size of all stored files
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of files stored
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// ============================================================================
// Watcher Implementation
// ============================================================================

// Watch implements diskkit.CanWatch. pattern is a glob where "*" stays
// within a directory and "**" crosses directories. The token fires once,
// for the first matching change, and is dropped when ctx is done.
func (a *Adapter) Watch(ctx context.Context, pattern string) (diskkit.ChangeToken, error) {
	if err := checkContext(ctx, "watch", pattern); err != nil {
		return nil, err
	}

	matcher, err := glob.Compile(strings.TrimLeft(pattern, "/"), '/')
	if err != nil {
		return nil, &diskkit.PathError{Op: "watch", Path: pattern, Err: err}
	}

	token := diskkit.NewCallbackChangeToken()

	a.watchMu.Lock()
	a.watches = append(a.watches, &watchEntry{matcher: matcher, token: token})
	a.watchMu.Unlock()

	// Clean up when context is cancelled
	go func() {
		<-ctx.Done()
		a.removeWatch(token)
	}()

	return token, nil
}

// notifyWatchers signals and drops the watchers matching any of paths.
func (a *Adapter) notifyWatchers(paths ...string) {
	if len(paths) == 0 {
		return
	}

	var fired []*diskkit.CallbackChangeToken
	a.watchMu.Lock()
	kept := a.watches[:0]
	for _, entry := range a.watches {
		if matchesAny(entry.matcher, paths) {
			fired = append(fired, entry.token)
			continue
		}
		kept = append(kept, entry)
	}
	clear(a.watches[len(kept):])
	a.watches = kept
	a.watchMu.Unlock()

	for _, token := range fired {
		token.SignalChange()
	}
}

// removeWatch removes a watch entry by token
func (a *Adapter) removeWatch(token *diskkit.CallbackChangeToken) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for i, entry := range a.watches {
		if entry.token == token {
			// Remove by swapping with last element
			a.watches[i] = a.watches[len(a.watches)-1]
			a.watches[len(a.watches)-1] = nil
			a.watches = a.watches[:len(a.watches)-1]
			return
		}
	}
}

// watchCount returns the number of pending watches.
func (a *Adapter) watchCount() int {
	a.watchMu.RLock()
	defer a.watchMu.RUnlock()
	return len(a.watches)
}

func matchesAny(matcher glob.Glob, paths []string) bool {
	for _, p := range paths {
		if matcher.Match(p) {
			return true
		}
	}
	return false
}

// checkParents fails with ErrNotDir when a parent of key is a file.
// Must be called with lock held
func (a *Adapter) checkParents(key string) error {
	for dir := path.Dir(key); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, isFile := a.files[dir]; isFile {
			return diskkit.ErrNotDir
		}
	}
	return nil
}

// ensureParentDirs creates all parent directories for a given path
// Must be called with lock held
func (a *Adapter) ensureParentDirs(key string, visibility diskkit.Visibility) {
	if visibility == "" {
		visibility = a.visibility
	}
	for dir := path.Dir(key); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, exists := a.dirs[dir]; !exists {
			a.dirs[dir] = &memoryDir{modTime: time.Now(), visibility: visibility}
		}
	}
}

// cleanPath turns p into a map key. Keys have no leading or trailing slash;
// the root is "". Paths climbing above the root are refused.
func cleanPath(op, p string) (string, error) {
	p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
	if p == "" || p == "." {
		return "", nil
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &diskkit.PathError{Op: op, Path: p, Err: diskkit.ErrNotAllowed}
	}
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

func head(data []byte) []byte {
	if len(data) > 3072 {
		return data[:3072]
	}
	return data
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func checkContext(ctx context.Context, op, p string) error {
	select {
	case <-ctx.Done():
		return &diskkit.PathError{Op: op, Path: p, Err: ctx.Err()}
	default:
		return nil
	}
}
