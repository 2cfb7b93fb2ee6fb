package diskkit

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"slices"
	"strconv"
	"time"
)

// Content-Disposition types.
const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// DefaultExpires is the cache lifetime of binary file responses.
const DefaultExpires = 365 * 24 * time.Hour

// ResponseOption customizes a file response.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	name        string
	disposition string
	headers     http.Header
	expires     time.Duration
}

// WithFilename sets the file name announced in Content-Disposition.
func WithFilename(name string) ResponseOption {
	return func(o *responseOptions) {
		o.name = name
	}
}

// WithResponseHeader adds a header to the response. Headers set this way
// override the computed ones.
func WithResponseHeader(key, value string) ResponseOption {
	return func(o *responseOptions) {
		o.headers.Set(key, value)
	}
}

// WithDisposition sets the Content-Disposition type.
func WithDisposition(disposition string) ResponseOption {
	return func(o *responseOptions) {
		o.disposition = disposition
	}
}

// WithExpires sets the cache lifetime of a binary file response.
func WithExpires(d time.Duration) ResponseOption {
	return func(o *responseOptions) {
		o.expires = d
	}
}

func applyResponseOptions(filePath string, options []ResponseOption) *responseOptions {
	o := &responseOptions{
		disposition: DispositionInline,
		headers:     make(http.Header),
		expires:     DefaultExpires,
	}
	for _, option := range options {
		option(o)
	}
	if o.name == "" {
		o.name = path.Base(filePath)
	}
	return o
}

func contentDisposition(disposition, name string) string {
	return mime.FormatMediaType(disposition, map[string]string{"filename": name})
}

// ServeFile streams path from disk as the response body. Nothing is written
// when the file does not exist or its metadata cannot be read; the error is
// returned for the caller to map onto a status.
func ServeFile(w http.ResponseWriter, r *http.Request, disk Operator, filePath string, options ...ResponseOption) error {
	ctx := r.Context()
	o := applyResponseOptions(filePath, options)

	exists, err := disk.FileExists(ctx, filePath)
	if err != nil {
		return err
	}
	if !exists {
		return &PathError{Op: "response", Path: filePath, Err: ErrNotExist}
	}

	mimeType, err := disk.MimeType(ctx, filePath)
	if err != nil {
		return err
	}
	size, err := disk.FileSize(ctx, filePath)
	if err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Content-Disposition", contentDisposition(o.disposition, o.name))
	if ts, err := disk.LastModified(ctx, filePath); err == nil {
		h.Set("Last-Modified", time.Unix(ts, 0).UTC().Format(http.TimeFormat))
	}
	for k, v := range o.headers {
		h[k] = v
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	rc, err := disk.ReadStream(ctx, filePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		return WrapPathErr("response", filePath, err)
	}
	return nil
}

// Response streams path inline.
func (l *LocalFilesystem) Response(w http.ResponseWriter, r *http.Request, filePath string, options ...ResponseOption) error {
	return ServeFile(w, r, l, filePath, options...)
}

// Download streams path as an attachment.
func (l *LocalFilesystem) Download(w http.ResponseWriter, r *http.Request, filePath string, options ...ResponseOption) error {
	options = append(slices.Clip(options), WithDisposition(DispositionAttachment))
	return ServeFile(w, r, l, filePath, options...)
}

// BinaryFileResponse serves path straight from the OS file with range and
// conditional request support, marking it cacheable by shared caches.
func (l *LocalFilesystem) BinaryFileResponse(w http.ResponseWriter, r *http.Request, filePath string, options ...ResponseOption) error {
	ctx := r.Context()
	o := applyResponseOptions(filePath, options)

	exists, err := l.FileExists(ctx, filePath)
	if err != nil {
		return err
	}
	if !exists {
		return &PathError{Op: "binaryresponse", Path: filePath, Err: ErrNotExist}
	}

	mimeType, err := l.MimeType(ctx, filePath)
	if err != nil {
		return err
	}
	abs, err := l.AbsolutePath(filePath)
	if err != nil {
		return err
	}

	f, err := os.Open(abs)
	if err != nil {
		return WrapPathErr("binaryresponse", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return WrapPathErr("binaryresponse", filePath, err)
	}

	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", contentDisposition(o.disposition, o.name))
	h.Set("Cache-Control", "public, s-maxage="+strconv.FormatInt(int64(o.expires/time.Second), 10))
	h.Set("Expires", time.Now().Add(o.expires).UTC().Format(http.TimeFormat))
	for k, v := range o.headers {
		h[k] = v
	}

	http.ServeContent(w, r, o.name, info.ModTime(), f)
	return nil
}
