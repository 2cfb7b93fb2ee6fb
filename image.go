package diskkit

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"
)

// ImageFilesystem is a LocalFilesystem that renders its images as HTML.
type ImageFilesystem struct {
	*LocalFilesystem
}

// NewImageFilesystem returns an ImageFilesystem over adapter.
func NewImageFilesystem(adapter LocalAdapter, options ...FilesystemOption) *ImageFilesystem {
	img := &ImageFilesystem{LocalFilesystem: NewLocalFilesystem(adapter, options...)}
	img.Filesystem.outer = img
	return img
}

// HTMLRender renders the image at path. SVG files are inlined, wrapped in a
// div carrying attrs when attrs is non-nil. Other images become an <img> tag
// whose alt defaults to the file name without extension.
func (i *ImageFilesystem) HTMLRender(ctx context.Context, filePath string, attrs map[string]string) (string, error) {
	info, err := i.FileInfo(ctx, filePath)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", &PathError{Op: "htmlrender", Path: filePath, Err: ErrIsDir}
	}

	mimeType, err := i.MimeType(ctx, filePath)
	if err != nil {
		return "", err
	}
	subtype, ok := strings.CutPrefix(mimeType, "image/")
	if !ok {
		return "", &PathError{Op: "htmlrender", Path: filePath, Err: fmt.Errorf("%w: %s is not an image", ErrNotSupported, mimeType)}
	}

	if strings.HasPrefix(subtype, "svg") {
		content, err := i.Read(ctx, filePath)
		if err != nil {
			return "", err
		}
		if attrs == nil {
			return string(content), nil
		}
		return "<div" + renderAttrs(attrs) + ">" + string(content) + "</div>", nil
	}

	src, err := i.ImgSrc(ctx, filePath, false)
	if err != nil {
		return "", err
	}

	tag := make(map[string]string, len(attrs)+2)
	for k, v := range attrs {
		tag[k] = v
	}
	tag["src"] = src
	if _, ok := tag["alt"]; !ok {
		base := path.Base(filePath)
		tag["alt"] = strings.TrimSuffix(base, path.Ext(base))
	}
	return "<img" + renderAttrs(tag) + "/>", nil
}

// ImgSrc returns the URL of the image at path, or a base64 data URI when the
// disk has no public URL, forceBase64 is set or the image is an SVG.
func (i *ImageFilesystem) ImgSrc(ctx context.Context, filePath string, forceBase64 bool) (string, error) {
	exists, err := i.FileExists(ctx, filePath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &PathError{Op: "imgsrc", Path: filePath, Err: ErrNotExist}
	}

	mimeType := ExtensionMimeType(filePath)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", &PathError{Op: "imgsrc", Path: filePath, Err: fmt.Errorf("%w: %q is not an image", ErrNotSupported, mimeType)}
	}
	if strings.HasPrefix(mimeType, "image/svg") {
		forceBase64 = true
	}

	if !forceBase64 {
		if url, ok := i.URL(filePath); ok {
			return url, nil
		}
	}

	content, err := i.Read(ctx, filePath)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content), nil
}

func renderAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(html.EscapeString(k))
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attrs[k]))
		b.WriteByte('"')
	}
	return b.String()
}
