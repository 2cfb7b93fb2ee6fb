package diskkit

import (
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MimeTypeDetector resolves the MIME type of file contents.
type MimeTypeDetector interface {
	// DetectMimeType returns the MIME type for the given name and leading
	// content bytes, or "" when it cannot tell.
	DetectMimeType(name string, head []byte) string
}

// DefaultMimeTypeDetector sniffs content and falls back to the extension.
type DefaultMimeTypeDetector struct{}

func (DefaultMimeTypeDetector) DetectMimeType(name string, head []byte) string {
	if len(head) > 0 {
		detected := stripParams(mimetype.Detect(head).String())
		// Generic results are refined by the extension when possible.
		if detected != "application/octet-stream" && detected != "text/plain" {
			return detected
		}
		if byExt := ExtensionMimeType(name); byExt != "" {
			return byExt
		}
		return detected
	}
	return ExtensionMimeType(name)
}

// ExtensionMimeTypeDetector only looks at the file extension.
type ExtensionMimeTypeDetector struct{}

func (ExtensionMimeTypeDetector) DetectMimeType(name string, _ []byte) string {
	return ExtensionMimeType(name)
}

// ExtensionMimeType returns the MIME type registered for the extension of
// name, without parameters.
func ExtensionMimeType(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, `\`, "/")))
	if ext == "" {
		return ""
	}
	if known, ok := extensionAliases[ext]; ok {
		return known
	}
	return stripParams(mime.TypeByExtension(ext))
}

// extensionAliases pins types that differ across host mime tables.
var extensionAliases = map[string]string{
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".json": "application/json",
	".txt":  "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".pdf":  "application/pdf",
}

// DetectMimeType reads up to the mimetype read limit from r and resolves the
// type with detector.
func DetectMimeType(detector MimeTypeDetector, name string, r io.Reader) (string, error) {
	if detector == nil {
		detector = DefaultMimeTypeDetector{}
	}
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return detector.DetectMimeType(name, head[:n]), nil
}

func stripParams(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}
