package diskkit

import (
	"strings"
	"unicode"
)

// PathNormalizer turns caller supplied paths into the relative,
// slash-separated form adapters expect.
type PathNormalizer interface {
	NormalizePath(p string) (string, error)
}

// WhitespacePathNormalizer is the default PathNormalizer. It converts
// backslashes, drops empty and "." segments and resolves "..". Paths that
// climb above the root or carry control characters are rejected.
type WhitespacePathNormalizer struct{}

func (WhitespacePathNormalizer) NormalizePath(p string) (string, error) {
	if strings.IndexFunc(p, unicode.IsControl) >= 0 {
		return "", &PathError{Op: "normalize", Path: p, Err: ErrCorruptedPath}
	}

	p = strings.ReplaceAll(p, `\`, "/")
	parts := make([]string, 0, strings.Count(p, "/")+1)
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", &PathError{Op: "normalize", Path: p, Err: ErrPathTraversal}
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/"), nil
}
