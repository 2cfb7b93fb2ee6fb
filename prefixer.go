package diskkit

import (
	"strings"
)

// PathPrefixer converts between portable relative paths and absolute
// backend paths rooted at a fixed prefix.
type PathPrefixer struct {
	prefix    string
	separator string
}

// NewPathPrefixer returns a prefixer for root. Trailing separators of root
// are trimmed and exactly one separator is appended, unless root is empty.
func NewPathPrefixer(root string, separator string) *PathPrefixer {
	if separator == "" {
		separator = "/"
	}
	prefix := strings.TrimRight(root, `\/`)
	if prefix != "" || strings.HasPrefix(root, separator) {
		prefix += separator
	}
	return &PathPrefixer{prefix: prefix, separator: separator}
}

// Prefix returns the root including its trailing separator.
func (p *PathPrefixer) Prefix() string {
	return p.prefix
}

// PrefixPath joins the root and rel, dropping leading separators of rel.
func (p *PathPrefixer) PrefixPath(rel string) string {
	return p.prefix + strings.TrimLeft(rel, `\/`)
}

// PrefixDirectoryPath is PrefixPath with a trailing separator guaranteed.
func (p *PathPrefixer) PrefixDirectoryPath(rel string) string {
	prefixed := p.PrefixPath(rel)
	if prefixed == "" || strings.HasSuffix(prefixed, p.separator) {
		return prefixed
	}
	return prefixed + p.separator
}

// StripPrefix removes the root from abs and returns the remainder with
// forward slashes and no trailing slash. The root itself strips to "".
// Paths outside the root yield ErrPathOutsideRoot.
func (p *PathPrefixer) StripPrefix(abs string) (string, error) {
	rest, ok := p.strip(abs)
	if !ok {
		return "", &PathError{Op: "strip-prefix", Path: abs, Err: ErrPathOutsideRoot}
	}
	rest = strings.ReplaceAll(rest, `\`, "/")
	return strings.TrimRight(rest, "/"), nil
}

// StripDirectoryPrefix is StripPrefix for directory paths.
func (p *PathPrefixer) StripDirectoryPrefix(abs string) (string, error) {
	return p.StripPrefix(strings.TrimRight(abs, `\/`) + p.separator)
}

func (p *PathPrefixer) strip(abs string) (string, bool) {
	if strings.HasPrefix(abs, p.prefix) {
		return abs[len(p.prefix):], true
	}
	// The root without its separator.
	if abs == strings.TrimSuffix(p.prefix, p.separator) {
		return "", true
	}
	return "", false
}
