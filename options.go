package diskkit

// Option represents a configuration option
type Option func(*Options)

// Options contains all possible options for write operations
type Options struct {
	// Visibility of the written file. Empty keeps the backend default.
	Visibility Visibility

	// DirectoryVisibility of parent directories created along the way.
	// Empty uses the converter's default for directories.
	DirectoryVisibility Visibility

	// ContentType specifies the MIME type of the file
	ContentType string

	// Metadata contains additional metadata for the file
	Metadata map[string]string

	// CacheControl sets the Cache-Control header for the file
	CacheControl string
}

// WithVisibility sets the file visibility
func WithVisibility(visibility Visibility) Option {
	return func(o *Options) {
		o.Visibility = visibility
	}
}

// WithDirectoryVisibility sets the visibility of implicitly created directories
func WithDirectoryVisibility(visibility Visibility) Option {
	return func(o *Options) {
		o.DirectoryVisibility = visibility
	}
}

// WithContentType sets the content type of the file
func WithContentType(contentType string) Option {
	return func(o *Options) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for the file
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithCacheControl sets the Cache-Control header
func WithCacheControl(cacheControl string) Option {
	return func(o *Options) {
		o.CacheControl = cacheControl
	}
}

// ApplyOptions folds options into a fresh Options value.
func ApplyOptions(options ...Option) *Options {
	opts := &Options{}
	for _, option := range options {
		if option != nil {
			option(opts)
		}
	}
	return opts
}
