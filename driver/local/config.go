package local

import (
	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/internal/driverconf"
)

// LinkPolicy decides how symbolic links under the root are treated.
type LinkPolicy string

const (
	// DisallowLinks fails with *diskkit.SymbolicLinkEncountered.
	DisallowLinks LinkPolicy = "disallow"
	// SkipLinks resolves links to their target when stat-ing and leaves them
	// out of listings.
	SkipLinks LinkPolicy = "skip"
)

// ParseLinkPolicy accepts "skip", "disallow" and the empty string, which
// means disallow.
func ParseLinkPolicy(s string) (LinkPolicy, error) {
	switch LinkPolicy(s) {
	case "", DisallowLinks:
		return DisallowLinks, nil
	case SkipLinks:
		return SkipLinks, nil
	}
	return "", diskkit.NewConfigError(DriverName, "links", "must be %q or %q, got %q", SkipLinks, DisallowLinks, s)
}

// WriteFlags select the advisory lock taken while a file is written.
type WriteFlags int

const (
	LockShared      WriteFlags = 1
	LockExclusive   WriteFlags = 2
	LockNonBlocking WriteFlags = 4

	// DefaultWriteFlags takes an exclusive lock.
	DefaultWriteFlags = LockExclusive
)

// Config is the validated construction input of a local adapter.
type Config struct {
	Root             string                      `validate:"required"`
	Visibility       diskkit.VisibilityConverter `validate:"-"`
	WriteFlags       WriteFlags                  `validate:"gte=0,lte=7"`
	Links            LinkPolicy                  `validate:"oneof=skip disallow"`
	MimeTypeDetector diskkit.MimeTypeDetector    `validate:"-"`
}

// Options is the typed form of the second construction argument.
type Options struct {
	Visibility diskkit.VisibilityConverter
	WriteFlags WriteFlags
	Links      LinkPolicy
}

// mapOptions is the shape of the options map.
type mapOptions struct {
	Visibility any    `mapstructure:"visibility"`
	WriteFlags *int   `mapstructure:"write_flags"`
	Links      string `mapstructure:"links"`
}

// tableOptions is the shape of a permission table given as a map.
type tableOptions struct {
	diskkit.PermissionTable `mapstructure:",squash"`
	DefaultForDirectories diskkit.Visibility `mapstructure:"default_for_directories"`
}

// ParseArgs turns driver arguments into a Config. args[0] is the root
// directory. args[1] is either an options map (visibility, write_flags,
// links), an Options value, or the first of the positional arguments
// (visibility, write flags, link policy, MIME type detector).
//
// ParseArgs performs no I/O.
func ParseArgs(args ...any) (Config, error) {
	if len(args) == 0 {
		return Config{}, diskkit.NewConfigError(DriverName, "root", "root directory argument is required")
	}
	root, ok := args[0].(string)
	if !ok {
		return Config{}, diskkit.NewConfigError(DriverName, "root", "must be a string, got %T", args[0])
	}
	if root == "" {
		return Config{}, diskkit.NewConfigError(DriverName, "root", "must not be empty")
	}

	cfg := Config{Root: root, WriteFlags: DefaultWriteFlags, Links: DisallowLinks}
	rest := args[1:]

	switch {
	case len(rest) == 0:
	case driverconf.IsMap(rest[0]):
		if len(rest) > 1 {
			return Config{}, diskkit.NewConfigError(DriverName, "", "unexpected arguments after options map")
		}
		if err := applyMap(&cfg, rest[0]); err != nil {
			return Config{}, err
		}
	default:
		if opts, ok := rest[0].(Options); ok {
			if len(rest) > 1 {
				return Config{}, diskkit.NewConfigError(DriverName, "", "unexpected arguments after options")
			}
			if err := applyOptions(&cfg, opts); err != nil {
				return Config{}, err
			}
			break
		}
		if err := applyPositional(&cfg, rest); err != nil {
			return Config{}, err
		}
	}

	if cfg.Visibility == nil {
		cfg.Visibility = diskkit.NewPortableVisibilityConverter()
	}
	if err := driverconf.Validate(DriverName, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyMap(cfg *Config, input any) error {
	var m mapOptions
	if err := driverconf.Decode(DriverName, input, &m); err != nil {
		return err
	}

	links, err := ParseLinkPolicy(m.Links)
	if err != nil {
		return err
	}
	cfg.Links = links

	if m.WriteFlags != nil {
		cfg.WriteFlags = WriteFlags(*m.WriteFlags)
	}

	conv, err := visibilityArg(m.Visibility)
	if err != nil {
		return err
	}
	cfg.Visibility = conv
	return nil
}

func applyOptions(cfg *Config, opts Options) error {
	links, err := ParseLinkPolicy(string(opts.Links))
	if err != nil {
		return err
	}
	cfg.Links = links
	if opts.WriteFlags != 0 {
		cfg.WriteFlags = opts.WriteFlags
	}
	cfg.Visibility = opts.Visibility
	return nil
}

// applyPositional handles (visibility, writeFlags, links, detector).
func applyPositional(cfg *Config, args []any) error {
	if len(args) > 4 {
		return diskkit.NewConfigError(DriverName, "", "expected at most 5 arguments, got %d", len(args)+1)
	}

	conv, err := visibilityArg(args[0])
	if err != nil {
		return err
	}
	cfg.Visibility = conv

	if len(args) > 1 && args[1] != nil {
		switch v := args[1].(type) {
		case WriteFlags:
			cfg.WriteFlags = v
		case int:
			cfg.WriteFlags = WriteFlags(v)
		default:
			return diskkit.NewConfigError(DriverName, "write_flags", "must be an int, got %T", args[1])
		}
	}

	if len(args) > 2 && args[2] != nil {
		var raw string
		switch v := args[2].(type) {
		case LinkPolicy:
			raw = string(v)
		case string:
			raw = v
		default:
			return diskkit.NewConfigError(DriverName, "links", "must be a string, got %T", args[2])
		}
		links, err := ParseLinkPolicy(raw)
		if err != nil {
			return err
		}
		cfg.Links = links
	}

	if len(args) > 3 && args[3] != nil {
		detector, ok := args[3].(diskkit.MimeTypeDetector)
		if !ok {
			return diskkit.NewConfigError(DriverName, "mime_type_detector", "must implement diskkit.MimeTypeDetector, got %T", args[3])
		}
		cfg.MimeTypeDetector = detector
	}
	return nil
}

// visibilityArg accepts a converter, a permission table, a map shaped like
// a permission table, or nil for the default converter.
func visibilityArg(v any) (diskkit.VisibilityConverter, error) {
	switch conv := v.(type) {
	case nil:
		return diskkit.NewPortableVisibilityConverter(), nil
	case diskkit.VisibilityConverter:
		return conv, nil
	case diskkit.PermissionTable:
		return diskkit.NewVisibilityConverterFromTable(conv, diskkit.Private)
	}
	if !driverconf.IsMap(v) {
		return nil, diskkit.NewConfigError(DriverName, "visibility", "unsupported value of type %T", v)
	}

	var t tableOptions
	if err := driverconf.Decode(DriverName, v, &t); err != nil {
		return nil, err
	}
	return diskkit.NewVisibilityConverterFromTable(t.PermissionTable, t.DefaultForDirectories)
}
