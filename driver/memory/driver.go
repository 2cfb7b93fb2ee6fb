// Package memory provides an in-memory diskkit adapter and the "memory"
// driver.
package memory

import (
	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/internal/driverconf"
)

// DriverName is the name the memory driver is registered under.
const DriverName = "memory"

// Config is the validated construction input of a memory adapter.
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize          int64                    `mapstructure:"max_size" validate:"gte=0"`
	Visibility       diskkit.Visibility       `mapstructure:"visibility" validate:"omitempty,oneof=public private"`
	MimeTypeDetector diskkit.MimeTypeDetector `mapstructure:"-" validate:"-"`
}

// ParseArgs turns driver arguments into a Config. With no arguments the
// adapter is unlimited and public. Otherwise args[0] is a Config or an
// options map (max_size, visibility).
func ParseArgs(args ...any) (Config, error) {
	var cfg Config
	switch {
	case len(args) > 1:
		return Config{}, diskkit.NewConfigError(DriverName, "", "expected at most 1 argument, got %d", len(args))
	case len(args) == 0 || args[0] == nil:
	default:
		switch v := args[0].(type) {
		case Config:
			cfg = v
		case *Config:
			cfg = *v
		default:
			if !driverconf.IsMap(v) {
				return Config{}, diskkit.NewConfigError(DriverName, "", "must be a Config or a map, got %T", v)
			}
			if err := driverconf.Decode(DriverName, v, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	if err := driverconf.Validate(DriverName, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Driver builds *diskkit.Filesystem disks kept in memory.
type Driver struct {
	// Options are applied to every disk.
	Options []diskkit.FilesystemOption
}

var _ diskkit.Driver = (*Driver)(nil)

// NewDriver returns a memory Driver.
func NewDriver(options ...diskkit.FilesystemOption) *Driver {
	return &Driver{Options: options}
}

// Open implements diskkit.Driver
func (d *Driver) Open(args ...any) (diskkit.Disk, error) {
	cfg, err := ParseArgs(args...)
	if err != nil {
		return nil, err
	}
	return d.OpenConfig(cfg), nil
}

// OpenConfig builds a disk from an already typed Config.
func (d *Driver) OpenConfig(cfg Config) *diskkit.Filesystem {
	return diskkit.NewFilesystem(New(cfg), d.Options...)
}
