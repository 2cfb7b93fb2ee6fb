package local

import (
	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/internal/driverconf"
)

// Driver names registered by a storage manager.
const (
	DriverName      = "local"
	ImageDriverName = "local-image"
)

// Driver builds *diskkit.LocalFilesystem disks.
type Driver struct {
	// URLResolver, when set, is given to every disk to derive public URLs.
	URLResolver diskkit.URLResolver
	// Options are applied to every disk.
	Options []diskkit.FilesystemOption
}

var (
	_ diskkit.Driver = (*Driver)(nil)
	_ diskkit.Driver = (*ImageDriver)(nil)
)

// NewDriver returns a Driver with no URL resolver.
func NewDriver(options ...diskkit.FilesystemOption) *Driver {
	return &Driver{Options: options}
}

// ParseArgs validates driver arguments. See the package level ParseArgs.
func (d *Driver) ParseArgs(args ...any) (Config, error) {
	return ParseArgs(args...)
}

// Build creates the adapter described by cfg.
func (d *Driver) Build(cfg Config) (*Adapter, error) {
	if cfg.Links == "" {
		cfg.Links = DisallowLinks
	}
	if err := driverconf.Validate(DriverName, cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Wrap binds adapter to a new LocalFilesystem.
func (d *Driver) Wrap(adapter *Adapter) *diskkit.LocalFilesystem {
	fsys := diskkit.NewLocalFilesystem(adapter, d.Options...)
	if d.URLResolver != nil {
		fsys.SetURLResolver(d.URLResolver)
	}
	return fsys
}

// Open implements diskkit.Driver
func (d *Driver) Open(args ...any) (diskkit.Disk, error) {
	cfg, err := d.ParseArgs(args...)
	if err != nil {
		return nil, err
	}
	fsys, err := d.OpenConfig(cfg)
	if err != nil {
		return nil, err
	}
	return fsys, nil
}

// OpenConfig builds a disk from an already typed Config. A zero WriteFlags
// disables write locking.
func (d *Driver) OpenConfig(cfg Config) (*diskkit.LocalFilesystem, error) {
	adapter, err := d.Build(cfg)
	if err != nil {
		return nil, err
	}
	return d.Wrap(adapter), nil
}

// ImageDriver builds *diskkit.ImageFilesystem disks. Arguments are the same
// as for Driver.
type ImageDriver struct {
	Driver
}

// NewImageDriver returns an ImageDriver with no URL resolver.
func NewImageDriver(options ...diskkit.FilesystemOption) *ImageDriver {
	return &ImageDriver{Driver: Driver{Options: options}}
}

// Wrap binds adapter to a new ImageFilesystem.
func (d *ImageDriver) Wrap(adapter *Adapter) *diskkit.ImageFilesystem {
	fsys := diskkit.NewImageFilesystem(adapter, d.Options...)
	if d.URLResolver != nil {
		fsys.SetURLResolver(d.URLResolver)
	}
	return fsys
}

// Open implements diskkit.Driver
func (d *ImageDriver) Open(args ...any) (diskkit.Disk, error) {
	cfg, err := d.ParseArgs(args...)
	if err != nil {
		return nil, err
	}
	fsys, err := d.OpenConfig(cfg)
	if err != nil {
		return nil, err
	}
	return fsys, nil
}

// OpenConfig builds an image disk from an already typed Config.
func (d *ImageDriver) OpenConfig(cfg Config) (*diskkit.ImageFilesystem, error) {
	adapter, err := d.Build(cfg)
	if err != nil {
		return nil, err
	}
	return d.Wrap(adapter), nil
}
