// Package manager provides StorageManager, the registry of named disks and
// the drivers that build them.
package manager

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/driver/local"
	"github.com/gobeaver/diskkit/driver/memory"
	"github.com/gobeaver/diskkit/driver/s3"
)

// StorageManager maps disk names to disks and driver names to drivers. The
// default disk is a local disk rooted at the working directory unless one
// is set explicitly.
//
// A StorageManager performs no locking of its own. Registration must be
// serialized by the application, typically by registering every disk at
// startup before the manager is shared.
type StorageManager struct {
	disks       map[string]diskkit.Disk
	drivers     map[string]diskkit.Driver
	defaultDisk diskkit.Disk
	booted      bool

	logger *slog.Logger
	getwd  func() (string, error)
}

var _ diskkit.DefaultDiskSetter = (*StorageManager)(nil)

// ManagerOption configures a StorageManager.
type ManagerOption func(*StorageManager)

// WithLogger sets the logger used for registration events.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *StorageManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithWorkingDir overrides the directory the implicit default disk is
// rooted at.
func WithWorkingDir(dir string) ManagerOption {
	return func(m *StorageManager) {
		m.getwd = func() (string, error) { return dir, nil }
	}
}

// New returns a booted StorageManager.
func New(options ...ManagerOption) *StorageManager {
	m := &StorageManager{
		disks:   make(map[string]diskkit.Disk),
		drivers: make(map[string]diskkit.Driver),
		logger:  slog.New(slog.DiscardHandler),
		getwd:   os.Getwd,
	}
	for _, option := range options {
		option(m)
	}
	m.Boot()
	return m
}

// Boot installs the built-in drivers. It is a no-op once booted.
func (m *StorageManager) Boot() *StorageManager {
	if m.booted {
		return m
	}
	if m.disks == nil {
		m.disks = make(map[string]diskkit.Disk)
	}
	if m.drivers == nil {
		m.drivers = make(map[string]diskkit.Driver)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.getwd == nil {
		m.getwd = os.Getwd
	}

	m.drivers[local.DriverName] = local.NewDriver()
	m.drivers[local.ImageDriverName] = local.NewImageDriver()
	m.drivers[memory.DriverName] = memory.NewDriver()
	m.drivers[s3.DriverName] = s3.NewDriver()
	m.booted = true

	m.logger.Debug("storage manager booted", "drivers", m.DriverNames())
	return m
}

// IsBooted reports whether Boot has run.
func (m *StorageManager) IsBooted() bool {
	return m.booted
}

// RegisterDriver adds or replaces the driver registered under name.
func (m *StorageManager) RegisterDriver(name string, driver diskkit.Driver) *StorageManager {
	m.drivers[name] = driver
	m.logger.Debug("driver registered", "driver", name)
	return m
}

// Driver returns the driver registered under name.
func (m *StorageManager) Driver(name string) (diskkit.Driver, bool) {
	driver, ok := m.drivers[name]
	return driver, ok
}

// DriverNames returns the registered driver names in sorted order.
func (m *StorageManager) DriverNames() []string {
	names := make([]string, 0, len(m.drivers))
	for name := range m.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddDisk binds disk to name, replacing any disk registered under it, and
// records the manager as the disk's owner.
func (m *StorageManager) AddDisk(name string, disk diskkit.Disk) error {
	if name == "" {
		return diskkit.ErrEmptyDiskName
	}
	if disk == nil {
		return diskkit.ErrNilDisk
	}
	disk.SetStorageManager(m)
	if _, exists := m.disks[name]; exists {
		m.logger.Debug("disk replaced", "disk", name)
	}
	m.disks[name] = disk
	m.logger.Info("disk registered", "disk", name)
	return nil
}

// RegisterDisk builds a disk with the driver registered under driverName and
// binds it to diskName. Nothing is registered when the driver fails.
func (m *StorageManager) RegisterDisk(diskName, driverName string, args ...any) (diskkit.Disk, error) {
	if diskName == "" {
		return nil, diskkit.ErrEmptyDiskName
	}
	driver, ok := m.drivers[driverName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", diskkit.ErrDriverNotFound, driverName)
	}

	disk, err := driver.Open(args...)
	if err != nil {
		m.logger.Debug("disk registration failed", "disk", diskName, "driver", driverName, "error", err)
		return nil, err
	}
	if err := m.AddDisk(diskName, disk); err != nil {
		return nil, err
	}
	return disk, nil
}

// RegisterLocalDisk registers a local disk rooted at root. config is the
// optional options map of the local driver.
func (m *StorageManager) RegisterLocalDisk(name, root string, config map[string]any) (*diskkit.LocalFilesystem, error) {
	disk, err := m.openTyped(local.DriverName, root, config)
	if err != nil {
		return nil, err
	}
	fsys, ok := asLocal(disk)
	if !ok {
		return nil, fmt.Errorf("storage manager unable to register local disk %q: driver returned %T", name, disk)
	}
	if err := m.AddDisk(name, disk); err != nil {
		return nil, err
	}
	return fsys, nil
}

// RegisterLocalImageDisk registers a local image disk rooted at root.
func (m *StorageManager) RegisterLocalImageDisk(name, root string, config map[string]any) (*diskkit.ImageFilesystem, error) {
	disk, err := m.openTyped(local.ImageDriverName, root, config)
	if err != nil {
		return nil, err
	}
	fsys, ok := disk.(*diskkit.ImageFilesystem)
	if !ok {
		return nil, fmt.Errorf("storage manager unable to register local image disk %q: driver returned %T", name, disk)
	}
	if err := m.AddDisk(name, disk); err != nil {
		return nil, err
	}
	return fsys, nil
}

// RegisterS3Disk registers an S3 disk. client is anything the s3 driver
// accepts as its first argument. bucket overrides any bucket in config.
func (m *StorageManager) RegisterS3Disk(name string, client any, bucket string, config map[string]any) (diskkit.Disk, error) {
	options := make(map[string]any, len(config)+1)
	for k, v := range config {
		options[k] = v
	}
	options["bucket"] = bucket
	return m.RegisterDisk(name, s3.DriverName, client, options)
}

// RegisterMemoryDisk registers a disk kept in memory. config is the
// optional options map of the memory driver (max_size, visibility).
func (m *StorageManager) RegisterMemoryDisk(name string, config map[string]any) (*diskkit.Filesystem, error) {
	var args []any
	if config != nil {
		args = append(args, config)
	}
	disk, err := m.RegisterDisk(name, memory.DriverName, args...)
	if err != nil {
		return nil, err
	}
	fsys, ok := disk.(*diskkit.Filesystem)
	if !ok {
		return nil, fmt.Errorf("storage manager unable to register memory disk %q: driver returned %T", name, disk)
	}
	return fsys, nil
}

func (m *StorageManager) openTyped(driverName, root string, config map[string]any) (diskkit.Disk, error) {
	driver, ok := m.drivers[driverName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", diskkit.ErrDriverNotFound, driverName)
	}
	if config == nil {
		return driver.Open(root)
	}
	return driver.Open(root, config)
}

// Disk returns the disk registered under name. The empty name is the
// default disk.
func (m *StorageManager) Disk(name string) (diskkit.Disk, bool) {
	if name == "" {
		disk, err := m.DefaultDisk()
		if err != nil {
			m.logger.Warn("default disk unavailable", "error", err)
			return nil, false
		}
		return disk, true
	}
	disk, ok := m.disks[name]
	return disk, ok
}

// DiskNames returns the registered disk names in sorted order.
func (m *StorageManager) DiskNames() []string {
	names := make([]string, 0, len(m.disks))
	for name := range m.disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LocalDisk returns the disk registered under name when it is a local disk.
// Image disks are local disks too.
func (m *StorageManager) LocalDisk(name string) (*diskkit.LocalFilesystem, bool) {
	disk, ok := m.Disk(name)
	if !ok {
		return nil, false
	}
	return asLocal(disk)
}

// LocalImageDisk returns the disk registered under name when it is a local
// image disk.
func (m *StorageManager) LocalImageDisk(name string) (*diskkit.ImageFilesystem, bool) {
	disk, ok := m.Disk(name)
	if !ok {
		return nil, false
	}
	img, ok := disk.(*diskkit.ImageFilesystem)
	return img, ok
}

func asLocal(disk diskkit.Disk) (*diskkit.LocalFilesystem, bool) {
	switch v := disk.(type) {
	case *diskkit.LocalFilesystem:
		return v, true
	case *diskkit.ImageFilesystem:
		return v.LocalFilesystem, true
	}
	return nil, false
}

// DefaultDisk returns the default disk, creating a local disk rooted at the
// working directory on first use.
func (m *StorageManager) DefaultDisk() (diskkit.Disk, error) {
	if m.defaultDisk != nil {
		return m.defaultDisk, nil
	}

	wd, err := m.getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	fsys, err := m.CreateLocalFilesystem(wd, nil)
	if err != nil {
		return nil, err
	}
	fsys.SetStorageManager(m)
	m.defaultDisk = fsys
	m.logger.Info("default disk created", "root", wd)
	return fsys, nil
}

// SetDefaultDisk replaces the default disk and records the manager as its
// owner.
func (m *StorageManager) SetDefaultDisk(disk diskkit.Disk) error {
	if disk == nil {
		return diskkit.ErrNilDisk
	}
	disk.SetStorageManager(m)
	m.defaultDisk = disk
	m.logger.Debug("default disk set")
	return nil
}

// UseDisk makes the disk registered under name the default.
func (m *StorageManager) UseDisk(name string) error {
	disk, ok := m.disks[name]
	if !ok {
		return fmt.Errorf("disk %q is not registered", name)
	}
	return m.SetDefaultDisk(disk)
}

// CreateLocalAdapter builds a local adapter without registering anything.
// config is the options map of the local driver.
func (m *StorageManager) CreateLocalAdapter(root string, config map[string]any) (*local.Adapter, error) {
	args := []any{root}
	if config != nil {
		args = append(args, config)
	}
	cfg, err := local.ParseArgs(args...)
	if err != nil {
		return nil, err
	}
	return local.New(cfg)
}

// CreateLocalFilesystem builds an unregistered local disk.
func (m *StorageManager) CreateLocalFilesystem(root string, config map[string]any) (*diskkit.LocalFilesystem, error) {
	adapter, err := m.CreateLocalAdapter(root, config)
	if err != nil {
		return nil, err
	}
	return diskkit.NewLocalFilesystem(adapter), nil
}
