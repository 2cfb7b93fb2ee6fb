package diskkit

import (
	"fmt"
	"io/fs"
	"strings"
)

// Visibility is the portable access level of a file or directory.
type Visibility string

const (
	// Public means the entry is readable by anyone.
	Public Visibility = "public"

	// Private means the entry is only readable by its owner.
	Private Visibility = "private"
)

// ParseVisibility converts s into a Visibility. Matching is case-insensitive.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case Public:
		return Public, nil
	case Private:
		return Private, nil
	}
	return "", NewConfigError("visibility", "visibility", "unknown visibility %q", s)
}

func (v Visibility) String() string { return string(v) }

// Valid reports whether v is Public or Private.
func (v Visibility) Valid() bool {
	return v == Public || v == Private
}

// VisibilityConverter translates between portable visibility and numeric
// permission bits.
type VisibilityConverter interface {
	ForFile(v Visibility) fs.FileMode
	ForDirectory(v Visibility) fs.FileMode
	InverseForFile(perm fs.FileMode) Visibility
	InverseForDirectory(perm fs.FileMode) Visibility
	DefaultForDirectories() Visibility
}

// PermissionPair holds the permission bits used for each visibility.
type PermissionPair struct {
	Public  fs.FileMode `mapstructure:"public"`
	Private fs.FileMode `mapstructure:"private"`
}

// PermissionTable maps visibilities to permission bits per entry kind.
// Zero entries fall back to the defaults.
type PermissionTable struct {
	File PermissionPair `mapstructure:"file"`
	Dir  PermissionPair `mapstructure:"dir"`
}

// Default permission bits.
const (
	DefaultFilePublic  fs.FileMode = 0o644
	DefaultFilePrivate fs.FileMode = 0o600
	DefaultDirPublic   fs.FileMode = 0o755
	DefaultDirPrivate  fs.FileMode = 0o700

	worldReadable fs.FileMode = 0o004
)

// DefaultPermissionTable returns the table used when none is configured.
func DefaultPermissionTable() PermissionTable {
	return PermissionTable{
		File: PermissionPair{Public: DefaultFilePublic, Private: DefaultFilePrivate},
		Dir:  PermissionPair{Public: DefaultDirPublic, Private: DefaultDirPrivate},
	}
}

// PortableVisibilityConverter is the table-driven VisibilityConverter used by
// the local adapter.
type PortableVisibilityConverter struct {
	table            PermissionTable
	defaultDirectory Visibility
}

// NewPortableVisibilityConverter returns a converter over the default table
// whose implicit directories are private.
func NewPortableVisibilityConverter() *PortableVisibilityConverter {
	return &PortableVisibilityConverter{
		table:            DefaultPermissionTable(),
		defaultDirectory: Private,
	}
}

// NewVisibilityConverterFromTable builds a converter from a custom table.
// Missing entries fall back to the defaults. A table mapping both
// visibilities of one kind to the same bits is rejected.
func NewVisibilityConverterFromTable(table PermissionTable, defaultForDirectories Visibility) (*PortableVisibilityConverter, error) {
	def := DefaultPermissionTable()
	if table.File.Public == 0 {
		table.File.Public = def.File.Public
	}
	if table.File.Private == 0 {
		table.File.Private = def.File.Private
	}
	if table.Dir.Public == 0 {
		table.Dir.Public = def.Dir.Public
	}
	if table.Dir.Private == 0 {
		table.Dir.Private = def.Dir.Private
	}

	if table.File.Public.Perm() == table.File.Private.Perm() {
		return nil, NewConfigError("visibility", "file", "public and private permissions are both %#o", table.File.Public.Perm())
	}
	if table.Dir.Public.Perm() == table.Dir.Private.Perm() {
		return nil, NewConfigError("visibility", "dir", "public and private permissions are both %#o", table.Dir.Public.Perm())
	}

	if defaultForDirectories == "" {
		defaultForDirectories = Private
	}
	if !defaultForDirectories.Valid() {
		return nil, NewConfigError("visibility", "default", "unknown visibility %q", defaultForDirectories)
	}

	return &PortableVisibilityConverter{table: table, defaultDirectory: defaultForDirectories}, nil
}

// Table returns the effective permission table.
func (c *PortableVisibilityConverter) Table() PermissionTable {
	return c.table
}

func (c *PortableVisibilityConverter) ForFile(v Visibility) fs.FileMode {
	if v == Public {
		return c.table.File.Public
	}
	return c.table.File.Private
}

func (c *PortableVisibilityConverter) ForDirectory(v Visibility) fs.FileMode {
	if v == Public {
		return c.table.Dir.Public
	}
	return c.table.Dir.Private
}

func (c *PortableVisibilityConverter) InverseForFile(perm fs.FileMode) Visibility {
	return inverse(perm, c.table.File)
}

func (c *PortableVisibilityConverter) InverseForDirectory(perm fs.FileMode) Visibility {
	return inverse(perm, c.table.Dir)
}

func (c *PortableVisibilityConverter) DefaultForDirectories() Visibility {
	return c.defaultDirectory
}

// inverse matches the table exactly first and otherwise decides on the
// world-readable bit.
func inverse(perm fs.FileMode, pair PermissionPair) Visibility {
	perm = perm.Perm()
	switch perm {
	case pair.Public.Perm():
		return Public
	case pair.Private.Perm():
		return Private
	}
	if perm&worldReadable != 0 {
		return Public
	}
	return Private
}

func (t PermissionTable) String() string {
	return fmt.Sprintf("file{public:%#o private:%#o} dir{public:%#o private:%#o}",
		t.File.Public, t.File.Private, t.Dir.Public, t.Dir.Private)
}
