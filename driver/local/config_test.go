package local

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/diskkit"
)

func TestParseArgs(t *testing.T) {
	table, err := diskkit.NewVisibilityConverterFromTable(diskkit.PermissionTable{
		File: diskkit.PermissionPair{Public: 0o640, Private: 0o600},
	}, diskkit.Public)
	require.NoError(t, err)

	tests := []struct {
		name      string
		args      []any
		wantFlags WriteFlags
		wantLinks LinkPolicy
		wantFile  fs.FileMode
		wantDirs  diskkit.Visibility
	}{
		{
			name:      "root only",
			args:      []any{"/srv/files"},
			wantFlags: DefaultWriteFlags,
			wantLinks: DisallowLinks,
			wantFile:  diskkit.DefaultFilePublic,
			wantDirs:  diskkit.Private,
		},
		{
			name: "options map",
			args: []any{"/srv/files", map[string]any{
				"links":       "skip",
				"write_flags": "1",
				"visibility": map[string]any{
					"file":                    map[string]any{"public": "0640", "private": "0600"},
					"default_for_directories": "public",
				},
			}},
			wantFlags: LockShared,
			wantLinks: SkipLinks,
			wantFile:  0o640,
			wantDirs:  diskkit.Public,
		},
		{
			name: "options map with unknown keys",
			args: []any{"/srv/files", map[string]any{
				"bogus":       1,
				"links":       "skip",
				"write_flags": 0,
				"visibility": map[string]any{
					"file":  map[string]any{"public": "0640", "private": "0600"},
					"extra": true,
				},
			}},
			wantFlags: 0,
			wantLinks: SkipLinks,
			wantFile:  0o640,
			wantDirs:  diskkit.Private,
		},
		{
			name:      "typed options",
			args:      []any{"/srv/files", Options{Visibility: table, Links: SkipLinks}},
			wantFlags: DefaultWriteFlags,
			wantLinks: SkipLinks,
			wantFile:  0o640,
			wantDirs:  diskkit.Public,
		},
		{
			name:      "positional",
			args:      []any{"/srv/files", nil, 0, "skip"},
			wantFlags: 0,
			wantLinks: SkipLinks,
			wantFile:  diskkit.DefaultFilePublic,
			wantDirs:  diskkit.Private,
		},
		{
			name: "positional permission table",
			args: []any{"/srv/files", diskkit.PermissionTable{
				File: diskkit.PermissionPair{Public: 0o640, Private: 0o600},
			}, LockExclusive | LockNonBlocking},
			wantFlags: LockExclusive | LockNonBlocking,
			wantLinks: DisallowLinks,
			wantFile:  0o640,
			wantDirs:  diskkit.Private,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseArgs(tt.args...)
			require.NoError(t, err)

			assert.Equal(t, "/srv/files", cfg.Root)
			assert.Equal(t, tt.wantFlags, cfg.WriteFlags)
			assert.Equal(t, tt.wantLinks, cfg.Links)
			require.NotNil(t, cfg.Visibility)
			assert.Equal(t, tt.wantFile, cfg.Visibility.ForFile(diskkit.Public))
			assert.Equal(t, tt.wantDirs, cfg.Visibility.DefaultForDirectories())
		})
	}
}

func TestParseArgs_Detector(t *testing.T) {
	cfg, err := ParseArgs("/srv/files", nil, nil, nil, diskkit.ExtensionMimeTypeDetector{})
	require.NoError(t, err)
	assert.IsType(t, diskkit.ExtensionMimeTypeDetector{}, cfg.MimeTypeDetector)
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name      string
		args      []any
		wantField string
	}{
		{name: "no arguments", args: nil, wantField: "root"},
		{name: "empty root", args: []any{""}, wantField: "root"},
		{name: "root not a string", args: []any{42}, wantField: "root"},
		{name: "unknown link policy", args: []any{"/srv", map[string]any{"links": "follow"}}, wantField: "links"},
		{name: "write flags out of range", args: []any{"/srv", nil, 8}, wantField: "writeflags"},
		{name: "write flags wrong type", args: []any{"/srv", nil, "exclusive"}, wantField: "write_flags"},
		{name: "bad visibility argument", args: []any{"/srv", 3.14}, wantField: "visibility"},
		{
			name: "identical permissions",
			args: []any{"/srv", map[string]any{
				"visibility": map[string]any{"file": map[string]any{"public": "0600", "private": "0600"}},
			}},
			wantField: "file",
		},
		{name: "bad detector", args: []any{"/srv", nil, nil, nil, "sniff"}, wantField: "mime_type_detector"},
		{name: "too many arguments", args: []any{"/srv", nil, nil, nil, nil, nil}, wantField: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args...)
			require.Error(t, err)
			assert.True(t, diskkit.IsConfigError(err), "expected a config error, got %v", err)

			var cfgErr *diskkit.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestParseLinkPolicy(t *testing.T) {
	p, err := ParseLinkPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DisallowLinks, p)

	p, err = ParseLinkPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, SkipLinks, p)

	_, err = ParseLinkPolicy("SKIP")
	assert.True(t, diskkit.IsConfigError(err))
}

func TestDriver_Open(t *testing.T) {
	root := t.TempDir()

	disk, err := NewDriver().Open(root, map[string]any{"links": "skip"})
	require.NoError(t, err)
	_, ok := disk.(*diskkit.LocalFilesystem)
	assert.True(t, ok)

	disk, err = NewImageDriver().Open(root)
	require.NoError(t, err)
	_, ok = disk.(*diskkit.ImageFilesystem)
	assert.True(t, ok)

	disk, err = NewDriver().Open()
	assert.Nil(t, disk)
	assert.True(t, diskkit.IsConfigError(err))
}
