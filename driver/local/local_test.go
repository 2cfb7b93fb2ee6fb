package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/diskkit"
)

func newTestAdapter(t *testing.T, links LinkPolicy) (*Adapter, string) {
	t.Helper()
	root := t.TempDir()
	a, err := New(Config{Root: root, WriteFlags: DefaultWriteFlags, Links: links})
	require.NoError(t, err, "failed to create adapter")
	return a, root
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")

	a, err := New(Config{Root: root})
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, root, a.Root())
}

func TestWrite_StorageAttributes(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "greeting.txt", []byte("hello"), nil))

	attrs, err := a.StorageAttributes(ctx, "greeting.txt")
	require.NoError(t, err)

	file, ok := attrs.(*diskkit.FileAttributes)
	require.True(t, ok, "expected file attributes, got %T", attrs)
	assert.Equal(t, "greeting.txt", file.Path())
	size, ok := file.FileSize()
	require.True(t, ok)
	assert.Equal(t, int64(5), size)
	assert.Contains(t, []diskkit.Visibility{diskkit.Public, diskkit.Private}, file.Visibility())
	_, ok = file.LastModified()
	assert.True(t, ok)
}

func TestWrite_Visibility(t *testing.T) {
	ctx := context.Background()
	a, root := newTestAdapter(t, DisallowLinks)

	tests := []struct {
		name       string
		visibility diskkit.Visibility
		wantPerm   os.FileMode
	}{
		{name: "public", visibility: diskkit.Public, wantPerm: diskkit.DefaultFilePublic},
		{name: "private", visibility: diskkit.Private, wantPerm: diskkit.DefaultFilePrivate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := tt.name + ".txt"
			require.NoError(t, a.Write(ctx, name, []byte("x"), &diskkit.Options{Visibility: tt.visibility}))

			info, err := os.Stat(filepath.Join(root, name))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPerm, info.Mode().Perm())

			attrs, err := a.Visibility(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, tt.visibility, attrs.Visibility())
		})
	}
}

func TestWrite_CreatesParentsWithDirectoryVisibility(t *testing.T) {
	ctx := context.Background()
	a, root := newTestAdapter(t, DisallowLinks)

	opts := &diskkit.Options{DirectoryVisibility: diskkit.Public}
	require.NoError(t, a.Write(ctx, "a/b/c.txt", []byte("x"), opts))

	info, err := os.Stat(filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWrite_Overwrites(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "f.txt", []byte("a much longer first version"), nil))
	require.NoError(t, a.Write(ctx, "f.txt", []byte("short"), nil))

	data, err := a.Read(ctx, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestWrite_NoLock(t *testing.T) {
	ctx := context.Background()
	a, err := New(Config{Root: t.TempDir(), WriteFlags: 0})
	require.NoError(t, err)

	require.NoError(t, a.WriteStream(ctx, "f.txt", strings.NewReader("unlocked"), nil))
	data, err := a.Read(ctx, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "unlocked", string(data))
}

func TestRejectsPathsOutsideRoot(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	err := a.Write(ctx, "../escape.txt", []byte("x"), nil)
	assert.ErrorIs(t, err, diskkit.ErrNotAllowed)

	_, err = a.Read(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, diskkit.ErrNotAllowed)
}

func TestSymlink_Disallowed(t *testing.T) {
	ctx := context.Background()
	a, root := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "target.txt", []byte("x"), nil))
	require.NoError(t, os.Symlink(filepath.Join(root, "target.txt"), filepath.Join(root, "link.txt")))

	_, err := a.StorageAttributes(ctx, "link.txt")
	var symlink *diskkit.SymbolicLinkEncountered
	require.True(t, errors.As(err, &symlink), "expected SymbolicLinkEncountered, got %v", err)
	assert.Equal(t, "link.txt", symlink.Location)

	var listErr error
	for _, err := range a.ListContents(ctx, "", false) {
		if err != nil {
			listErr = err
		}
	}
	assert.True(t, diskkit.IsSymbolicLink(listErr))
}

func TestSymlink_Skipped(t *testing.T) {
	ctx := context.Background()
	a, root := newTestAdapter(t, SkipLinks)

	require.NoError(t, a.Write(ctx, "target.txt", []byte("hello"), nil))
	require.NoError(t, os.Symlink(filepath.Join(root, "target.txt"), filepath.Join(root, "link.txt")))

	attrs, err := a.StorageAttributes(ctx, "link.txt")
	require.NoError(t, err)
	file, ok := attrs.(*diskkit.FileAttributes)
	require.True(t, ok)
	size, _ := file.FileSize()
	assert.Equal(t, int64(5), size)

	var paths []string
	for attrs, err := range a.ListContents(ctx, "", true) {
		require.NoError(t, err)
		paths = append(paths, attrs.Path())
	}
	assert.Equal(t, []string{"target.txt"}, paths)
}

func TestSymlink_SkippedDirectoryTarget(t *testing.T) {
	ctx := context.Background()
	a, root := newTestAdapter(t, SkipLinks)

	require.NoError(t, a.CreateDirectory(ctx, "d", nil))
	require.NoError(t, os.Symlink(filepath.Join(root, "d"), filepath.Join(root, "ld")))

	attrs, err := a.StorageAttributes(ctx, "ld")
	require.NoError(t, err)
	dir, ok := attrs.(*diskkit.DirectoryAttributes)
	require.True(t, ok, "got %T", attrs)
	assert.True(t, dir.IsDir())
	assert.Equal(t, "ld", dir.Path())
}

func TestStorageAttributes_Missing(t *testing.T) {
	a, _ := newTestAdapter(t, DisallowLinks)

	_, err := a.StorageAttributes(context.Background(), "missing.txt")
	var unable *diskkit.UnableToGetStorageAttributes
	require.True(t, errors.As(err, &unable))
	assert.True(t, diskkit.IsNotExist(err))
}

func TestStorageAttributes_Directory(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.CreateDirectory(ctx, "photos", &diskkit.Options{Visibility: diskkit.Public}))

	attrs, err := a.StorageAttributes(ctx, "photos")
	require.NoError(t, err)
	assert.True(t, attrs.IsDir())
	assert.Equal(t, "photos", attrs.Path())
	assert.Equal(t, diskkit.Public, attrs.Visibility())
}

func TestListContents(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	for _, p := range []string{"a.txt", "dir/b.txt", "dir/sub/c.txt"} {
		require.NoError(t, a.Write(ctx, p, []byte(p), nil))
	}

	collect := func(path string, deep bool) map[string]diskkit.AttributeType {
		got := make(map[string]diskkit.AttributeType)
		for attrs, err := range a.ListContents(ctx, path, deep) {
			require.NoError(t, err)
			got[attrs.Path()] = attrs.Type()
		}
		return got
	}

	assert.Equal(t, map[string]diskkit.AttributeType{
		"a.txt": diskkit.TypeFile,
		"dir":   diskkit.TypeDirectory,
	}, collect("", false))

	assert.Equal(t, map[string]diskkit.AttributeType{
		"a.txt":         diskkit.TypeFile,
		"dir":           diskkit.TypeDirectory,
		"dir/b.txt":     diskkit.TypeFile,
		"dir/sub":       diskkit.TypeDirectory,
		"dir/sub/c.txt": diskkit.TypeFile,
	}, collect("", true))

	assert.Equal(t, map[string]diskkit.AttributeType{
		"dir/b.txt": diskkit.TypeFile,
		"dir/sub":   diskkit.TypeDirectory,
	}, collect("dir", false))

	assert.Empty(t, collect("missing", true))
}

func TestListContents_StopsEarly(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	for _, p := range []string{"1.txt", "2.txt", "3.txt"} {
		require.NoError(t, a.Write(ctx, p, []byte(p), nil))
	}

	n := 0
	for range a.ListContents(ctx, "", true) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "f.txt", []byte("x"), nil))
	require.NoError(t, a.Delete(ctx, "f.txt"))

	exists, err := a.FileExists(ctx, "f.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, a.Delete(ctx, "f.txt"), "deleting a missing file succeeds")

	require.NoError(t, a.CreateDirectory(ctx, "dir", nil))
	assert.ErrorIs(t, a.Delete(ctx, "dir"), diskkit.ErrIsDir)
}

func TestDeleteDirectory(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "dir/sub/f.txt", []byte("x"), nil))
	require.NoError(t, a.DeleteDirectory(ctx, "dir"))

	exists, err := a.DirectoryExists(ctx, "dir")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, a.DeleteDirectory(ctx, "dir"))
	assert.ErrorIs(t, a.DeleteDirectory(ctx, ""), diskkit.ErrNotAllowed)
}

func TestCreateDirectory_OverFile(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "f", []byte("x"), nil))
	assert.ErrorIs(t, a.CreateDirectory(ctx, "f", nil), diskkit.ErrExist)
}

func TestMoveCopy(t *testing.T) {
	ctx := context.Background()
	a, root := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "src.txt", []byte("data"), &diskkit.Options{Visibility: diskkit.Private}))

	require.NoError(t, a.Copy(ctx, "src.txt", "copies/copy.txt", nil))
	info, err := os.Stat(filepath.Join(root, "copies", "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, diskkit.DefaultFilePrivate, info.Mode().Perm())

	require.NoError(t, a.Copy(ctx, "src.txt", "public.txt", &diskkit.Options{Visibility: diskkit.Public}))
	info, err = os.Stat(filepath.Join(root, "public.txt"))
	require.NoError(t, err)
	assert.Equal(t, diskkit.DefaultFilePublic, info.Mode().Perm())

	require.NoError(t, a.Move(ctx, "src.txt", "moved/src.txt", nil))
	exists, err := a.FileExists(ctx, "src.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := a.Read(ctx, "moved/src.txt")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	assert.True(t, diskkit.IsNotExist(a.Move(ctx, "missing.txt", "x.txt", nil)))
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "data.json", []byte(`{"key":"value"}`), nil))

	attrs, err := a.MimeType(ctx, "data.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", attrs.MimeType())

	attrs, err = a.FileSize(ctx, "data.json")
	require.NoError(t, err)
	size, _ := attrs.FileSize()
	assert.Equal(t, int64(15), size)

	attrs, err = a.LastModified(ctx, "data.json")
	require.NoError(t, err)
	_, ok := attrs.LastModified()
	assert.True(t, ok)

	_, err = a.FileSize(ctx, "missing")
	assert.True(t, diskkit.IsNotExist(err))
}

func TestChecksum(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t, DisallowLinks)

	require.NoError(t, a.Write(ctx, "f.txt", []byte("hello"), nil))

	sum, err := a.Checksum(ctx, "f.txt", diskkit.ChecksumSHA256)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestContextCancellation(t *testing.T) {
	a, _ := newTestAdapter(t, DisallowLinks)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Write(ctx, "f.txt", []byte("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = a.FileExists(ctx, "f.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
