package memory

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/diskkit"
)

func collect(t *testing.T, a *Adapter, p string, deep bool) []string {
	t.Helper()
	var paths []string
	for attrs, err := range a.ListContents(context.Background(), p, deep) {
		require.NoError(t, err)
		paths = append(paths, attrs.Path())
	}
	return paths
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("writes and overwrites", func(t *testing.T) {
		a := New(Config{})
		require.NoError(t, a.Write(ctx, "test.txt", []byte("hello world"), nil))
		require.NoError(t, a.Write(ctx, "test.txt", []byte("bye"), nil))

		data, err := a.Read(ctx, "test.txt")
		require.NoError(t, err)
		assert.Equal(t, "bye", string(data))
		assert.Equal(t, int64(3), a.Size())
		assert.Equal(t, 1, a.FileCount())
	})

	t.Run("creates parent directories", func(t *testing.T) {
		a := New(Config{})
		require.NoError(t, a.Write(ctx, "a/b/c.txt", []byte("x"), &diskkit.Options{DirectoryVisibility: diskkit.Private}))

		for _, dir := range []string{"a", "a/b"} {
			ok, err := a.DirectoryExists(ctx, dir)
			require.NoError(t, err)
			assert.True(t, ok, dir)
		}
		attrs, err := a.Visibility(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, diskkit.Private, attrs.Visibility())
	})

	t.Run("respects max size limit", func(t *testing.T) {
		a := New(Config{MaxSize: 10})
		require.NoError(t, a.Write(ctx, "small.txt", []byte("12345"), nil))

		err := a.Write(ctx, "large.txt", []byte("this is too large"), nil)
		assert.ErrorIs(t, err, ErrNoSpace)

		// Replacing a file only counts the difference.
		require.NoError(t, a.Write(ctx, "small.txt", []byte("0123456789"), nil))
	})

	t.Run("rejects writes through files and onto directories", func(t *testing.T) {
		a := New(Config{})
		require.NoError(t, a.Write(ctx, "file", []byte("x"), nil))
		require.NoError(t, a.CreateDirectory(ctx, "dir", nil))

		assert.ErrorIs(t, a.Write(ctx, "file/child.txt", []byte("x"), nil), diskkit.ErrNotDir)
		assert.ErrorIs(t, a.Write(ctx, "dir", []byte("x"), nil), diskkit.ErrIsDir)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		a := New(Config{})
		assert.ErrorIs(t, a.Write(ctx, "../etc/passwd", []byte("x"), nil), diskkit.ErrNotAllowed)
	})

	t.Run("content type", func(t *testing.T) {
		a := New(Config{})
		require.NoError(t, a.Write(ctx, "data.bin", []byte("x"), &diskkit.Options{ContentType: "application/x-custom"}))
		require.NoError(t, a.Write(ctx, "page.html", []byte("<html><body></body></html>"), nil))

		attrs, err := a.MimeType(ctx, "data.bin")
		require.NoError(t, err)
		assert.Equal(t, "application/x-custom", attrs.MimeType())

		attrs, err = a.MimeType(ctx, "page.html")
		require.NoError(t, err)
		assert.Equal(t, "text/html", attrs.MimeType())
	})

	t.Run("stores metadata", func(t *testing.T) {
		a := New(Config{})
		meta := map[string]string{"owner": "ops"}
		require.NoError(t, a.Write(ctx, "m.txt", []byte("x"), &diskkit.Options{Metadata: meta}))
		meta["owner"] = "changed"

		got, err := a.Metadata(ctx, "m.txt")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"owner": "ops"}, got)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		a := New(Config{})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, a.Write(cctx, "x.txt", []byte("x"), nil), context.Canceled)
	})
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "f.txt", []byte("content"), nil))

	data, err := a.Read(ctx, "f.txt")
	require.NoError(t, err)
	data[0] = 'X'

	rc, err := a.ReadStream(ctx, "f.txt")
	require.NoError(t, err)
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content", string(streamed), "callers cannot modify stored content")

	_, err = a.Read(ctx, "missing.txt")
	assert.True(t, diskkit.IsNotExist(err))

	require.NoError(t, a.CreateDirectory(ctx, "dir", nil))
	_, err = a.Read(ctx, "dir")
	assert.ErrorIs(t, err, diskkit.ErrIsDir)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "f.txt", []byte("12345"), nil))

	require.NoError(t, a.Delete(ctx, "f.txt"))
	assert.Equal(t, int64(0), a.Size())
	ok, err := a.FileExists(ctx, "f.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, a.Delete(ctx, "f.txt"), "deleting a missing file succeeds")

	require.NoError(t, a.CreateDirectory(ctx, "dir", nil))
	assert.ErrorIs(t, a.Delete(ctx, "dir"), diskkit.ErrIsDir)
}

func TestDeleteDirectory(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "dir/a.txt", []byte("aa"), nil))
	require.NoError(t, a.Write(ctx, "dir/sub/b.txt", []byte("bb"), nil))
	require.NoError(t, a.Write(ctx, "dirty.txt", []byte("cc"), nil))

	require.NoError(t, a.DeleteDirectory(ctx, "dir"))
	assert.Equal(t, []string{"dirty.txt"}, collect(t, a, "", true))
	assert.Equal(t, int64(2), a.Size())

	assert.NoError(t, a.DeleteDirectory(ctx, "dir"))
	assert.ErrorIs(t, a.DeleteDirectory(ctx, "dirty.txt"), diskkit.ErrNotDir)
	assert.ErrorIs(t, a.DeleteDirectory(ctx, ""), diskkit.ErrNotAllowed)
}

func TestCreateDirectory(t *testing.T) {
	ctx := context.Background()
	a := New(Config{Visibility: diskkit.Private})

	require.NoError(t, a.CreateDirectory(ctx, "x/y", nil))
	attrs, err := a.Visibility(ctx, "x/y")
	require.NoError(t, err)
	assert.Equal(t, diskkit.Private, attrs.Visibility())

	require.NoError(t, a.CreateDirectory(ctx, "x/y", &diskkit.Options{Visibility: diskkit.Public}))
	attrs, err = a.Visibility(ctx, "x/y")
	require.NoError(t, err)
	assert.Equal(t, diskkit.Public, attrs.Visibility())

	require.NoError(t, a.Write(ctx, "f", []byte("x"), nil))
	assert.ErrorIs(t, a.CreateDirectory(ctx, "f", nil), diskkit.ErrExist)
}

func TestListContents(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	for _, p := range []string{"b.txt", "a/one.txt", "a/two/three.txt"} {
		require.NoError(t, a.Write(ctx, p, []byte(p), nil))
	}

	assert.Equal(t, []string{"a", "b.txt"}, collect(t, a, "", false))
	assert.Equal(t, []string{"a", "a/one.txt", "a/two", "a/two/three.txt", "b.txt"}, collect(t, a, "/", true))
	assert.Equal(t, []string{"a/one.txt", "a/two"}, collect(t, a, "a", false))
	assert.Empty(t, collect(t, a, "missing", true))
	assert.Empty(t, collect(t, a, "b.txt", true))

	for attrs, err := range a.ListContents(ctx, "a", false) {
		require.NoError(t, err)
		if file, ok := attrs.(*diskkit.FileAttributes); ok {
			size, _ := file.FileSize()
			assert.Equal(t, int64(len("a/one.txt")), size)
			assert.Equal(t, "text/plain", file.MimeType())
			assert.Equal(t, diskkit.Public, file.Visibility())
		}
	}
}

func TestMoveCopy(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "src.txt", []byte("data"), &diskkit.Options{Visibility: diskkit.Private}))

	require.NoError(t, a.Copy(ctx, "src.txt", "copy/dst.txt", nil))
	attrs, err := a.Visibility(ctx, "copy/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, diskkit.Private, attrs.Visibility())
	assert.Equal(t, int64(8), a.Size())

	require.NoError(t, a.Move(ctx, "src.txt", "moved.txt", &diskkit.Options{Visibility: diskkit.Public}))
	ok, err := a.FileExists(ctx, "src.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	attrs, err = a.Visibility(ctx, "moved.txt")
	require.NoError(t, err)
	assert.Equal(t, diskkit.Public, attrs.Visibility())

	// Moving onto an existing file replaces it.
	require.NoError(t, a.Move(ctx, "moved.txt", "copy/dst.txt", nil))
	assert.Equal(t, int64(4), a.Size())

	require.NoError(t, a.Move(ctx, "copy/dst.txt", "copy/dst.txt", nil))
	assert.True(t, diskkit.IsNotExist(a.Move(ctx, "missing", "x", nil)))
	assert.True(t, diskkit.IsNotExist(a.Copy(ctx, "missing", "x", nil)))
}

func TestChecksum(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "f.txt", []byte("hello"), nil))

	sum, err := a.Checksum(ctx, "f.txt", diskkit.ChecksumSHA256)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	_, err = a.Checksum(ctx, "f.txt", "blake3")
	assert.ErrorIs(t, err, diskkit.ErrNotSupported)
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := New(Config{})

	jsonToken, err := a.Watch(ctx, "config/*.json")
	require.NoError(t, err)
	deepToken, err := a.Watch(ctx, "**.txt")
	require.NoError(t, err)

	require.NoError(t, a.Write(ctx, "config/nested/app.json", []byte("{}"), nil))
	assert.False(t, jsonToken.HasChanged(), "* does not cross directories")

	require.NoError(t, a.Write(ctx, "config/app.json", []byte("{}"), nil))
	assert.True(t, jsonToken.HasChanged())
	assert.False(t, deepToken.HasChanged())

	require.NoError(t, a.Write(ctx, "a/b/c.txt", []byte("x"), nil))
	assert.True(t, deepToken.HasChanged())
	assert.Equal(t, 0, a.watchCount(), "fired tokens are dropped")

	_, err = a.Watch(ctx, "[unclosed")
	assert.Error(t, err)
}

func TestWatch_DeleteDirectoryAndCancel(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "logs/a.log", []byte("x"), nil))

	wctx, cancel := context.WithCancel(ctx)
	token, err := a.Watch(wctx, "logs/*.log")
	require.NoError(t, err)

	fired := make(chan struct{})
	token.RegisterChangeCallback(func() { close(fired) })
	require.NoError(t, a.DeleteDirectory(ctx, "logs"))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("token did not fire")
	}

	_, err = a.Watch(wctx, "*.tmp")
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return a.watchCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	a := New(Config{})
	require.NoError(t, a.Write(ctx, "a/b.txt", []byte("x"), nil))

	a.Clear()
	assert.Equal(t, 0, a.FileCount())
	assert.Equal(t, int64(0), a.Size())
	assert.Empty(t, collect(t, a, "", true))

	ok, err := a.DirectoryExists(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseArgs(t *testing.T) {
	cfg, err := ParseArgs()
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)

	cfg, err = ParseArgs(map[string]any{"max_size": "1024", "visibility": "private"})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), cfg.MaxSize)
	assert.Equal(t, diskkit.Private, cfg.Visibility)

	cfg, err = ParseArgs(Config{MaxSize: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.MaxSize)

	tests := []struct {
		name string
		args []any
	}{
		{name: "negative size", args: []any{map[string]any{"max_size": -1}}},
		{name: "unknown visibility", args: []any{map[string]any{"visibility": "shared"}}},
		{name: "wrong type", args: []any{42}},
		{name: "too many", args: []any{nil, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args...)
			assert.True(t, diskkit.IsConfigError(err), "got %v", err)
		})
	}
}

func TestDriver_Open(t *testing.T) {
	ctx := context.Background()

	disk, err := NewDriver().Open(map[string]any{"max_size": 4})
	require.NoError(t, err)

	require.NoError(t, disk.Write(ctx, "/docs/../a.txt", []byte("1234")))
	has, err := disk.Has(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, has)

	err = disk.Write(ctx, "b.txt", []byte("5"))
	assert.True(t, errors.Is(err, ErrNoSpace))

	_, err = NewDriver().Open("not a config")
	assert.True(t, diskkit.IsConfigError(err))
}
