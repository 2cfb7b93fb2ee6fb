package diskhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/driver/local"
	"github.com/gobeaver/diskkit/manager"
)

func setupRouter(t *testing.T) (http.Handler, diskkit.Disk) {
	t.Helper()

	m := manager.New(manager.WithWorkingDir(t.TempDir()))
	disk, err := m.RegisterDisk("docs", local.DriverName, t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, disk.Write(ctx, "readme.txt", []byte("hello world")))
	require.NoError(t, disk.Write(ctx, "guides/intro.txt", []byte("intro")))

	return NewRouter(m), disk
}

func TestRouter_File(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/disks/docs/files/readme.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.Equal(t, `inline; filename=readme.txt`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
}

func TestRouter_Head(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodHead, "/disks/docs/files/readme.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
}

func TestRouter_Download(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/disks/docs/download/guides/intro.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "intro", rec.Body.String())
	assert.Equal(t, `attachment; filename=intro.txt`, rec.Header().Get("Content-Disposition"))
}

func TestRouter_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "unknown disk", path: "/disks/nope/files/readme.txt", wantStatus: http.StatusNotFound},
		{name: "missing file", path: "/disks/docs/files/missing.txt", wantStatus: http.StatusNotFound},
		{name: "directory", path: "/disks/docs/files/guides", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRouter_List(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/disks/docs/list?deep=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	paths := make([]string, 0, len(body.Entries))
	for _, e := range body.Entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"guides", "guides/intro.txt", "readme.txt"}, paths)

	readme := body.Entries[2]
	assert.Equal(t, "file", readme.Type)
	require.NotNil(t, readme.Size)
	assert.Equal(t, int64(11), *readme.Size)
	assert.Equal(t, "text/plain", readme.MimeType)
}

func TestRouter_ListSymlinkForbidden(t *testing.T) {
	m := manager.New()
	root := t.TempDir()
	disk, err := m.RegisterDisk("links", local.DriverName, root)
	require.NoError(t, err)
	require.NoError(t, disk.Write(context.Background(), "target.txt", []byte("x")))
	require.NoError(t, os.Symlink(filepath.Join(root, "target.txt"), filepath.Join(root, "link.txt")))

	req := httptest.NewRequest(http.MethodGet, "/disks/links/list", nil)
	rec := httptest.NewRecorder()
	NewRouter(m).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_DefaultDiskAndNames(t *testing.T) {
	router, disk := setupRouter(t)
	require.NoError(t, disk.AsDefault())

	req := httptest.NewRequest(http.MethodGet, "/disks/default/files/readme.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/disks", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"disks":["docs"]}`, rec.Body.String())
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&diskkit.PathError{Op: "read", Path: "a", Err: diskkit.ErrNotExist}, http.StatusNotFound},
		{&diskkit.PathError{Op: "read", Path: "a", Err: diskkit.ErrPermission}, http.StatusForbidden},
		{&diskkit.SymbolicLinkEncountered{Location: "a"}, http.StatusForbidden},
		{&diskkit.PathError{Op: "normalize", Path: "../a", Err: diskkit.ErrPathTraversal}, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), "%v", tt.err)
	}
}
