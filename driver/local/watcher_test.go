package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_FiresOnMatchingWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, _ := newTestAdapter(t, DisallowLinks)
	require.NoError(t, a.CreateDirectory(ctx, "config", nil))

	token, err := a.Watch(ctx, "config/*.json")
	require.NoError(t, err)
	assert.False(t, token.HasChanged())

	fired := make(chan struct{})
	token.RegisterChangeCallback(func() { close(fired) })

	require.NoError(t, a.Write(ctx, "config/app.json", []byte(`{}`), nil))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("change token did not fire")
	}
	assert.True(t, token.HasChanged())
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, _ := newTestAdapter(t, DisallowLinks)

	token, err := a.Watch(ctx, "*.json")
	require.NoError(t, err)

	require.NoError(t, a.Write(ctx, "notes.txt", []byte("x"), nil))
	time.Sleep(200 * time.Millisecond)
	assert.False(t, token.HasChanged())
}

func TestWatch_Recursive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, _ := newTestAdapter(t, DisallowLinks)
	require.NoError(t, a.CreateDirectory(ctx, "assets/css", nil))

	token, err := a.Watch(ctx, "assets/**.css")
	require.NoError(t, err)

	require.NoError(t, a.Write(ctx, "assets/css/site.css", []byte("body{}"), nil))

	assert.Eventually(t, token.HasChanged, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_InvalidPattern(t *testing.T) {
	a, _ := newTestAdapter(t, DisallowLinks)

	_, err := a.Watch(context.Background(), "[unclosed")
	assert.Error(t, err)

	_, err = a.Watch(context.Background(), "../outside/*")
	assert.Error(t, err)
}

func TestStaticPrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"config/*.json", "config"},
		{"*.json", ""},
		{"a/b/**", "a/b"},
		{"a/b/file.txt", "a/b"},
		{"file.txt", "."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, staticPrefix(tt.pattern), tt.pattern)
	}
}

type recordingAdder struct {
	added []string
	fail  string
}

func (r *recordingAdder) Add(name string) error {
	if name == r.fail {
		return errors.New("too many open files")
	}
	r.added = append(r.added, name)
	return nil
}

func TestAddTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f.txt"), []byte("x"), 0o644))

	w := &recordingAdder{}
	require.NoError(t, addTree(w, root))
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "c"),
	}, w.added)

	w = &recordingAdder{fail: filepath.Join(root, "a", "b")}
	assert.EqualError(t, addTree(w, root), "too many open files")

	err := addTree(&recordingAdder{}, filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatch_RecursiveMissingRoot(t *testing.T) {
	a, _ := newTestAdapter(t, DisallowLinks)

	_, err := a.Watch(context.Background(), "nowhere/**.css")
	assert.Error(t, err)
}
