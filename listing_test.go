package diskkit

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqOf(items ...StorageAttributes) iter.Seq2[StorageAttributes, error] {
	return func(yield func(StorageAttributes, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func paths(items []StorageAttributes) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path())
	}
	return out
}

func sampleListing() *DirectoryListing {
	return NewDirectoryListing(seqOf(
		NewFileAttributes("b.txt"),
		NewDirectoryAttributes("dir"),
		NewFileAttributes("dir/c.json"),
		NewFileAttributes("a.txt"),
	))
}

func TestDirectoryListing_SingleUse(t *testing.T) {
	l := sampleListing()

	items, err := l.ToSlice()
	require.NoError(t, err)
	assert.Len(t, items, 4)

	_, err = l.ToSlice()
	assert.ErrorIs(t, err, ErrListingConsumed)
}

func TestDirectoryListing_SortByPath(t *testing.T) {
	items, err := sampleListing().SortByPath()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "dir", "dir/c.json"}, paths(items))
}

func TestDirectoryListing_Filter(t *testing.T) {
	items, err := sampleListing().Filter(func(a StorageAttributes) bool { return a.IsFile() }).ToSlice()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "dir/c.json", "a.txt"}, paths(items))
}

func TestDirectoryListing_Map(t *testing.T) {
	items, err := sampleListing().Map(func(a StorageAttributes) StorageAttributes {
		return a.WithPath("archive/" + a.Path())
	}).ToSlice()
	require.NoError(t, err)
	assert.Equal(t, "archive/b.txt", items[0].Path())
}

func TestDirectoryListing_Match(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{pattern: "*.txt", want: []string{"b.txt", "a.txt"}},
		{pattern: "dir/*", want: []string{"dir/c.json"}},
		{pattern: "**.json", want: []string{"dir/c.json"}},
		{pattern: "{a,b}.txt", want: []string{"b.txt", "a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			l, err := sampleListing().Match(tt.pattern)
			require.NoError(t, err)
			items, err := l.ToSlice()
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths(items))
		})
	}

	_, err := sampleListing().Match("[a-")
	assert.Error(t, err)
}

func TestDirectoryListing_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	l := NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
		if !yield(NewFileAttributes("a.txt"), nil) {
			return
		}
		if !yield(nil, boom) {
			return
		}
		yield(NewFileAttributes("never.txt"), nil)
	})

	items, err := l.ToSlice()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a.txt"}, paths(items))
}

func TestDirectoryListing_Failed(t *testing.T) {
	boom := errors.New("boom")
	_, err := failedListing(boom).SortByPath()
	assert.ErrorIs(t, err, boom)
}
