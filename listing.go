package diskkit

import (
	"iter"
	"sort"
	"sync/atomic"

	"github.com/gobwas/glob"
)

// DirectoryListing is a lazy, single-use sequence of StorageAttributes.
// Derived listings (Filter, Map, Match) consume their parent.
type DirectoryListing struct {
	seq      iter.Seq2[StorageAttributes, error]
	consumed atomic.Bool
}

// NewDirectoryListing wraps seq.
func NewDirectoryListing(seq iter.Seq2[StorageAttributes, error]) *DirectoryListing {
	return &DirectoryListing{seq: seq}
}

// failedListing yields err as its only element.
func failedListing(err error) *DirectoryListing {
	return NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
		yield(nil, err)
	})
}

// All returns the underlying sequence. Iterating a listing a second time
// yields ErrListingConsumed.
func (l *DirectoryListing) All() iter.Seq2[StorageAttributes, error] {
	return func(yield func(StorageAttributes, error) bool) {
		if l.consumed.Swap(true) {
			yield(nil, ErrListingConsumed)
			return
		}
		for attrs, err := range l.seq {
			if !yield(attrs, err) || err != nil {
				return
			}
		}
	}
}

// Filter keeps the entries for which keep returns true.
func (l *DirectoryListing) Filter(keep func(StorageAttributes) bool) *DirectoryListing {
	return NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
		for attrs, err := range l.All() {
			if err != nil {
				yield(nil, err)
				return
			}
			if keep(attrs) && !yield(attrs, nil) {
				return
			}
		}
	})
}

// Map replaces every entry with fn(entry).
func (l *DirectoryListing) Map(fn func(StorageAttributes) StorageAttributes) *DirectoryListing {
	return NewDirectoryListing(func(yield func(StorageAttributes, error) bool) {
		for attrs, err := range l.All() {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(fn(attrs), nil) {
				return
			}
		}
	})
}

// Match keeps the entries whose path matches the glob pattern. "*" does not
// cross "/" while "**" does.
func (l *DirectoryListing) Match(pattern string) (*DirectoryListing, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &PathError{Op: "match", Path: pattern, Err: err}
	}
	return l.Filter(func(attrs StorageAttributes) bool {
		return g.Match(attrs.Path())
	}), nil
}

// ToSlice drains the listing.
func (l *DirectoryListing) ToSlice() ([]StorageAttributes, error) {
	var out []StorageAttributes
	for attrs, err := range l.All() {
		if err != nil {
			return out, err
		}
		out = append(out, attrs)
	}
	return out, nil
}

// SortByPath drains the listing and sorts it by path.
func (l *DirectoryListing) SortByPath() ([]StorageAttributes, error) {
	out, err := l.ToSlice()
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path() < out[j].Path()
	})
	return out, nil
}
