package schema

import (
	"sort"
	"sync"

	"oks/internal/value"
)

// OrderedIndex is the optional per-attribute ordered index spec §1's
// Non-goals permit ("no indexing beyond an optional per-attribute
// ordered index"). It keeps (value, object) pairs for one attribute of
// one class sorted by value. Class.Index creates it empty; it is then
// maintained incrementally by Object.Set's remove/insert pair.
type OrderedIndex struct {
	mu      sync.RWMutex
	attr    string
	entries []indexEntry
}

type indexEntry struct {
	val value.Data
	obj value.ObjectHandle
}

func newOrderedIndex(attr string) *OrderedIndex {
	return &OrderedIndex{attr: attr}
}

// AttrName returns the indexed attribute's name.
func (idx *OrderedIndex) AttrName() string { return idx.attr }

// Rebuild replaces the index contents from a fresh (value, object) set.
// Nothing in this module calls it.
func (idx *OrderedIndex) Rebuild(pairs []struct {
	Val value.Data
	Obj value.ObjectHandle
}) {
	entries := make([]indexEntry, len(pairs))
	for i, p := range pairs {
		entries[i] = indexEntry{val: p.Val, obj: p.Obj}
	}
	sort.Slice(entries, func(i, j int) bool { return less(entries[i].val, entries[j].val) })
	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
}

// Insert adds (val, obj) in sorted position.
func (idx *OrderedIndex) Insert(val value.Data, obj value.ObjectHandle) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	i := sort.Search(len(idx.entries), func(i int) bool { return !less(idx.entries[i].val, val) })
	idx.entries = append(idx.entries, indexEntry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = indexEntry{val: val, obj: obj}
}

// Remove deletes the first (val, obj) pair whose object id matches obj's,
// used before Insert re-adds the object's new value (spec §4.4 "optional
// index maintenance (remove from index, update, re-insert)").
func (idx *OrderedIndex) Remove(val value.Data, obj value.ObjectHandle) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, e := range idx.entries {
		if e.obj.ObjectID() == obj.ObjectID() && e.obj.ClassName() == obj.ClassName() {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			return
		}
	}
}

// Range returns every object whose indexed value falls within [lo, hi]
// inclusive, in ascending value order.
func (idx *OrderedIndex) Range(lo, hi value.Data) []value.ObjectHandle {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []value.ObjectHandle
	for _, e := range idx.entries {
		if !less(e.val, lo) && !less(hi, e.val) {
			out = append(out, e.obj)
		}
	}
	return out
}

// less orders two Data values of the same kind: numerically for numeric
// kinds, lexically for strings, by (class,id) for references.
func less(a, b value.Data) bool {
	if af, ok := a.AsFloat(); ok {
		if bf, ok := b.AsFloat(); ok {
			return af < bf
		}
	}
	if a.Kind == value.KindString {
		return a.Str() < b.Str()
	}
	if a.IsRef() {
		if a.RefClassName() != b.RefClassName() {
			return a.RefClassName() < b.RefClassName()
		}
		return a.RefObjectID() < b.RefObjectID()
	}
	return false
}
