// Package file implements File: the metadata record the kernel keeps per
// schema or data file, plus its locking and rename-atomic save operations
// (spec §4.5). A File never owns the Classes/Objects parsed from it.
package file

import (
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"oks/internal/okserr"
)

// Format labels the three on-disk shapes a File can hold.
type Format int

const (
	FormatSchema Format = iota
	FormatData
	FormatCompact
)

func (f Format) String() string {
	switch f {
	case FormatSchema:
		return "schema"
	case FormatData:
		return "data"
	case FormatCompact:
		return "compact"
	default:
		return "unknown"
	}
}

// Status classifies a File relative to its last recorded size/mtime,
// as reported by UpdateStatus.
type Status int

const (
	StatusUnchanged Status = iota
	StatusModified
	StatusRemoved
)

// File holds only metadata; it never owns the objects/classes parsed
// from it (spec §4.5).
type File struct {
	mu sync.RWMutex

	shortName string
	fullName  string // absolute, realpath-canonical
	logicalName string
	typeLabel string
	format    Format

	author      string
	host        string
	createdAt   time.Time

	includes []string // short names as listed in the <include> block
	parent   *File

	itemCount int
	size      int64
	modTime   time.Time

	locked   bool
	lockPath string

	readOnly bool
	updated  bool
}

// New constructs an in-memory File not yet backed by a saved path (the
// "new" lifecycle entry point of spec §4.5).
func New(shortName, logicalName, typeLabel string, format Format) *File {
	u, host := currentUserHost()
	return &File{
		shortName:   shortName,
		fullName:    shortName,
		logicalName: logicalName,
		typeLabel:   typeLabel,
		format:      format,
		author:      u,
		host:        host,
		createdAt:   now(),
	}
}

// Open constructs a File bound to an already-existing path (the "open"
// lifecycle entry point); header metadata is filled in by the caller
// (internal/kernel, which parses the header before constructing this
// value) via the Set* setters below.
func Open(shortName, fullName string, format Format) (*File, error) {
	abs, err := filepath.Abs(fullName)
	if err != nil {
		return nil, &okserr.FileError{Path: fullName, Op: "open", Reason: err.Error()}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		abs = resolved
	}
	f := &File{shortName: shortName, fullName: abs, format: format}
	f.refreshStatLocked()
	return f, nil
}

func now() time.Time { return time.Now() }

func currentUserHost() (string, string) {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return name, host
}

// Accessors.
func (f *File) ShortName() string { f.mu.RLock(); defer f.mu.RUnlock(); return f.shortName }
func (f *File) FullName() string  { f.mu.RLock(); defer f.mu.RUnlock(); return f.fullName }
func (f *File) LogicalName() string { f.mu.RLock(); defer f.mu.RUnlock(); return f.logicalName }
func (f *File) TypeLabel() string { f.mu.RLock(); defer f.mu.RUnlock(); return f.typeLabel }
func (f *File) Format() Format    { f.mu.RLock(); defer f.mu.RUnlock(); return f.format }
func (f *File) Author() string   { f.mu.RLock(); defer f.mu.RUnlock(); return f.author }
func (f *File) Host() string     { f.mu.RLock(); defer f.mu.RUnlock(); return f.host }
func (f *File) CreatedAt() time.Time { f.mu.RLock(); defer f.mu.RUnlock(); return f.createdAt }
func (f *File) ItemCount() int   { f.mu.RLock(); defer f.mu.RUnlock(); return f.itemCount }
func (f *File) ReadOnly() bool   { f.mu.RLock(); defer f.mu.RUnlock(); return f.readOnly }
func (f *File) Updated() bool    { f.mu.RLock(); defer f.mu.RUnlock(); return f.updated }
func (f *File) Parent() *File    { f.mu.RLock(); defer f.mu.RUnlock(); return f.parent }
func (f *File) Includes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.includes...)
}

func (f *File) SetParent(p *File) { f.mu.Lock(); f.parent = p; f.mu.Unlock() }
func (f *File) SetIncludes(names []string) {
	f.mu.Lock()
	f.includes = append([]string{}, names...)
	f.mu.Unlock()
}
func (f *File) SetHeader(author, host string, created time.Time) {
	f.mu.Lock()
	f.author, f.host, f.createdAt = author, host, created
	f.mu.Unlock()
}
func (f *File) SetItemCount(n int) { f.mu.Lock(); f.itemCount = n; f.mu.Unlock() }

// MarkUpdated satisfies schema.FileWriteLocker: it flips the updated flag
// so a later save knows this file's content changed in memory.
func (f *File) MarkUpdated() {
	f.mu.Lock()
	f.updated = true
	f.mu.Unlock()
}

// LockWrite/UnlockWrite satisfy schema.FileWriteLocker with the plain
// in-process mutex; the sibling-lock-file dance below (Lock/Unlock) is
// the separate cross-process advisory lock spec §4.5 describes.
func (f *File) LockWrite()   { f.mu.Lock() }
func (f *File) UnlockWrite() { f.mu.Unlock() }

// Rename takes a write lock, updates the short/full names, and resets
// the cross-process lock state — the caller (kernel) is responsible for
// re-keying its file maps under the same lock (spec §4.5 "File" Lifecycle).
func (f *File) Rename(newShort, newFull string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortName, f.fullName = newShort, newFull
	f.locked = false
	f.lockPath = ""
}
