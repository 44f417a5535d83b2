package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"oks/internal/okserr"
)

// WriteAtomic implements spec §4.5's rename-atomic save pattern: write to
// a `path.tmp.user:host:pid:N` sibling (picking N until a name is free),
// close, rename over the destination, then restore mode and, best-effort,
// gid. write is handed an *os.File to stream the serialized content into;
// it must not close it.
func (f *File) WriteAtomic(write func(w io.Writer) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.fullName)
	base := filepath.Base(f.fullName)
	user, host := currentUserHost()
	pid := os.Getpid()

	var tmpPath string
	var tmp *os.File
	for n := 0; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s.tmp.%s:%s:%d:%d", base, user, host, pid, n))
		fh, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			tmpPath, tmp = candidate, fh
			break
		}
		if !os.IsExist(err) {
			return &okserr.FileError{Path: f.fullName, Op: "save", Reason: err.Error()}
		}
	}

	var mode os.FileMode = 0o644
	var haveOldMode bool
	if info, err := os.Stat(f.fullName); err == nil {
		mode = info.Mode()
		haveOldMode = true
	}
	gid := statGid(f.fullName)

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &okserr.FileError{Path: f.fullName, Op: "save", Reason: err.Error()}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &okserr.FileError{Path: f.fullName, Op: "save", Reason: err.Error()}
	}

	if err := os.Rename(tmpPath, f.fullName); err != nil {
		os.Remove(tmpPath)
		return &okserr.FileError{Path: f.fullName, Op: "save", Reason: err.Error()}
	}

	if haveOldMode {
		_ = os.Chmod(f.fullName, mode)
	}
	restoreGid(f.fullName, gid)

	f.updated = false
	f.refreshStatLocked()
	return nil
}

// SaveAs renames the file, writes it, and on any failure rewinds the
// rename (spec §4.6 "save_as").
func (f *File) SaveAs(newFull string, write func(w io.Writer) error) error {
	f.mu.RLock()
	oldShort, oldFull := f.shortName, f.fullName
	f.mu.RUnlock()

	f.Rename(filepath.Base(newFull), newFull)
	if err := f.WriteAtomic(write); err != nil {
		f.Rename(oldShort, oldFull)
		return err
	}
	return nil
}
