package file

import (
	"os"
	"time"
)

// refreshStatLocked records the current size and mtime; the caller must
// hold f.mu.
func (f *File) refreshStatLocked() {
	info, err := os.Stat(f.fullName)
	if err != nil {
		f.size, f.modTime = 0, time.Time{}
		return
	}
	f.size = info.Size()
	f.modTime = info.ModTime()
}

// UpdateStatus stats the underlying path and classifies this File as
// Unchanged, Modified, or Removed relative to its last known size/mtime
// (spec §4.5 "update_status_of_file()"), then records the new state.
func (f *File) UpdateStatus() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.fullName)
	if err != nil {
		wasPresent := f.size != 0 || !f.modTime.IsZero()
		f.size, f.modTime = 0, time.Time{}
		if wasPresent {
			return StatusRemoved
		}
		return StatusRemoved
	}

	changed := info.Size() != f.size || !info.ModTime().Equal(f.modTime)
	f.size, f.modTime = info.Size(), info.ModTime()
	if changed {
		return StatusModified
	}
	return StatusUnchanged
}
