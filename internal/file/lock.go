package file

import (
	"fmt"
	"os"

	"oks/internal/okserr"
)

// Lock attempts to create a sibling lock file named after this file with
// a user/host/pid suffix (spec §4.5 "lock()"). On success the in-memory
// locked flag is set and the sibling path is remembered so Unlock can
// remove it.
func (f *File) Lock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return nil
	}
	user, host := currentUserHost()
	path := fmt.Sprintf("%s.lock.%s:%s:%d", f.fullName, user, host, os.Getpid())

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &okserr.FileError{Path: f.fullName, Op: "lock", Reason: err.Error()}
	}
	fh.Close()

	f.locked = true
	f.lockPath = path
	return nil
}

// Unlock removes the sibling lock file created by Lock and clears the
// in-memory locked flag. It is a no-op if the file was never locked.
func (f *File) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.locked {
		return nil
	}
	path := f.lockPath
	f.locked = false
	f.lockPath = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &okserr.FileError{Path: f.fullName, Op: "unlock", Reason: err.Error()}
	}
	return nil
}

// Locked reports the in-memory lock flag.
func (f *File) Locked() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.locked
}

// CheckReadOnly probes for write access by attempting to create a
// transient sibling next to the file, recording the outcome (spec §4.5
// "check_read_only()").
func (f *File) CheckReadOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	probe := f.fullName + ".oks-rotest"
	fh, err := os.OpenFile(probe, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		f.readOnly = true
		return true
	}
	fh.Close()
	os.Remove(probe)
	f.readOnly = false
	return false
}
