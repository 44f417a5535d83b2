//go:build unix

package file

import (
	"os"
	"syscall"
)

// statGid returns the gid of the file at path, or -1 if it cannot be
// determined (including when the file does not yet exist).
func statGid(path string) int {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return -1
	}
	return int(st.Gid)
}

// restoreGid best-effort restores the group ownership a file had before
// it was replaced by the rename-atomic save (spec §4.5's "and,
// best-effort, gid" clause). Failures are silently ignored: this is a
// cosmetic restore, not a correctness requirement.
func restoreGid(path string, gid int) {
	if gid < 0 {
		return
	}
	_ = os.Chown(path, -1, gid)
}
