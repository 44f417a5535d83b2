//go:build !unix

package file

// statGid and restoreGid are no-ops on platforms without a POSIX gid
// (spec §4.5's gid restore is best-effort by design).
func statGid(path string) int           { return -1 }
func restoreGid(path string, gid int) {}
