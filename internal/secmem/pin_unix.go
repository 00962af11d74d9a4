//go:build unix

package secmem

import "golang.org/x/sys/unix"

// pinPages attempts to lock buf's pages into RAM so they cannot be written
// to swap. Requires CAP_IPC_LOCK or a sufficient RLIMIT_MEMLOCK; failure is
// the caller's to log and ignore.
func pinPages(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Mlock(buf)
}

func unpinPages(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Munlock(buf)
}
