//go:build windows

package secmem

import "golang.org/x/sys/windows"

// pinPages attempts to lock buf's pages into the process working set via
// VirtualLock. Windows requires the pages to stay within the process's
// working-set quota; failure is the caller's to log and ignore.
func pinPages(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return windows.VirtualLock(&buf[0], uintptr(len(buf)))
}

func unpinPages(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return windows.VirtualUnlock(&buf[0], uintptr(len(buf)))
}
