package secmem

import "github.com/tjdeveng/keeptower/internal/obs"

// logPinFailure reports a failed page-pin attempt. It is never fatal: a
// process without CAP_IPC_LOCK (or, on Windows, without the working-set quota
// for VirtualLock) still gets correct encryption, just without the
// swap-exclusion guarantee.
func logPinFailure(err error) {
	obs.Debug("secmem: page pin failed, continuing without it", "err", err)
}
