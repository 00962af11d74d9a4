// Package secmem holds cryptographic key material in buffers that are wiped
// on drop and, where the OS permits, pinned out of swap (component C2).
// Nothing in this package chooses algorithms; it only manages the lifetime of
// the bytes those algorithms operate on.
package secmem

import (
	"crypto/subtle"
	"sync"
)

// ClearBytes zeroes b in place. The store routes through
// subtle.ConstantTimeCompare first so the compiler cannot prove the write is
// dead and elide it.
func ClearBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCompare(b, zero) // compiler barrier; result discarded
	for i := range b {
		b[i] = 0
	}
}

// SecureKey32 holds a fixed 32-byte key. It is pinned on first use where the
// OS allows it and wiped exactly once, whether Wipe is called explicitly or
// the process exits normally through a deferred call.
type SecureKey32 struct {
	mu     sync.Mutex
	buf    [32]byte
	pinned bool
	wiped  bool
}

// NewSecureKey32 copies key into a pinned, wipe-on-drop buffer. The caller
// still owns the original slice and should wipe it separately if it does not
// need it afterward.
func NewSecureKey32(key []byte) (*SecureKey32, error) {
	if len(key) != 32 {
		return nil, ErrWrongSize
	}
	k := &SecureKey32{}
	copy(k.buf[:], key)
	if err := pinPages(k.buf[:]); err != nil {
		logPinFailure(err)
	} else {
		k.pinned = true
	}
	return k, nil
}

// Bytes returns the live backing slice. The caller must not retain it past
// the key's Wipe call.
func (k *SecureKey32) Bytes() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.buf[:]
}

// Wipe zeroes the buffer and releases any page pin. Safe to call more than
// once; only the first call has effect.
func (k *SecureKey32) Wipe() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.wiped {
		return
	}
	ClearBytes(k.buf[:])
	if k.pinned {
		unpinPages(k.buf[:])
		k.pinned = false
	}
	k.wiped = true
}

// SecureBuf is a growable wipe-on-drop buffer for key material whose length
// is not known up front (derived passphrases, unwrapped DEKs before they are
// copied into a SecureKey32, HMAC tags under construction).
type SecureBuf struct {
	mu     sync.Mutex
	buf    []byte
	pinned bool
}

// NewSecureBuf allocates a zeroed buffer of size n and attempts to pin it.
func NewSecureBuf(n int) *SecureBuf {
	b := &SecureBuf{buf: make([]byte, n)}
	if n > 0 {
		if err := pinPages(b.buf); err != nil {
			logPinFailure(err)
		} else {
			b.pinned = true
		}
	}
	return b
}

// Bytes returns the live backing slice.
func (b *SecureBuf) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

// Resize wipes and unpins the current contents, then reallocates to n bytes
// and attempts to pin the new allocation. Old and new backing arrays never
// overlap, so growing never leaves a stale copy of the previous contents
// unwiped in memory.
func (b *SecureBuf) Resize(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ClearBytes(b.buf)
	if b.pinned {
		unpinPages(b.buf)
		b.pinned = false
	}
	b.buf = make([]byte, n)
	if n > 0 {
		if err := pinPages(b.buf); err != nil {
			logPinFailure(err)
		} else {
			b.pinned = true
		}
	}
}

// Wipe zeroes the buffer and releases any page pin, leaving the buffer at
// zero length.
func (b *SecureBuf) Wipe() {
	b.Resize(0)
}
