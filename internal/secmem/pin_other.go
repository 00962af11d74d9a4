//go:build !unix && !windows

package secmem

import "errors"

var errUnsupportedPlatform = errors.New("secmem: page pinning not supported on this platform")

func pinPages(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return errUnsupportedPlatform
}

func unpinPages(buf []byte) error {
	return nil
}
