package secmem

import "errors"

// ErrWrongSize is returned when a caller supplies key material of the wrong
// length to a fixed-size buffer constructor.
var ErrWrongSize = errors.New("secmem: key material has wrong size")
