package vaultio

import (
	"os"

	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// DocumentV2 is a loaded V2 vault: its header (policy + slot table) plus the
// decrypted record blob.
type DocumentV2 struct {
	Header    HeaderV2
	Plaintext []byte
}

// ParsedV2 is a V2 vault file with its header parsed but the record blob
// not yet decrypted — the shape the facade needs to locate a user's slot
// before it can derive the KEK that unwraps the DEK.
type ParsedV2 struct {
	Header     HeaderV2
	AAD        []byte
	Ciphertext []byte

	// raw and ctStart retain the full file and the header-prefix length so
	// Decrypt can retry against an FEC-reconstructed AAD if the first
	// attempt fails — recovery can only be known to be necessary once the
	// AEAD tag check itself fails, not at parse time (see reconstructAAD).
	raw     []byte
	ctStart int
}

// LoadHeaderV2 reads path and parses its header, attempting FEC
// reconstruction if the primary header fails its self-check and a trailer
// is present. It does not touch the ciphertext's authenticity — Decrypt
// below does that once a caller has derived the DEK.
func LoadHeaderV2(fs FileSystem, path string) (ParsedV2, error) {
	raw, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ParsedV2{}, ErrVaultNotFound
		}
		return ParsedV2{}, err
	}

	header, ctStart, aad, herr := decodeOrRecoverHeaderV2(raw)
	if herr != nil {
		return ParsedV2{}, herr
	}

	ctEnd := ctStart + int(header.CiphertextLen)
	if ctEnd > len(raw) {
		return ParsedV2{}, vaulterr.ErrCorrupted
	}

	return ParsedV2{
		Header:     header,
		AAD:        aad,
		Ciphertext: raw[ctStart:ctEnd],
		raw:        raw,
		ctStart:    ctStart,
	}, nil
}

// Decrypt authenticates and decrypts parsed's record blob under dek. If the
// first attempt fails and an FEC trailer is present, it retries once against
// the FEC-reconstructed header prefix as AAD: a single flipped byte in a
// field DecodeHeaderV2 doesn't validate (e.g. a slot's reserved byte, a
// timestamp) corrupts the AAD without ever tripping a decode error, so
// recovery has to be attempted here, not only when parsing fails outright.
func (parsed ParsedV2) Decrypt(p crypto.Provider, dek []byte) ([]byte, error) {
	plaintext, err := p.Decrypt(dek, parsed.Header.AEADNonce, parsed.AAD, parsed.Ciphertext)
	if err == nil {
		return plaintext, nil
	}

	if fixedAAD, ok := parsed.reconstructAAD(); ok {
		if plaintext, rerr := p.Decrypt(dek, parsed.Header.AEADNonce, fixedAAD, parsed.Ciphertext); rerr == nil {
			return plaintext, nil
		}
	}
	return nil, vaulterr.ErrBadCredentials
}

// reconstructAAD re-derives the header prefix from the FEC trailer, if one
// is present, for a caller whose first Decrypt attempt failed against the
// as-read AAD.
func (parsed ParsedV2) reconstructAAD() ([]byte, bool) {
	markerAt := findFECMarker(parsed.raw)
	if markerAt < 0 {
		return nil, false
	}
	fixed, err := ReconstructFEC(parsed.raw[:markerAt], parsed.raw[markerAt:], markerAt)
	if err != nil || len(fixed) < parsed.ctStart {
		return nil, false
	}
	return fixed[:parsed.ctStart], true
}

// ReadV2 loads path and returns the decoded header plus decrypted record
// blob under the supplied DEK (the facade having already resolved it via
// the key-slot engine).
func ReadV2(fs FileSystem, p crypto.Provider, path string, dek []byte) (DocumentV2, error) {
	parsed, err := LoadHeaderV2(fs, path)
	if err != nil {
		return DocumentV2{}, err
	}
	plaintext, err := parsed.Decrypt(p, dek)
	if err != nil {
		return DocumentV2{}, err
	}
	return DocumentV2{Header: parsed.Header, Plaintext: plaintext}, nil
}

// decodeOrRecoverHeaderV2 decodes raw's header, falling back to FEC
// reconstruction if the primary decode fails and a trailer is present. It
// returns the exact prefix bytes the caller should use as AAD: the as-read
// bytes on a clean decode, or the FEC-reconstructed bytes when recovery was
// needed to parse at all. A clean decode does not guarantee the prefix is
// uncorrupted — a flipped byte in a field DecodeHeaderV2 doesn't validate
// can still parse — so Decrypt retries reconstruction again on its own
// AEAD failure regardless of which branch this function took.
func decodeOrRecoverHeaderV2(raw []byte) (header HeaderV2, ctStart int, aad []byte, err error) {
	header, ctStart, err = DecodeHeaderV2(raw)
	if err == nil {
		return header, ctStart, raw[:ctStart], nil
	}

	header, ctStart, fixed, rerr := recoverHeaderV2(raw, err)
	if rerr != nil {
		return HeaderV2{}, 0, nil, rerr
	}
	return header, ctStart, fixed[:ctStart], nil
}

// recoverHeaderV2 looks for a "FEC1" trailer anywhere after a plausible
// header region and, if found, reconstructs the header prefix before
// re-parsing it. Returns the original error if no trailer is present or
// reconstruction fails. The reconstructed prefix is returned alongside the
// parsed header so the caller can use it as AAD rather than the corrupted
// as-read bytes.
func recoverHeaderV2(raw []byte, cause error) (HeaderV2, int, []byte, error) {
	markerAt := findFECMarker(raw)
	if markerAt < 0 {
		return HeaderV2{}, 0, nil, cause
	}

	// The protected region is everything before the trailer; its true
	// length is unknown once it is corrupted, so reconstruction is
	// attempted against the maximum plausible prefix length (up to the
	// trailer) and re-parsed; DecodeHeaderV2 itself rejects anything that
	// does not parse cleanly.
	fixed, err := ReconstructFEC(raw[:markerAt], raw[markerAt:], markerAt)
	if err != nil {
		return HeaderV2{}, 0, nil, vaulterr.ErrCorrupted
	}

	header, n, err := DecodeHeaderV2(fixed)
	if err != nil {
		return HeaderV2{}, 0, nil, vaulterr.ErrCorrupted
	}
	return header, n, fixed, nil
}

func findFECMarker(raw []byte) int {
	for i := 0; i+4 <= len(raw); i++ {
		if raw[i] == FECMarker[0] && raw[i+1] == FECMarker[1] && raw[i+2] == FECMarker[2] && raw[i+3] == FECMarker[3] {
			return i
		}
	}
	return -1
}

// WriteV2Options configures a WriteV2 call.
type WriteV2Options struct {
	Policy       policy.SecurityPolicy
	Slots        *keyslot.Table
	DEK          []byte
	EnableFEC    bool
	ParityShards int
}

// WriteV2 atomically writes a full V2 vault file: header (policy + slot
// table + body salt + nonce + ciphertext length), the AEAD-encrypted record
// blob under dek with the header prefix as AAD, and an optional FEC trailer
// protecting that prefix.
func WriteV2(fs FileSystem, p crypto.Provider, path string, opts WriteV2Options, plaintext []byte) error {
	bodySalt, err := p.RandBytes(crypto.SaltLength)
	if err != nil {
		return err
	}
	nonce, err := p.RandBytes(crypto.NonceLength)
	if err != nil {
		return err
	}

	h := HeaderV2{
		Policy:    opts.Policy,
		Slots:     opts.Slots,
		BodySalt:  bodySalt,
		AEADNonce: nonce,
	}

	// CiphertextLen is unknown until encryption; encode once with a
	// placeholder length to measure the prefix, then fix it up, since the
	// prefix size itself does not depend on ciphertext length.
	prefix, err := h.EncodePrefix()
	if err != nil {
		return err
	}

	ciphertext, err := p.Encrypt(opts.DEK, nonce, prefix, plaintext)
	if err != nil {
		return err
	}
	h.CiphertextLen = uint64(len(ciphertext))
	prefix, err = h.EncodePrefix()
	if err != nil {
		return err
	}
	// Re-seal now that ciphertext_len is final and part of the AAD.
	ciphertext, err = p.Encrypt(opts.DEK, nonce, prefix, plaintext)
	if err != nil {
		return err
	}

	out := append(append([]byte(nil), prefix...), ciphertext...)

	if opts.EnableFEC {
		parity := opts.ParityShards
		if parity <= 0 {
			parity = DefaultParityShards
		}
		trailer, err := EncodeFEC(prefix, parity)
		if err != nil {
			return err
		}
		out = append(out, trailer...)
	}

	return writeAtomic(fs, path, out, path+".backup")
}
