package vaultio

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/klauspost/reedsolomon"

	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// FECMarker identifies a forward-error-correction trailer appended after
// the ciphertext (§4.5, §6.1). The protected region is the header prefix
// (magic through ciphertext_len) — the bytes a corrupted single byte would
// otherwise make unopenable outright.
var FECMarker = [4]byte{'F', 'E', 'C', '1'}

// shardSize is the per-shard payload size; a checksum is appended to each
// shard so a reconstruction pass can tell which shards are erasures before
// handing them to the Reed-Solomon decoder, since plain parity alone cannot
// localize which shard is bad.
const shardSize = 252 // + 4-byte crc32 = 256-byte shard on the wire

// DefaultParityShards is used when a caller enables FEC without specifying
// a parity count.
const DefaultParityShards = 4

// EncodeFEC splits prefix into data shards of shardSize bytes (the last
// padded with zero), computes parityShards parity shards via systematic
// Reed-Solomon, and returns the on-disk trailer: marker, shard_count,
// parity_count, a crc32 checksum per data shard (so a reconstruction pass
// can localize which data shard went bad), then parity_count shards of
// shardSize+4 bytes each (payload + crc32).
func EncodeFEC(prefix []byte, parityShards int) ([]byte, error) {
	dataShards := (len(prefix) + shardSize - 1) / shardSize
	if dataShards == 0 {
		dataShards = 1
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, dataShards+parityShards)
	for i := 0; i < dataShards; i++ {
		shards[i] = make([]byte, shardSize)
		start := i * shardSize
		end := start + shardSize
		if start < len(prefix) {
			if end > len(prefix) {
				end = len(prefix)
			}
			copy(shards[i], prefix[start:end])
		}
	}
	for i := dataShards; i < dataShards+parityShards; i++ {
		shards[i] = make([]byte, shardSize)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4+2+2+dataShards*4+parityShards*(shardSize+4))
	out = append(out, FECMarker[:]...)
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(dataShards))
	out = append(out, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], uint16(parityShards))
	out = append(out, u16[:]...)

	var u32 [4]byte
	for i := 0; i < dataShards; i++ {
		binary.LittleEndian.PutUint32(u32[:], crc32.ChecksumIEEE(shards[i]))
		out = append(out, u32[:]...)
	}
	for i := dataShards; i < dataShards+parityShards; i++ {
		out = append(out, shardWithChecksum(shards[i])...)
	}
	return out, nil
}

// ReconstructFEC attempts to recover a valid header prefix of length
// prefixLen from a possibly-corrupted prefix using the parity stored in
// trailer. Each data shard's stored checksum identifies whether it is
// intact; mismatching shards are marked as erasures and handed to the
// Reed-Solomon decoder along with the parity shards.
func ReconstructFEC(corruptedPrefix []byte, trailer []byte, prefixLen int) ([]byte, error) {
	if len(trailer) < 8 || trailer[0] != FECMarker[0] || trailer[1] != FECMarker[1] ||
		trailer[2] != FECMarker[2] || trailer[3] != FECMarker[3] {
		return nil, vaulterr.ErrCorrupted
	}
	dataShards := int(binary.LittleEndian.Uint16(trailer[4:6]))
	parityShards := int(binary.LittleEndian.Uint16(trailer[6:8]))
	if dataShards <= 0 || parityShards < 0 {
		return nil, vaulterr.ErrCorrupted
	}

	wantLen := 8 + dataShards*4 + parityShards*(shardSize+4)
	if len(trailer) < wantLen {
		return nil, vaulterr.ErrCorrupted
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}

	off := 8
	dataChecksums := make([]uint32, dataShards)
	for i := 0; i < dataShards; i++ {
		dataChecksums[i] = binary.LittleEndian.Uint32(trailer[off : off+4])
		off += 4
	}

	shards := make([][]byte, dataShards+parityShards)
	anyErasure := false
	for i := 0; i < dataShards; i++ {
		candidate := make([]byte, shardSize)
		start := i * shardSize
		end := start + shardSize
		if start < len(corruptedPrefix) {
			if end > len(corruptedPrefix) {
				end = len(corruptedPrefix)
			}
			copy(candidate, corruptedPrefix[start:end])
		}
		if crc32.ChecksumIEEE(candidate) == dataChecksums[i] {
			shards[i] = candidate
		} else {
			anyErasure = true
		}
	}

	for i := 0; i < parityShards; i++ {
		payload, ok := checkedShard(trailer[off : off+shardSize+4])
		off += shardSize + 4
		if ok {
			shards[dataShards+i] = payload
		} else {
			anyErasure = true
		}
	}

	if !anyErasure {
		return joinDataShards(shards, dataShards, prefixLen), nil
	}

	if err := enc.Reconstruct(shards); err != nil {
		return nil, vaulterr.ErrCorrupted
	}
	ok, err := enc.Verify(shards)
	if err != nil || !ok {
		return nil, vaulterr.ErrCorrupted
	}
	return joinDataShards(shards, dataShards, prefixLen), nil
}

func joinDataShards(shards [][]byte, dataShards, prefixLen int) []byte {
	out := make([]byte, 0, dataShards*shardSize)
	for i := 0; i < dataShards; i++ {
		out = append(out, shards[i]...)
	}
	if prefixLen < len(out) {
		out = out[:prefixLen]
	}
	return out
}

func shardWithChecksum(payload []byte) []byte {
	sum := crc32.ChecksumIEEE(payload)
	out := make([]byte, 0, shardSize+4)
	out = append(out, payload...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], sum)
	out = append(out, u32[:]...)
	return out
}

func checkedShard(withChecksum []byte) ([]byte, bool) {
	if len(withChecksum) != shardSize+4 {
		return nil, false
	}
	payload := withChecksum[:shardSize]
	want := binary.LittleEndian.Uint32(withChecksum[shardSize:])
	return payload, crc32.ChecksumIEEE(payload) == want
}
