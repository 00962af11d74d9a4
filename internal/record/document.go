package record

import (
	"bytes"
	"encoding/binary"
)

// Document is the whole-vault plaintext: every account and group, the unit
// that is AEAD-encrypted as a single blob under the vault DEK (§3, §4.3 data
// flow: "AEAD decrypt of record blob → codec (C3) → in-memory model").
type Document struct {
	Accounts []AccountRecord
	Groups   []Group
}

// MarshalDocument encodes d as: account_count(u32) [len(u32)+MarshalAccount]...
// group_count(u32) [len(u32)+MarshalGroup]...
func MarshalDocument(d Document) ([]byte, error) {
	var buf bytes.Buffer

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(d.Accounts)))
	buf.Write(u32[:])
	for _, acc := range d.Accounts {
		enc, err := MarshalAccount(acc)
		if err != nil {
			return nil, err
		}
		if err := writeBytes32(&buf, enc); err != nil {
			return nil, err
		}
	}

	binary.BigEndian.PutUint32(u32[:], uint32(len(d.Groups)))
	buf.Write(u32[:])
	for _, g := range d.Groups {
		enc, err := MarshalGroup(g)
		if err != nil {
			return nil, err
		}
		if err := writeBytes32(&buf, enc); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalDocument decodes bytes previously produced by MarshalDocument. An
// empty input decodes to an empty Document (the state create_v1/create_v2
// persist before any account is added).
func UnmarshalDocument(data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, nil
	}
	r := bytes.NewReader(data)
	var d Document

	accountCount, err := readUint32(r)
	if err != nil {
		return d, err
	}
	d.Accounts = make([]AccountRecord, 0, accountCount)
	for i := uint32(0); i < accountCount; i++ {
		enc, err := readBytes32(r)
		if err != nil {
			return d, err
		}
		acc, err := UnmarshalAccount(enc)
		if err != nil {
			return d, err
		}
		d.Accounts = append(d.Accounts, acc)
	}

	groupCount, err := readUint32(r)
	if err != nil {
		return d, err
	}
	d.Groups = make([]Group, 0, groupCount)
	for i := uint32(0); i < groupCount; i++ {
		enc, err := readBytes32(r)
		if err != nil {
			return d, err
		}
		g, err := UnmarshalGroup(enc)
		if err != nil {
			return d, err
		}
		d.Groups = append(d.Groups, g)
	}

	return d, nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
