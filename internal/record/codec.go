package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTruncated is returned when a buffer ends before a length-prefixed field
// it promised is fully read.
var ErrTruncated = errors.New("record: truncated payload")

// ErrTooManyTags is returned when a record carries more tags than the u8
// count field can address.
var ErrTooManyTags = errors.New("record: too many tags")

const (
	flagFavorite         = 1 << 0
	flagHasGroup         = 1 << 1
	flagAdminVisibleOnly = 1 << 2
	flagAdminOnlyDelete  = 1 << 3
)

// MarshalAccount encodes rec into the deterministic binary layout:
// id(16) name(u16+n) username(u16+n) email(u16+n) url(u16+n) notes(u32+n)
// tagCount(u8) [tagLen(u8)+bytes]... flags(u8) [groupID(16) if flagHasGroup]
// createdAt(i64 unix nanos) modifiedAt(i64 unix nanos) extraLen(u32)+bytes.
func MarshalAccount(rec AccountRecord) ([]byte, error) {
	if len(rec.Tags) > 255 {
		return nil, ErrTooManyTags
	}

	var buf bytes.Buffer
	buf.Write(rec.ID[:])
	if err := writeString16(&buf, rec.Name); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, rec.Username); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, rec.Email); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, rec.URL); err != nil {
		return nil, err
	}
	if err := writeString32(&buf, rec.Notes); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(rec.Tags)))
	for _, tag := range rec.Tags {
		if len(tag) > 50 {
			return nil, fmt.Errorf("record: tag %q exceeds 50 bytes", tag)
		}
		if strings.Contains(tag, ",") {
			return nil, fmt.Errorf("record: tag %q contains a comma", tag)
		}
		buf.WriteByte(byte(len(tag)))
		buf.WriteString(tag)
	}

	var flags byte
	if rec.Favorite {
		flags |= flagFavorite
	}
	if !rec.GroupID.IsZero() {
		flags |= flagHasGroup
	}
	if rec.AdminVisibleOnly {
		flags |= flagAdminVisibleOnly
	}
	if rec.AdminOnlyDelete {
		flags |= flagAdminOnlyDelete
	}
	buf.WriteByte(flags)
	if flags&flagHasGroup != 0 {
		buf.Write(rec.GroupID[:])
	}

	writeInt64(&buf, rec.CreatedAt.UnixNano())
	writeInt64(&buf, rec.ModifiedAt.UnixNano())

	if err := writeBytes32(&buf, rec.Extra); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// UnmarshalAccount decodes bytes previously produced by MarshalAccount.
// Unknown trailing bytes beyond what this codec version understands are not
// possible in this layout (the Extra field is explicit and length-prefixed);
// forward compatibility is carried entirely through Extra.
func UnmarshalAccount(data []byte) (AccountRecord, error) {
	r := bytes.NewReader(data)
	var rec AccountRecord

	if _, err := readFull(r, rec.ID[:]); err != nil {
		return rec, err
	}

	var err error
	if rec.Name, err = readString16(r); err != nil {
		return rec, err
	}
	if rec.Username, err = readString16(r); err != nil {
		return rec, err
	}
	if rec.Email, err = readString16(r); err != nil {
		return rec, err
	}
	if rec.URL, err = readString16(r); err != nil {
		return rec, err
	}
	if rec.Notes, err = readString32(r); err != nil {
		return rec, err
	}

	tagCount, err := readByte(r)
	if err != nil {
		return rec, err
	}
	rec.Tags = make([]string, 0, tagCount)
	for i := 0; i < int(tagCount); i++ {
		tagLen, err := readByte(r)
		if err != nil {
			return rec, err
		}
		tag := make([]byte, tagLen)
		if _, err := readFull(r, tag); err != nil {
			return rec, err
		}
		rec.Tags = append(rec.Tags, string(tag))
	}

	flags, err := readByte(r)
	if err != nil {
		return rec, err
	}
	rec.Favorite = flags&flagFavorite != 0
	rec.AdminVisibleOnly = flags&flagAdminVisibleOnly != 0
	rec.AdminOnlyDelete = flags&flagAdminOnlyDelete != 0
	if flags&flagHasGroup != 0 {
		if _, err := readFull(r, rec.GroupID[:]); err != nil {
			return rec, err
		}
	}

	createdNanos, err := readInt64(r)
	if err != nil {
		return rec, err
	}
	modifiedNanos, err := readInt64(r)
	if err != nil {
		return rec, err
	}
	rec.CreatedAt = time.Unix(0, createdNanos).UTC()
	rec.ModifiedAt = time.Unix(0, modifiedNanos).UTC()

	if rec.Extra, err = readBytes32(r); err != nil {
		return rec, err
	}

	return rec, nil
}

// MarshalGroup encodes g as: id(16) name(u16+n) flags(u8)
// [parentID(16) if flagHasGroup] extraLen(u32)+bytes.
func MarshalGroup(g Group) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(g.ID[:])
	if err := writeString16(&buf, g.Name); err != nil {
		return nil, err
	}

	var flags byte
	if !g.ParentID.IsZero() {
		flags |= flagHasGroup
	}
	buf.WriteByte(flags)
	if flags&flagHasGroup != 0 {
		buf.Write(g.ParentID[:])
	}

	if err := writeBytes32(&buf, g.Extra); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalGroup decodes bytes previously produced by MarshalGroup.
func UnmarshalGroup(data []byte) (Group, error) {
	r := bytes.NewReader(data)
	var g Group

	if _, err := readFull(r, g.ID[:]); err != nil {
		return g, err
	}
	var err error
	if g.Name, err = readString16(r); err != nil {
		return g, err
	}
	flags, err := readByte(r)
	if err != nil {
		return g, err
	}
	if flags&flagHasGroup != 0 {
		if _, err := readFull(r, g.ParentID[:]); err != nil {
			return g, err
		}
	}
	if g.Extra, err = readBytes32(r); err != nil {
		return g, err
	}
	return g, nil
}

func writeString16(buf *bytes.Buffer, s string) error {
	return writeBytes16(buf, []byte(s))
}

func writeBytes16(buf *bytes.Buffer, b []byte) error {
	if len(b) > 0xFFFF {
		return fmt.Errorf("record: field exceeds 65535 bytes")
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
	return nil
}

func writeString32(buf *bytes.Buffer, s string) error {
	return writeBytes32(buf, []byte(s))
}

func writeBytes32(buf *bytes.Buffer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
	return nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil || n != len(b) {
		return n, ErrTruncated
	}
	return n, nil
}

func readByte(r *bytes.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, ErrTruncated
	}
	return b, nil
}

func readString16(r *bytes.Reader) (string, error) {
	b, err := readBytes16(r)
	return string(b), err
}

func readBytes16(r *bytes.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString32(r *bytes.Reader) (string, error) {
	b, err := readBytes32(r)
	return string(b), err
}

func readBytes32(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}
