package watch

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ErrTruncatedRecord is returned when a buffer ends in the middle of a record.
type ErrTruncatedRecord struct {
	Offset, Need, Have int
}

func (err ErrTruncatedRecord) Error() string {
	return fmt.Sprintf("truncated record at offset %d: need %d bytes, have %d",
		err.Offset, err.Need, err.Have)
}

type record struct {
	handle int
	mask   uint32
	cookie uint32
	name   string
}

// parseRecord parses the record starting at `off`, and returns the offset of
// the record that follows it. The header is bounds-checked before its name
// length is trusted.
func parseRecord(buf []byte, off int) (rec record, next int, err error) {
	if remaining := len(buf) - off; remaining < headerSize {
		return record{}, off, ErrTruncatedRecord{off, headerSize, remaining}
	}

	header := buf[off : off+headerSize]
	rec.handle = int(int32(binary.NativeEndian.Uint32(header[0:4])))
	rec.mask = binary.NativeEndian.Uint32(header[4:8])
	rec.cookie = binary.NativeEndian.Uint32(header[8:12])
	nameLen := int(binary.NativeEndian.Uint32(header[12:16]))

	nameStart := off + headerSize
	if nameLen < 0 || nameLen > len(buf)-nameStart {
		return record{}, off, ErrTruncatedRecord{off, headerSize + nameLen, len(buf) - off}
	}

	// The kernel pads names with NULs up to an alignment boundary.
	name := buf[nameStart : nameStart+nameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	rec.name = string(name)
	return rec, nameStart + nameLen, nil
}

// Decoder walks the records of a single buffer returned by the kernel. It's
// used like a bufio.Scanner:
//
//	dec := NewDecoder(buf)
//	for dec.Next() {
//		handle(dec.Change())
//	}
//	if err := dec.Err(); err != nil {
//		...
//	}
//
// Decoding never blocks, and a Decoder can't be rewound.
type Decoder struct {
	buf []byte
	off int

	// prevCookie is the cookie of the last record read from the buffer,
	// including records that weren't turned into a Change.
	prevCookie uint32

	change Change
	err    error
}

// NewDecoder returns a Decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Next advances to the next Change. It returns false once the buffer is
// exhausted, or a malformed record is found.
func (d *Decoder) Next() bool {
	for d.err == nil && d.off < len(d.buf) {
		rec, next, err := parseRecord(d.buf, d.off)
		if err != nil {
			d.err = err
			return false
		}
		d.off = next

		// Only a duplicate of the immediately preceding record is dropped. A
		// global set of seen cookies would wrongly merge unrelated operations
		// once the kernel reuses a cookie value.
		if rec.cookie != 0 && rec.cookie == d.prevCookie {
			continue
		}
		d.prevCookie = rec.cookie

		kind, ok := kindOf(rec.mask)
		if !ok {
			continue
		}

		d.change = Change{
			Handle: rec.handle,
			Name:   rec.name,
			IsDir:  rec.mask&InIsDir != 0,
			Kind:   kind,
			Cookie: rec.cookie,
		}
		if kind == MovedAway && rec.cookie != 0 {
			d.pairRename(rec)
		}
		return true
	}
	return false
}

// pairRename collapses the current MovedAway change with the record right
// after it if that record is the matching MovedIn.
func (d *Decoder) pairRename(from record) {
	if d.off >= len(d.buf) {
		return
	}

	// A malformed record is left for the next call to Next to report.
	to, next, err := parseRecord(d.buf, d.off)
	if err != nil || to.cookie != from.cookie {
		return
	}
	if kind, ok := kindOf(to.mask); !ok || kind != MovedIn {
		return
	}

	d.off = next
	d.change = Change{
		Handle:     to.handle,
		Name:       to.name,
		IsDir:      to.mask&InIsDir != 0,
		Kind:       Renamed,
		Cookie:     to.cookie,
		FromHandle: from.handle,
		FromName:   from.name,
	}
}

// Change returns the Change produced by the last call to Next.
func (d *Decoder) Change() Change {
	return d.change
}

// Err returns the first malformed record error encountered, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Decode returns all the Changes in buf. On a malformed record, the Changes
// decoded before it are returned alongside the error.
func Decode(buf []byte) ([]Change, error) {
	var changes []Change
	dec := NewDecoder(buf)
	for dec.Next() {
		changes = append(changes, dec.Change())
	}
	return changes, dec.Err()
}
