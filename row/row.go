// Package row implements the fixed-layout binary codec for table records.
//
// On-disk layout (little-endian):
//
//	id:u32 | marker:u32 | username:32 bytes | email:255 bytes
//
// username and email are NUL-padded; their content is the prefix before the
// first zero byte. The layout is a stable on-disk schema: changing any offset
// breaks every existing database file.
package row

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// UsernameSize and EmailSize bound the string columns in bytes.
	UsernameSize = 32
	EmailSize    = 255

	idSize     = 4
	markerSize = 4

	idOffset       = 0
	markerOffset   = idOffset + idSize
	usernameOffset = markerOffset + markerSize
	emailOffset    = usernameOffset + UsernameSize

	// Size is the fixed on-disk footprint of one serialized row.
	Size = idSize + markerSize + UsernameSize + EmailSize

	// Marker tags every serialized row. A cell without it is either unused
	// zero-filled space or damaged data, never a legitimate row.
	Marker uint32 = 0x524F5721 // "ROW!"
)

var (
	// ErrStringTooLong reports a column value exceeding its fixed width.
	ErrStringTooLong = errors.New("string too long")

	// ErrInvalidMarker reports a byte span whose validity marker does not
	// match Marker.
	ErrInvalidMarker = errors.New("row validity marker mismatch")
)

// Row is a single fixed-schema record. ID is the unique primary key.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

// New validates the column widths and builds a Row. Oversized input is
// rejected here so it can never reach the codec.
func New(id uint32, username, email string) (Row, error) {
	if len(username) > UsernameSize {
		return Row{}, fmt.Errorf("username is %d bytes (max %d): %w", len(username), UsernameSize, ErrStringTooLong)
	}
	if len(email) > EmailSize {
		return Row{}, fmt.Errorf("email is %d bytes (max %d): %w", len(email), EmailSize, ErrStringTooLong)
	}
	return Row{ID: id, Username: username, Email: email}, nil
}

// Serialize writes the row into dst at the fixed offsets, zero-filling the
// unused tail of both string columns. dst must hold at least Size bytes.
func (r Row) Serialize(dst []byte) {
	_ = dst[Size-1]
	binary.LittleEndian.PutUint32(dst[idOffset:], r.ID)
	binary.LittleEndian.PutUint32(dst[markerOffset:], Marker)
	writePadded(dst[usernameOffset:usernameOffset+UsernameSize], r.Username)
	writePadded(dst[emailOffset:emailOffset+EmailSize], r.Email)
}

// Deserialize is the exact inverse of Serialize. It fails with
// ErrInvalidMarker when src does not carry the validity marker.
func Deserialize(src []byte) (Row, error) {
	if len(src) < Size {
		return Row{}, fmt.Errorf("row span is %d bytes (need %d)", len(src), Size)
	}
	if !MarkerValid(src) {
		return Row{}, fmt.Errorf("got %#08x (want %#08x): %w",
			binary.LittleEndian.Uint32(src[markerOffset:]), Marker, ErrInvalidMarker)
	}
	return Row{
		ID:       binary.LittleEndian.Uint32(src[idOffset:]),
		Username: trimNUL(src[usernameOffset : usernameOffset+UsernameSize]),
		Email:    trimNUL(src[emailOffset : emailOffset+EmailSize]),
	}, nil
}

// MarkerValid reports whether src carries the row validity marker.
func MarkerValid(src []byte) bool {
	return len(src) >= markerOffset+markerSize &&
		binary.LittleEndian.Uint32(src[markerOffset:]) == Marker
}

func writePadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func trimNUL(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
