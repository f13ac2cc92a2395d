// Package wire provides the big-endian integer packing shared by every
// BGP message encoder and decoder.
package wire

import "encoding/binary"

// PutUint16 appends the big-endian encoding of v to dst.
func PutUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// PutUint32 appends the big-endian encoding of v to dst.
func PutUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// Uint16 reads a big-endian uint16 from the start of b.
func Uint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// Uint32 reads a big-endian uint32 from the start of b.
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
