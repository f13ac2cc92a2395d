// Package bgp implements the BGP-4 message codec: wire framing and the
// encode/decode logic for OPEN, UPDATE, NOTIFICATION, KEEPALIVE and
// ROUTE-REFRESH messages, their capability list, and the UPDATE
// path-attribute sublanguage.
package bgp

import (
	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/wire"
)

// MsgType is the 1-byte BGP message type tag carried in every header.
type MsgType uint8

const (
	MsgOpen         MsgType = 1
	MsgUpdate       MsgType = 2
	MsgNotification MsgType = 3
	MsgKeepalive    MsgType = 4
	MsgRouteRefresh MsgType = 5
)

func (t MsgType) String() string {
	switch t {
	case MsgOpen:
		return "OPEN"
	case MsgUpdate:
		return "UPDATE"
	case MsgNotification:
		return "NOTIFICATION"
	case MsgKeepalive:
		return "KEEPALIVE"
	case MsgRouteRefresh:
		return "ROUTE-REFRESH"
	default:
		return "UNKNOWN"
	}
}

const (
	// HeaderLen is the fixed 16-byte marker + 2-byte length + 1-byte type.
	HeaderLen = 19
	// MaxMessageLen is the largest frame this codec will encode or accept.
	MaxMessageLen = 4096
	// MinMessageLen equals HeaderLen; no message is shorter than its header.
	MinMessageLen = HeaderLen
)

var marker = [16]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

// Header is the parsed 19-byte BGP message header.
type Header struct {
	Length uint16
	Type   MsgType
}

// EncodeHeader returns the 19-byte header for a message of the given
// total length (including the header itself) and type.
func EncodeHeader(length uint16, typ MsgType) []byte {
	buf := make([]byte, 0, HeaderLen)
	buf = append(buf, marker[:]...)
	buf = wire.PutUint16(buf, length)
	buf = append(buf, byte(typ))
	return buf
}

// DecodeHeader parses the first 19 bytes of b.
//
// Failures map 1:1 onto spec.md §4.1: a non-all-ones marker yields
// ConnectionNotSynchronized, a length outside [19, 4096] (or, once the
// caller knows the full frame, a length that does not match the actual
// payload) yields BadMessageLength with the offending length in Data,
// and an unrecognized type yields BadMessageType with the offending
// type byte in Data.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageLength)
	}
	for i := 0; i < 16; i++ {
		if b[i] != 0xFF {
			return Header{}, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderConnectionNotSync)
		}
	}

	length := wire.Uint16(b[16:18])
	if length < MinMessageLen || length > MaxMessageLen {
		hi, lo := byte(length>>8), byte(length)
		return Header{}, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageLength, hi, lo)
	}

	typ := MsgType(b[18])
	switch typ {
	case MsgOpen, MsgUpdate, MsgNotification, MsgKeepalive, MsgRouteRefresh:
	default:
		return Header{}, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageType, b[18])
	}

	return Header{Length: length, Type: typ}, nil
}

// frame wraps a body with its header, deriving the length field from
// the body size. Every Encode method in this package funnels through
// this helper so that "length == header + payload" always holds by
// construction.
func frame(typ MsgType, body []byte) []byte {
	total := HeaderLen + len(body)
	buf := EncodeHeader(uint16(total), typ)
	return append(buf, body...)
}
