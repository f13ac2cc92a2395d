package bgp

import (
	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/wire"
)

// WirePrefix is an IPv4 NLRI or withdrawn-route entry: the low PrefixLen
// bits of the four-byte address, as carried on the wire. Named apart
// from PrefixInfo (attributes.go), which is the CIDR-string summary form.
type WirePrefix struct {
	PrefixLen uint8
	Addr      [4]byte
}

// Encode serializes a prefix as length_bits:1 || prefix_bytes, where
// prefix_bytes is the minimum whole-byte count covering PrefixLen bits.
func (p WirePrefix) Encode() []byte {
	n := prefixByteLen(p.PrefixLen)
	buf := make([]byte, 1+n)
	buf[0] = p.PrefixLen
	copy(buf[1:], p.Addr[:n])
	return buf
}

func prefixByteLen(bits uint8) int {
	return (int(bits) + 7) / 8
}

// decodeWirePrefixList parses a sequence of length-prefixed prefix
// records that exactly fills data — no trailing bytes and no overrun.
func decodeWirePrefixList(data []byte) ([]WirePrefix, error) {
	var prefixes []WirePrefix
	offset := 0
	for offset < len(data) {
		bits := data[offset]
		if bits > 32 {
			return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateInvalidNetworkField)
		}
		n := prefixByteLen(bits)
		offset++
		if offset+n > len(data) {
			return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateInvalidNetworkField)
		}
		var addr [4]byte
		copy(addr[:], data[offset:offset+n])
		offset += n
		prefixes = append(prefixes, WirePrefix{PrefixLen: bits, Addr: addr})
	}
	return prefixes, nil
}

func encodeWirePrefixList(prefixes []WirePrefix) []byte {
	var out []byte
	for _, p := range prefixes {
		out = append(out, p.Encode()...)
	}
	return out
}

// UpdateMessage is the strict, round-trip-capable parsed BGP UPDATE
// message used by the codec and FSM (spec.md §3, §4.1). It holds the
// path-attribute list verbatim, in declared order; the human-readable
// RouteEvent view internal/rib receives is derived from this type by
// RouteEventsFromUpdate (summary.go).
type UpdateMessage struct {
	WithdrawnRoutes []WirePrefix
	PathAttributes  []PathAttribute
	NLRI            []WirePrefix
}

// Encode serializes the UPDATE into a complete framed buffer. The
// withdrawn-routes-length and path-attributes-length fields are derived
// from the encoded sections, so they always bound their sections
// exactly by construction; the NLRI section carries no length of its
// own and fills the remainder, matching the decode side.
func (u UpdateMessage) Encode() []byte {
	withdrawn := encodeWirePrefixList(u.WithdrawnRoutes)
	attrs := EncodePathAttributes(u.PathAttributes)
	nlri := encodeWirePrefixList(u.NLRI)

	body := make([]byte, 0, 2+len(withdrawn)+2+len(attrs)+len(nlri))
	body = wire.PutUint16(body, uint16(len(withdrawn)))
	body = append(body, withdrawn...)
	body = wire.PutUint16(body, uint16(len(attrs)))
	body = append(body, attrs...)
	body = append(body, nlri...)

	return frame(MsgUpdate, body)
}

// DecodeUpdate parses an UPDATE message body. The withdrawn-routes-length
// and path-attributes-length fields must bound their sections exactly:
// a length that runs past the body is rejected with UpdateAttrLengthError,
// and a length that cuts a prefix or attribute short is rejected by the
// section's own parser (InvalidNetworkField, AttrLengthError or
// MalformedAttrList). The NLRI
// section is not separately length-prefixed — per spec.md §9 it consumes
// all bytes remaining after the path-attributes section, never len-1.
func DecodeUpdate(body []byte) (*UpdateMessage, error) {
	if len(body) < 2 {
		return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateUnspecific)
	}
	offset := 0

	withdrawnLen := int(wire.Uint16(body[offset : offset+2]))
	offset += 2
	if offset+withdrawnLen > len(body) {
		return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateAttrLengthError)
	}
	withdrawn, err := decodeWirePrefixList(body[offset : offset+withdrawnLen])
	if err != nil {
		return nil, err
	}
	offset += withdrawnLen

	if offset+2 > len(body) {
		return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateAttrLengthError)
	}
	attrsLen := int(wire.Uint16(body[offset : offset+2]))
	offset += 2
	if offset+attrsLen > len(body) {
		return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateAttrLengthError)
	}
	attrs, err := DecodePathAttributes(body[offset : offset+attrsLen])
	if err != nil {
		return nil, err
	}
	offset += attrsLen

	// NLRI fills the remainder of the payload exactly; this is the Open
	// Question #3 resolution (no len-1 off-by-one).
	nlri, err := decodeWirePrefixList(body[offset:])
	if err != nil {
		return nil, err
	}

	update := &UpdateMessage{
		WithdrawnRoutes: withdrawn,
		PathAttributes:  attrs,
		NLRI:            nlri,
	}
	if err := validateWellKnownAttributes(update); err != nil {
		return nil, err
	}
	return update, nil
}

// validateWellKnownAttributes enforces that ORIGIN, AS_PATH and NEXT_HOP
// are present exactly once whenever NLRI is non-empty (spec.md §4.1);
// withdraw-only UPDATEs carry no such requirement. A well-known
// attribute repeated anywhere in the list is rejected regardless of
// NLRI, per RFC 4271 §6.3.
func validateWellKnownAttributes(u *UpdateMessage) error {
	seen := make(map[uint8]int, len(u.PathAttributes))
	for _, a := range u.PathAttributes {
		seen[a.Type]++
		if seen[a.Type] > 1 {
			return bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateMalformedAttrList)
		}
	}

	if len(u.NLRI) == 0 {
		return nil
	}
	for _, required := range [...]uint8{AttrTypeOrigin, AttrTypeASPath, AttrTypeNextHop} {
		if seen[required] == 0 {
			return bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateMissingWellKnown, required)
		}
	}
	return nil
}
