package bgp

import (
	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/wire"
)

// Path attribute flag bits (spec.md §3).
const (
	AttrFlagOptional       uint8 = 0x80
	AttrFlagTransitive     uint8 = 0x40
	AttrFlagPartial        uint8 = 0x20
	AttrFlagExtendedLength uint8 = 0x10
)

// Path attribute type codes (registry values 1..33, RFC 4271 / RFC 4760
// / RFC 4360 / RFC 4893 / RFC 8092). Carried over from the teacher's
// internal/bgp/types.go registry, which this module's attribute codec
// generalizes from summary extraction to full encode/decode.
const (
	AttrTypeOrigin         uint8 = 1
	AttrTypeASPath         uint8 = 2
	AttrTypeNextHop        uint8 = 3
	AttrTypeMED            uint8 = 4
	AttrTypeLocalPref      uint8 = 5
	AttrTypeAtomicAggregate uint8 = 6
	AttrTypeAggregator     uint8 = 7
	AttrTypeCommunity      uint8 = 8
	AttrTypeMPReachNLRI    uint8 = 14
	AttrTypeMPUnreachNLRI  uint8 = 15
	AttrTypeExtCommunity   uint8 = 16
	AttrTypeAS4Path        uint8 = 17
	AttrTypeAS4Aggregator  uint8 = 18
	AttrTypeLargeCommunity uint8 = 32
)

// AS_PATH segment types.
const (
	ASPathSegmentSet      uint8 = 1
	ASPathSegmentSequence uint8 = 2
)

// Origin values.
var OriginValues = map[uint8]string{
	0: "IGP",
	1: "EGP",
	2: "INCOMPLETE",
}

// PathAttribute is one flags/type/value triple from an UPDATE's
// path-attribute list, preserved in declared order.
type PathAttribute struct {
	Flags uint8
	Type  uint8
	Value []byte
}

// Encode serializes a single path attribute, choosing a 1- or 2-byte
// length field according to the extended-length flag bit.
func (a PathAttribute) Encode() []byte {
	buf := make([]byte, 0, 3+len(a.Value))
	buf = append(buf, a.Flags, a.Type)
	if a.Flags&AttrFlagExtendedLength != 0 {
		buf = wire.PutUint16(buf, uint16(len(a.Value)))
	} else {
		buf = append(buf, byte(len(a.Value)))
	}
	buf = append(buf, a.Value...)
	return buf
}

// EncodePathAttributes concatenates an ordered attribute list.
func EncodePathAttributes(attrs []PathAttribute) []byte {
	var out []byte
	for _, a := range attrs {
		out = append(out, a.Encode()...)
	}
	return out
}

// DecodePathAttributes parses the path-attributes section of an UPDATE
// (the bytes bounded by the declared attrs-length). Attributes are
// returned in declared order; value-length framing honors the
// extended-length flag per spec.md §4.1 — the implementation does not
// interpret the value itself while determining the flags/type/length
// triplet's own framing.
func DecodePathAttributes(data []byte) ([]PathAttribute, error) {
	var attrs []PathAttribute
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateMalformedAttrList)
		}
		flags := data[offset]
		typeCode := data[offset+1]
		offset += 2

		var attrLen int
		if flags&AttrFlagExtendedLength != 0 {
			if offset+2 > len(data) {
				return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateAttrLengthError)
			}
			attrLen = int(wire.Uint16(data[offset : offset+2]))
			offset += 2
		} else {
			if offset+1 > len(data) {
				return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateAttrLengthError)
			}
			attrLen = int(data[offset])
			offset++
		}

		if offset+attrLen > len(data) {
			return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateAttrLengthError)
		}
		value := make([]byte, attrLen)
		copy(value, data[offset:offset+attrLen])
		offset += attrLen

		attrs = append(attrs, PathAttribute{Flags: flags, Type: typeCode, Value: value})
	}
	return attrs, nil
}

// OriginAttribute builds the well-known transitive ORIGIN attribute.
func OriginAttribute(value uint8) PathAttribute {
	return PathAttribute{Flags: AttrFlagTransitive, Type: AttrTypeOrigin, Value: []byte{value}}
}

// NextHopAttribute builds the well-known transitive NEXT_HOP attribute
// from an IPv4 address.
func NextHopAttribute(ip [4]byte) PathAttribute {
	return PathAttribute{Flags: AttrFlagTransitive, Type: AttrTypeNextHop, Value: ip[:]}
}

// ASPathSegment is one SET or SEQUENCE segment of an AS_PATH attribute.
type ASPathSegment struct {
	Type uint8
	ASNs []uint32
}

// ASPathAttribute builds the well-known transitive AS_PATH attribute
// from a list of segments, using 4-octet ASN encoding.
func ASPathAttribute(segments []ASPathSegment) PathAttribute {
	var value []byte
	for _, seg := range segments {
		value = append(value, seg.Type, byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			value = wire.PutUint32(value, asn)
		}
	}
	return PathAttribute{Flags: AttrFlagTransitive, Type: AttrTypeASPath, Value: value}
}

// DecodeASPathSegments parses an AS_PATH attribute's value using
// 4-octet ASN encoding.
func DecodeASPathSegments(value []byte) ([]ASPathSegment, error) {
	var segments []ASPathSegment
	offset := 0
	for offset+2 <= len(value) {
		segType := value[offset]
		segLen := int(value[offset+1])
		offset += 2

		if offset+segLen*4 > len(value) {
			return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateMalformedAsPath)
		}
		asns := make([]uint32, segLen)
		for i := 0; i < segLen; i++ {
			asns[i] = wire.Uint32(value[offset : offset+4])
			offset += 4
		}
		segments = append(segments, ASPathSegment{Type: segType, ASNs: asns})
	}
	if offset != len(value) {
		return nil, bgperr.New(bgperr.CodeUpdateMessage, bgperr.UpdateMalformedAsPath)
	}
	return segments, nil
}
