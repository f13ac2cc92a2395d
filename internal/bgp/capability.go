package bgp

import (
	"fmt"

	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/wire"
)

// Capability codes (registry values from RFC 5492 and friends). Only
// Multiprotocol carries a parsed value in this module
// (MultiprotocolValue); the rest, FourOctetASN included, round-trip as
// opaque bytes, per spec.md's non-goal on
// multiprotocol processing beyond codec identity.
const (
	CapMultiprotocol         uint8 = 1
	CapRouteRefresh          uint8 = 2
	CapOutboundRouteFiltering uint8 = 3
	CapExtendedNextHop       uint8 = 5
	CapExtendedMessage       uint8 = 6
	CapGracefulRestart       uint8 = 64
	CapFourOctetASN          uint8 = 65
	CapAddPath               uint8 = 69
	CapEnhancedRouteRefresh  uint8 = 70
)

// Capability is one OPEN optional-parameter capability: a code, its
// declared length, and its opaque value bytes.
type Capability struct {
	Code  uint8
	Value []byte
}

// Encode returns the optional-parameter bytes for this capability:
// opt-param type (2) || opt-param len || code || cap-len || value.
func (c Capability) Encode() []byte {
	capBytes := make([]byte, 0, 2+len(c.Value))
	capBytes = append(capBytes, c.Code, byte(len(c.Value)))
	capBytes = append(capBytes, c.Value...)

	buf := make([]byte, 0, 2+len(capBytes))
	buf = append(buf, optParamTypeCapability, byte(len(capBytes)))
	buf = append(buf, capBytes...)
	return buf
}

const optParamTypeCapability uint8 = 2

// EncodeCapabilities flattens a capability list into the OPEN message's
// optional-parameters section, one optional parameter per capability,
// preserving order. RFC 9234 era parsers loop; the original C++ the
// order-preserving append here replaces buggy insert-at-end()-of-empty-
// container code in the source (spec.md §9's second Open Question):
// implementations MUST append, never index in.
func EncodeCapabilities(caps []Capability) []byte {
	var out []byte
	for _, c := range caps {
		out = append(out, c.Encode()...)
	}
	return out
}

// DecodeCapabilities parses the OPEN message's optional-parameters
// section. Every optional parameter's type MUST be 2 (capability); any
// other type is UnsupportedOptionalParameter, per spec.md §4.1.
func DecodeCapabilities(data []byte) ([]Capability, error) {
	var caps []Capability
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnspecific)
		}
		paramType := data[offset]
		paramLen := int(data[offset+1])
		offset += 2

		if paramType != optParamTypeCapability {
			return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnsupportedOptionalParam, paramType)
		}
		if offset+paramLen > len(data) {
			return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnspecific)
		}
		param := data[offset : offset+paramLen]
		offset += paramLen

		if len(param) < 2 {
			return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnspecific)
		}
		code := param[0]
		capLen := int(param[1])
		if 2+capLen > len(param) {
			return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnspecific)
		}
		value := make([]byte, capLen)
		copy(value, param[2:2+capLen])
		caps = append(caps, Capability{Code: code, Value: value})
	}
	return caps, nil
}

// Intersect returns the capabilities present (by code, and for
// Multiprotocol by AFI/SAFI too) in both lists, in the order they
// appear in local. spec.md §4.4 requires recording this intersection
// when an OPEN is received.
func Intersect(local, remote []Capability) []Capability {
	remoteKeys := make(map[string]bool, len(remote))
	for _, c := range remote {
		remoteKeys[capabilityKey(c)] = true
	}
	var out []Capability
	for _, c := range local {
		if remoteKeys[capabilityKey(c)] {
			out = append(out, c)
		}
	}
	return out
}

func capabilityKey(c Capability) string {
	return fmt.Sprintf("%d:%x", c.Code, c.Value)
}

// MultiprotocolValue is the parsed value of a Multiprotocol Extensions
// capability (AFI:2, reserved:1, SAFI:1), per spec.md §3.
type MultiprotocolValue struct {
	AFI  uint16
	SAFI uint8
}

// Encode returns the 4-byte capability value.
func (m MultiprotocolValue) Encode() []byte {
	buf := wire.PutUint16(nil, m.AFI)
	buf = append(buf, 0, m.SAFI)
	return buf
}

// DecodeMultiprotocolValue parses a Multiprotocol Extensions capability
// value. Returns false if the value is not the expected 4 bytes.
func DecodeMultiprotocolValue(value []byte) (MultiprotocolValue, bool) {
	if len(value) != 4 {
		return MultiprotocolValue{}, false
	}
	return MultiprotocolValue{AFI: wire.Uint16(value[0:2]), SAFI: value[3]}, true
}
