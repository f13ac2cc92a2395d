package bgp

import (
	"net/netip"

	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/wire"
)

// openVersion is the only BGP version this speaker supports.
const openVersion = 4

// OpenMessage is the parsed BGP OPEN message (spec.md §3, §6).
type OpenMessage struct {
	Version      uint8
	MyAS         uint16
	HoldTime     uint16
	RouterID     netip.Addr
	Capabilities []Capability
}

// Encode serializes the OPEN message into a complete framed buffer.
func (o OpenMessage) Encode() []byte {
	body := make([]byte, 0, 10)
	body = append(body, openVersion)
	body = wire.PutUint16(body, o.MyAS)
	body = wire.PutUint16(body, o.HoldTime)
	body = append(body, routerIDBytes(o.RouterID)...)

	optParams := EncodeCapabilities(o.Capabilities)
	body = append(body, byte(len(optParams)))
	body = append(body, optParams...)

	return frame(MsgOpen, body)
}

func routerIDBytes(id netip.Addr) []byte {
	if !id.Is4() {
		return []byte{0, 0, 0, 0}
	}
	a4 := id.As4()
	return a4[:]
}

// DecodeOpen parses an OPEN message body (the bytes after the 19-byte
// header). Failures map to OpenMessageError subcodes per spec.md §4.1:
// UnsupportedVersionNumber (data carries the highest acceptable version,
// 4), BadPeerAs on zero or reserved ASN, BadBgpIdentifier on a zero
// identifier, UnsupportedOptionalParameter on an unrecognized
// optional-parameter type, UnacceptableHoldTime if hold time is 1 or 2.
func DecodeOpen(body []byte) (*OpenMessage, error) {
	if len(body) < 10 {
		return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnspecific)
	}

	version := body[0]
	if version != openVersion {
		return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnsupportedVersionNumber, openVersion)
	}

	myAS := wire.Uint16(body[1:3])
	if myAS == 0 || myAS == 23456 {
		return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenBadPeerAs)
	}

	holdTime := wire.Uint16(body[3:5])
	if holdTime == 1 || holdTime == 2 {
		return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnacceptableHoldTime)
	}

	var idBytes [4]byte
	copy(idBytes[:], body[5:9])
	routerID := netip.AddrFrom4(idBytes)
	if routerID == netip.AddrFrom4([4]byte{}) {
		return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenBadBgpIdentifier)
	}

	optParamsLen := int(body[9])
	if 10+optParamsLen > len(body) {
		return nil, bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnspecific)
	}

	caps, err := DecodeCapabilities(body[10 : 10+optParamsLen])
	if err != nil {
		return nil, err
	}

	return &OpenMessage{
		Version:      version,
		MyAS:         myAS,
		HoldTime:     holdTime,
		RouterID:     routerID,
		Capabilities: caps,
	}, nil
}

// RequireCapability returns an UnsupportedCapability error if code is
// not present among caps.
func RequireCapability(caps []Capability, code uint8) error {
	for _, c := range caps {
		if c.Code == code {
			return nil
		}
	}
	return bgperr.New(bgperr.CodeOpenMessage, bgperr.OpenUnsupportedCapability, code)
}
