package bgp

import (
	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/wire"
)

var errRouteRefreshTooShort = bgperr.New(bgperr.CodeRouteRefreshMessage, bgperr.RouteRefreshInvalidMessageLength)

// RouteRefreshMessage is the parsed BGP ROUTE-REFRESH message (RFC 2918).
// This codec never originates route refreshes itself (multiprotocol
// route processing is out of scope, per spec.md §1); decode support
// exists so an inbound ROUTE-REFRESH frame can still be parsed and
// classified rather than treated as an unknown message type.
type RouteRefreshMessage struct {
	AFI  uint16
	SAFI uint8
}

// Encode serializes the ROUTE-REFRESH into a complete framed buffer.
func (r RouteRefreshMessage) Encode() []byte {
	body := wire.PutUint16(nil, r.AFI)
	body = append(body, 0, r.SAFI)
	return frame(MsgRouteRefresh, body)
}

// DecodeRouteRefresh parses a ROUTE-REFRESH message body.
func DecodeRouteRefresh(body []byte) (*RouteRefreshMessage, error) {
	if len(body) < 4 {
		return nil, errRouteRefreshTooShort
	}
	return &RouteRefreshMessage{AFI: wire.Uint16(body[0:2]), SAFI: body[3]}, nil
}
