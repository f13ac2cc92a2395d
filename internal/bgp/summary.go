package bgp

import (
	"fmt"
	"net"
)

// ParseUpdate extracts a human-readable RouteEvent per prefix from a
// framed UPDATE message, parsing through DecodeUpdate (update.go) — the
// same strict, section-framing codec internal/peerd decodes inbound
// frames with — rather than re-splitting withdrawn/attrs/NLRI a second
// time. This is the summary view consumed by the RIB collaborator
// (internal/rib).
func ParseUpdate(data []byte, hasAddPath bool) ([]*RouteEvent, error) {
	if len(data) < BGPHeaderSize {
		return nil, fmt.Errorf("bgp: update too short (%d bytes)", len(data))
	}
	if data[18] != BGPMsgTypeUpdate {
		return nil, nil
	}

	u, err := DecodeUpdate(data[BGPHeaderSize:])
	if err != nil {
		return nil, err
	}
	return RouteEventsFromUpdate(u, hasAddPath)
}

// RouteEventsFromUpdate derives RouteEvents directly from an
// already-decoded UpdateMessage — the form internal/peerd hands to
// internal/rib, with no encode-then-reparse roundtrip through the wire
// format. hasAddPath only affects MP_REACH/MP_UNREACH NLRI decoding:
// WirePrefix (update.go) carries no path identifier, so top-level
// withdrawn routes and NLRI are always plain IPv4 prefixes regardless
// of hasAddPath.
func RouteEventsFromUpdate(u *UpdateMessage, hasAddPath bool) ([]*RouteEvent, error) {
	attrs, err := summarizeAttributes(u.PathAttributes, hasAddPath)
	if err != nil {
		return nil, fmt.Errorf("bgp: summarize path attributes: %w", err)
	}

	var events []*RouteEvent

	for _, p := range u.WithdrawnRoutes {
		events = append(events, &RouteEvent{
			AFI:    4,
			Prefix: wirePrefixCIDR(p),
			Action: "D",
		})
	}

	for _, p := range u.NLRI {
		events = append(events, &RouteEvent{
			AFI:       4,
			Prefix:    wirePrefixCIDR(p),
			Action:    "A",
			Nexthop:   attrs.Nexthop,
			ASPath:    attrs.ASPath,
			Origin:    attrs.Origin,
			LocalPref: attrs.LocalPref,
			MED:       attrs.MED,
			CommStd:   attrs.CommStd,
			CommExt:   attrs.CommExt,
			CommLarge: attrs.CommLarge,
			Attrs:     attrs.Attrs,
		})
	}

	if afi := afiToVersion(attrs.MPReachAFI); afi != 0 {
		for _, p := range attrs.MPReachNLRI {
			events = append(events, &RouteEvent{
				AFI:       afi,
				Prefix:    p.Prefix,
				PathID:    p.PathID,
				Action:    "A",
				Nexthop:   attrs.MPReachNexthop,
				ASPath:    attrs.ASPath,
				Origin:    attrs.Origin,
				LocalPref: attrs.LocalPref,
				MED:       attrs.MED,
				CommStd:   attrs.CommStd,
				CommExt:   attrs.CommExt,
				CommLarge: attrs.CommLarge,
				Attrs:     attrs.Attrs,
			})
		}
	}

	if afi := afiToVersion(attrs.MPUnreachAFI); afi != 0 {
		for _, p := range attrs.MPUnreachNLRI {
			events = append(events, &RouteEvent{
				AFI:    afi,
				Prefix: p.Prefix,
				PathID: p.PathID,
				Action: "D",
			})
		}
	}

	return events, nil
}

func wirePrefixCIDR(p WirePrefix) string {
	return fmt.Sprintf("%s/%d", net.IP(p.Addr[:]).String(), p.PrefixLen)
}
