package bgp

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// Message is any BGP message this codec can encode onto the wire.
type Message interface {
	Encode() []byte
}

// Decode parses one complete framed message (header included) and
// returns the concrete decoded value as one of *OpenMessage,
// *UpdateMessage, *NotificationMessage, *KeepaliveMessage or
// *RouteRefreshMessage. Callers that already have a reassembled frame
// (internal/transport guarantees at least HeaderLen bytes before
// calling in) use this as the single entry point into the codec.
func Decode(framed []byte) (Message, error) {
	header, err := DecodeHeader(framed)
	if err != nil {
		return nil, err
	}
	if int(header.Length) != len(framed) {
		return nil, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageLength, byte(header.Length>>8), byte(header.Length))
	}
	body := framed[HeaderLen:]

	switch header.Type {
	case MsgOpen:
		return DecodeOpen(body)
	case MsgUpdate:
		return DecodeUpdate(body)
	case MsgNotification:
		return DecodeNotification(body)
	case MsgKeepalive:
		return DecodeKeepalive(body)
	case MsgRouteRefresh:
		return DecodeRouteRefresh(body)
	default:
		return nil, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageType, byte(header.Type))
	}
}
