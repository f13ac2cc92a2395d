package bgp

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// NotificationMessage is the parsed BGP NOTIFICATION message.
type NotificationMessage struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

// Encode serializes the NOTIFICATION into a complete framed buffer.
func (n NotificationMessage) Encode() []byte {
	body := make([]byte, 0, 2+len(n.Data))
	body = append(body, n.Code, n.Subcode)
	body = append(body, n.Data...)
	return frame(MsgNotification, body)
}

// FromError converts a NotificationError detected by the codec or FSM
// into the wire-ready NotificationMessage that carries it off.
func FromError(err *bgperr.NotificationError) NotificationMessage {
	return NotificationMessage{
		Code:    uint8(err.NotifCode),
		Subcode: err.NotifSubcode,
		Data:    err.Data,
	}
}

// DecodeNotification parses a NOTIFICATION message body.
func DecodeNotification(body []byte) (*NotificationMessage, error) {
	if len(body) < 2 {
		return nil, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageLength)
	}
	data := make([]byte, len(body)-2)
	copy(data, body[2:])
	return &NotificationMessage{Code: body[0], Subcode: body[1], Data: data}, nil
}

// AsNotificationError converts a received NOTIFICATION back into a
// NotificationError, so the FSM can classify it (in particular,
// distinguish a BgpNotificationMessageVersionError) the same way it
// classifies locally-detected errors.
func (n NotificationMessage) AsNotificationError() *bgperr.NotificationError {
	return bgperr.New(bgperr.Code(n.Code), n.Subcode, n.Data...)
}
