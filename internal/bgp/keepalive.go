package bgp

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// KeepaliveMessage carries no payload; its header's Length is always 19.
type KeepaliveMessage struct{}

// Encode returns the 19-byte KEEPALIVE frame.
func (KeepaliveMessage) Encode() []byte {
	return frame(MsgKeepalive, nil)
}

// DecodeKeepalive returns the (empty) KEEPALIVE body. A KEEPALIVE whose
// Length is not 19 (a non-empty body) is rejected with BadMessageLength
// carrying the offending length in Data.
func DecodeKeepalive(body []byte) (*KeepaliveMessage, error) {
	if len(body) != 0 {
		length := HeaderLen + len(body)
		return nil, bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderBadMessageLength, byte(length>>8), byte(length))
	}
	return &KeepaliveMessage{}, nil
}
