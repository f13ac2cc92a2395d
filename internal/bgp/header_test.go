package bgp

import (
	"bytes"
	"testing"

	"github.com/route-beacon/bgp-speaker/internal/bgperr"
)

func TestHeaderRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3, 4}
	framed := frame(MsgKeepalive, body)

	hdr, err := DecodeHeader(framed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hdr.Type != MsgKeepalive {
		t.Errorf("expected type KEEPALIVE, got %s", hdr.Type)
	}
	if int(hdr.Length) != HeaderLen+len(body) {
		t.Errorf("expected length %d, got %d", HeaderLen+len(body), hdr.Length)
	}
}

func TestDecodeHeaderRejectsBadMarker(t *testing.T) {
	framed := frame(MsgKeepalive, nil)
	framed[0] = 0x00

	_, err := DecodeHeader(framed)
	notifErr, ok := err.(*bgperr.NotificationError)
	if !ok {
		t.Fatalf("expected *bgperr.NotificationError, got %T", err)
	}
	if notifErr.NotifCode != bgperr.CodeMessageHeader || notifErr.NotifSubcode != bgperr.MessageHeaderConnectionNotSync {
		t.Errorf("expected ConnectionNotSynchronized, got %s/%d", notifErr.NotifCode, notifErr.NotifSubcode)
	}
}

func TestDecodeHeaderRejectsShortLength(t *testing.T) {
	b := EncodeHeader(10, MsgKeepalive)
	_, err := DecodeHeader(b)
	if err == nil {
		t.Fatal("expected error for length below HeaderLen")
	}
}

func TestDecodeHeaderRejectsUnknownType(t *testing.T) {
	framed := frame(MsgKeepalive, nil)
	framed[18] = 0x09

	_, err := DecodeHeader(framed)
	if err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestFrameLengthInvariant(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 50)
	framed := frame(MsgUpdate, body)
	if len(framed) != HeaderLen+len(body) {
		t.Fatalf("frame length invariant violated: got %d, want %d", len(framed), HeaderLen+len(body))
	}
}
