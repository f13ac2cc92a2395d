package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestEncodePayload_CompressesRawFrame(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x13, 0x04}
	ev := Event{PeerID: "peer-1", FromState: "OpenConfirm", ToState: "Established", EventKind: "KeepaliveReceived", RawFrame: raw}

	payload, err := encodePayload(ev)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.PeerID != "peer-1" || decoded.ToState != "Established" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()

	roundTripped, err := dec.DecodeAll(decoded.RawFrame, nil)
	if err != nil {
		t.Fatalf("decode compressed frame: %v", err)
	}
	if string(roundTripped) != string(raw) {
		t.Fatalf("raw frame did not round-trip through compression")
	}
}

func TestEncodePayload_NoRawFrameOmitsField(t *testing.T) {
	ev := Event{PeerID: "peer-1", FromState: "Idle", ToState: "Connect", EventKind: "ManualStart"}

	payload, err := encodePayload(ev)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["raw_frame"]; ok {
		t.Errorf("expected raw_frame to be omitted when not set")
	}
}

func TestEncodePayload_NotificationFields(t *testing.T) {
	code, sub := uint8(6), uint8(2)
	ev := Event{PeerID: "peer-1", FromState: "Established", ToState: "Idle", EventKind: "ManualStop", NotifyCode: &code, NotifySub: &sub}

	payload, err := encodePayload(ev)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.NotifyCode == nil || *decoded.NotifyCode != 6 {
		t.Errorf("expected notify_code 6, got %v", decoded.NotifyCode)
	}
	if decoded.NotifySub == nil || *decoded.NotifySub != 2 {
		t.Errorf("expected notify_subcode 2, got %v", decoded.NotifySub)
	}
}
