package bgp

import "testing"

func TestCapabilitiesRoundTrip(t *testing.T) {
	caps := []Capability{
		{Code: CapMultiprotocol, Value: []byte{0, 1, 0, 1}},
		{Code: CapRouteRefresh, Value: nil},
		{Code: CapFourOctetASN, Value: []byte{0, 1, 0xFD, 0xE9}},
	}

	encoded := EncodeCapabilities(caps)
	decoded, err := DecodeCapabilities(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != len(caps) {
		t.Fatalf("expected %d capabilities, got %d", len(caps), len(decoded))
	}
	for i, c := range caps {
		if decoded[i].Code != c.Code {
			t.Errorf("capability %d: expected code %d, got %d", i, c.Code, decoded[i].Code)
		}
	}
}

func TestDecodeCapabilitiesRejectsNonCapabilityOptParam(t *testing.T) {
	data := []byte{0x01, 0x02, 0xAA, 0xBB} // opt-param type=1, not capability
	_, err := DecodeCapabilities(data)
	if err == nil {
		t.Fatal("expected error for non-capability optional parameter")
	}
}

func TestIntersectPreservesLocalOrder(t *testing.T) {
	local := []Capability{
		{Code: CapMultiprotocol, Value: []byte{0, 1, 0, 1}},
		{Code: CapFourOctetASN, Value: []byte{0, 0, 0xFD, 0xE9}},
		{Code: CapRouteRefresh},
	}
	remote := []Capability{
		{Code: CapRouteRefresh},
		{Code: CapMultiprotocol, Value: []byte{0, 1, 0, 1}},
	}

	got := Intersect(local, remote)
	if len(got) != 2 {
		t.Fatalf("expected 2 shared capabilities, got %d", len(got))
	}
	if got[0].Code != CapMultiprotocol || got[1].Code != CapRouteRefresh {
		t.Errorf("expected local order preserved, got %+v", got)
	}
}

func TestMultiprotocolValueRoundTrip(t *testing.T) {
	v := MultiprotocolValue{AFI: AFIIPv6, SAFI: SAFIUnicast}
	decoded, ok := DecodeMultiprotocolValue(v.Encode())
	if !ok {
		t.Fatal("expected ok")
	}
	if decoded != v {
		t.Errorf("expected %+v, got %+v", v, decoded)
	}
}

func TestDecodeMultiprotocolValueRejectsBadLength(t *testing.T) {
	if _, ok := DecodeMultiprotocolValue([]byte{0, 1}); ok {
		t.Fatal("expected ok=false for short value")
	}
}
