package bgp

import "testing"

// ipv4Announcement builds a minimal well-formed attribute set for an
// IPv4 NLRI announcement: ORIGIN, AS_PATH and NEXT_HOP are the three
// well-known attributes DecodeUpdate requires whenever NLRI is
// non-empty (spec.md §4.1).
func ipv4Announcement(asns []uint32, nexthop [4]byte, nlri ...WirePrefix) UpdateMessage {
	return UpdateMessage{
		PathAttributes: []PathAttribute{
			OriginAttribute(0), // IGP
			ASPathAttribute([]ASPathSegment{{Type: ASPathSegmentSequence, ASNs: asns}}),
			NextHopAttribute(nexthop),
		},
		NLRI: nlri,
	}
}

func TestParseUpdate_IPv4Announcement(t *testing.T) {
	upd := ipv4Announcement([]uint32{65001}, [4]byte{192, 168, 1, 1},
		WirePrefix{PrefixLen: 24, Addr: [4]byte{10, 0, 1, 0}})

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Action != "A" || ev.Prefix != "10.0.1.0/24" {
		t.Errorf("unexpected announcement event: %+v", ev)
	}
	if ev.Nexthop != "192.168.1.1" {
		t.Errorf("nexthop = %q, want 192.168.1.1", ev.Nexthop)
	}
	if ev.ASPath != "65001" {
		t.Errorf("as_path = %q, want 65001", ev.ASPath)
	}
	if ev.Origin != "IGP" {
		t.Errorf("origin = %q, want IGP", ev.Origin)
	}
}

func TestParseUpdate_IPv4Withdrawal(t *testing.T) {
	upd := UpdateMessage{
		WithdrawnRoutes: []WirePrefix{{PrefixLen: 24, Addr: [4]byte{10, 0, 2, 0}}},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Action != "D" || events[0].Prefix != "10.0.2.0/24" {
		t.Errorf("unexpected withdrawal event: %+v", events[0])
	}
}

func TestParseUpdate_ASPathSetAndSequence(t *testing.T) {
	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			OriginAttribute(1), // EGP
			ASPathAttribute([]ASPathSegment{
				{Type: ASPathSegmentSequence, ASNs: []uint32{65001, 65002}},
				{Type: ASPathSegmentSet, ASNs: []uint32{65010, 65011}},
			}),
			NextHopAttribute([4]byte{192, 168, 1, 1}),
		},
		NLRI: []WirePrefix{{PrefixLen: 24, Addr: [4]byte{10, 0, 3, 0}}},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	const want = "65001 65002 {65010,65011}"
	if events[0].ASPath != want {
		t.Errorf("as_path = %q, want %q", events[0].ASPath, want)
	}
	if events[0].Origin != "EGP" {
		t.Errorf("origin = %q, want EGP", events[0].Origin)
	}
}

func TestParseUpdate_StandardCommunities(t *testing.T) {
	upd := ipv4Announcement([]uint32{65001}, [4]byte{192, 168, 1, 1},
		WirePrefix{PrefixLen: 24, Addr: [4]byte{10, 0, 4, 0}})
	upd.PathAttributes = append(upd.PathAttributes, PathAttribute{
		Flags: AttrFlagOptional | AttrFlagTransitive,
		Type:  AttrTypeCommunity,
		Value: []byte{0xFD, 0xE9, 0x00, 0x64, 0xFD, 0xE9, 0x00, 0x65}, // 65001:100 65001:101
	})

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	want := []string{"65001:100", "65001:101"}
	if len(events[0].CommStd) != len(want) || events[0].CommStd[0] != want[0] || events[0].CommStd[1] != want[1] {
		t.Errorf("communities = %v, want %v", events[0].CommStd, want)
	}
}

func TestParseUpdate_LargeCommunities(t *testing.T) {
	upd := ipv4Announcement([]uint32{65001}, [4]byte{192, 168, 1, 1},
		WirePrefix{PrefixLen: 24, Addr: [4]byte{10, 0, 5, 0}})
	upd.PathAttributes = append(upd.PathAttributes, PathAttribute{
		Flags: AttrFlagOptional | AttrFlagTransitive,
		Type:  AttrTypeLargeCommunity,
		Value: []byte{
			0x00, 0x00, 0xFD, 0xE9, // global = 65001
			0x00, 0x00, 0x00, 0x01, // data1 = 1
			0x00, 0x00, 0x00, 0x02, // data2 = 2
		},
	})

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || len(events[0].CommLarge) != 1 || events[0].CommLarge[0] != "65001:1:2" {
		t.Errorf("unexpected large communities: %+v", events)
	}
}

func TestParseUpdate_MEDAndLocalPref(t *testing.T) {
	upd := ipv4Announcement([]uint32{65001}, [4]byte{192, 168, 1, 1},
		WirePrefix{PrefixLen: 24, Addr: [4]byte{10, 0, 6, 0}})
	upd.PathAttributes = append(upd.PathAttributes,
		PathAttribute{Flags: AttrFlagOptional, Type: AttrTypeMED, Value: []byte{0, 0, 0, 50}},
		PathAttribute{Flags: AttrFlagTransitive, Type: AttrTypeLocalPref, Value: []byte{0, 0, 1, 0}},
	)

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].MED == nil || *events[0].MED != 50 {
		t.Errorf("med = %v, want 50", events[0].MED)
	}
	if events[0].LocalPref == nil || *events[0].LocalPref != 256 {
		t.Errorf("local_pref = %v, want 256", events[0].LocalPref)
	}
}

func TestParseUpdate_UnknownAttribute(t *testing.T) {
	upd := ipv4Announcement([]uint32{65001}, [4]byte{192, 168, 1, 1},
		WirePrefix{PrefixLen: 24, Addr: [4]byte{10, 0, 7, 0}})
	upd.PathAttributes = append(upd.PathAttributes, PathAttribute{
		Flags: AttrFlagOptional | AttrFlagTransitive,
		Type:  99,
		Value: []byte{0xDE, 0xAD},
	})

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Attrs["99"] != "dead" {
		t.Errorf("unknown attr summary = %q, want \"dead\"", events[0].Attrs["99"])
	}
}

func TestParseUpdate_IPv6MPReach(t *testing.T) {
	mpReach := []byte{
		0x00, 0x02, // AFI = IPv6
		0x01, // SAFI = unicast
		0x10, // next-hop length = 16
	}
	mpReach = append(mpReach, []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}...) // 2001:db8::1
	mpReach = append(mpReach, 0x00)                                                                  // SNPA count = 0
	mpReach = append(mpReach, 0x40, 0x20, 0x01, 0x0d, 0xb8, 0x00, 0x01, 0x00, 0x00) // 2001:db8:1::/64

	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			OriginAttribute(0),
			{Flags: AttrFlagOptional, Type: AttrTypeMPReachNLRI, Value: mpReach},
		},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].AFI != 6 || events[0].Prefix != "2001:db8:1::/64" {
		t.Errorf("unexpected MP_REACH event: %+v", events[0])
	}
	if events[0].Nexthop != "2001:db8::1" {
		t.Errorf("mp_reach nexthop = %q", events[0].Nexthop)
	}
}

func TestParseUpdate_IPv6MPUnreach(t *testing.T) {
	mpUnreach := []byte{
		0x00, 0x02, // AFI = IPv6
		0x01,                                     // SAFI = unicast
		0x40, 0x20, 0x01, 0x0d, 0xb8, 0x00, 0x02, 0x00, 0x00, // 2001:db8:2::/64
	}

	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			{Flags: AttrFlagOptional, Type: AttrTypeMPUnreachNLRI, Value: mpUnreach},
		},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Action != "D" || events[0].Prefix != "2001:db8:2::/64" {
		t.Errorf("unexpected MP_UNREACH event: %+v", events)
	}
}

func TestParseUpdate_MPReachAddPath(t *testing.T) {
	mpReach := []byte{
		0x00, 0x02, // AFI = IPv6
		0x01, // SAFI = unicast
		0x10, // next-hop length = 16
	}
	mpReach = append(mpReach, []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}...)
	mpReach = append(mpReach, 0x00)                                     // SNPA count = 0
	mpReach = append(mpReach, 0x00, 0x00, 0x00, 0x07)                   // path_id = 7
	mpReach = append(mpReach, 0x40, 0x20, 0x01, 0x0d, 0xb8, 0x00, 0x03, 0x00, 0x00) // 2001:db8:3::/64

	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			OriginAttribute(0),
			{Flags: AttrFlagOptional, Type: AttrTypeMPReachNLRI, Value: mpReach},
		},
	}

	// hasAddPath only reaches MP_REACH/MP_UNREACH NLRI: WirePrefix
	// carries no path identifier, so top-level NLRI never gets one.
	events, err := ParseUpdate(upd.Encode(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].PathID != 7 {
		t.Errorf("unexpected add-path event: %+v", events)
	}
}

func TestParseUpdate_UnsupportedAFI_MPReach(t *testing.T) {
	// AFI 0 is not IPv4 or IPv6; the attribute is parsed but its NLRI is
	// silently dropped rather than surfaced as an event.
	mpReach := []byte{0x00, 0x00, 0x01, 0x00, 0x00}

	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			OriginAttribute(0),
			{Flags: AttrFlagOptional, Type: AttrTypeMPReachNLRI, Value: mpReach},
		},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events for unsupported AFI, got %d", len(events))
	}
}

func TestParseUpdate_UnsupportedAFI_MPUnreach(t *testing.T) {
	mpUnreach := []byte{0x00, 0x00, 0x01}

	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			{Flags: AttrFlagOptional, Type: AttrTypeMPUnreachNLRI, Value: mpUnreach},
		},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events for unsupported AFI, got %d", len(events))
	}
}

func TestParseUpdate_MPReachWithNonZeroSNPA(t *testing.T) {
	mpReach := []byte{
		0x00, 0x02, // AFI = IPv6
		0x01, // SAFI = unicast
		0x10, // next-hop length = 16
	}
	mpReach = append(mpReach, []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}...)
	mpReach = append(mpReach, 0x01)            // SNPA count = 1
	mpReach = append(mpReach, 0x04, 0xAA, 0xBB) // one 4-semi-octet (2-byte) SNPA entry
	mpReach = append(mpReach, 0x40, 0x20, 0x01, 0x0d, 0xb8, 0x00, 0x04, 0x00, 0x00)

	upd := UpdateMessage{
		PathAttributes: []PathAttribute{
			OriginAttribute(0),
			{Flags: AttrFlagOptional, Type: AttrTypeMPReachNLRI, Value: mpReach},
		},
	}

	events, err := ParseUpdate(upd.Encode(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Prefix != "2001:db8:4::/64" {
		t.Errorf("SNPA entry not skipped correctly: %+v", events)
	}
}

func TestParseUpdate_TruncatedAttrHeader(t *testing.T) {
	body := []byte{
		0x00, 0x00, // withdrawn_len = 0
		0x00, 0x01, // attrs_len = 1 (not enough for a flags/type pair)
		0x40,
	}
	_, err := ParseUpdate(frame(MsgUpdate, body), false)
	if err == nil {
		t.Fatal("expected error for truncated attribute header")
	}
}

func TestParseUpdate_TruncatedAttrLength(t *testing.T) {
	body := []byte{
		0x00, 0x00,
		0x00, 0x02, // attrs_len = 2: flags+type present, no length byte
		0x40, AttrTypeOrigin,
	}
	_, err := ParseUpdate(frame(MsgUpdate, body), false)
	if err == nil {
		t.Fatal("expected error for truncated attribute length")
	}
}

func TestParseUpdate_AttrDataTruncated(t *testing.T) {
	body := []byte{
		0x00, 0x00,
		0x00, 0x03, // attrs_len = 3: length byte claims 2 value bytes, 0 follow
		0x40, AttrTypeOrigin, 0x02,
	}
	_, err := ParseUpdate(frame(MsgUpdate, body), false)
	if err == nil {
		t.Fatal("expected error for truncated attribute data")
	}
}
