package peerd

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/bgp-speaker/internal/bgp"
	"github.com/route-beacon/bgp-speaker/internal/fsm"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	fsmCfg := fsm.Config{
		LocalASN:      65000,
		RemoteASN:     65001,
		LocalRouterID: netip.MustParseAddr("10.0.0.1"),
		Timers: fsm.TimerSet{
			ConnectRetry: time.Second,
			Hold:         90 * time.Second,
			Keepalive:    30 * time.Second,
		},
	}

	s := New(Config{PeerID: "peer-1", Passive: true}, fsmCfg, nil, nil, zap.NewNop())
	s.adopt(serverConn)
	return s, clientConn
}

func TestSessionActiveOpenHandshake(t *testing.T) {
	s, client := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go s.peer.Run(ctx)
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	go s.readLoop(ctx, conn)

	s.peer.Post(fsm.Event{Kind: fsm.EventManualStartWithPassiveTCP})
	s.peer.Post(fsm.Event{Kind: fsm.EventTCPConnectionConfirmed})

	// our Session should have sent an OPEN onto the pipe.
	buf := make([]byte, 64)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("reading OPEN from session: %v", err)
	}
	if buf[18] != byte(bgp.MsgOpen) {
		t.Fatalf("expected OPEN message type, got %d (n=%d)", buf[18], n)
	}

	waitForState(t, s.peer, fsm.OpenSent)

	peerOpen := bgp.OpenMessage{Version: 4, MyAS: 65001, HoldTime: 180, RouterID: netip.MustParseAddr("1.1.1.1")}
	if _, err := client.Write(peerOpen.Encode()); err != nil {
		t.Fatalf("writing OPEN: %v", err)
	}

	// session should keepalive back. net.Pipe is unbuffered, so the
	// KEEPALIVE send (and with it the move to OpenConfirm) completes
	// only once it is read here.
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err = client.Read(buf)
	if err != nil {
		t.Fatalf("reading KEEPALIVE from session: %v", err)
	}
	if n != 19 || buf[18] != byte(bgp.MsgKeepalive) {
		t.Fatalf("expected 19-byte KEEPALIVE, got %d bytes type %d", n, buf[18])
	}
	waitForState(t, s.peer, fsm.OpenConfirm)

	if _, err := client.Write(bgp.KeepaliveMessage{}.Encode()); err != nil {
		t.Fatalf("writing KEEPALIVE: %v", err)
	}
	waitForState(t, s.peer, fsm.Established)
}

func waitForState(t *testing.T, p *fsm.Peer, want fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("peer did not reach state %s, got %s", want, p.State())
}
