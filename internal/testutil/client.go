// Package testutil provides test clients for integration testing.
package testutil

import (
	"testing"
	"time"

	"github.com/cory-johannsen/volleyball/internal/client"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

const ioTimeout = 5 * time.Second

// PlayerClient is a protocol test client that fails the test on any I/O error.
type PlayerClient struct {
	*client.Client
	t *testing.T
}

// NewPlayerClient dials the control and datagram endpoints.
//
// Precondition: both addresses must be "host:port" strings with a listening server.
// Postcondition: Returns a connected PlayerClient or fails the test.
func NewPlayerClient(t *testing.T, controlAddr, udpAddr string) *PlayerClient {
	t.Helper()
	start := time.Now()

	c, err := client.Dial(controlAddr, udpAddr, ioTimeout)
	if err != nil {
		t.Fatalf("connecting to %s / %s: %v [%s]", controlAddr, udpAddr, err, time.Since(start))
	}
	t.Cleanup(func() { _ = c.Close() })

	t.Logf("player client connected to %s [%s]", controlAddr, time.Since(start))
	return &PlayerClient{Client: c, t: t}
}

// Handshake requests a player id over the control channel.
//
// Postcondition: Returns the assigned id or fails the test.
func (p *PlayerClient) Handshake() uint64 {
	p.t.Helper()
	id, err := p.RequestID(ioTimeout)
	if err != nil {
		p.t.Fatalf("id handshake: %v", err)
	}
	return id
}

// MustJoin joins a session and returns the assignment.
func (p *PlayerClient) MustJoin() protocol.Assignment {
	p.t.Helper()
	a, err := p.Join(ioTimeout, 200*time.Millisecond)
	if err != nil {
		p.t.Fatalf("joining: %v", err)
	}
	return a
}

// MustSend writes a datagram or fails the test.
func (p *PlayerClient) MustSend(msg protocol.Message) {
	p.t.Helper()
	if err := p.Send(msg); err != nil {
		p.t.Fatalf("sending %T: %v", msg, err)
	}
}

// MustSnapshot reads the next snapshot or fails the test.
func (p *PlayerClient) MustSnapshot() protocol.Snapshot {
	p.t.Helper()
	s, err := p.ReadSnapshot(ioTimeout)
	if err != nil {
		p.t.Fatalf("reading snapshot: %v", err)
	}
	return s
}

// MustPingControl sends a control keepalive or fails the test.
func (p *PlayerClient) MustPingControl() {
	p.t.Helper()
	if err := p.PingControl(ioTimeout); err != nil {
		p.t.Fatalf("control ping: %v", err)
	}
}
