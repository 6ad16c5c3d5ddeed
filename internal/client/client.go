// Package client speaks the volleyball protocol from the player side. It backs
// the probe binary and the integration tests.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// Client holds one control connection and one datagram socket.
type Client struct {
	ctrl net.Conn
	udp  *net.UDPConn

	PlayerID  uint64
	SessionID uint64
	Revision  protocol.Revision
}

// Dial connects the control channel and the datagram socket.
//
// Postcondition: Returns a connected Client or a non-nil error.
func Dial(controlAddr, udpAddr string, timeout time.Duration) (*Client, error) {
	ctrl, err := net.DialTimeout("tcp", controlAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing control %s: %w", controlAddr, err)
	}
	raddr, err := net.ResolveUDPAddr("udp", udpAddr)
	if err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("resolving %s: %w", udpAddr, err)
	}
	udp, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("dialing udp %s: %w", udpAddr, err)
	}
	return &Client{ctrl: ctrl, udp: udp}, nil
}

// Close closes both sockets.
func (c *Client) Close() error {
	return errors.Join(c.ctrl.Close(), c.udp.Close())
}

// CloseControl closes only the control connection, which the server treats as a departure.
func (c *Client) CloseControl() error {
	return c.ctrl.Close()
}

func (c *Client) writeControl(msg protocol.Message, timeout time.Duration) error {
	pkt, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	_ = c.ctrl.SetWriteDeadline(time.Now().Add(timeout))
	_, err = c.ctrl.Write(pkt[:])
	return err
}

// SendControlRaw writes arbitrary bytes on the control connection.
func (c *Client) SendControlRaw(b []byte, timeout time.Duration) error {
	_ = c.ctrl.SetWriteDeadline(time.Now().Add(timeout))
	_, err := c.ctrl.Write(b)
	return err
}

// RequestID performs the control handshake and stores the assigned player id.
func (c *Client) RequestID(timeout time.Duration) (uint64, error) {
	if err := c.writeControl(protocol.PlayerIDRequest{}, timeout); err != nil {
		return 0, fmt.Errorf("sending id request: %w", err)
	}
	var reply [8]byte
	_ = c.ctrl.SetReadDeadline(time.Now().Add(timeout))
	if _, err := io.ReadFull(c.ctrl, reply[:]); err != nil {
		return 0, fmt.Errorf("reading id reply: %w", err)
	}
	id, err := protocol.DecodePlayerID(reply[:])
	if err != nil {
		return 0, err
	}
	c.PlayerID = id
	return id, nil
}

// PingControl sends a keepalive on the control connection.
func (c *Client) PingControl(timeout time.Duration) error {
	return c.writeControl(protocol.Ping{PlayerID: c.PlayerID, SessionID: c.SessionID}, timeout)
}

// ControlClosed reports whether the server has closed the control connection
// within timeout.
func (c *Client) ControlClosed(timeout time.Duration) bool {
	_ = c.ctrl.SetReadDeadline(time.Now().Add(timeout))
	var b [1]byte
	_, err := c.ctrl.Read(b[:])
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}
	return true
}

// Send writes one inbound message as a datagram.
func (c *Client) Send(msg protocol.Message) error {
	pkt, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	_, err = c.udp.Write(pkt[:])
	return err
}

// SendRaw writes arbitrary bytes as a datagram.
func (c *Client) SendRaw(b []byte) error {
	_, err := c.udp.Write(b)
	return err
}

// Key sends a key edge for the current session.
func (c *Client) Key(k protocol.Key, pressed bool) error {
	return c.Send(protocol.Input{PlayerID: c.PlayerID, SessionID: c.SessionID, Key: k, Pressed: pressed})
}

// Ping sends a datagram keepalive.
func (c *Client) Ping() error {
	return c.Send(protocol.Ping{PlayerID: c.PlayerID, SessionID: c.SessionID})
}

// Join sends join requests until an assignment arrives. Datagrams can be lost,
// so the request is repeated every retry interval.
func (c *Client) Join(timeout, retry time.Duration) (protocol.Assignment, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 128)
	for time.Now().Before(deadline) {
		if err := c.Send(protocol.JoinRequest{PlayerID: c.PlayerID}); err != nil {
			return protocol.Assignment{}, fmt.Errorf("sending join: %w", err)
		}
		wait := time.Now().Add(retry)
		if wait.After(deadline) {
			wait = deadline
		}
		_ = c.udp.SetReadDeadline(wait)
		for {
			n, err := c.udp.Read(buf)
			if err != nil {
				break
			}
			if a, err := protocol.DecodeAssignment(buf[:n]); err == nil {
				c.SessionID = a.SessionID
				return a, nil
			}
		}
	}
	return protocol.Assignment{}, fmt.Errorf("no assignment within %s", timeout)
}

// ReadSnapshot returns the next snapshot datagram, skipping assignment packets.
func (c *Client) ReadSnapshot(timeout time.Duration) (protocol.Snapshot, error) {
	_ = c.udp.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 128)
	for {
		n, err := c.udp.Read(buf)
		if err != nil {
			return protocol.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
		}
		if protocol.IsAssignment(buf[:n]) {
			continue
		}
		snap, rev, err := protocol.DecodeSnapshot(buf[:n])
		if err != nil {
			return protocol.Snapshot{}, err
		}
		c.Revision = rev
		return snap, nil
	}
}
