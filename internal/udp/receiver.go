// Package udp runs the game datagram endpoint: one receive loop that decodes
// inbound packets and one sender that owns every outbound write.
package udp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// maxDatagram is larger than any valid packet so oversized datagrams are
// rejected by the codec instead of being silently truncated.
const maxDatagram = 2048

// Forwarder accepts decoded messages tagged with their source address.
type Forwarder interface {
	Forward(ctx context.Context, from netip.AddrPort, msg protocol.Message) error
}

// Receiver reads datagrams and forwards decoded messages.
type Receiver struct {
	conn   *net.UDPConn
	fwd    Forwarder
	logger *zap.Logger
}

// NewReceiver creates a Receiver reading from conn.
//
// Precondition: conn, fwd and logger must be non-nil.
func NewReceiver(conn *net.UDPConn, fwd Forwarder, logger *zap.Logger) *Receiver {
	return &Receiver{conn: conn, fwd: fwd, logger: logger}
}

// Run receives until ctx is cancelled or the socket is closed. Malformed
// datagrams are logged and dropped; nothing is sent back.
//
// Postcondition: Returns nil on cancellation or socket close.
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Error("receiving datagram", zap.Error(err))
			continue
		}
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())

		msg, err := protocol.Decode(buf[:n])
		if err != nil {
			r.logger.Warn("dropping malformed datagram",
				zap.Stringer("from", from),
				zap.Int("len", n),
				zap.Error(err),
			)
			continue
		}
		if _, ok := msg.(protocol.PlayerIDRequest); ok {
			r.logger.Warn("player id request belongs on the control channel", zap.Stringer("from", from))
			continue
		}

		if err := r.fwd.Forward(ctx, from, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("forwarding message", zap.Stringer("from", from), zap.Error(err))
		}
	}
}
