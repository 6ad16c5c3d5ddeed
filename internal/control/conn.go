package control

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/mailbox"
	"github.com/cory-johannsen/volleyball/internal/observability"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// conn is one control connection. Reads happen on a helper goroutine that
// delivers whole 32-byte frames; everything else runs on the loop goroutine.
type conn struct {
	raw      net.Conn
	playerID uint64
	cfg      config.ControlConfig
	logger   *zap.Logger

	opponentID  uint64
	hasOpponent bool
	lastPing    time.Time
}

func newConn(raw net.Conn, playerID uint64, cfg config.ControlConfig, logger *zap.Logger) *conn {
	return &conn{
		raw:      raw,
		playerID: playerID,
		cfg:      cfg,
		logger:   logger.With(observability.PlayerID(playerID)),
		lastPing: time.Now(),
	}
}

func (c *conn) close() {
	_ = c.raw.Close()
}

// readFrames reads fixed-size frames until the socket fails or done closes.
// The final read error is delivered on errs.
func (c *conn) readFrames(frames chan<- [protocol.PacketSize]byte, errs chan<- error, done <-chan struct{}) {
	var frame [protocol.PacketSize]byte
	for {
		if _, err := io.ReadFull(c.raw, frame[:]); err != nil {
			errs <- err
			return
		}
		select {
		case frames <- frame:
		case <-done:
			return
		}
	}
}

// run waits on the ping check, the mailbox and the socket until the
// connection ends. Endings the coordinator did not order are reported to it.
func (c *conn) run(ctx context.Context, mb *mailbox.Mailbox, coord Coordinator) {
	frames := make(chan [protocol.PacketSize]byte)
	readErrs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go c.readFrames(frames, readErrs, done)

	check := time.NewTicker(c.cfg.PingCheckInterval)
	defer check.Stop()

	notices := mb.Notices()
	for {
		select {
		case <-ctx.Done():
			return

		case <-check.C:
			if time.Since(c.lastPing) > c.cfg.PingTimeout {
				c.logger.Debug("no ping within timeout, disconnecting", zap.Duration("timeout", c.cfg.PingTimeout))
				c.reportDisconnect(ctx, coord)
				return
			}

		case n, ok := <-notices:
			if !ok {
				c.logger.Debug("mailbox closed")
				return
			}
			switch n := n.(type) {
			case mailbox.ForceDisconnect:
				c.logger.Debug("disconnect ordered by coordinator")
				return
			case mailbox.OpponentAssigned:
				c.opponentID = n.OpponentID
				c.hasOpponent = true
			}

		case frame := <-frames:
			if err := c.handleFrame(frame[:]); err != nil {
				c.logger.Warn("writing to control connection", zap.Error(err))
				c.reportDisconnect(ctx, coord)
				return
			}

		case err := <-readErrs:
			if errors.Is(err, io.EOF) {
				c.logger.Debug("connection closed by peer")
			} else {
				c.logger.Warn("reading from control connection", zap.Error(err))
			}
			c.reportDisconnect(ctx, coord)
			return
		}
	}
}

func (c *conn) handleFrame(frame []byte) error {
	msg, err := protocol.Decode(frame)
	if err != nil {
		c.logger.Warn("dropping malformed control frame", zap.Error(err))
		return nil
	}
	switch msg.(type) {
	case protocol.PlayerIDRequest:
		reply := protocol.EncodePlayerID(c.playerID)
		if c.cfg.WriteTimeout > 0 {
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		}
		_, err := c.raw.Write(reply[:])
		return err
	case protocol.Ping:
		c.lastPing = time.Now()
	default:
		c.logger.Debug("unexpected control message", zap.String("type", messageName(msg)))
	}
	return nil
}

func (c *conn) reportDisconnect(ctx context.Context, coord Coordinator) {
	if err := coord.Disconnect(ctx, c.playerID, c.opponentID, c.hasOpponent); err != nil {
		c.logger.Warn("reporting disconnect", zap.Error(err))
	}
}

func messageName(msg protocol.Message) string {
	switch msg.(type) {
	case protocol.JoinRequest:
		return "join_request"
	case protocol.Input:
		return "input"
	default:
		return "unknown"
	}
}
