// Package mailbox carries lifecycle notices from the coordinator to one
// player's control connection.
package mailbox

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned when pushing to a closed mailbox.
	ErrClosed = errors.New("mailbox closed")
	// ErrFull is returned when the mailbox buffer has no room.
	ErrFull = errors.New("mailbox full")
)

// Notice is a message for a control connection.
type Notice interface {
	isNotice()
}

// OpponentAssigned tells a player who they were paired with.
type OpponentAssigned struct {
	OpponentID uint64
}

// ForceDisconnect tells the connection to shut down without reporting back.
type ForceDisconnect struct{}

func (OpponentAssigned) isNotice() {}
func (ForceDisconnect) isNotice()  {}

// Mailbox routes notices to a buffered channel read by one connection loop.
type Mailbox struct {
	playerID uint64
	notices  chan Notice
	mu       sync.Mutex
	closed   bool
}

// New creates an open Mailbox for the given player.
//
// Postcondition: Returns a Mailbox with an open channel of at least one slot.
func New(playerID uint64, depth int) *Mailbox {
	if depth <= 0 {
		depth = 16
	}
	return &Mailbox{
		playerID: playerID,
		notices:  make(chan Notice, depth),
	}
}

// PlayerID returns the owning player's id.
func (m *Mailbox) PlayerID() uint64 {
	return m.playerID
}

// Push enqueues n without blocking.
//
// Postcondition: n is enqueued, or ErrClosed/ErrFull is returned.
func (m *Mailbox) Push(n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("player %d: %w", m.playerID, ErrClosed)
	}
	select {
	case m.notices <- n:
		return nil
	default:
		return fmt.Errorf("player %d: %w", m.playerID, ErrFull)
	}
}

// Notices returns the receive side. It is closed by Close.
func (m *Mailbox) Notices() <-chan Notice {
	return m.notices
}

// Close closes the channel. Calling it more than once is safe.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.notices)
	}
}

// IsClosed reports whether Close has been called.
func (m *Mailbox) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
