// Package protocol encodes and decodes the fixed-size binary datagrams spoken
// between volleyball clients and the server. Every function is pure.
package protocol

import "fmt"

// PacketSize is the exact length of every inbound packet and of the assignment packet.
const PacketSize = 32

// Magic prefixes every client packet.
var Magic = [6]byte{58, 41, 58, 80, 58, 68} // ":):P:D"

// AssignmentMagic prefixes the server's player/session assignment packet.
var AssignmentMagic = [4]byte{12, 64, 13, 56}

// Opcode is the byte pair at offsets 6-7 selecting the message kind.
type Opcode [2]byte

var (
	OpJoinRequest     = Opcode{11, 13}
	OpPlayerIDRequest = Opcode{13, 22}
	OpLeftPress       = Opcode{17, 23}
	OpLeftRelease     = Opcode{25, 99}
	OpRightPress      = Opcode{37, 31}
	OpRightRelease    = Opcode{67, 58}
	OpJump            = Opcode{97, 33}
	OpPing            = Opcode{96, 22}
)

// Key is a player control.
type Key uint8

const (
	KeyLeft Key = iota + 1
	KeyRight
	KeyJump
)

func (k Key) String() string {
	switch k {
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	case KeyJump:
		return "jump"
	default:
		return fmt.Sprintf("key(%d)", uint8(k))
	}
}

// Message is a decoded inbound packet: PlayerIDRequest, JoinRequest, Input or Ping.
type Message interface {
	isMessage()
}

// PlayerIDRequest asks the server for a fresh player id. Only meaningful over TCP.
type PlayerIDRequest struct{}

// JoinRequest asks to be matched with an opponent.
type JoinRequest struct {
	PlayerID uint64
}

// Input is a key edge. Pressed is false for a release; a jump is always pressed.
type Input struct {
	PlayerID  uint64
	SessionID uint64
	Key       Key
	Pressed   bool
}

// Ping is a keepalive.
type Ping struct {
	PlayerID  uint64
	SessionID uint64
}

func (PlayerIDRequest) isMessage() {}
func (JoinRequest) isMessage()     {}
func (Input) isMessage()           {}
func (Ping) isMessage()            {}

// Assignment tells a client which player and session it has been seated in.
type Assignment struct {
	PlayerID  uint64
	SessionID uint64
}

// Vec2 is a two-dimensional wire vector.
type Vec2 struct {
	X, Y float32
}

// Snapshot is the outbound view of one session.
type Snapshot struct {
	BallRadius   float32
	Ball         Vec2
	PlayerRadius float32
	Player1      Vec2
	Player2      Vec2
	Score1       uint32
	Score2       uint32
	GameOver     bool
	Player1Vel   Vec2
	Player2Vel   Vec2
	BallVel      Vec2
}
