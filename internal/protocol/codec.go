package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrDecode is wrapped by every decode failure.
var ErrDecode = errors.New("protocol: decode failed")

var (
	ErrLength = fmt.Errorf("%w: bad packet length", ErrDecode)
	ErrMagic  = fmt.Errorf("%w: bad magic", ErrDecode)
	ErrOpcode = fmt.Errorf("%w: unknown opcode", ErrDecode)
)

// Decode parses an inbound packet. It never returns a partial message: any
// length mismatch, bad magic or unknown opcode yields an error wrapping ErrDecode.
func Decode(data []byte) (Message, error) {
	if len(data) != PacketSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrLength, len(data))
	}
	if [6]byte(data[:6]) != Magic {
		return nil, fmt.Errorf("%w: %v", ErrMagic, data[:6])
	}
	playerID := binary.LittleEndian.Uint64(data[8:16])
	sessionID := binary.LittleEndian.Uint64(data[16:24])

	switch Opcode(data[6:8]) {
	case OpJoinRequest:
		return JoinRequest{PlayerID: playerID}, nil
	case OpPlayerIDRequest:
		return PlayerIDRequest{}, nil
	case OpLeftPress:
		return Input{PlayerID: playerID, SessionID: sessionID, Key: KeyLeft, Pressed: true}, nil
	case OpLeftRelease:
		return Input{PlayerID: playerID, SessionID: sessionID, Key: KeyLeft}, nil
	case OpRightPress:
		return Input{PlayerID: playerID, SessionID: sessionID, Key: KeyRight, Pressed: true}, nil
	case OpRightRelease:
		return Input{PlayerID: playerID, SessionID: sessionID, Key: KeyRight}, nil
	case OpJump:
		return Input{PlayerID: playerID, SessionID: sessionID, Key: KeyJump, Pressed: true}, nil
	case OpPing:
		return Ping{PlayerID: playerID, SessionID: sessionID}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrOpcode, data[6:8])
	}
}

// Encode builds the client-side packet for msg. It is the inverse of Decode.
func Encode(msg Message) ([PacketSize]byte, error) {
	var out [PacketSize]byte
	copy(out[:6], Magic[:])

	var op Opcode
	var playerID, sessionID uint64
	switch m := msg.(type) {
	case PlayerIDRequest:
		op = OpPlayerIDRequest
	case JoinRequest:
		op, playerID = OpJoinRequest, m.PlayerID
	case Ping:
		op, playerID, sessionID = OpPing, m.PlayerID, m.SessionID
	case Input:
		playerID, sessionID = m.PlayerID, m.SessionID
		switch {
		case m.Key == KeyJump:
			op = OpJump
		case m.Key == KeyLeft && m.Pressed:
			op = OpLeftPress
		case m.Key == KeyLeft:
			op = OpLeftRelease
		case m.Key == KeyRight && m.Pressed:
			op = OpRightPress
		case m.Key == KeyRight:
			op = OpRightRelease
		default:
			return out, fmt.Errorf("protocol: cannot encode %v", m.Key)
		}
	default:
		return out, fmt.Errorf("protocol: cannot encode %T", msg)
	}

	copy(out[6:8], op[:])
	binary.LittleEndian.PutUint64(out[8:16], playerID)
	binary.LittleEndian.PutUint64(out[16:24], sessionID)
	return out, nil
}

// EncodeAssignment builds the 32-byte player/session assignment packet.
func EncodeAssignment(a Assignment) [PacketSize]byte {
	var out [PacketSize]byte
	copy(out[:4], AssignmentMagic[:])
	binary.LittleEndian.PutUint64(out[4:12], a.PlayerID)
	binary.LittleEndian.PutUint64(out[12:20], a.SessionID)
	return out
}

// DecodeAssignment parses an assignment packet.
func DecodeAssignment(data []byte) (Assignment, error) {
	if len(data) != PacketSize {
		return Assignment{}, fmt.Errorf("%w: got %d bytes", ErrLength, len(data))
	}
	if [4]byte(data[:4]) != AssignmentMagic {
		return Assignment{}, fmt.Errorf("%w: %v", ErrMagic, data[:4])
	}
	return Assignment{
		PlayerID:  binary.LittleEndian.Uint64(data[4:12]),
		SessionID: binary.LittleEndian.Uint64(data[12:20]),
	}, nil
}

// IsAssignment reports whether data carries the assignment magic.
func IsAssignment(data []byte) bool {
	return len(data) == PacketSize && [4]byte(data[:4]) == AssignmentMagic
}

// EncodePlayerID builds the 8-byte TCP reply to a player id request.
func EncodePlayerID(id uint64) [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], id)
	return out
}

// DecodePlayerID parses the TCP reply to a player id request.
func DecodePlayerID(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: got %d bytes", ErrLength, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

func putF32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putVec(b []byte, v Vec2) {
	putF32(b[0:4], v.X)
	putF32(b[4:8], v.Y)
}

func getVec(b []byte) Vec2 {
	return Vec2{X: getF32(b[0:4]), Y: getF32(b[4:8])}
}
