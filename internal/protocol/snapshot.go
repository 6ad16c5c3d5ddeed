package protocol

import (
	"encoding/binary"
	"fmt"
)

// Revision selects a snapshot layout. Later revisions only append fields.
type Revision int

const (
	// RevisionPositions carries radii and positions.
	RevisionPositions Revision = iota + 1
	// RevisionScores appends both scores and the game-over flag.
	RevisionScores
	// RevisionVelocities appends player and ball velocities for client prediction.
	RevisionVelocities
)

// Size returns the datagram length of the revision.
func (r Revision) Size() int {
	switch r {
	case RevisionPositions:
		return 32
	case RevisionScores:
		return 64
	case RevisionVelocities:
		return 68
	default:
		return 0
	}
}

func (r Revision) String() string {
	switch r {
	case RevisionPositions:
		return "positions"
	case RevisionScores:
		return "scores"
	case RevisionVelocities:
		return "velocities"
	default:
		return fmt.Sprintf("revision(%d)", int(r))
	}
}

// ParseRevision maps a configuration name to a Revision.
func ParseRevision(name string) (Revision, error) {
	for _, r := range []Revision{RevisionPositions, RevisionScores, RevisionVelocities} {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown snapshot revision %q", name)
}

// EncodeSnapshot lays s out in the given revision. Bytes not used by a field are zero.
//
// Layout: 0 ball radius, 4 ball position, 12 player radius, 16 player1
// position, 24 player2 position, 32 score1, 36 score2, 40 game over,
// 41 player1 velocity, 49 player2 velocity, 57 ball velocity.
func EncodeSnapshot(s Snapshot, rev Revision) ([]byte, error) {
	size := rev.Size()
	if size == 0 {
		return nil, fmt.Errorf("protocol: cannot encode %v", rev)
	}
	out := make([]byte, size)
	putF32(out[0:4], s.BallRadius)
	putVec(out[4:12], s.Ball)
	putF32(out[12:16], s.PlayerRadius)
	putVec(out[16:24], s.Player1)
	putVec(out[24:32], s.Player2)
	if rev >= RevisionScores {
		binary.LittleEndian.PutUint32(out[32:36], s.Score1)
		binary.LittleEndian.PutUint32(out[36:40], s.Score2)
		if s.GameOver {
			out[40] = 1
		}
	}
	if rev >= RevisionVelocities {
		putVec(out[41:49], s.Player1Vel)
		putVec(out[49:57], s.Player2Vel)
		putVec(out[57:65], s.BallVel)
	}
	return out, nil
}

// DecodeSnapshot parses a snapshot datagram, inferring the revision from its length.
func DecodeSnapshot(data []byte) (Snapshot, Revision, error) {
	var rev Revision
	switch len(data) {
	case RevisionPositions.Size():
		rev = RevisionPositions
	case RevisionScores.Size():
		rev = RevisionScores
	case RevisionVelocities.Size():
		rev = RevisionVelocities
	default:
		return Snapshot{}, 0, fmt.Errorf("%w: got %d bytes", ErrLength, len(data))
	}

	s := Snapshot{
		BallRadius:   getF32(data[0:4]),
		Ball:         getVec(data[4:12]),
		PlayerRadius: getF32(data[12:16]),
		Player1:      getVec(data[16:24]),
		Player2:      getVec(data[24:32]),
	}
	if rev >= RevisionScores {
		s.Score1 = binary.LittleEndian.Uint32(data[32:36])
		s.Score2 = binary.LittleEndian.Uint32(data[36:40])
		s.GameOver = data[40] == 1
	}
	if rev >= RevisionVelocities {
		s.Player1Vel = getVec(data[41:49])
		s.Player2Vel = getVec(data[49:57])
		s.BallVel = getVec(data[57:65])
	}
	return s, rev, nil
}
