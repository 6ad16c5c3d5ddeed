package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/protocol"
	"github.com/cory-johannsen/volleyball/internal/testutil"
)

func loopbackConfig() config.Config {
	cfg := config.Default()
	cfg.UDP.Host = "127.0.0.1"
	cfg.UDP.Port = 0
	cfg.Control.Host = "127.0.0.1"
	cfg.Control.Port = 0
	return cfg
}

func startGame(t *testing.T, cfg config.Config) *Game {
	t.Helper()
	g, err := NewGame(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("game did not shut down in time")
		}
	})
	return g
}

func TestGame_TwoPlayersPlay(t *testing.T) {
	g := startGame(t, loopbackConfig())

	alice := testutil.NewPlayerClient(t, g.ControlAddr(), g.UDPAddr())
	bob := testutil.NewPlayerClient(t, g.ControlAddr(), g.UDPAddr())
	aliceID := alice.Handshake()
	bobID := bob.Handshake()
	require.NotEqual(t, aliceID, bobID)

	a1 := alice.MustJoin()
	a2 := bob.MustJoin()
	assert.Equal(t, aliceID, a1.PlayerID)
	assert.Equal(t, bobID, a2.PlayerID)
	assert.Equal(t, a1.SessionID, a2.SessionID)

	first := alice.MustSnapshot()
	assert.Equal(t, protocol.RevisionVelocities, alice.Revision)
	assert.InDelta(t, 0.25, first.BallRadius, 1e-6)
	assert.InDelta(t, 0.5, first.PlayerRadius, 1e-6)
	bob.MustSnapshot()

	alice.MustSend(protocol.Input{PlayerID: aliceID, SessionID: a1.SessionID, Key: protocol.KeyLeft, Pressed: true})
	require.Eventually(t, func() bool {
		s, err := alice.ReadSnapshot(time.Second)
		return err == nil && s.Player1.X < 5.5
	}, 3*time.Second, time.Millisecond, "pressing left should move player one")
}

func TestGame_ControlCloseEndsBothConnections(t *testing.T) {
	g := startGame(t, loopbackConfig())

	alice := testutil.NewPlayerClient(t, g.ControlAddr(), g.UDPAddr())
	bob := testutil.NewPlayerClient(t, g.ControlAddr(), g.UDPAddr())
	alice.Handshake()
	bob.Handshake()
	alice.MustJoin()
	bob.MustJoin()
	bob.MustSnapshot()

	// give bob's connection time to learn its opponent
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, alice.CloseControl())
	assert.True(t, bob.ControlClosed(3*time.Second))
}

func TestGame_MalformedDatagramIsDropped(t *testing.T) {
	g := startGame(t, loopbackConfig())

	alice := testutil.NewPlayerClient(t, g.ControlAddr(), g.UDPAddr())
	alice.Handshake()
	require.NoError(t, alice.SendRaw([]byte("not a packet")))
	a := alice.MustJoin()
	assert.NotZero(t, a.SessionID)
}

func TestNewGame_RejectsUnknownRevision(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Match.SnapshotRevision = "holographic"
	_, err := NewGame(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
