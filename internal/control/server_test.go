package control

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/ident"
	"github.com/cory-johannsen/volleyball/internal/mailbox"
	"github.com/cory-johannsen/volleyball/internal/testutil"
)

type disconnect struct {
	playerID, opponentID uint64
	hasOpponent          bool
}

type fakeCoord struct {
	registered  chan *mailbox.Mailbox
	disconnects chan disconnect
}

func newFakeCoord() *fakeCoord {
	return &fakeCoord{
		registered:  make(chan *mailbox.Mailbox, 8),
		disconnects: make(chan disconnect, 8),
	}
}

func (f *fakeCoord) Register(_ context.Context, playerID uint64, mb *mailbox.Mailbox) error {
	f.registered <- mb
	return nil
}

func (f *fakeCoord) Disconnect(_ context.Context, playerID, opponentID uint64, hasOpponent bool) error {
	f.disconnects <- disconnect{playerID, opponentID, hasOpponent}
	return nil
}

func testControlConfig() config.ControlConfig {
	return config.ControlConfig{
		Host:              "127.0.0.1",
		Port:              0,
		PingCheckInterval: 20 * time.Millisecond,
		PingTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
		TickInterval:      10 * time.Millisecond,
	}
}

func startServer(t *testing.T, cfg config.ControlConfig) (*Server, *fakeCoord) {
	t.Helper()
	coord := newFakeCoord()
	srv := NewServer(cfg, coord, ident.Sequence(100), 4, zaptest.NewLogger(t))
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)
	return srv, coord
}

// unusedUDP is never read; control tests only exercise the TCP side.
const unusedUDP = "127.0.0.1:9"

func waitMailbox(t *testing.T, coord *fakeCoord) *mailbox.Mailbox {
	t.Helper()
	select {
	case mb := <-coord.registered:
		return mb
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
		return nil
	}
}

func waitDisconnect(t *testing.T, coord *fakeCoord) disconnect {
	t.Helper()
	select {
	case d := <-coord.disconnects:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not reported")
		return disconnect{}
	}
}

func TestHandshakeReturnsMintedID(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)

	mb := waitMailbox(t, coord)
	assert.Equal(t, uint64(100), mb.PlayerID())
	assert.Equal(t, uint64(100), c.Handshake())
	assert.Equal(t, uint64(100), c.Handshake(), "repeat requests return the same id")
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	waitMailbox(t, coord)

	require.NoError(t, c.SendControlRaw(make([]byte, 32), time.Second))
	assert.Equal(t, uint64(100), c.Handshake())
}

func TestPeerCloseReportsOpponent(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	mb := waitMailbox(t, coord)

	require.NoError(t, mb.Push(mailbox.OpponentAssigned{OpponentID: 555}))
	c.Handshake()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.CloseControl())

	d := waitDisconnect(t, coord)
	assert.Equal(t, disconnect{playerID: 100, opponentID: 555, hasOpponent: true}, d)
}

func TestPeerCloseWithoutOpponent(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	waitMailbox(t, coord)
	require.NoError(t, c.CloseControl())

	d := waitDisconnect(t, coord)
	assert.Equal(t, uint64(100), d.playerID)
	assert.False(t, d.hasOpponent)
}

func TestForceDisconnectClosesQuietly(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	mb := waitMailbox(t, coord)

	require.NoError(t, mb.Push(mailbox.ForceDisconnect{}))
	assert.True(t, c.ControlClosed(2*time.Second))

	select {
	case d := <-coord.disconnects:
		t.Fatalf("ordered disconnect was reported back: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClosedMailboxEndsConnection(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	mb := waitMailbox(t, coord)

	mb.Close()
	assert.True(t, c.ControlClosed(2*time.Second))
}

func TestPingTimeoutDisconnects(t *testing.T) {
	cfg := testControlConfig()
	cfg.PingTimeout = 80 * time.Millisecond
	srv, coord := startServer(t, cfg)
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	waitMailbox(t, coord)

	d := waitDisconnect(t, coord)
	assert.Equal(t, uint64(100), d.playerID)
	assert.True(t, c.ControlClosed(2*time.Second))
}

func TestPingsKeepConnectionAlive(t *testing.T) {
	cfg := testControlConfig()
	cfg.PingTimeout = 150 * time.Millisecond
	srv, coord := startServer(t, cfg)
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	waitMailbox(t, coord)

	for i := 0; i < 15; i++ {
		c.MustPingControl()
		time.Sleep(20 * time.Millisecond)
	}
	select {
	case d := <-coord.disconnects:
		t.Fatalf("pinging connection was dropped: %+v", d)
	default:
	}
	assert.Equal(t, 1, srv.OpenConnections())
}

func TestStopClosesConnections(t *testing.T) {
	srv, coord := startServer(t, testControlConfig())
	c := testutil.NewPlayerClient(t, srv.Addr(), unusedUDP)
	waitMailbox(t, coord)
	require.Equal(t, 1, srv.OpenConnections())

	srv.Stop()
	assert.True(t, c.ControlClosed(2*time.Second))
	assert.Equal(t, 0, srv.OpenConnections())
	assert.NotPanics(t, srv.Stop)
}

func TestListenRejectsBusyPort(t *testing.T) {
	srv, _ := startServer(t, testControlConfig())
	cfg := testControlConfig()
	_, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	cfg.Port, err = strconv.Atoi(portStr)
	require.NoError(t, err)

	other := NewServer(cfg, newFakeCoord(), ident.Sequence(1), 4, zaptest.NewLogger(t))
	assert.Error(t, other.Listen())
}

type countingTicker struct {
	calls  atomic.Int64
	accept bool
}

func (c *countingTicker) RequestTick() bool {
	c.calls.Add(1)
	return c.accept
}

func TestTickDriverFiresUntilCancelled(t *testing.T) {
	target := &countingTicker{accept: true}
	d := NewTickDriver(5*time.Millisecond, target, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return target.calls.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestTickDriverCountsSkips(t *testing.T) {
	target := &countingTicker{accept: false}
	d := NewTickDriver(5*time.Millisecond, target, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, uint64(target.calls.Load()), d.skipped)
}

func TestTickDriverRejectsZeroInterval(t *testing.T) {
	assert.Panics(t, func() { NewTickDriver(0, &countingTicker{}, zaptest.NewLogger(t)) })
}
