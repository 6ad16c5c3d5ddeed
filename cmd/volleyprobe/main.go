// Package main provides a headless debug client. It performs the control
// handshake, joins a session, plays a scripted sequence of keys and logs the
// snapshots it receives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/client"
	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/observability"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

type step struct {
	key     protocol.Key
	pressed bool
}

func parseScript(script string) ([]step, error) {
	var steps []step
	for _, tok := range strings.Split(script, ",") {
		tok = strings.TrimSpace(tok)
		switch tok {
		case "":
		case "left":
			steps = append(steps, step{protocol.KeyLeft, true}, step{protocol.KeyLeft, false})
		case "right":
			steps = append(steps, step{protocol.KeyRight, true}, step{protocol.KeyRight, false})
		case "jump":
			steps = append(steps, step{protocol.KeyJump, true})
		default:
			return nil, fmt.Errorf("unknown script step %q", tok)
		}
	}
	return steps, nil
}

func main() {
	controlAddr := flag.String("control", "127.0.0.1:12541", "control channel address")
	udpAddr := flag.String("udp", "127.0.0.1:12542", "game datagram address")
	script := flag.String("script", "left,jump,right,jump", "comma-separated key script, repeated")
	stepEvery := flag.Duration("step", 250*time.Millisecond, "interval between script steps")
	duration := flag.Duration("duration", 30*time.Second, "how long to play; zero plays until interrupted")
	logEvery := flag.Int("log-every", 30, "log one snapshot out of every n")
	flag.Parse()

	logger, err := observability.NewLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	steps, err := parseScript(*script)
	if err != nil {
		logger.Fatal("parsing script", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	c, err := client.Dial(*controlAddr, *udpAddr, 5*time.Second)
	if err != nil {
		logger.Fatal("connecting", zap.Error(err))
	}
	defer c.Close()

	id, err := c.RequestID(5 * time.Second)
	if err != nil {
		logger.Fatal("requesting player id", zap.Error(err))
	}
	logger.Info("player id assigned", observability.PlayerID(id))

	a, err := c.Join(10*time.Second, 500*time.Millisecond)
	if err != nil {
		logger.Fatal("joining", zap.Error(err))
	}
	logger.Info("joined session", observability.PlayerID(a.PlayerID), observability.SessionID(a.SessionID))

	play(ctx, c, steps, *stepEvery, *logEvery, logger)
}

func play(ctx context.Context, c *client.Client, steps []step, stepEvery time.Duration, logEvery int, logger *zap.Logger) {
	pings := time.NewTicker(time.Second)
	defer pings.Stop()
	script := time.NewTicker(stepEvery)
	defer script.Stop()

	next := 0
	received := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("probe finished", zap.Int("snapshots", received))
			return
		case <-pings.C:
			if err := c.Ping(); err != nil {
				logger.Warn("udp ping", zap.Error(err))
			}
			if err := c.PingControl(time.Second); err != nil {
				logger.Error("control ping failed, server is gone", zap.Error(err))
				return
			}
		case <-script.C:
			if len(steps) == 0 {
				continue
			}
			s := steps[next%len(steps)]
			next++
			if err := c.Key(s.key, s.pressed); err != nil {
				logger.Warn("sending key", zap.Stringer("key", s.key), zap.Error(err))
			}
		default:
			snap, err := c.ReadSnapshot(20 * time.Millisecond)
			if err != nil {
				continue
			}
			received++
			if logEvery > 0 && received%logEvery == 0 {
				logger.Info("snapshot",
					zap.Stringer("revision", c.Revision),
					zap.Float32s("ball", []float32{snap.Ball.X, snap.Ball.Y}),
					zap.Float32s("player1", []float32{snap.Player1.X, snap.Player1.Y}),
					zap.Float32s("player2", []float32{snap.Player2.X, snap.Player2.Y}),
					zap.Uint32("score1", snap.Score1),
					zap.Uint32("score2", snap.Score2),
					zap.Bool("game_over", snap.GameOver),
				)
			}
		}
	}
}
