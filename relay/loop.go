// Package relay forwards telemetry samples to consumers outside the
// process: JSON lines over a Unix socket or JSON messages over a websocket.
package relay

import (
	"context"
	"log"
	"time"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// ConnectFunc runs one connection until it fails or ctx is done.
type ConnectFunc func(ctx context.Context) error

// RunConnectionLoop calls connect until ctx is done, sleeping delay after
// every return. Only ctx ends the loop.
func RunConnectionLoop(ctx context.Context, name string, delay time.Duration, connect ConnectFunc) error {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	for {
		err := connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("%s: disconnected (%v), reconnecting in %v...", name, err, delay)
		} else {
			log.Printf("%s: closed, reconnecting in %v...", name, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
