package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AlephTX/simtelem/telemetry"
)

// Pump waits for new samples on a connection and publishes them.
type Pump struct {
	// Open returns a fresh connection; it is called again after failures.
	Open func() (*telemetry.Conn, error)
	// Vars selects the published variables; empty means all.
	Vars []string
	// Timeout bounds each wait; zero means one second.
	Timeout time.Duration
	// Delay is the pause before reopening; zero means DefaultReconnectDelay.
	Delay time.Duration
	Pubs  []Publisher

	now func() time.Time
}

// Run pumps samples until ctx is done, reopening the region when the
// simulator goes away.
func (p *Pump) Run(ctx context.Context) error {
	return RunConnectionLoop(ctx, "relay: telemetry", p.Delay, p.session)
}

func (p *Pump) session(ctx context.Context) error {
	c, err := p.Open()
	if err != nil {
		return err
	}
	defer c.Close()

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	update := int32(-1)
	for {
		snap, err := c.WaitNextContext(ctx, timeout)
		switch {
		case err == nil:
		case errors.Is(err, telemetry.ErrTimeout):
			continue
		default:
			return err
		}

		h, err := c.Header()
		if err != nil {
			return err
		}
		if h.SessionInfoUpdate != update {
			update = h.SessionInfoUpdate
			if err := p.publishSession(c, update); err != nil {
				return err
			}
		}
		if err := p.publishFrame(snap); err != nil {
			return err
		}
	}
}

func (p *Pump) publishSession(c *telemetry.Conn, update int32) error {
	text, err := c.SessionInfo()
	if err != nil {
		return err
	}
	p.broadcast(TypeSession, Session{Update: update, Text: text})
	return nil
}

func (p *Pump) publishFrame(snap *telemetry.Snapshot) error {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	f, err := NewFrame(snap, p.Vars, now())
	if err != nil {
		return fmt.Errorf("frame at tick %d: %w", snap.Tick, err)
	}
	p.broadcast(TypeFrame, f)
	return nil
}

// broadcast logs delivery failures; one slow or absent consumer does not
// stop the others.
func (p *Pump) broadcast(msgType string, payload any) {
	for _, pub := range p.Pubs {
		if err := pub.Publish(msgType, payload); err != nil {
			log.Printf("relay: %v", err)
		}
	}
}
