package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// UnixPublisher streams JSON lines to a Unix socket, redialing when the
// consumer goes away.
type UnixPublisher struct {
	path     string
	attempts int
	backoff  time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewUnixPublisher(path string) *UnixPublisher {
	p := &UnixPublisher{path: path, attempts: 3, backoff: 500 * time.Millisecond}
	p.mu.Lock()
	p.dial() // best-effort; the consumer may not be listening yet
	p.mu.Unlock()
	return p
}

// dial must be called with mu held.
func (p *UnixPublisher) dial() error {
	conn, err := net.Dial("unix", p.path)
	if err != nil {
		return err
	}
	p.conn = conn
	log.Printf("relay: connected to %s", p.path)
	return nil
}

// Publish sends one message, retrying the connection a few times.
func (p *UnixPublisher) Publish(msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for n := 0; n < p.attempts; n++ {
		if p.conn == nil {
			if n > 0 {
				p.mu.Unlock()
				time.Sleep(p.backoff)
				p.mu.Lock()
			}
			if lastErr = p.dial(); lastErr != nil {
				continue
			}
		}
		if _, lastErr = p.conn.Write(line); lastErr != nil {
			p.conn.Close()
			p.conn = nil
			continue
		}
		return nil
	}
	return fmt.Errorf("relay: publish to %s: %w", p.path, lastErr)
}

func (p *UnixPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
