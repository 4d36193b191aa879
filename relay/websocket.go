package relay

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WSPublisher queues messages and writes them to a websocket server from
// Run. Publish never blocks; messages are dropped while the queue is full.
type WSPublisher struct {
	url   string
	queue chan Message
	delay time.Duration

	dropped atomic.Uint64
	sent    atomic.Uint64
}

func NewWSPublisher(url string, queue int) *WSPublisher {
	if queue <= 0 {
		queue = 64
	}
	return &WSPublisher{url: url, queue: make(chan Message, queue), delay: DefaultReconnectDelay}
}

func (w *WSPublisher) Publish(msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case w.queue <- msg:
	default:
		w.dropped.Add(1)
	}
	return nil
}

// Dropped reports how many messages were discarded on a full queue.
func (w *WSPublisher) Dropped() uint64 { return w.dropped.Load() }

// Sent reports how many messages were written to the server.
func (w *WSPublisher) Sent() uint64 { return w.sent.Load() }

// Run keeps a connection to the server open until ctx is done.
func (w *WSPublisher) Run(ctx context.Context) error {
	return RunConnectionLoop(ctx, "relay: ws", w.delay, w.connect)
}

func (w *WSPublisher) connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	log.Printf("relay: ws connected to %s", w.url)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return ctx.Err()
		case msg := <-w.queue:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return err
			}
			w.sent.Add(1)
		}
	}
}
