package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/getconsole/consolekit/pkg/logging"
	"github.com/getconsole/consolekit/pkg/props"
)

// ErrAlreadyClosed is returned by Close on a receiver that is not open.
var ErrAlreadyClosed = errors.New("notification receiver is already closed")

// Notification is one parsed message from the channel.
type Notification struct {
	// Headers carry the delivery metadata (topic, type, object URI).
	Headers map[string]any
	// Message is the parsed payload.
	Message *props.Map
}

// Receiver owns one notification connection and delivers parsed
// notifications on an unbounded channel.
type Receiver struct {
	conn   *websocket.Conn
	topic  string
	out    chan Notification
	inbox  chan Notification
	cancel context.CancelFunc
	closed atomic.Bool
	log    *slog.Logger
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Receiver) {
		r.log = log
	}
}

// Connect dials the notification endpoint, subscribes to topic with the
// given token, and starts the background reader.
func Connect(ctx context.Context, endpoint, topic, token string, opts ...Option) (*Receiver, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connect notification endpoint: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		conn:   conn,
		topic:  topic,
		out:    make(chan Notification),
		inbox:  make(chan Notification),
		cancel: cancel,
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	subscribe := map[string]string{"topic": topic, "token": token}
	if err := wsjson.Write(ctx, conn, subscribe); err != nil {
		cancel()
		_ = conn.Close(websocket.StatusProtocolError, "subscribe failed")
		return nil, fmt.Errorf("subscribe to topic %q: %w", topic, err)
	}

	go r.pump()
	go r.readLoop(readCtx)
	return r, nil
}

// Topic returns the subscribed topic.
func (r *Receiver) Topic() string {
	return r.topic
}

// Notifications returns the delivery channel. It is closed when the
// sequence ends; receives never block the reader.
func (r *Receiver) Notifications() <-chan Notification {
	return r.out
}

// Close disconnects and unblocks any pending receive. A second Close
// fails with ErrAlreadyClosed.
func (r *Receiver) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	r.cancel()
	return r.conn.Close(websocket.StatusNormalClosure, "client closed")
}

// readLoop parses frames off the connection until close or a transport
// error ends the sequence.
func (r *Receiver) readLoop(ctx context.Context) {
	defer close(r.inbox)
	for {
		var frame struct {
			Headers map[string]any  `json:"headers"`
			Message json.RawMessage `json:"message"`
		}
		if err := wsjson.Read(ctx, r.conn, &frame); err != nil {
			if !r.closed.Load() {
				r.log.Debug("notification stream ended", "topic", r.topic, "error", err)
			}
			return
		}
		message := props.New()
		if len(frame.Message) > 0 {
			if err := json.Unmarshal(frame.Message, message); err != nil {
				r.log.Warn("dropping unparsable notification payload", "topic", r.topic, "error", err)
				continue
			}
		}
		r.inbox <- Notification{Headers: frame.Headers, Message: message}
	}
}

// pump decouples the reader from consumers with an unbounded queue, so a
// slow consumer never backpressures the connection.
func (r *Receiver) pump() {
	defer close(r.out)
	var queue []Notification
	inbox := r.inbox
	for inbox != nil || len(queue) > 0 {
		var send chan Notification
		var next Notification
		if len(queue) > 0 {
			send = r.out
			next = queue[0]
		}
		select {
		case n, ok := <-inbox:
			if !ok {
				inbox = nil
				continue
			}
			queue = append(queue, n)
		case send <- next:
			queue = queue[1:]
		}
	}
}
