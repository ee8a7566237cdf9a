// Package websocket pushes live attempt state to the browser over a
// websocket, fed by the attempt's pubsub topic.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/attempts"
	"github.com/nfrund/signin/internal/pubsub"
	"github.com/nfrund/signin/internal/signin"
	"github.com/nfrund/signin/internal/view"
)

const (
	// KindSnapshot marks the first frame, sent right after the upgrade.
	KindSnapshot signin.EventKind = "snapshot"

	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// Stream serves GET /auth/attempt/stream.
type Stream struct {
	subscriber pubsub.Subscriber
	origins    []string
	logger     *slog.Logger
}

// Option is a function that configures a Stream.
type Option func(*Stream)

// WithOriginPatterns allows cross-origin upgrades from the given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Stream) { s.origins = patterns }
}

// WithLogger sets the stream logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStream creates a stream reading attempt events from sub.
func NewStream(sub pubsub.Subscriber, opts ...Option) *Stream {
	s := &Stream{subscriber: sub, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "websocket")
	return s
}

// client owns one connection. Frames are queued on send and written by a
// single goroutine; a nil frame asks the writer to close the connection.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// Serve upgrades the request and streams entry's events until the client
// disconnects, the request ends or the attempt is closed.
func (s *Stream) Serve(c echo.Context, entry *attempts.Entry) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return err
	}

	ctrl := entry.Controller
	cl := &client{
		id:     ctrl.ID(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: s.logger.With("attempt_id", ctrl.ID()),
	}

	// The stream is server to client only. CloseRead discards anything the
	// browser sends and cancels ctx once the connection goes away.
	ctx := conn.CloseRead(c.Request().Context())
	ac := ctrl.Attempt()

	err = pubsub.Subscribe(ctx, s.subscriber, signin.EventsFor(cl.id), func(ctx context.Context, ev signin.AttemptEvent) error {
		cl.enqueue(ctx, view.NewStreamFrame(ev, ac))
		if ev.Kind == signin.EventClosed {
			cl.finish(ctx)
		}
		return nil
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return err
	}

	cl.enqueue(ctx, view.StreamFrame{
		Kind:  KindSnapshot,
		State: view.NewAttempt(cl.id, ac, ctrl.Snapshot(), signin.Effects{}),
	})
	if ctrl.Closed() {
		cl.finish(ctx)
	}

	cl.writePump(ctx)
	return nil
}

// enqueue drops the frame when the client cannot keep up.
func (cl *client) enqueue(ctx context.Context, frame view.StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		cl.logger.Error("Failed to encode stream frame", "error", err)
		return
	}
	select {
	case cl.send <- data:
	case <-ctx.Done():
	default:
		cl.logger.Warn("Dropping stream frame for slow client", "kind", frame.Kind)
	}
}

func (cl *client) finish(ctx context.Context) {
	select {
	case cl.send <- nil:
	case <-ctx.Done():
	}
}

// writePump writes queued frames until the queue asks for a close or ctx ends.
func (cl *client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			cl.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
			return
		case message := <-cl.send:
			if message == nil {
				cl.conn.Close(websocket.StatusNormalClosure, "Attempt closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := cl.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					cl.logger.Error("WebSocket write error", "error", err)
				}
				cl.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}
