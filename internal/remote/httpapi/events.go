package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

const (
	minReconnectWait = 500 * time.Millisecond
	maxReconnectWait = 10 * time.Second
	refetchTimeout   = 5 * time.Second
)

// SubscribeNowPlaying opens the agent event stream and calls handler for
// every now-playing event. handler runs on the stream's goroutine, one call
// at a time, in arrival order.
//
// When the stream drops, handler receives a disconnected snapshot and the
// stream reconnects with backoff until it is released. After every
// reconnect the current snapshot is fetched, since the agent only streams
// changes.
func (c *Client) SubscribeNowPlaying(ctx context.Context, handler func(core.NowPlaying)) (core.Subscription, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += PathEvents

	sctx, cancel := context.WithCancel(context.Background())
	s := &eventStream{
		client:  c,
		url:     u.String(),
		dialer:  websocket.Dialer{HandshakeTimeout: c.httpClient.Timeout},
		handler: handler,
		log:     c.log,
		minWait: c.reconnectWait,
		maxWait: max(c.reconnectWait, maxReconnectWait),
		ctx:     sctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// The first dial is bounded by ctx so that an unreachable agent is
	// reported to the caller. The connection itself lives until Unsubscribe.
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		cancel()
		return nil, panelerrors.Transport("subscribe now playing", fmt.Errorf("connecting to events stream: %w", err))
	}
	go s.run(conn)
	return s, nil
}

type eventStream struct {
	client  *Client
	url     string
	dialer  websocket.Dialer
	handler func(core.NowPlaying)
	log     *zap.Logger

	minWait time.Duration
	maxWait time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *eventStream) run(conn *websocket.Conn) {
	defer close(s.done)
	first := true
	wait := s.minWait
	for {
		if conn != nil {
			if !s.setConn(conn) {
				_ = conn.Close()
				return
			}
			if !first {
				s.log.Info("event stream reconnected")
				s.refetch()
			}
			first = false
			wait = s.minWait

			s.read(conn)
			s.setConn(nil)
			_ = conn.Close()
			if s.ctx.Err() != nil {
				return
			}
			s.deliver(core.Disconnected())
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, s.maxWait)

		var err error
		conn, _, err = s.dialer.DialContext(s.ctx, s.url, nil)
		if err != nil {
			conn = nil
			if s.ctx.Err() == nil {
				s.log.Debug("event stream reconnect failed", zap.Error(err), zap.Duration("retry_in", wait))
			}
		}
	}
}

// read delivers events until the connection fails.
func (s *eventStream) read(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Debug("event stream closed", zap.Error(err))
			}
			return
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			s.log.Debug("skipping malformed event", zap.Error(err))
			continue
		}
		if ev.Event != EventNowPlaying {
			continue
		}
		var np NowPlaying
		if err := json.Unmarshal(ev.Data, &np); err != nil {
			s.log.Debug("skipping malformed now playing event", zap.Error(err))
			continue
		}
		s.deliver(np.ToCore())
	}
}

func (s *eventStream) refetch() {
	ctx, cancel := context.WithTimeout(s.ctx, refetchTimeout)
	defer cancel()
	np, err := s.client.FetchNowPlaying(ctx)
	if err != nil {
		s.log.Debug("now playing fetch after reconnect failed", zap.Error(err))
		return
	}
	s.deliver(np)
}

func (s *eventStream) deliver(np core.NowPlaying) {
	if s.ctx.Err() != nil {
		return
	}
	s.handler(np)
}

// setConn records the live connection. It reports false once the stream
// has been released.
func (s *eventStream) setConn(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn != nil && s.ctx.Err() != nil {
		return false
	}
	s.conn = conn
	return true
}

// Unsubscribe closes the stream and waits for its goroutine to exit.
func (s *eventStream) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancel()
		if s.conn != nil {
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = s.conn.Close()
		}
		s.mu.Unlock()
		<-s.done
	})
}
