// internal/api/feed.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sc2arcade/watcher/internal/cache"
	"github.com/sc2arcade/watcher/internal/middleware"
)

const feedSubprotocol = "lobby-feed"

// feedConn is one connected feed client with its own bounded send queue.
type feedConn struct {
	out    chan []byte
	cancel context.CancelFunc
}

// FeedHub fans lobby events out to connected websocket clients. Clients that
// cannot keep up with the broadcast rate get disconnected rather than
// backpressuring the hub.
type FeedHub struct {
	logger *logrus.Logger

	mu    sync.Mutex
	conns map[*feedConn]struct{}
}

func NewFeedHub(logger *logrus.Logger) *FeedHub {
	return &FeedHub{
		logger: logger,
		conns:  make(map[*feedConn]struct{}),
	}
}

// Run consumes lobby events from the redis subscription and broadcasts them
// until ctx is cancelled.
func (h *FeedHub) Run(ctx context.Context) error {
	events, err := cache.SubscribeLobbyEvents(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.WithError(err).Warn("failed to encode feed event")
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *FeedHub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		select {
		case conn.out <- data:
		default:
			// queue full: the client is too slow, drop it
			conn.cancel()
			delete(h.conns, conn)
		}
	}
}

func (h *FeedHub) register(conn *feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *FeedHub) unregister(conn *feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// ClientCount returns the number of connected feed clients.
func (h *FeedHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Handler upgrades /lobbies/feed requests and streams events to the client.
func (h *FeedHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{feedSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			h.logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != feedSubprotocol {
			c.Close(websocket.StatusPolicyViolation, "client must speak the lobby-feed subprotocol")
			return
		}
		middleware.LogWebSocketConnect(h.logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := &feedConn{
			out:    make(chan []byte, 32),
			cancel: cancel,
		}
		h.register(conn)
		defer h.unregister(conn)

		go h.readPump(ctx, c, cancel)
		err = h.writePump(ctx, c, conn)
		middleware.LogWebSocketDisconnect(h.logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readPump drains and discards client frames, keeping the connection's
// control-frame handling alive. Reads are rate limited; a client flooding
// the socket gets disconnected.
func (h *FeedHub) readPump(ctx context.Context, c *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 10)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

func (h *FeedHub) writePump(ctx context.Context, c *websocket.Conn, conn *feedConn) error {
	for {
		select {
		case <-ctx.Done():
			return c.Close(websocket.StatusGoingAway, "feed shutting down")
		case data := <-conn.out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
