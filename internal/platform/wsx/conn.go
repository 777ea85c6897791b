// Package wsx wraps gorilla websocket connections with a buffered writer,
// a ping loop and origin checks shared by every streaming endpoint.
package wsx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 30 * time.Second
	defaultReadLimit  = 16 << 10
	defaultSendBuffer = 32
)

// ErrClosed is returned by Send after the connection closed.
var ErrClosed = errors.New("wsx: connection closed")

// ErrBackpressure is returned by Send when the peer is not keeping up.
var ErrBackpressure = errors.New("wsx: send buffer full")

// Options tunes a connection. Zero values use the package defaults.
type Options struct {
	// AllowedOrigins lists browser origins permitted to connect. Empty or
	// "*" allows any origin.
	AllowedOrigins []string
	SendBuffer     int
	ReadLimit      int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait / 2
	}
	return o
}

// CheckOrigin reports whether r's Origin header is allowed. Requests without
// an Origin header are not from a browser and are allowed.
func (o Options) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(o.AllowedOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range o.AllowedOrigins {
		allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
		if allowed == "*" || strings.EqualFold(allowed, u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

// Conn is a websocket with a single writer goroutine. Send never blocks.
type Conn struct {
	ws         *websocket.Conn
	opts       Options
	send       chan []byte
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// Upgrade switches the request to a websocket. On failure the upgrader has
// already written the HTTP error.
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	upgrader := websocket.Upgrader{CheckOrigin: opts.CheckOrigin}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{
		ws:         ws,
		opts:       opts,
		send:       make(chan []byte, opts.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}, nil
}

// Send queues v as a JSON text frame.
func (c *Conn) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close starts a graceful shutdown. It is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Serve runs the connection until the peer goes away, ctx ends or Close is
// called. onMessage receives every text frame on the reading goroutine.
func (c *Conn) Serve(ctx context.Context, onMessage func([]byte)) {
	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	for {
		mt, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		if mt == websocket.TextMessage && onMessage != nil {
			onMessage(msg)
		}
	}
	c.Close()
	<-c.writerDone
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.writerDone)
	}()
	for {
		select {
		case <-c.done:
			c.drain()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

// drain flushes frames queued before Close so a final message is not lost.
func (c *Conn) drain() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(msg []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}
