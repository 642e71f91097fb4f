package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

const (
	defaultPingInterval     = 25 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultReconnectBackoff = 3 * time.Second
)

var ErrNotConnected = errors.New("wsclient: not connected")

// Frame is a flat wire frame as exchanged with the server.
type Frame map[string]interface{}

type Config struct {
	URL            string
	Origin         string
	Token          string
	ConsultationID uint

	// PingInterval paces keepalive pings. A connection that produces no
	// frames for IdleTimeout is treated as dead and closed, which triggers
	// the reconnect path. IdleTimeout should be a few ping intervals.
	PingInterval     time.Duration
	IdleTimeout      time.Duration
	ReconnectBackoff time.Duration

	// Dial overrides the websocket dialer. Tests use it to hand the client a
	// scripted in-memory connection.
	Dial func(ctx context.Context) (io.ReadWriteCloser, error)
}

// Client keeps one authenticated, joined connection alive. Every attempt
// runs the full auth and join handshake again, so a reconnect after a drop
// needs no state from the previous connection. Message gaps are closed by
// the caller through the REST backfill endpoint, not here.
type Client struct {
	cfg    Config
	frames chan Frame

	// sendMu guards the encoder and is held across network writes, so the
	// attempt-cancel state lives on its own mutex: Reconnect must stay
	// callable while a write is blocked on a dead connection.
	sendMu  sync.Mutex
	encoder *json.Encoder

	attemptMu     sync.Mutex
	cancelAttempt context.CancelFunc

	lastTraffic atomic.Int64
}

func New(cfg Config) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
	if cfg.Dial == nil {
		cfg.Dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
			return websocket.Dial(cfg.URL, "", cfg.Origin)
		}
	}
	return &Client{
		cfg:    cfg,
		frames: make(chan Frame, 16),
	}
}

// Frames delivers every server frame from the live connection.
func (c *Client) Frames() <-chan Frame {
	return c.frames
}

// Run dials and serves connection attempts until ctx ends. A dropped or
// failed connection schedules the next attempt after a fixed backoff.
func (c *Client) Run(ctx context.Context) error {
	for {
		attemptCtx, cancel := context.WithCancel(ctx)
		c.setAttempt(cancel)
		err := c.runAttempt(attemptCtx)
		cancel()
		c.setAttempt(nil)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[wsclient] connection lost: %v, retrying in %s", err, c.cfg.ReconnectBackoff)
		select {
		case <-time.After(c.cfg.ReconnectBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Reconnect cancels the in-flight attempt so Run starts a fresh one. The
// newest attempt always wins; a stale attempt cannot resurrect itself.
func (c *Client) Reconnect() {
	c.attemptMu.Lock()
	cancel := c.cancelAttempt
	c.attemptMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) setAttempt(cancel context.CancelFunc) {
	c.attemptMu.Lock()
	c.cancelAttempt = cancel
	c.attemptMu.Unlock()
}

func (c *Client) markTraffic() {
	c.lastTraffic.Store(time.Now().UnixNano())
}

func (c *Client) sinceTraffic() time.Duration {
	return time.Since(time.Unix(0, c.lastTraffic.Load()))
}

func (c *Client) runAttempt(ctx context.Context) error {
	conn, err := c.cfg.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// closing the conn is the only way to unblock the decoder
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	c.setEncoder(json.NewEncoder(conn))
	defer c.setEncoder(nil)

	decoder := json.NewDecoder(conn)
	c.markTraffic()

	if err := c.Send(Frame{"type": "auth", "token": c.cfg.Token}); err != nil {
		return err
	}
	if err := c.awaitFrame(decoder, "auth_success"); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if c.cfg.ConsultationID != 0 {
		if err := c.Send(Frame{"type": "join_consultation", "consultation_id": c.cfg.ConsultationID}); err != nil {
			return err
		}
		if err := c.awaitFrame(decoder, "joined_consultation"); err != nil {
			return fmt.Errorf("join: %w", err)
		}
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(ctx, conn, pingDone)

	for {
		var f Frame
		if err := decoder.Decode(&f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.markTraffic()
		select {
		case c.frames <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pingLoop paces pings and reaps a half-open connection. Closing the conn
// kicks the read loop out of its blocked Decode, so silence fails over to
// the reconnect path instead of hanging forever.
func (c *Client) pingLoop(ctx context.Context, conn io.Closer, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.sinceTraffic() > c.cfg.IdleTimeout {
				log.Printf("[wsclient] no traffic for %s, dropping connection", c.cfg.IdleTimeout)
				_ = conn.Close()
				return
			}
			if err := c.Send(Frame{"type": "ping"}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

// awaitFrame reads frames until the expected type arrives. An error frame
// aborts the handshake.
func (c *Client) awaitFrame(decoder *json.Decoder, want string) error {
	for {
		var f Frame
		if err := decoder.Decode(&f); err != nil {
			return err
		}
		c.markTraffic()
		got, _ := f["type"].(string)
		switch got {
		case want:
			return nil
		case "error":
			msg, _ := f["message"].(string)
			return fmt.Errorf("server rejected handshake: %s", msg)
		}
		// other frames (presence notices, backlog) arrive interleaved
	}
}

func (c *Client) setEncoder(encoder *json.Encoder) {
	c.sendMu.Lock()
	c.encoder = encoder
	c.sendMu.Unlock()
}

// Send writes one frame over the live connection.
func (c *Client) Send(frame Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.encoder == nil {
		return ErrNotConnected
	}
	return c.encoder.Encode(frame)
}

func (c *Client) SendChat(content string) error {
	return c.Send(Frame{"type": "chat_message", "content": content})
}

func (c *Client) SendTyping(isTyping bool) error {
	return c.Send(Frame{"type": "typing", "is_typing": isTyping})
}
