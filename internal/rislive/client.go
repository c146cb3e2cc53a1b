package rislive

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nettriage/internal/schema"
)

const (
	// DefaultURL is the public RIS Live WebSocket endpoint.
	DefaultURL = "wss://ris-live.ripe.net/v1/ws/"

	initialReconnectDelay = 5 * time.Second
	maxReconnectDelay     = 5 * time.Minute
	reconnectBackoff      = 2.0
	pingInterval          = 30 * time.Second
	connectionTimeout     = 60 * time.Second
	writeTimeout          = 10 * time.Second
)

// Client streams BGP updates from RIS Live for one collector and pushes
// them onto the updates channel. It reconnects with exponential backoff
// until Stop is called.
type Client struct {
	url       string
	collector string
	updates   chan<- *schema.BGPUpdate
	logger    *slog.Logger
	done      chan struct{}
	wg        sync.WaitGroup

	messagesReceived atomic.Uint64
	updatesParsed    atomic.Uint64
	dropped          atomic.Uint64
	errors           atomic.Uint64
	reconnects       atomic.Uint64

	running   atomic.Bool
	connected atomic.Bool
}

// NewClient creates a RIS Live client for a specific collector (for example
// "rrc00"). An empty url selects DefaultURL.
func NewClient(url, collector string, updates chan<- *schema.BGPUpdate, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:       url,
		collector: collector,
		updates:   updates,
		logger:    logger.With("component", "rislive", "collector", collector),
		done:      make(chan struct{}),
	}
}

// Start begins streaming in a background goroutine.
func (c *Client) Start() {
	if c.running.Swap(true) {
		c.logger.Warn("client already running")
		return
	}
	c.wg.Add(1)
	go c.runLoop()
	c.logger.Info("client started")
}

// Stop shuts the client down and waits for the stream goroutine to exit.
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return
	}
	close(c.done)
	c.wg.Wait()
	c.logger.Info("client stopped")
}

// Connected reports whether the WebSocket is currently established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Stats returns current client statistics.
func (c *Client) Stats() map[string]interface{} {
	return map[string]interface{}{
		"collector":         c.collector,
		"connected":         c.connected.Load(),
		"messages_received": c.messagesReceived.Load(),
		"updates_parsed":    c.updatesParsed.Load(),
		"updates_dropped":   c.dropped.Load(),
		"errors":            c.errors.Load(),
		"reconnects":        c.reconnects.Load(),
	}
}

func (c *Client) runLoop() {
	defer c.wg.Done()

	delay := initialReconnectDelay
	for c.running.Load() {
		err := c.connectAndStream()
		if err != nil {
			c.errors.Add(1)
			c.reconnects.Add(1)
			c.logger.Warn("connection lost", "error", err, "retry_in", delay)
		} else {
			// Clean close resets the backoff.
			delay = initialReconnectDelay
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * reconnectBackoff)
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
		}
	}
}

func (c *Client) connectAndStream() error {
	dialer := websocket.Dialer{HandshakeTimeout: connectionTimeout}

	c.logger.Debug("connecting", "url", c.url)
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	subscribe := map[string]interface{}{
		"type": "ris_subscribe",
		"data": map[string]interface{}{
			"type": "UPDATE",
			"host": c.collector,
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(subscribe); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Info("connected and subscribed")

	conn.SetPongHandler(func(string) error { return nil })

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-c.done:
				// Unblocks the ReadMessage below.
				conn.Close()
				return
			}
		}
	}()

	for c.running.Load() {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.messagesReceived.Add(1)

		update, err := ParseMessage(message)
		if err != nil {
			c.logger.Debug("unparseable frame", "error", err)
			continue
		}
		if update == nil {
			continue
		}
		c.updatesParsed.Add(1)

		select {
		case c.updates <- update:
		default:
			if n := c.dropped.Add(1); n%10000 == 1 {
				c.logger.Warn("updates channel full, dropping", "dropped_total", n)
			}
		}
	}
	return nil
}
