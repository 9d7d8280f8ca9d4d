package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; metadata blobs are large
	maxMessageSize = 16 * 1024 * 1024 // 16MB
)

// ErrConnClosed is returned by calls issued after the connection ended.
var ErrConnClosed = errors.New("rpc: connection closed")

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// envelope covers both call responses (ID set) and subscription
// notifications (Method set).
type envelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	Method  string          `json:"method"`
	Params  *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// Conn is a JSON-RPC 2.0 connection over a websocket. Concurrent calls
// multiplex over the single socket; responses are matched back by id,
// subscription notifications by subscription id.
type Conn struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan *envelope
	subs    map[string]chan json.RawMessage

	done     chan struct{}
	closed   atomic.Bool
	closeErr error
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// Dial connects to a node's websocket endpoint and starts the read and
// ping loops.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}

	c := &Conn{
		id:      uuid.NewString(),
		conn:    ws,
		logger:  zap.NewNop(),
		pending: make(map[uint64]chan *envelope),
		subs:    make(map[string]chan json.RawMessage),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("conn", c.id))

	go c.readPump()
	go c.pingLoop()
	c.logger.Debug("connected", zap.String("url", url))
	return c, nil
}

// Call performs one request/response round trip. A non-nil result is
// filled from the response's result field.
func (c *Conn) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	id := c.nextID.Add(1)
	ch := make(chan *envelope, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if params == nil {
		params = []interface{}{}
	}
	if err := c.write(request{Jsonrpc: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closeReason()
	case env := <-ch:
		if env.Error != nil {
			return fmt.Errorf("rpc: %s: %w", method, env.Error)
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("rpc: %s result: %w", method, err)
		}
		return nil
	}
}

// Subscription is a live node-side subscription. Notifications arrive
// on Notifications; the channel closes when the subscription or the
// connection ends.
type Subscription struct {
	ID            string
	Notifications <-chan json.RawMessage

	conn        *Conn
	unsubMethod string
}

// Unsubscribe tells the node to stop and releases the channel.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.conn.removeSub(s.ID)
	var ok bool
	return s.conn.Call(ctx, s.unsubMethod, []interface{}{s.ID}, &ok)
}

// Subscribe issues a subscribe call and routes matching notifications
// to the returned subscription.
func (c *Conn) Subscribe(ctx context.Context, method, unsubMethod string, params []interface{}) (*Subscription, error) {
	var subID string
	if err := c.Call(ctx, method, params, &subID); err != nil {
		return nil, err
	}

	ch := make(chan json.RawMessage, 16)
	c.mu.Lock()
	c.subs[subID] = ch
	c.mu.Unlock()

	c.logger.Debug("subscribed", zap.String("method", method), zap.String("subscription", subID))
	return &Subscription{ID: subID, Notifications: ch, conn: c, unsubMethod: unsubMethod}, nil
}

// Close tears down the connection. Pending calls fail with
// ErrConnClosed and subscription channels close.
func (c *Conn) Close() error {
	c.shutdown(ErrConnClosed)
	return nil
}

func (c *Conn) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("rpc: write: %w", err)
	}
	return nil
}

func (c *Conn) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", zap.Error(err))
			}
			c.shutdown(fmt.Errorf("%w: %v", ErrConnClosed, err))
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("malformed message", zap.Error(err))
			continue
		}
		c.dispatch(&env)
	}
}

func (c *Conn) dispatch(env *envelope) {
	if env.ID != nil {
		c.mu.Lock()
		ch, ok := c.pending[*env.ID]
		c.mu.Unlock()
		if ok {
			ch <- env
		}
		return
	}
	if env.Params != nil {
		c.mu.Lock()
		ch, ok := c.subs[env.Params.Subscription]
		c.mu.Unlock()
		if !ok {
			return
		}
		select {
		case ch <- env.Params.Result:
		default:
			c.logger.Warn("subscription backlog full, dropping notification",
				zap.String("subscription", env.Params.Subscription))
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.shutdown(fmt.Errorf("%w: ping: %v", ErrConnClosed, err))
				return
			}
		}
	}
}

func (c *Conn) shutdown(reason error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.closeErr = reason
	close(c.done)
	c.conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

func (c *Conn) closeReason() error {
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrConnClosed
}

func (c *Conn) removeSub(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}
