package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"golang.org/x/time/rate"
)

var (
	ErrConnClosed  = errors.New("connection closed")
	ErrSendTimeout = errors.New("send timed out")
)

type Options struct {
	// ReadLimit caps a single inbound frame. SDP bodies fit well under 64 KiB.
	ReadLimit  int64
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	SendBuffer int
	// RatePerSec limits inbound frames; zero disables the limit.
	RatePerSec float64
	RateBurst  int
}

func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	return Options{
		ReadLimit:  cfg.ReadLimit,
		WriteWait:  cfg.WriteWait,
		PongWait:   cfg.PongWait,
		PingPeriod: cfg.PingPeriod(),
		SendBuffer: cfg.SendBuffer,
		RatePerSec: cfg.RatePerSec,
		RateBurst:  cfg.RateBurst,
	}
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	return o
}

// Client wraps one websocket connection. It is the only writer and the only
// reader of that socket: writes happen in writePump, reads in readPump.
type Client struct {
	id      domain.ConnID
	conn    *websocket.Conn
	opts    Options
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *slog.Logger

	send      chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, opts Options, m *metrics.Metrics, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	id := domain.NewConnID()
	return &Client{
		id:      id,
		conn:    conn,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.RateBurst),
		metrics: m,
		log:     log.With(slog.String("conn_id", string(id))),
		send:    make(chan domain.Event, opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() domain.ConnID {
	return c.id
}

// Send queues event for the write pump. It fails with ErrConnClosed once the
// client is closed and with ErrSendTimeout when ctx ends first.
func (c *Client) Send(ctx context.Context, event domain.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSendTimeout, ctx.Err())
	}
}

// Close is safe to call from any goroutine, any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.opts.WriteWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.conn.Close()
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Serve attaches the client to the signaling service and blocks until the
// connection ends or ctx is cancelled. Disconnect cleanup runs before it
// returns.
func (c *Client) Serve(ctx context.Context, signaling service.SignalingInteractor) {
	c.metrics.ConnOpened()
	defer c.metrics.ConnClosed()

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	handler := signaling.Attach(c)
	c.log.Debug("connection opened")

	go c.writePump()
	c.readPump(ctx, handler)

	c.Close()
	handler.Detach(context.WithoutCancel(ctx))
	c.log.Debug("connection closed")
}

func (c *Client) readPump(ctx context.Context, handler service.ConnectionHandler) {
	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("read failed", sl.Err(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.metrics.Dropped(metrics.DropReasonRateLimited)
			c.log.Warn("inbound rate exceeded, dropping frame")
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.metrics.Dropped(metrics.DropReasonMalformed)
			c.log.Debug("dropping malformed frame", slog.Int("size", len(data)))
			continue
		}

		handler.Dispatch(ctx, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Info("write failed", slog.String("event", string(event.Name)), sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
