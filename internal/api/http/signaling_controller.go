package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_call/internal/api/ws"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

// SignalingController upgrades browser connections and hands them to the
// signaling service for their whole lifetime.
type SignalingController struct {
	signaling service.SignalingInteractor
	upgrader  websocket.Upgrader
	opts      ws.Options
	clients   *ws.Registry
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewSignalingController(
	signaling service.SignalingInteractor,
	allowedOrigins []string,
	opts ws.Options,
	m *metrics.Metrics,
	log *slog.Logger,
) *SignalingController {
	if log == nil {
		log = slog.Default()
	}
	return &SignalingController{
		signaling: signaling,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		opts:    opts,
		clients: ws.NewRegistry(),
		metrics: m,
		log:     log,
	}
}

func (c *SignalingController) Connect(ctx *gin.Context) {
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		c.log.Debug("websocket upgrade failed", sl.Err(err))
		return
	}

	client := ws.NewClient(conn, c.opts, c.metrics, c.log)
	c.clients.Add(client)
	defer c.clients.Remove(client)

	client.Serve(ctx.Request.Context(), c.signaling)
}

// Shutdown closes every live connection; each one runs its disconnect cleanup.
func (c *SignalingController) Shutdown() {
	n := c.clients.Len()
	c.clients.CloseAll()
	c.log.Info("closed websocket connections", slog.Int("count", n))
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser requests from one of allowed. "*" allows any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
