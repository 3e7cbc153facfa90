package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/Ganeshg1313/askandsay-server/pkg/ai"
	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
	"github.com/Ganeshg1313/askandsay-server/pkg/config"
	"github.com/Ganeshg1313/askandsay-server/pkg/logging"
	"github.com/Ganeshg1313/askandsay-server/pkg/storage"
)

const (
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second
)

// ProjectDirectory answers whether a project exists.
type ProjectDirectory interface {
	ProjectExists(projectID string) (bool, error)
}

// TokenVerifier validates session tokens during the handshake.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Gateway upgrades authenticated HTTP requests into room connections.
// Every rejection happens before the WebSocket upgrade, so clients see a
// plain HTTP status rather than an immediate close frame.
type Gateway struct {
	hub      *Hub
	projects ProjectDirectory
	tokens   TokenVerifier
	logger   *logging.Logger

	maxMessageBytes int64
	senderRate      rate.Limit
	limiter         *connLimiter
}

// NewGateway wires the relay together from its dependencies.
func NewGateway(cfg config.RelayConfig, projects ProjectDirectory, tokens TokenVerifier, responder ai.Responder, artifacts ArtifactStore, logger *logging.Logger, aiTimeout time.Duration) *Gateway {
	rt := newRouter(cfg.AIMarker, responder, artifacts, logger, aiTimeout)
	return &Gateway{
		hub:             NewHub(rt, cfg.RoomQueueSize, cfg.ClientQueueSize),
		projects:        projects,
		tokens:          tokens,
		logger:          logger,
		maxMessageBytes: cfg.MaxMessageBytes,
		senderRate:      rate.Limit(cfg.SenderRateLimit),
		limiter:         newConnLimiter(cfg.MaxClients),
	}
}

// Hub exposes the room hub, for broadcasting from outside the gateway.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// inboundFrame is what connected clients send. Both the enveloped form
// {"type":"project-message","payload":{"message":...}} and the bare
// {"message":...} form are accepted. Any sender field is ignored.
type inboundFrame struct {
	Type    string `json:"type"`
	Payload struct {
		Message string `json:"message"`
	} `json:"payload"`
	Message string `json:"message"`
}

func (f *inboundFrame) text() string {
	if f.Payload.Message != "" {
		return f.Payload.Message
	}
	return f.Message
}

// HandleProjectSocket is the WebSocket endpoint for a project room.
func (g *Gateway) HandleProjectSocket(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if !storage.IsValidID(projectID) {
		handshakeRejections.WithLabelValues("invalid_project").Inc()
		http.Error(w, "invalid projectId", http.StatusBadRequest)
		return
	}

	exists, err := g.projects.ProjectExists(projectID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		handshakeRejections.WithLabelValues("project_not_found").Inc()
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	token := g.extractToken(r)
	if token == "" {
		handshakeRejections.WithLabelValues("no_token").Inc()
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	claims, err := g.tokens.VerifyToken(token)
	if err != nil {
		handshakeRejections.WithLabelValues("bad_token").Inc()
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	if !g.limiter.Acquire() {
		handshakeRejections.WithLabelValues("too_many_connections").Inc()
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	defer g.limiter.Release()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		g.logger.Warn(logging.CategorySession, "ws_accept_failed", "websocket accept failed", map[string]any{
			"projectId": projectID,
			"error":     err.Error(),
		})
		return
	}
	if g.maxMessageBytes > 0 {
		conn.SetReadLimit(g.maxMessageBytes)
	}

	identity := Identity{ID: claims.UserID, Email: claims.Email}
	g.serveConn(r.Context(), conn, projectID, identity)
}

func (g *Gateway) extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, err := auth.ExtractBearerToken(header); err == nil {
			return token
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// serveConn runs the connection's read and write loops until either side
// closes or the request context ends.
func (g *Gateway) serveConn(parent context.Context, conn *websocket.Conn, projectID string, identity Identity) {
	room, c := g.hub.join(projectID, conn, identity)
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g.logger.Info(logging.CategorySession, "client_joined", "client joined project room", map[string]any{
		"connId":    c.connID,
		"projectId": projectID,
		"userId":    identity.ID,
		"members":   room.memberCount(),
	})

	startPing(ctx, conn)

	go func() {
		// The write loop also returns when the hub evicts the client
		// and closes its send channel; the session must end either way.
		c.writeLoop(ctx)
		cancel()
	}()

	g.readLoop(ctx, conn, room, c)

	cancel()
	g.hub.removeClient(projectID, c)
	c.close(websocket.StatusNormalClosure, "bye")

	g.logger.Info(logging.CategorySession, "client_left", "client left project room", map[string]any{
		"connId":    c.connID,
		"projectId": projectID,
		"userId":    identity.ID,
	})
}

// readLoop consumes frames from the client. Frames beyond the sender's
// rate budget and frames with no message text are dropped silently.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, room *room, c *client) {
	var limiter *rate.Limiter
	if g.senderRate > 0 {
		limiter = rate.NewLimiter(g.senderRate, int(g.senderRate)+1)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		text := strings.TrimSpace(frame.text())
		if text == "" {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			continue
		}

		if !room.submit(inbound{from: c, msg: Message{Message: text}}) {
			g.logger.Warn(logging.CategoryRelay, "room_queue_full", "dropping message, room queue full", map[string]any{
				"projectId": room.projectID,
			})
		}
	}
}

func startPing(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(wsPingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
				_ = conn.Ping(pingCtx)
				cancel()
			}
		}
	}()
}
