package session

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/voxa-labs/voxad/pkg/audioio"
	"github.com/voxa-labs/voxad/pkg/auth"
	"github.com/voxa-labs/voxad/pkg/brain"
	"github.com/voxa-labs/voxad/pkg/embed"
	"github.com/voxa-labs/voxad/pkg/recall"
	"github.com/voxa-labs/voxad/pkg/store"
	"github.com/voxa-labs/voxad/pkg/synth"
	"github.com/voxa-labs/voxad/pkg/transcribe"
)

// HubConfig wires the hub's shared collaborators. Sessions are cheap;
// everything here is shared across them.
type HubConfig struct {
	Verifier    *auth.Verifier
	Transcriber transcribe.Transcriber
	Recall      *recall.Engine
	Generator   brain.Generator
	Synth       synth.Provider
	Store       store.Store
	Embedder    embed.Embedder

	StageTimeout   time.Duration
	PersistTimeout time.Duration

	Logger *slog.Logger
}

// Hub accepts WebSocket connections and runs one Session per client.
type Hub struct {
	cfg      HubConfig
	registry *Registry
	logger   *slog.Logger

	connectionsTotal atomic.Uint64
	framesReceived   atomic.Uint64
}

// Stats is a point-in-time view of hub activity.
type Stats struct {
	Sessions         int
	ConnectionsTotal uint64
	FramesReceived   uint64
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		Sessions:         h.registry.Count(),
		ConnectionsTotal: h.connectionsTotal.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// NewHub creates a hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   cfg.Logger.With("component", "hub"),
	}
}

// Registry exposes the live-session registry (metrics, shutdown).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// RegisterRoutes registers the session endpoints on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware; authentication happens before the
	// upgrade so bad tokens cost a plain 401, not a socket.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		userID, err := h.cfg.Verifier.Verify(c.Query("token"))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		if _, err := audioio.ForCodec(c.Query("codec")); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		c.Locals("user_id", userID)
		c.Locals("codec", c.Query("codec"))
		return c.Next()
	})

	app.Get("/ws/session", websocket.New(h.handleSession))

	app.Delete("/api/sessions/:id", h.handleClearHistory)
}

// handleSession runs the read loop for one authenticated connection.
func (h *Hub) handleSession(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	codec, _ := c.Locals("codec").(string)

	// Codec was validated during the upgrade.
	decoder, err := audioio.ForCodec(codec)
	if err != nil {
		h.logger.Error("codec re-validation failed", "error", err)
		c.Close()
		return
	}

	sess := New(Config{
		UserID:         userID,
		Conn:           &wsConn{conn: c},
		Decoder:        decoder,
		Transcriber:    h.cfg.Transcriber,
		Recall:         h.cfg.Recall,
		Generator:      h.cfg.Generator,
		Synth:          h.cfg.Synth,
		Store:          h.cfg.Store,
		Embedder:       h.cfg.Embedder,
		StageTimeout:   h.cfg.StageTimeout,
		PersistTimeout: h.cfg.PersistTimeout,
		Logger:         h.cfg.Logger,
	})

	h.registry.Add(sess)
	h.connectionsTotal.Add(1)
	h.logger.Info("session connected",
		"session_id", sess.ID,
		"user_id", userID,
		"codec", codec,
		"sessions", h.registry.Count(),
	)

	defer func() {
		sess.Close()
		h.registry.Remove(sess.ID)
		h.logger.Info("session disconnected",
			"session_id", sess.ID,
			"sessions", h.registry.Count(),
		)
	}()

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("session read error", "session_id", sess.ID, "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			h.framesReceived.Add(1)
			sess.HandleFrame(data)
		case websocket.TextMessage:
			// The client has nothing to say in text; log and move on.
			h.logger.Debug("ignoring text frame", "session_id", sess.ID, "bytes", len(data))
		}
	}
}

// handleClearHistory wipes the caller's conversation history. The path id
// is the history key; callers may only clear their own.
func (h *Hub) handleClearHistory(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	userID, err := h.cfg.Verifier.Verify(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	if c.Params("id") != userID {
		return fiber.NewError(fiber.StatusForbidden, "not your history")
	}

	if err := h.cfg.Store.DeleteBySession(c.Context(), userID); err != nil {
		h.logger.Error("history clear failed", "user_id", userID, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "history clear failed")
	}

	h.logger.Info("history cleared", "user_id", userID)
	return c.JSON(fiber.Map{"status": "cleared"})
}

// wsConn adapts a fiber websocket connection to the session transport.
// A mutex serializes writes: the busy notice and streamed audio can race.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// WriteText sends one text frame.
func (w *wsConn) WriteText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// WriteBinary sends one binary frame.
func (w *wsConn) WriteBinary(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

var _ Conn = (*wsConn)(nil)
