// voxad: real-time voice conversational agent server.
// Clients stream utterance audio over a WebSocket; the server answers with
// transcript, reply text, and synthesized speech, and learns per-user
// profile facts across sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/voxa-labs/voxad/internal/config"
	"github.com/voxa-labs/voxad/internal/log"
	"github.com/voxa-labs/voxad/pkg/auth"
	"github.com/voxa-labs/voxad/pkg/brain"
	"github.com/voxa-labs/voxad/pkg/embed"
	"github.com/voxa-labs/voxad/pkg/recall"
	"github.com/voxa-labs/voxad/pkg/session"
	"github.com/voxa-labs/voxad/pkg/store"
	"github.com/voxa-labs/voxad/pkg/synth"
	"github.com/voxa-labs/voxad/pkg/transcribe"
)

var version = "1.0.0"

var port = flag.Int("port", 0, "HTTP server port (overrides VOXAD_PORT)")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	log.Init(cfg.LogLevel)
	logger := log.L()
	logger.Info("voxad starting", "version", version, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistent store: Postgres when configured, otherwise the agent
	// runs stateless with history disabled.
	var st store.Store
	if cfg.HistoryEnabled() {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("store connect failed", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		logger.Warn("no database configured, conversation history disabled")
		st = store.NewNoop()
	}
	defer st.Close()

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Error("auth setup failed", "error", err)
		os.Exit(1)
	}

	transcriber, err := transcribe.NewGoogle(ctx,
		transcribe.WithAPIKey(cfg.SpeechAPIKey),
		transcribe.WithLanguage(cfg.SpeechLanguage),
		transcribe.WithTimeout(cfg.StageTimeout),
		transcribe.WithLogger(logger),
	)
	if err != nil {
		logger.Error("transcriber setup failed", "error", err)
		os.Exit(1)
	}

	generator, err := brain.NewGemini(
		brain.WithAPIKey(cfg.GeminiAPIKey),
		brain.WithModel(cfg.GeminiModel),
		brain.WithTimeout(cfg.StageTimeout),
		brain.WithLogger(logger),
	)
	if err != nil {
		logger.Error("generator setup failed", "error", err)
		os.Exit(1)
	}

	provider, err := synth.NewElevenLabs(
		synth.WithAPIKey(cfg.TTSAPIKey),
		synth.WithVoice(cfg.TTSVoiceID),
		synth.WithStreamTimeout(cfg.StageTimeout),
		synth.WithLogger(logger),
	)
	if err != nil {
		logger.Error("synthesis setup failed", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	embedder := embed.NewHashing(embed.DefaultDimensions)
	engine := recall.NewEngine(st, embedder,
		recall.WithRecencyLimit(cfg.RecencyLimit),
		recall.WithSemanticLimit(cfg.SemanticLimit),
		recall.WithSimilarity(cfg.Similarity),
		recall.WithLogger(logger),
	)

	hub := session.NewHub(session.HubConfig{
		Verifier:       verifier,
		Transcriber:    transcriber,
		Recall:         engine,
		Generator:      generator,
		Synth:          provider,
		Store:          st,
		Embedder:       embedder,
		StageTimeout:   cfg.StageTimeout,
		PersistTimeout: cfg.PersistTimeout,
		Logger:         logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               "voxad",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	hub.RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"version":  version,
			"sessions": hub.Registry().Count(),
			"history":  cfg.HistoryEnabled(),
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		stats := hub.GetStats()
		return c.SendString(fmt.Sprintf(`# HELP voxad_sessions Live session count
# TYPE voxad_sessions gauge
voxad_sessions %d

# HELP voxad_connections_total Total accepted connections
# TYPE voxad_connections_total counter
voxad_connections_total %d

# HELP voxad_frames_received_total Total utterance frames received
# TYPE voxad_frames_received_total counter
voxad_frames_received_total %d
`, stats.Sessions, stats.ConnectionsTotal, stats.FramesReceived))
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("listening", "addr", addr, "ws", "/ws/session")
		if err := app.Listen(addr); err != nil {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Drain fire-and-forget persistence before the store closes.
	for _, s := range hub.Registry().Snapshot() {
		s.Close()
	}

	logger.Info("bye")
}
