package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/agent/chat"
	"github.com/consultdesk/bookingagent/internal/agent/extractor"
	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/config"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/notify"
	"github.com/consultdesk/bookingagent/internal/processor"
	"github.com/consultdesk/bookingagent/internal/server"
	"github.com/consultdesk/bookingagent/internal/slotcache"
	"github.com/consultdesk/bookingagent/internal/source"
	"github.com/consultdesk/bookingagent/internal/sse"
	"github.com/consultdesk/bookingagent/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("loading config", err)
	}
	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fatal("building logger", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.AdminToken == "" {
		logger.Warn("BOOKING_ADMIN_TOKEN not set, operator API is open")
	}

	// Phase 1: Core infrastructure
	db, err := database.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()

	state := sse.NewState()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := booking.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Phase 2: Booking engine
	calendars := initCalendars(db, cfg, state, logger)
	ext := initExtractor(cfg, logger)
	generator := initGenerator(ctx, cfg, logger)
	slots := initSlotCache(ctx, db, cfg, logger)
	provider := booking.NewGCalProvider(calendars)
	executor := booking.NewExecutor(db, provider, initNotifyService(cfg, logger), metrics, logger)

	deps := processor.Dependencies{
		DB:        db,
		Executor:  executor,
		Generator: generator,
		Calendars: provider,
		Slots:     slots,
		Metrics:   metrics,
		Logger:    logger,
	}
	if ext != nil {
		deps.Extractor = ext
		deps.PreFilter = booking.NewPreFilter(ext, metrics, logger)
	}

	// Phase 3: Channels
	var msgChan <-chan source.Message
	waClient, waHandler := initWhatsApp(ctx, cfg, state, logger)
	if waClient != nil {
		deps.Replier = waClient
		msgChan = waHandler.MessageChan()
	}

	proc := processor.New(deps, processor.Options{
		HistorySize:         cfg.MessageHistorySize,
		ClassifyWithBooking: cfg.ClassifyExistingBookingTurns,
	}, msgChan)
	if err := proc.Start(); err != nil {
		logger.Fatal("Failed to start processor", zap.Error(err))
	}

	janitor := processor.NewJanitor(db, cfg.CleanupSchedule, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatal("Failed to start cleanup job", zap.Error(err))
	}

	srv := server.New(server.Config{
		DB:                 db,
		Processor:          proc,
		Calendars:          calendars,
		WAClient:           waClient,
		State:              state,
		Gatherer:           registry,
		Logger:             logger,
		AdminToken:         cfg.AdminToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Port:               cfg.HTTPPort,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	if waClient != nil {
		go func() {
			if err := waClient.Connect(ctx); err != nil {
				logger.Warn("WhatsApp not connected", zap.Error(err))
			}
		}()
	}

	waitForShutdown(ctx, logger, proc, janitor, srv, waClient)
}

func initCalendars(db *database.DB, cfg *config.Config, state *sse.State, logger *zap.Logger) *gcal.Manager {
	if err := db.UseTokenKey(cfg.TokenSecret()); err != nil {
		logger.Warn("Google Calendar disabled, no token encryption key", zap.Error(err))
		state.Set(sse.IntegrationCalendar, sse.StatusNotConfigured)
		return gcal.NewManager(db, nil, logger)
	}

	oauthConfig, err := gcal.LoadOAuthConfig(gcal.Credentials{
		JSON:    cfg.GoogleCredentialsJSON,
		File:    cfg.GoogleCredentialsFile,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		logger.Warn("Google Calendar not configured", zap.Error(err))
		state.Set(sse.IntegrationCalendar, sse.StatusNotConfigured)
		return gcal.NewManager(db, nil, logger)
	}
	state.Set(sse.IntegrationCalendar, sse.StatusWaiting)
	return gcal.NewManager(db, oauthConfig, logger)
}

func initExtractor(cfg *config.Config, logger *zap.Logger) *extractor.Extractor {
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, booking extraction disabled")
		return nil
	}
	logger.Info("Booking extractor configured", zap.String("model", cfg.ClaudeModel))
	return extractor.New(extractor.Config{
		APIKey:      cfg.AnthropicAPIKey,
		Model:       cfg.ClaudeModel,
		Temperature: cfg.ClaudeTemperature,
	}, logger)
}

// initGenerator prefers Gemini for conversation and falls back to Claude.
func initGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) chat.Generator {
	var generators []chat.Generator

	gemini, err := chat.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ClaudeTemperature)
	if err != nil {
		logger.Warn("Gemini generator unavailable", zap.Error(err))
	} else if gemini != nil {
		generators = append(generators, gemini)
	}
	if claude := chat.NewClaudeGenerator(cfg.AnthropicAPIKey, cfg.ClaudeModel, cfg.ClaudeTemperature); claude != nil {
		generators = append(generators, claude)
	}

	generator := chat.WithFallback(logger, generators...)
	logger.Info("Reply generator configured", zap.String("generators", generator.Name()))
	return generator
}

func initSlotCache(ctx context.Context, db *database.DB, cfg *config.Config, logger *zap.Logger) slotcache.Cache {
	if cfg.RedisAddr == "" {
		return slotcache.NewDBCache(db)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, caching slots in the database", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		client.Close()
		return slotcache.NewDBCache(db)
	}
	logger.Info("Slot cache configured (Redis)", zap.String("addr", cfg.RedisAddr))
	return slotcache.NewRedisCache(client)
}

func initNotifyService(cfg *config.Config, logger *zap.Logger) *notify.Service {
	var emailNotifier notify.Notifier
	if resend := notify.NewResendNotifier(cfg.ResendAPIKey, cfg.EmailFrom); resend != nil && resend.IsConfigured() {
		emailNotifier = resend
		logger.Info("Email notification service configured (Resend)")
	} else {
		logger.Warn("Resend not configured, confirmation emails disabled")
	}
	return notify.NewService(emailNotifier, logger)
}

// initWhatsApp returns nil values when the channel is disabled or the
// session store cannot be opened.
func initWhatsApp(ctx context.Context, cfg *config.Config, state *sse.State, logger *zap.Logger) (*whatsapp.Client, *whatsapp.Handler) {
	if !cfg.WhatsAppEnabled() {
		state.Set(sse.IntegrationWhatsApp, sse.StatusNotConfigured)
		return nil, nil
	}

	handler := whatsapp.NewHandler(cfg.WhatsAppConsultantID, state, logger)
	client, err := whatsapp.NewClient(ctx, handler, cfg.WhatsAppDBPath, state, logger)
	if err != nil {
		logger.Error("Failed to create WhatsApp client", zap.Error(err))
		state.SetError(sse.IntegrationWhatsApp, err.Error())
		return nil, nil
	}
	logger.Info("WhatsApp channel configured", zap.Int64("consultant_id", cfg.WhatsAppConsultantID))
	return client, handler
}

func fatal(context string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", context, err)
	os.Exit(1)
}

func waitForShutdown(ctx context.Context, logger *zap.Logger, proc *processor.Processor, janitor *processor.Janitor, srv *server.Server, wa *whatsapp.Client) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case <-c:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	proc.Stop()
	janitor.Stop()
	if wa != nil {
		wa.Disconnect()
	}
}
