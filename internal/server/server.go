package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/processor"
	"github.com/consultdesk/bookingagent/internal/sse"
	"github.com/consultdesk/bookingagent/internal/whatsapp"
)

const maxBodyBytes = 64 << 10

type Server struct {
	db        *database.DB
	processor *processor.Processor
	calendars *gcal.Manager
	waClient  *whatsapp.Client
	state     *sse.State
	limiter   *conversationLimiter
	metrics   http.Handler
	logger    *zap.Logger
	adminKey  string
	httpSrv   *http.Server
	port      int

	oauthMu      sync.Mutex
	oauthPending map[string]oauthRequest
}

// Config holds everything the HTTP server serves. Calendars and WAClient
// may be nil when those integrations are not configured.
type Config struct {
	DB        *database.DB
	Processor *processor.Processor
	Calendars *gcal.Manager
	WAClient  *whatsapp.Client
	State     *sse.State
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger

	// AdminToken protects the operator routes. Empty leaves them open.
	AdminToken string

	RateLimitPerMinute int
	Port               int
}

func New(cfg Config) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	state := cfg.State
	if state == nil {
		state = sse.NewState()
	}

	s := &Server{
		db:           cfg.DB,
		processor:    cfg.Processor,
		calendars:    cfg.Calendars,
		waClient:     cfg.WAClient,
		state:        state,
		limiter:      newConversationLimiter(cfg.RateLimitPerMinute),
		metrics:      promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		logger:       logging.OrNop(cfg.Logger),
		adminKey:     cfg.AdminToken,
		port:         cfg.Port,
		oauthPending: make(map[string]oauthRequest),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// WriteTimeout covers a whole streamed reply.
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.Handle("GET /metrics", s.metrics)

	// Public chat API, used by the web booking link
	mux.HandleFunc("POST /api/public/consultants/{id}/conversations", s.handleCreateConversation)
	mux.HandleFunc("POST /api/public/conversations/{id}/messages", s.handlePostMessage)
	mux.HandleFunc("GET /api/public/conversations/{id}/messages", s.handleGetHistory)
	mux.HandleFunc("POST /api/public/conversations/{id}/reset", s.handleResetConversation)

	// Operator API
	mux.Handle("POST /api/consultants", s.requireAdmin(s.handleCreateConsultant))
	mux.Handle("GET /api/consultants/{id}", s.requireAdmin(s.handleGetConsultant))
	mux.Handle("PUT /api/consultants/{id}/settings", s.requireAdmin(s.handleUpdateConsultantSettings))
	mux.Handle("GET /api/consultants/{id}/bookings", s.requireAdmin(s.handleListBookings))
	mux.Handle("GET /api/consultants/{id}/calendar/connect", s.requireAdmin(s.handleCalendarConnect))
	mux.Handle("DELETE /api/consultants/{id}/calendar", s.requireAdmin(s.handleCalendarDisconnect))
	mux.Handle("GET /api/status", s.requireAdmin(s.handleStatus))
	mux.Handle("GET /api/status/stream", s.requireAdmin(s.handleStatusStream))
	mux.Handle("POST /api/whatsapp/pair", s.requireAdmin(s.handleWhatsAppPair))

	mux.HandleFunc("GET /oauth/google/callback", s.handleOAuthCallback)
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.Int("port", s.port))
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the server's HTTP handler for testing purposes
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// corsMiddleware adds CORS headers so the booking widget can be embedded
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects requests without the operator bearer token.
func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			next(w, r)
			return
		}
		token := extractBearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminKey)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid authorization token")
			return
		}
		next(w, r)
	})
}

// extractBearerToken extracts the token from the Authorization header
// Expects format: "Bearer <token>"
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v. An empty body is allowed.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
