// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wallet-sync/internal/logging"
	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/service"
	"github.com/wallet-sync/internal/types"
)

// Service interfaces for dependency injection and testing

// WalletServiceInterface defines the interface for wallet service operations
type WalletServiceInterface interface {
	AddWallet(ctx context.Context, input *service.AddWalletInput) (*models.ValuedWalletWithTransactions, error)
	GetWallet(ctx context.Context, chain types.ChainID, address string, page int) (*models.ValuedWalletWithTransactions, error)
	ListWallets(ctx context.Context, chain types.ChainID, page int) ([]*models.ValuedWallet, int, error)
}

// StreamServiceInterface defines the interface for stream admin operations
type StreamServiceInterface interface {
	CreateStream(ctx context.Context, input *service.CreateStreamInput) (*models.Stream, error)
	ListStreams(ctx context.Context) ([]*models.Stream, error)
	DeleteStream(ctx context.Context, id string) error
}

// IngestServiceInterface defines the interface for webhook ingestion
type IngestServiceInterface interface {
	Ingest(ctx context.Context, chain types.ChainID, body []byte) (*service.IngestResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	walletService WalletServiceInterface
	streamService StreamServiceInterface
	ingestService IngestServiceInterface
	config        *ServerConfig
	logger        *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RatePerSecond   int    // per-caller request budget
	RateBurst       int    // per-caller burst size
	WebhookSecret   string // shared secret for stream signatures
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	walletService WalletServiceInterface,
	streamService StreamServiceInterface,
	ingestService IngestServiceInterface,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		walletService: walletService,
		streamService: streamService,
		ingestService: ingestService,
		config:        config,
		logger:        logger.WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RatePerSecond, s.config.RateBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Wallet endpoints
	api.HandleFunc("/wallets", s.handleAddWallet).Methods("POST")
	api.HandleFunc("/wallets/{chain}", s.handleListWallets).Methods("GET")
	api.HandleFunc("/wallets/{chain}/{address}", s.handleGetWallet).Methods("GET")

	// Stream admin endpoints
	api.HandleFunc("/streams", s.handleCreateStream).Methods("POST")
	api.HandleFunc("/streams", s.handleListStreams).Methods("GET")
	api.HandleFunc("/streams/{id}", s.handleDeleteStream).Methods("DELETE")

	// Live notification webhook
	s.router.HandleFunc("/streams/{chain}", s.handleStreamPush).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "wallet-sync",
	})
}

// Router returns the server's handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
