package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

// ChainService is the set of chain operations exposed over HTTP.
type ChainService interface {
	ListActiveChains() []*domain.Chain
	ListChains(ctx context.Context) ([]*domain.Chain, error)
	GetChain(ctx context.Context, id string) (*domain.Chain, error)
	StopChain(ctx context.Context, id string) (*domain.Chain, error)
	StopAllChains(ctx context.Context) ([]*domain.Chain, error)
	GetChainStats(ctx context.Context) (domain.ChainStats, error)
	HandleTradeClosed(ctx context.Context, trade domain.ClosedTrade) error
}

// RiskControl reports account risk and toggles the trading pause.
type RiskControl interface {
	domain.RiskSnapshotProvider
	SetPaused(paused bool)
}

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	service ChainService
	risk    RiskControl
	account string
	metrics http.Handler
	logger  *zap.Logger
}

// NewServer wires the API routes. risk and metrics may be nil, in which case
// their routes are not registered.
func NewServer(
	port int,
	service ChainService,
	risk RiskControl,
	account string,
	metrics http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		service: service,
		risk:    risk,
		account: account,
		metrics: metrics,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Chains
	s.router.HandleFunc("GET /api/chains", s.handleListChains)
	s.router.HandleFunc("GET /api/chains/{id}", s.handleGetChain)
	s.router.HandleFunc("POST /api/chains/{id}/stop", s.handleStopChain)
	s.router.HandleFunc("POST /api/chains/stop-all", s.handleStopAll)

	// Stats
	s.router.HandleFunc("GET /api/stats", s.handleStats)

	// Closed trades reported by the execution side
	s.router.HandleFunc("POST /api/trades/closed", s.handleTradeClosed)

	// Risk
	if s.risk != nil {
		s.router.HandleFunc("GET /api/risk", s.handleRisk)
		s.router.HandleFunc("POST /api/risk/pause", s.handlePause)
	}

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
