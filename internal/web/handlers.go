package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

// handleListChains returns ACTIVE chains, or every chain with ?all=true.
func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	if !all {
		chains := s.service.ListActiveChains()
		if chains == nil {
			chains = []*domain.Chain{}
		}
		s.writeJSON(w, http.StatusOK, chains)
		return
	}
	chains, err := s.service.ListChains(r.Context())
	if err != nil {
		s.writeError(w, "Failed to list chains", err)
		return
	}
	if chains == nil {
		chains = []*domain.Chain{}
	}
	s.writeJSON(w, http.StatusOK, chains)
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	chain, err := s.service.GetChain(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, "Failed to get chain", err)
		return
	}
	s.writeJSON(w, http.StatusOK, chain)
}

func (s *Server) handleStopChain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	chain, err := s.service.StopChain(r.Context(), id)
	if err != nil && chain == nil {
		s.writeError(w, "Failed to stop chain", err)
		return
	}
	if err != nil {
		// stopped locally, but the snapshot could not be persisted
		s.logger.Error("Chain stopped without durable record", zap.String("chain_id", id), zap.Error(err))
	}
	s.logger.Info("Chain stopped via API", zap.String("chain_id", id))
	s.writeJSON(w, http.StatusOK, chain)
}

type stopAllResponse struct {
	Stopped []*domain.Chain `json:"stopped"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	stopped, err := s.service.StopAllChains(r.Context())
	resp := stopAllResponse{Stopped: stopped}
	if resp.Stopped == nil {
		resp.Stopped = []*domain.Chain{}
	}
	status := http.StatusOK
	if err != nil {
		s.logger.Error("Stop all finished with errors", zap.Error(err))
		resp.Error = err.Error()
		status = http.StatusMultiStatus
	}
	s.logger.Info("All chains stopped via API", zap.Int("count", len(stopped)))
	s.writeJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetChainStats(r.Context())
	if err != nil {
		s.writeError(w, "Failed to compute stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type tradeClosedRequest struct {
	Ref        string          `json:"ref"`
	ChainID    string          `json:"chain_id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Outcome    string          `json:"outcome"`
	Lot        decimal.Decimal `json:"lot"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	PnL        decimal.Decimal `json:"pnl"`
	ClosedAt   *time.Time      `json:"closed_at"`
}

func (req tradeClosedRequest) trade() (domain.ClosedTrade, error) {
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return domain.ClosedTrade{}, err
	}
	outcome, err := domain.OutcomeKind(req.Outcome).Outcome()
	if err != nil {
		return domain.ClosedTrade{}, err
	}
	if req.Symbol == "" {
		return domain.ClosedTrade{}, fmt.Errorf("symbol is required: %w", domain.ErrConfiguration)
	}
	t := domain.ClosedTrade{
		Ref:        req.Ref,
		ChainID:    req.ChainID,
		Symbol:     req.Symbol,
		Side:       side,
		Lot:        req.Lot,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		PnL:        req.PnL,
		Outcome:    outcome,
	}
	if req.ClosedAt != nil {
		t.ClosedAt = req.ClosedAt.UTC()
	}
	return t, nil
}

func (s *Server) handleTradeClosed(w http.ResponseWriter, r *http.Request) {
	var req tradeClosedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON: " + err.Error()})
		return
	}
	trade, err := req.trade()
	if err != nil {
		s.writeError(w, "Invalid closed trade", err)
		return
	}
	if err := s.service.HandleTradeClosed(r.Context(), trade); err != nil {
		s.writeError(w, "Failed to handle closed trade", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	snap, err := s.risk.GetSnapshot(r.Context(), s.account)
	if err != nil {
		s.writeError(w, "Failed to read risk snapshot", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON: " + err.Error()})
		return
	}
	s.risk.SetPaused(req.Paused)
	s.logger.Info("Account pause toggled", zap.String("account", s.account), zap.Bool("paused", req.Paused))
	s.writeJSON(w, http.StatusOK, req)
}

type statusResponse struct {
	Status       string `json:"status"`
	ActiveChains int    `json:"active_chains"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok", ActiveChains: len(s.service.ListActiveChains())})
}
