package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mikemcculloch/TradeSmart/internal/analysis"
	"github.com/mikemcculloch/TradeSmart/internal/models"
)

// alertRequest is the inbound webhook body.
type alertRequest struct {
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	Action   string          `json:"action"`
	Price    decimal.Decimal `json:"price"`
	Interval string          `json:"interval"`
	Message  string          `json:"message"`
	Secret   string          `json:"secret"`
}

// verdictResponse is the webhook's 200 body.
type verdictResponse struct {
	Symbol          string           `json:"symbol"`
	Direction       models.Direction `json:"direction"`
	Confidence      float64          `json:"confidence"`
	EntryPrice      *decimal.Decimal `json:"entryPrice,omitempty"`
	StopLoss        *decimal.Decimal `json:"stopLoss,omitempty"`
	TakeProfit      *decimal.Decimal `json:"takeProfit,omitempty"`
	RiskRewardRatio string           `json:"riskRewardRatio,omitempty"`
	Reasoning       string           `json:"reasoning"`
	AnalyzedAt      time.Time        `json:"analyzedAt"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []string{"invalid JSON body: " + err.Error()},
		})
		return
	}

	if s.cfg.WebhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.WebhookSecret)) != 1 {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	if req.Symbol == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []string{"symbol is required"},
		})
		return
	}

	alert := &models.Alert{
		Symbol:     req.Symbol,
		Exchange:   req.Exchange,
		Action:     req.Action,
		Price:      req.Price,
		Interval:   req.Interval,
		Message:    req.Message,
		Secret:     req.Secret,
		ReceivedAt: time.Now().UTC(),
	}

	verdict, err := s.analyzer.Analyze(r.Context(), alert)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidInput) {
			s.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{err.Error()}})
			return
		}
		s.logger.WithError(err).Error("alert analysis failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, verdictResponse{
		Symbol:          verdict.Symbol,
		Direction:       verdict.Direction,
		Confidence:      verdict.Confidence,
		EntryPrice:      verdict.EntryPrice,
		StopLoss:        verdict.StopLoss,
		TakeProfit:      verdict.TakeProfit,
		RiskRewardRatio: verdict.RiskRewardRatio,
		Reasoning:       verdict.Reasoning,
		AnalyzedAt:      verdict.AnalyzedAt,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.state.GetState()
	if state == nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "engine state unavailable"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"wallet":        state.Wallet,
		"winRate":       state.Wallet.WinRate(),
		"openPositions": state.OpenPositions,
		"lastUpdatedAt": state.LastUpdatedAt,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state.GetClosedPositions())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}
