// Package server exposes the proxy's HTTP surface: the pricing endpoint,
// the health report, and the Prometheus metrics handler.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hotelops/rate-proxy/pkg/engine"
	"github.com/hotelops/rate-proxy/pkg/kv"
	"github.com/hotelops/rate-proxy/pkg/quota"
	"github.com/hotelops/rate-proxy/pkg/rates"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HitCountKey is the Redis key counting successfully served requests.
const HitCountKey = "hit_count"

// Handler serves the proxy's HTTP API.
type Handler struct {
	engine *engine.Engine
	store  *kv.Store
	quota  *quota.Accountant
	logger zerolog.Logger
}

// New creates a Handler.
func New(e *engine.Engine, store *kv.Store, accountant *quota.Accountant, logger zerolog.Logger) *Handler {
	return &Handler{engine: e, store: store, quota: accountant, logger: logger}
}

// Mux returns the routing table for the proxy.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/pricing", h.handlePricing)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type rateResponse struct {
	Rate string `json:"rate"`
}

func (h *Handler) handlePricing(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	period := r.URL.Query().Get("period")
	hotel := r.URL.Query().Get("hotel")
	room := r.URL.Query().Get("room")

	if fieldErrors := rates.Validate(period, hotel, room); fieldErrors != nil {
		writeProblem(w, r, http.StatusBadRequest, validationTitle, fieldErrors)
		return
	}

	tuple := rates.Tuple{Period: period, Hotel: hotel, Room: room}
	rate, err := h.engine.GetRate(r.Context(), tuple)
	if err != nil {
		// Every engine failure is answered identically; no internal
		// detail reaches the client.
		if !engine.IsUnavailable(err) {
			h.logger.Error().Err(err).Str("tuple", tuple.String()).Msg("Unexpected engine error")
		}
		writeProblem(w, r, http.StatusServiceUnavailable, unavailableTitle, nil)
		return
	}

	writeJSON(w, http.StatusOK, rateResponse{Rate: rate})

	if _, err := h.store.Incr(r.Context(), HitCountKey); err != nil {
		h.logger.Warn().Err(err).Msg("Hit counter increment failed")
	}

	h.logger.Debug().
		Str("tuple", tuple.String()).
		Dur("duration", time.Since(start)).
		Msg("Rate served")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
