package server

import "net/http"

// healthReport is the /healthz document. It aggregates KV reachability,
// quota state, and the hit counter; it always renders with status 200, and
// any internal failure shows up as degraded values rather than an error.
type healthReport struct {
	Status  string        `json:"status"`
	Redis   redisHealth   `json:"redis"`
	Metrics healthMetrics `json:"metrics"`
}

type redisHealth struct {
	OK bool `json:"ok"`
}

type healthMetrics struct {
	Quota              int64 `json:"quota"`
	RateAPICallsUsed   int64 `json:"rate_api_calls_used"`
	RateAPICallsRemain int64 `json:"rate_api_calls_remaining"`
	HasQuotaRemaining  bool  `json:"has_quota_remaining"`
	HitCount           int64 `json:"hit_count"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report := healthReport{
		Status: "ok",
		Metrics: healthMetrics{
			Quota: h.quota.Limit(),
		},
	}

	report.Redis.OK = h.store.Ping(ctx)
	if !report.Redis.OK {
		report.Status = "degraded"
	}

	if used, err := h.quota.Count(ctx); err == nil {
		report.Metrics.RateAPICallsUsed = used
		report.Metrics.RateAPICallsRemain = h.quota.Limit() - used
		report.Metrics.HasQuotaRemaining = report.Metrics.RateAPICallsRemain > 0
	} else {
		report.Status = "degraded"
	}

	if hits, err := h.store.GetCounter(ctx, HitCountKey); err == nil {
		report.Metrics.HitCount = hits
	} else {
		report.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, report)
}
