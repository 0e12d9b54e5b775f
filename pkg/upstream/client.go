// Package upstream implements the client for the pricing oracle. The oracle
// is batch-oriented: one POST carries any number of (period, hotel, room)
// attribute records and returns the rates it recognizes.
//
// The client never returns an error to callers. Transport failures, decode
// failures, and non-success statuses are logged and surface as an empty
// result; absence in the returned map means "no rate known".
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hotelops/rate-proxy/pkg/rates"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single upstream call. It must stay below the lock
// TTL so a fetch inside the critical section cannot outlive the lock.
const DefaultTimeout = 20 * time.Second

const pricingPath = "/pricing"

// tokenHeader carries the API token the daily quota is keyed on.
const tokenHeader = "X-API-Token"

// RateMap is the nested period -> hotel -> room -> rate result of a batch
// call. Tuples the upstream did not recognize are absent, never nil.
type RateMap map[string]map[string]map[string]string

// Lookup returns the rate for a tuple and whether it was present.
func (m RateMap) Lookup(period, hotel, room string) (string, bool) {
	hotels, ok := m[period]
	if !ok {
		return "", false
	}
	rooms, ok := hotels[hotel]
	if !ok {
		return "", false
	}
	rate, ok := rooms[room]
	return rate, ok
}

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL is the upstream root; the pricing endpoint is relative to it.
	BaseURL string

	// Token is the API token; its daily call quota is what the whole
	// caching architecture exists to protect.
	Token string

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client is the pricing oracle client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     zerolog.Logger
}

// New creates a pricing client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base url is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("upstream api token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// Wire framing for the pricing endpoint.
type attributeRecord struct {
	Period string `json:"period"`
	Hotel  string `json:"hotel"`
	Room   string `json:"room"`
}

type pricingRequest struct {
	Attributes []attributeRecord `json:"attributes"`
}

type rateRecord struct {
	Period string `json:"period"`
	Hotel  string `json:"hotel"`
	Room   string `json:"room"`
	Rate   string `json:"rate"`
}

type pricingResponse struct {
	Rates []rateRecord `json:"rates"`
}

// FetchBatch requests rates for every tuple in one POST. The returned map
// contains only tuples the upstream recognized; on any failure it is empty.
func (c *Client) FetchBatch(ctx context.Context, tuples []rates.Tuple) RateMap {
	result := make(RateMap)
	if len(tuples) == 0 {
		return result
	}

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	attributes := make([]attributeRecord, len(tuples))
	for i, t := range tuples {
		attributes[i] = attributeRecord{Period: t.Period, Hotel: t.Hotel, Room: t.Room}
	}

	body, err := json.Marshal(pricingRequest{Attributes: attributes})
	if err != nil {
		c.logger.Error().Err(err).Msg("Encode pricing request failed")
		requestsTotal.WithLabelValues("encode_error").Inc()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pricingPath, bytes.NewReader(body))
	if err != nil {
		c.logger.Error().Err(err).Msg("Build pricing request failed")
		requestsTotal.WithLabelValues("encode_error").Inc()
		return result
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Int("batch_size", len(tuples)).Msg("Pricing request failed")
		requestsTotal.WithLabelValues("network_error").Inc()
		return result
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Int("batch_size", len(tuples)).
			Msg("Pricing request returned non-success status")
		return result
	}

	var decoded pricingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Error().Err(err).Msg("Decode pricing response failed")
		requestsTotal.WithLabelValues("decode_error").Inc()
		return result
	}

	for _, record := range decoded.Rates {
		hotels, ok := result[record.Period]
		if !ok {
			hotels = make(map[string]map[string]string)
			result[record.Period] = hotels
		}
		rooms, ok := hotels[record.Hotel]
		if !ok {
			rooms = make(map[string]string)
			hotels[record.Hotel] = rooms
		}
		rooms[record.Room] = record.Rate
	}

	c.logger.Debug().
		Int("batch_size", len(tuples)).
		Int("rates", len(decoded.Rates)).
		Dur("duration", time.Since(start)).
		Msg("Pricing batch complete")

	return result
}

// FetchSingle requests one rate. It is a one-element batch with a nested
// lookup, so all upstream traffic takes the same shape and the quota
// accountant treats it identically.
func (c *Client) FetchSingle(ctx context.Context, t rates.Tuple) (string, bool) {
	return c.FetchBatch(ctx, []rates.Tuple{t}).Lookup(t.Period, t.Hotel, t.Room)
}
