// Package provider holds the outbound client for the chatbot backend.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"clovagate/internal/domain"
	"clovagate/internal/metrics"
	"clovagate/internal/signer"
)

const contentTypeJSON = "application/json; charset=UTF-8"

// Clova relays signed envelopes to a CLOVA-style chatbot endpoint.
type Clova struct {
	endpoint  string
	sigHeader string
	signer    *signer.Signer
	client    *http.Client
	logger    *slog.Logger
}

type ClovaConfig struct {
	Endpoint        string
	SecretKey       string
	SignatureHeader string
	Timeout         time.Duration
	Logger          *slog.Logger
}

// NewClova builds the client. Missing credentials fail here, before any
// network attempt is made.
func NewClova(cfg ClovaConfig) (*Clova, error) {
	if cfg.Endpoint == "" {
		return nil, domain.ErrMissingEndpoint
	}
	if cfg.SecretKey == "" {
		return nil, domain.ErrMissingSecret
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-NCP-CHATBOT_SIGNATURE"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Clova{
		endpoint:  cfg.Endpoint,
		sigHeader: cfg.SignatureHeader,
		signer:    signer.New(cfg.SecretKey),
		client:    SharedHTTPClient(cfg.Timeout),
		logger:    cfg.Logger,
	}, nil
}

func (c *Clova) Name() string { return "clova" }

// Send serializes the envelope exactly once, signs those bytes, and POSTs
// them to the backend. The serialized form is reused verbatim as the HTTP
// body; re-serializing would risk a byte-level mismatch with the signature.
// Single attempt, no retry.
func (c *Clova) Send(ctx context.Context, msg domain.OutgoingMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	sig, err := c.signer.Sign(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set(c.sigHeader, sig)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ProviderRequestsTotal.Inc()
	if err != nil {
		metrics.ProviderErrorsTotal.Inc()
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()
	metrics.ProviderLatency.Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderErrorsTotal.Inc()
		return nil, &domain.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ProviderErrorsTotal.Inc()
		c.logger.Warn("chatbot backend rejected request",
			"status", resp.StatusCode,
			"body_len", len(raw),
		)
		return nil, &domain.GatewayError{Status: resp.StatusCode, Body: string(raw)}
	}

	return raw, nil
}

// Healthy reports whether the backend endpoint is reachable. Any HTTP
// response counts: the gateway answers unsigned probes with an error status,
// which still proves connectivity.
func (c *Clova) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chatbot backend not reachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
