package channel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"clovagate/internal/domain"
	"clovagate/internal/metrics"
)

const maxBodySize = 1 << 20 // 1MB

//go:embed web_static
var staticFS embed.FS

// Forwarder sends one envelope to the chatbot backend and returns the raw
// response body. *provider.Clova implements it; tests substitute stubs.
type Forwarder interface {
	Send(ctx context.Context, msg domain.OutgoingMessage) ([]byte, error)
}

// Web serves the chat page and the /chat relay endpoint.
type Web struct {
	host       string
	port       int
	trustProxy bool
	metrics    bool
	forwarder  Forwarder
	logger     *slog.Logger
	server     *http.Server
	version    string
}

type WebConfig struct {
	Host       string
	Port       int
	TrustProxy bool
	Metrics    bool
	Forwarder  Forwarder
	Logger     *slog.Logger
	Version    string
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Web{
		host:       cfg.Host,
		port:       cfg.Port,
		trustProxy: cfg.TrustProxy,
		metrics:    cfg.Metrics,
		forwarder:  cfg.Forwarder,
		logger:     cfg.Logger,
		version:    cfg.Version,
	}
}

// Handler builds the full route table. Exposed so tests can drive the server
// without a listener.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(staticFS, "web_static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /{$}", w.handleIndex)

	mux.HandleFunc("POST /chat", w.handleChat)
	mux.HandleFunc("GET /status", w.handleStatus)
	if w.metrics {
		mux.Handle("GET /metrics", metrics.Collector.Handler())
	}

	return w.withLogging(mux)
}

// Start runs the HTTP server until ctx is cancelled.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("gateway started", "addr", "http://"+addr, "metrics", w.metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

type chatRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// handleChat relays one user message: build envelope, forward, normalize.
// Errors from the signer, transport, or backend surface as server errors;
// this handler never substitutes a canned reply.
func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	metrics.ChatRequestsTotal.Inc()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		w.writeError(rw, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.writeError(rw, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		// The browser normally keeps a stable ID; generate one for clients
		// that do not.
		req.UserID = uuid.NewString()
	}

	envelope := domain.NewOutgoing(req.UserID, req.Text, w.clientIP(r))

	raw, err := w.forwarder.Send(r.Context(), envelope)
	if err != nil {
		w.failChat(rw, req.UserID, err)
		return
	}

	// Diagnostic only; the functional contract is the normalized reply.
	w.logger.Debug("chatbot raw response", "user_id", req.UserID, "raw", string(raw))

	reply, err := domain.ParseReply(raw, req.UserID)
	if err != nil {
		w.failChat(rw, req.UserID, err)
		return
	}

	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(rw).Encode(reply)
}

// failChat maps the error taxonomy onto HTTP statuses: backend and transport
// failures are 502, everything else (signer misconfiguration, unexpected
// errors) is 500.
func (w *Web) failChat(rw http.ResponseWriter, userID string, err error) {
	metrics.ChatErrorsTotal.Inc()

	status := http.StatusInternalServerError
	var gw *domain.GatewayError
	var tr *domain.TransportError
	var malformed *domain.MalformedResponseError
	switch {
	case errors.As(err, &gw):
		status = http.StatusBadGateway
		w.logger.Error("chatbot call failed", "user_id", userID, "status", gw.Status, "body", gw.Body)
	case errors.As(err, &tr):
		status = http.StatusBadGateway
		w.logger.Error("chatbot unreachable", "user_id", userID, "err", err)
	case errors.As(err, &malformed):
		status = http.StatusBadGateway
		w.logger.Error("chatbot response unparseable", "user_id", userID, "err", err)
	default:
		w.logger.Error("chat relay failed", "user_id", userID, "err", err)
	}

	w.writeError(rw, status, "chatbot request failed")
}

func (w *Web) writeError(rw http.ResponseWriter, status int, msg string) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(map[string]string{"error": msg})
}

// clientIP picks the address reported to the chatbot backend. Behind a
// proxy, trustProxy switches to the first X-Forwarded-For hop.
func (w *Web) clientIP(r *http.Request) string {
	if w.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return domain.DefaultUserIP
	}
	return host
}

func (w *Web) handleIndex(rw http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("web_static/index.html")
	if err != nil {
		http.Error(rw, "chat page unavailable", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Write(page)
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]any{
		"status":  "ok",
		"version": w.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}
