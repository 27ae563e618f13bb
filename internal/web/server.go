// Package web serves the health, metrics, order stream and webhook endpoints.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/storage/orderjournal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	orderPollInterval = 2 * time.Second
	heartbeatInterval = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
	defaultCertCache  = "cert-cache"
)

type orderRecordReader interface {
	RecordsAfter(index uint64) ([]orderjournal.IndexedRecord, error)
}

// Config wires the optional parts of the server.
type Config struct {
	Addr    string
	Orders  orderRecordReader
	Metrics http.Handler
	// WebhookPath and Webhook receive Telegram updates when webhook mode is on.
	WebhookPath string
	Webhook     http.Handler
}

// Server exposes the status endpoints of the bot.
type Server struct {
	cfg    Config
	logger *zap.Logger
}

// NewServer creates a server.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/orders/stream", s.handleOrderStream)
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics)
	}
	if s.cfg.Webhook != nil {
		if webhookMountable(s.cfg.WebhookPath) {
			mux.Handle(s.cfg.WebhookPath, s.cfg.Webhook)
		} else {
			s.logger.Error("webhook not mounted, path must be a dedicated exact route", zap.String("path", s.cfg.WebhookPath))
		}
	}
	return mux
}

// webhookMountable rejects the root, subtree patterns and the built-in routes.
func webhookMountable(path string) bool {
	if len(path) < 2 || !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return false
	}
	switch path {
	case "/healthz", "/orders/stream", "/metrics":
		return false
	}
	return true
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", zap.String("addr", s.cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "status server")
	}
	return nil
}

// StartWithAutoTLS serves over HTTPS with Let's Encrypt certificates for domains.
// Port 80 answers ACME challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = defaultCertCache
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server", zap.Error(err))
		}
	}()

	s.logger.Info("status server listening with TLS", zap.String("addr", s.cfg.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "https status server")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

// handleOrderStream streams journal records as server-sent events.
// ?after=N skips records up to WAL index N.
func (s *Server) handleOrderStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Orders == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "order journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastIndex := uint64(0)
	if after := r.URL.Query().Get("after"); after != "" {
		v, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			http.Error(w, "bad after parameter", http.StatusBadRequest)
			return
		}
		lastIndex = v
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(orderPollInterval)
	defer pollTicker.Stop()

	sendRecords := func() error {
		records, err := s.cfg.Orders.RecordsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: order\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendRecords(); err != nil {
		s.logger.Error("order stream initial load", zap.Error(err))
		http.Error(w, "failed to load orders", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendRecords(); err != nil {
				s.logger.Warn("order stream poll", zap.Error(err))
			}
		}
	}
}
