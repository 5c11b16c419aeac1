// Package gateway runs the HTTP front of the relay: the WhatsApp
// webhook routes, health and readiness probes, the Prometheus metrics
// endpoint, and any long-polling channel adapters.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concierge/pkg/channel"
	"concierge/pkg/channel/whatsapp"
	"concierge/pkg/config"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 8080

	storeProbeInterval = 30 * time.Second
	storeProbeTimeout  = 5 * time.Second
)

// Pinger is the slice of the store contract the gateway uses for its
// readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service owns the HTTP server and the lifecycle of channel adapters.
type Service struct {
	cfg      config.GatewayConfig
	log      *slog.Logger
	webhook  *whatsapp.Webhook
	store    Pinger
	handler  channel.Handler
	adapters []channel.Adapter

	mu            sync.RWMutex
	startedAt     time.Time
	storeLastOKAt time.Time
	storeLastErr  string
	channelStates map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	StoreLastOKAt string                  `json:"store_last_ok_at,omitempty"`
	StoreLastErr  string                  `json:"store_last_error,omitempty"`
	Channels      map[string]channelState `json:"channels"`
}

// NewService wires the webhook, readiness probe, and optional adapters
// into one runnable service.
func NewService(cfg config.GatewayConfig, webhook *whatsapp.Webhook, store Pinger, handler channel.Handler, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if webhook == nil {
		return nil, errors.New("webhook is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters)+1)
	channelStates["whatsapp"] = channelState{Running: true}
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		webhook:       webhook,
		store:         store,
		handler:       handler,
		adapters:      adapters,
		channelStates: channelStates,
	}, nil
}

// Run serves HTTP and adapters until the context is cancelled or a
// component fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkStoreHealth(ctx); err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.runServer(ctx, serverErrors)

	ticker := time.NewTicker(storeProbeInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.checkStoreHealth(ctx)
			}
		}
	}()

	errCh := make(chan error, len(s.adapters))
	for _, adapter := range s.adapters {
		adapter := adapter
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handler)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Service) runServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /whatsapp", s.webhook.Verify)
	mux.HandleFunc("POST /whatsapp", s.webhook.Receive)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleRoot)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start gateway server: %w", err)
	}
}

func (s *Service) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	storeLastOK := ""
	if !s.storeLastOKAt.IsZero() {
		storeLastOK = s.storeLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		StoreLastOKAt: storeLastOK,
		StoreLastErr:  s.storeLastErr,
		Channels:      channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.storeLastOKAt.IsZero() {
		return false
	}

	if s.storeLastErr != "" {
		return false
	}

	return true
}

func (s *Service) checkStoreHealth(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, storeProbeTimeout)
	defer cancel()

	if err := s.store.Ping(probeCtx); err != nil {
		s.mu.Lock()
		s.storeLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("store health check failed: %w", err)
	}

	s.mu.Lock()
	s.storeLastErr = ""
	s.storeLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
