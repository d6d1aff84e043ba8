// Package web serves host commands to remote clients over WebSocket
// JSON-RPC and plain HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/host"
)

// JSON-RPC error codes.
const (
	codeUnknownMethod = -32601
	codeInvalidParams = -32602
	codeServerError   = -32000
)

const maxBodyBytes = 32 << 20

// Server exposes an Invoker at /ws and /invoke/{command}.
type Server struct {
	inv      bridge.Invoker
	log      zerolog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	registry  *prometheus.Registry
	calls     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	connected prometheus.Gauge

	mu      sync.Mutex
	clients []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates a server that forwards every call to inv.
func NewServer(inv bridge.Invoker, opts ...Option) *Server {
	s := &Server{
		inv:      inv,
		log:      zerolog.Nop(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: localOrigin}

	factory := promauto.With(s.registry)
	s.calls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meacode",
		Subsystem: "bridge",
		Name:      "calls_total",
		Help:      "Host commands served, by command and outcome.",
	}, []string{"command", "status"})
	s.durations = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meacode",
		Subsystem: "bridge",
		Name:      "call_duration_seconds",
		Help:      "Host command latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"command"})
	s.connected = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "meacode",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected WebSocket clients.",
	})

	r := chi.NewRouter()
	r.Get("/ws", s.handleWebSocket)
	r.Post("/invoke/{command}", s.handleInvoke)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// localOrigin accepts non-browser clients and pages served from loopback.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	ip := net.ParseIP(u.Hostname())
	return ip != nil && ip.IsLoopback()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	s.connected.Inc()

	ctx, cancel := context.WithCancel(r.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		s.connected.Dec()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.log.Debug().Err(err).Msg("malformed request")
			continue
		}
		// Requests run concurrently so a long command does not hold up
		// the connection; responses carry the request id.
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			if err := client.write(s.handleRPC(ctx, req)); err != nil {
				s.log.Debug().Err(err).Msg("write response")
			}
		}()
	}
}

func (s *Server) handleRPC(ctx context.Context, req rpcRequest) rpcResponse {
	var payload any
	if len(req.Params) > 0 {
		payload = req.Params
	}
	result, err := s.call(ctx, req.Method, payload)
	if err != nil {
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: errorCode(err), Message: err.Error()}}
	}
	return rpcResponse{ID: req.ID, Result: result}
}

func (s *Server) call(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	start := time.Now()
	result, err := s.inv.Invoke(ctx, command, payload)
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, host.ErrUnknownCommand) {
			// Keep arbitrary method names out of the label set.
			command = "unknown"
		}
	}
	s.calls.WithLabelValues(command, status).Inc()
	s.durations.WithLabelValues(command).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Debug().Err(err).Str("command", command).Msg("call failed")
	}
	return result, err
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, host.ErrUnknownCommand):
		return codeUnknownMethod
	case errors.Is(err, host.ErrInvalidParams):
		return codeInvalidParams
	}
	return codeServerError
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			respondError(w, http.StatusUnsupportedMediaType, codeInvalidParams, fmt.Errorf("content type must be application/json"))
			return
		}
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidParams, err)
		return
	}
	var payload any
	if len(body) > 0 {
		payload = json.RawMessage(body)
	}

	result, err := s.call(r.Context(), command, payload)
	if err != nil {
		code := errorCode(err)
		status := http.StatusInternalServerError
		switch code {
		case codeUnknownMethod:
			status = http.StatusNotFound
		case codeInvalidParams:
			status = http.StatusBadRequest
		}
		respondError(w, status, code, err)
		return
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.Clients()})
}

func respondError(w http.ResponseWriter, status, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcError{Code: code, Message: err.Error()})
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends a notification to all connected WebSocket clients.
func (s *Server) Broadcast(method string, params any) {
	msg := map[string]any{"method": method, "params": params}
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			s.log.Debug().Err(err).Str("method", method).Msg("broadcast")
		}
	}
}
