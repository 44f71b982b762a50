package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/0x5487/order-gate/protocol"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 2 * time.Second
	maxBodyBytes          = 1 << 16
)

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithLogger replaces the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server exposes the gateway over REST and pushes dispatch logs over websocket.
type Server struct {
	gateway  *gate.Gateway
	hub      *Hub
	router   *mux.Router
	metrics  http.Handler
	origins  []string
	validate *validator.Validate
	timeout  time.Duration
	logger   *zap.Logger
	http     *http.Server
}

func NewServer(gw *gate.Gateway, hub *Hub, opts ...Option) *Server {
	s := &Server{
		gateway:  gw,
		hub:      hub,
		router:   mux.NewRouter(),
		origins:  []string{"*"},
		validate: validator.New(),
		timeout:  defaultRequestTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleNewOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleModifyOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id}", s.handleQueuePosition).Methods(http.MethodGet)

	api.HandleFunc("/queue", s.handleGetQueue).Methods(http.MethodGet)
	api.HandleFunc("/queue/clear", s.handleClearQueue).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleGetStats).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket)
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Start listens on addr and blocks until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("http server starting", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderBody
	if !s.decode(w, r, &body) {
		return
	}

	cmd, err := body.command(body.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	respondAdmission(w, s.gateway.NewOrder(ctx, cmd))
}

func (s *Server) handleModifyOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	var body OrderBody
	if !s.decodeWith(w, r, &body, func() { body.OrderID = id }) {
		return
	}

	cmd, err := body.command(id)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	respondAdmission(w, s.gateway.ModifyOrder(ctx, cmd))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	var body CancelBody
	if !s.decode(w, r, &body) {
		return
	}

	side, err := parseSide(body.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	respondAdmission(w, s.gateway.CancelOrder(ctx, &protocol.OrderCommand{
		OrderID:  id,
		SymbolID: body.SymbolID,
		Side:     side,
	}))
}

func (s *Server) handleQueuePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	pos, err := s.gateway.Dispatcher().QueuePosition(ctx, id)
	if err != nil {
		respondDispatcherError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PositionResponse{OrderID: id, Position: pos})
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	snap, err := s.gateway.Dispatcher().Snapshot(ctx)
	if err != nil {
		respondDispatcherError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SnapshotResponse{
		SeqID:     snap.SeqID,
		SessionID: snap.SessionID,
		LoggedIn:  snap.LoggedIn,
		Orders:    gate.ToQueueResponse(snap.Orders).Orders,
		Stats:     gate.ToStatsResponse(snap.Stats),
		TakenAt:   snap.TakenAt.UnixMilli(),
	})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	var body ClearBody
	if !s.decode(w, r, &body) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	removed, err := s.gateway.Dispatcher().Clear(ctx, fmt.Sprintf("%s: %s", body.Operator, body.Reason))
	if err != nil {
		respondDispatcherError(w, err)
		return
	}

	s.logger.Info("queue cleared over http",
		zap.String("operator", body.Operator),
		zap.String("reason", body.Reason),
		zap.Int("removed", removed))
	respondJSON(w, http.StatusOK, protocol.ClearQueueResponse{Removed: removed})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	stats, err := s.gateway.Dispatcher().GetStats(ctx)
	if err != nil {
		respondDispatcherError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gate.ToStatsResponse(stats))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	info, err := s.gateway.Dispatcher().GetSessionState(ctx)
	if err != nil {
		respondDispatcherError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gate.ToSessionStateResponse(info))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	info, err := s.gateway.Dispatcher().GetSessionState(ctx)
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Version: gate.GateVersion})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: gate.GateVersion, LoggedIn: info.LoggedIn})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return s.decodeWith(w, r, dst, nil)
}

// decodeWith reads a JSON body into dst, runs fill, then validates dst.
func (s *Server) decodeWith(w http.ResponseWriter, r *http.Request, dst any, fill func()) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "empty body", "")
		return false
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return false
	}

	if fill != nil {
		fill()
	}

	if err := s.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

func (b *OrderBody) command(orderID int64) (*protocol.OrderCommand, error) {
	side, err := parseSide(b.Side)
	if err != nil {
		return nil, err
	}
	return &protocol.OrderCommand{
		OrderID:     orderID,
		SymbolID:    b.SymbolID,
		Side:        side,
		Price:       b.Price,
		Quantity:    b.Quantity,
		SubmittedAt: b.SubmittedAt,
	}, nil
}

func orderIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid order id", raw)
		return 0, false
	}
	return id, true
}

// admissionStatusCode maps an admission outcome to an HTTP status.
func admissionStatusCode(res gate.AdmissionResult) int {
	switch res.Status {
	case gate.AcceptedQueued:
		return http.StatusAccepted
	case gate.Rejected:
		switch res.Reason {
		case protocol.RejectReasonDuplicateID:
			return http.StatusConflict
		case protocol.RejectReasonOrderNotFound:
			return http.StatusNotFound
		case protocol.RejectReasonTradingInactive, protocol.RejectReasonShutdown:
			return http.StatusServiceUnavailable
		case protocol.RejectReasonTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadRequest
		}
	default:
		return http.StatusOK
	}
}

func respondAdmission(w http.ResponseWriter, res gate.AdmissionResult) {
	respondJSON(w, admissionStatusCode(res), gate.ToAdmissionResponse(res))
}

func respondDispatcherError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gate.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not queued", err.Error())
	case errors.Is(err, gate.ErrShutdown):
		respondError(w, http.StatusServiceUnavailable, "shutting down", err.Error())
	case errors.Is(err, gate.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, title, message string) {
	respondJSON(w, status, ErrorResponse{Error: title, Message: message})
}
