// Package server exposes a paper broker over HTTP and streams its state
// over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rustyeddy/paperbroker/bus"
	"github.com/rustyeddy/paperbroker/internal/logging"
	"github.com/rustyeddy/paperbroker/market"
	"github.com/rustyeddy/paperbroker/sim"
)

// Broker is the part of sim.Broker the server drives.
type Broker interface {
	Start()
	Stop()
	ResetBalance(amount float64)
	PlaceOrder(req sim.OrderRequest) (string, error)
	CancelOrder(orderID string) bool
	Snapshot() sim.State
}

type Options struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	Log            *zap.Logger
}

type Server struct {
	broker   Broker
	events   *bus.Bus
	router   *mux.Router
	stream   *hub[outboundMessage]
	upgrader websocket.Upgrader
	origins  []string
	log      *zap.Logger
	subs     []bus.Subscription
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	seq  uint64
}

type orderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Qty        float64 `json:"qty"`
	Price      float64 `json:"price"`
	Type       string  `json:"type"`
	ReduceOnly bool    `json:"reduce_only"`
}

type orderResponse struct {
	ID string `json:"id"`
}

type resetRequest struct {
	Balance *float64 `json:"balance"`
}

// New builds a server for b. Ticks posted to the server are published on
// events, and the server mirrors the broker topics on events to websocket
// clients.
func New(b Broker, events *bus.Bus, opts Options) *Server {
	s := &Server{
		broker:   b,
		events:   events,
		router:   mux.NewRouter(),
		stream:   newHub[outboundMessage](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		origins:  opts.AllowedOrigins,
		log:      logging.OrNop(opts.Log),
	}

	s.subs = append(s.subs,
		events.Subscribe(sim.TopicState, s.onState),
		events.Subscribe(sim.TopicFill, s.onFill),
	)
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/ticks", s.handleTick).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.handleStream)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close detaches the server from the event channel and ends every stream.
func (s *Server) Close() {
	for _, sub := range s.subs {
		s.events.Unsubscribe(sub)
	}
	s.subs = nil

	s.stream.CloseAll()
}

func (s *Server) onState(payload any) {
	st, ok := payload.(sim.State)
	if !ok {
		return
	}
	s.stream.Broadcast(outboundMessage{Type: "state", Data: st, seq: st.Seq})
}

func (s *Server) onFill(payload any) {
	t, ok := payload.(sim.Trade)
	if !ok {
		return
	}
	s.stream.Broadcast(outboundMessage{Type: "fill", Data: t})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Snapshot())
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	order, err := buildOrder(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.broker.PlaceOrder(order)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{ID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.broker.CancelOrder(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("order %s not open or broker stopped", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.broker.Start()
	writeJSON(w, http.StatusOK, s.broker.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.broker.Stop()
	writeJSON(w, http.StatusOK, s.broker.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if req.Balance == nil {
		writeError(w, http.StatusBadRequest, errors.New("balance is required"))
		return
	}
	s.broker.ResetBalance(*req.Balance)
	writeJSON(w, http.StatusOK, s.broker.Snapshot())
}

// handleTick injects a tick into the event channel, as a live feed would.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var t market.Tick
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid tick: %w", err))
		return
	}
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid tick: symbol and a non-negative price are required"))
		return
	}
	s.events.Publish(market.TopicTick, t)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStream sends the current snapshot, then every state and fill event.
// States older than the last one sent are skipped.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.stream.Subscribe(64)
	defer s.stream.Unsubscribe(sub)

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	st := s.broker.Snapshot()
	last := st.Seq
	if err := conn.WriteJSON(outboundMessage{Type: "state", Data: st}); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-sub.ch:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if msg.Type == "state" {
				if msg.seq <= last {
					continue
				}
				last = msg.seq
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func buildOrder(req orderRequest) (sim.OrderRequest, error) {
	side, err := sim.ParseSide(req.Side)
	if err != nil {
		return sim.OrderRequest{}, err
	}
	kind, err := sim.ParseOrderKind(req.Type)
	if err != nil {
		return sim.OrderRequest{}, err
	}
	return sim.OrderRequest{
		Symbol:     req.Symbol,
		Side:       side,
		Qty:        req.Qty,
		Price:      req.Price,
		Kind:       kind,
		ReduceOnly: req.ReduceOnly,
	}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, sim.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, sim.ErrNoPrice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
