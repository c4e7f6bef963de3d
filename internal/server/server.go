package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/dht22/internal/dht"
	"github.com/shaunagostinho/dht22/internal/sink"
)

// Reader performs one acquisition. *dht.Sensor satisfies it.
type Reader interface {
	Read() dht.Outcome
}

// Server runs periodic acquisitions, fans each outcome out to the sinks and
// broadcasts it to WebSocket clients.
type Server struct {
	cfg    *Config
	sensor Reader
	sinks  []sink.Sink
	webFS  fs.FS
	logger *slog.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	latestMu sync.RWMutex
	latest   *sink.Telemetry
	seq      int
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Reading *sink.Telemetry `json:"reading,omitempty"`
	Sensor  *SensorConfig   `json:"sensor,omitempty"`
	Stamp   int64           `json:"stamp"` // Unix ms
}

// New creates a new Server.
func New(cfg *Config, sensor Reader, sinks []sink.Sink, webFS fs.FS, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		sensor:  sensor,
		sinks:   sinks,
		webFS:   webFS,
		logger:  logger.With("component", "server"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/reading", s.handleReading)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run starts the HTTP server and the acquisition loop. It returns when ctx
// is done or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	go s.acquireLoop(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", s.cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// acquireLoop reads the sensor immediately and then once per interval. The
// interval is re-read after every acquisition so config updates apply
// without a restart.
func (s *Server) acquireLoop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.acquire()
			timer.Reset(s.cfg.Interval())
		}
	}
}

// acquire performs one acquisition and distributes the result.
func (s *Server) acquire() sink.Event {
	o := s.sensor.Read()

	s.latestMu.Lock()
	s.seq++
	e := sink.Event{
		Station:  s.station(),
		Sequence: s.seq,
		Time:     time.Now(),
		Outcome:  o,
	}
	t := sink.NewTelemetry(e)
	s.latest = &t
	s.latestMu.Unlock()

	if o.OK() {
		s.logger.Info("reading",
			"seq", e.Sequence,
			"celsius", o.Reading.Celsius,
			"humidity", o.Reading.Humidity,
			"attempts", o.Attempts,
		)
	} else {
		s.logger.Warn("acquisition failed", "seq", e.Sequence, "status", o.Status, "error", o.Err)
	}

	for _, sk := range s.sinks {
		if err := sk.Publish(e); err != nil {
			s.logger.Warn("sink publish failed", "sink", sk.Name(), "error", err)
		}
	}
	s.broadcast(Frame{Reading: &t, Stamp: t.Timestamp.UnixMilli()})
	return e
}

func (s *Server) station() string {
	s.cfg.mu.RLock()
	defer s.cfg.mu.RUnlock()
	return s.cfg.Sensor.Station
}

// Latest returns the most recent telemetry, or nil before the first
// acquisition.
func (s *Server) Latest() *sink.Telemetry {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Info("ws client connected", "clients", n)

	// Initial frame: sensor settings plus the latest reading, if any.
	s.cfg.mu.RLock()
	sensorCfg := s.cfg.Sensor
	s.cfg.mu.RUnlock()
	initial := Frame{Sensor: &sensorCfg, Reading: s.Latest(), Stamp: time.Now().UnixMilli()}
	if data, err := json.Marshal(initial); err == nil {
		client.send <- data
	}

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader keeps the connection alive and notices disconnects.
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			n := len(s.clients)
			close(client.send)
			s.clientsMu.Unlock()
			s.logger.Info("ws client disconnected", "clients", n)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

type configResponse struct {
	Status          string   `json:"status"`
	RestartRequired []string `json:"restartRequired,omitempty"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		restart, err := s.cfg.UpdateFromJSON(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(restart) > 0 {
			s.logger.Warn("config saved, restart required", "fields", restart)
		}
		if err := s.cfg.Save(); err != nil {
			s.logger.Warn("config save failed", "error", err)
		}

		s.cfg.mu.RLock()
		sensorCfg := s.cfg.Sensor
		s.cfg.mu.RUnlock()
		s.broadcast(Frame{Sensor: &sensorCfg, Stamp: time.Now().UnixMilli()})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(configResponse{Status: "ok", RestartRequired: restart})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t := s.Latest()
	w.Header().Set("Content-Type", "application/json")
	if t == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"pending"}`))
		return
	}
	json.NewEncoder(w).Encode(t)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
