// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package web republishes the current meter reading as a
// key-protected dashboard and JSON endpoint.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/edgeo-scada/meterwatch/internal/store"
	"github.com/edgeo-scada/meterwatch/rtu"
)

// Config holds the web server settings.
type Config struct {
	Listen    string
	AccessKey string
}

// Server serves the dashboard, the reading JSON and the client
// metrics. Every route requires the shared-secret key query parameter.
type Server struct {
	cfg     Config
	store   *store.Store
	metrics *rtu.Metrics
	logger  *slog.Logger
	rssi    func() int

	httpServer *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithRSSI installs a link-signal provider. Platforms without one
// report zero.
func WithRSSI(fn func() int) Option {
	return func(s *Server) {
		s.rssi = fn
	}
}

// New creates a web server over the given store and client metrics.
func New(cfg Config, st *store.Store, metrics *rtu.Metrics, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		metrics: metrics,
		logger:  logger,
		rssi:    func() int { return 0 },
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.requireKey(s.handleDashboard))
	mux.HandleFunc("/json", s.requireKey(s.handleJSON))
	mux.HandleFunc("/status", s.requireKey(s.handleStatus))

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route handler, useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts serving until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("web server started", slog.String("addr", s.cfg.Listen))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requireKey rejects requests whose key query parameter does not match
// the shared secret. The 403 carries no payload.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AccessKey)) != 1 {
			s.logger.Warn("rejected request", slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// payload is the wire format of the reading endpoint. Meter-derived
// numerics are forced to zero when the reading is invalid; the
// counters and diagnostics stay live.
type payload struct {
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	FwdEnergy   float64 `json:"fwd_energy"`
	RevEnergy   float64 `json:"rev_energy"`
	PowerFactor float64 `json:"power_factor"`
	Frequency   float64 `json:"frequency"`
	Direction   string  `json:"direction"`
	Valid       bool    `json:"valid"`
	Reads       int64   `json:"reads"`
	Errors      int64   `json:"errors"`
	Heap        int     `json:"heap"`
	RSSI        int     `json:"rssi"`
}

func (s *Server) buildPayload() payload {
	snap := s.store.Snapshot()
	r := snap.Reading

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	p := payload{
		Valid:     r.Valid,
		Direction: "forward",
		Reads:     snap.Reads,
		Errors:    snap.Errors,
		Heap:      int(ms.HeapAlloc),
		RSSI:      s.rssi(),
	}
	if r.Valid {
		p.Voltage = round(r.Voltage, 1)
		p.Current = round(r.Current, 2)
		p.Power = r.Power
		p.FwdEnergy = round(r.ForwardEnergy, 3)
		p.RevEnergy = round(r.ReverseEnergy, 3)
		p.PowerFactor = round(r.PowerFactor, 3)
		p.Frequency = round(r.Frequency, 2)
		p.Direction = r.Direction()
	}
	return p
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.buildPayload()); err != nil {
		s.logger.Error("encode reading", slog.String("error", err.Error()))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.metrics.Collect()); err != nil {
		s.logger.Error("encode status", slog.String("error", err.Error()))
	}
}

func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
