// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package statusapi exposes the run's read-only HTTP surface
// (spec-supplement, §"SUPPLEMENTED FEATURES"): /healthz, /status, and
// /metrics, so an operator or a monitoring system can watch a long-running
// engine process without tailing its log.
//
// Grounded on the teacher's gorilla/mux + gorilla/handlers router wiring
// (one mux.Router, routes registered by method+path, handlers.CORS and
// handlers.CombinedLoggingHandler wrapping the router) and golang-jwt/jwt
// for the optional bearer-token guard on /status.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osprey-dp/h5-to-dp/internal/progress"
	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

// Server is the status HTTP surface for one run.
type Server struct {
	httpServer *http.Server
	counters   *progress.Counters
	startedAt  time.Time
	jwtSecret  []byte
}

// New builds a Server bound to addr. An empty addr means the caller never
// calls Start — this constructor never itself listens.
func New(addr string, counters *progress.Counters, jwtSecret string, registry *prometheus.Registry) *Server {
	s := &Server{counters: counters, startedAt: time.Now(), jwtSecret: []byte(jwtSecret)}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/status", s.requireBearer(s.handleStatus)).Methods(http.MethodGet)

	var metricsHandler http.Handler = promhttp.Handler()
	if registry != nil {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	wrapped := handlers.CombinedLoggingHandler(log.InfoWriter, router)
	wrapped = handlers.CORS(handlers.AllowedOrigins([]string{"*"}))(wrapped)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      wrapped,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background. A failure other than the server
// being closed is logged, not returned, since the status surface is
// ancillary to the ingestion run it describes.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("statusapi: server exited: %v", err)
		}
	}()
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	UptimeSeconds    float64 `json:"uptimeSeconds"`
	FilesProcessed   int64   `json:"filesProcessed"`
	FilesFailed      int64   `json:"filesFailed"`
	SignalsProcessed int64   `json:"signalsProcessed"`
	Errors           int64   `json:"errors"`
	AvgFileSeconds   float64 `json:"avgFileSeconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds:    time.Since(s.startedAt).Seconds(),
		FilesProcessed:   s.counters.FilesProcessed.Load(),
		FilesFailed:      s.counters.FilesFailed.Load(),
		SignalsProcessed: s.counters.SignalsProcessed.Load(),
		Errors:           s.counters.Errors.Load(),
		AvgFileSeconds:   s.counters.AvgFileSeconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// requireBearer wraps handler with a JWT bearer-token check. A Server
// created with an empty jwtSecret skips the check entirely (auth is
// deployment-optional, same as dpclient's OAuth guard).
func (s *Server) requireBearer(handler http.HandlerFunc) http.HandlerFunc {
	if len(s.jwtSecret) == 0 {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.Header.Get("Authorization")
		if len(tokenStr) > 7 && tokenStr[:7] == "Bearer " {
			tokenStr = tokenStr[7:]
		}
		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}
}
