/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes health checks and metrics over HTTP
type Server struct {
	addr     string
	ready    func() bool
	gatherer prometheus.Gatherer
	log      logr.Logger
	mux      *http.ServeMux
}

// Enabled reports whether addr turns the server on ("" and "0" disable it)
func Enabled(addr string) bool {
	return addr != "" && addr != "0"
}

// NewServer creates the health server. ready backs /readyz.
func NewServer(addr string, ready func() bool, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	s := &Server{
		addr:     addr,
		ready:    ready,
		gatherer: gatherer,
		log:      log,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.write(w, http.StatusOK, "ok")
	})

	s.mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.ready == nil || !s.ready() {
			s.write(w, http.StatusServiceUnavailable, "UDP listener not active")
			return
		}
		s.write(w, http.StatusOK, "ready")
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler returns the HTTP handler serving all endpoints
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("Starting health check server", "address", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Error(err, "Failed to shutdown health check server")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) write(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.Error(err, "Failed to write health check response")
	}
}
