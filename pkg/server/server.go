// Package server hosts the router's HTTP surface, built the same way
// the teacher builds its conversation-tracking server: a gorilla/mux
// router, a logging middleware applied via router.Use, and a
// promhttp-backed /metrics endpoint, all wrapped in a plain *http.Server
// with the teacher's timeout settings.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/handlers"
	"github.com/cognitive-bandwidth/router/pkg/metrics"
	"github.com/cognitive-bandwidth/router/pkg/workflow"
)

// NewHTTPServer builds the router's HTTP server: /policy, /telemetry,
// /queue, /task, /health, and /metrics, per spec.md §6. orchestrator may
// be nil, in which case /queue and /health report zero depth.
func NewHTTPServer(addr string, service handlers.TaskRouter, orchestrator workflow.Orchestrator, m *metrics.Metrics, logger *logrus.Logger) *http.Server {
	handler := handlers.NewHandler(service, orchestrator, logger)

	router := mux.NewRouter()

	router.HandleFunc("/policy", handler.GetPolicy).Methods("GET")
	router.HandleFunc("/policy", handler.PutPolicy).Methods("PUT")
	router.HandleFunc("/telemetry", handler.GetTelemetry).Methods("GET")
	router.HandleFunc("/queue", handler.GetQueue).Methods("GET")
	router.HandleFunc("/task", handler.PostTask).Methods("POST")
	router.HandleFunc("/health", handler.Health).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods("GET")

	router.Use(loggingMiddleware(logger))

	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
