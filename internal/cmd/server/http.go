package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpServer serves the telemetry of the agent
type httpServer struct {
	logger hclog.Logger
	addr   string
	server *http.Server
}

func (h *httpServer) start() {
	if h.logger == nil {
		h.logger = hclog.NewNullLogger()
	}
	if h.addr == "" {
		return
	}

	router := mux.NewRouter()
	router.HandleFunc("/metrics", h.metricsEndpoint).Methods("GET")

	h.server = &http.Server{
		Addr:    h.addr,
		Handler: router,
	}
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error(err.Error())
		}
	}()

	h.logger.Info("http server started", "addr", h.addr)
}

func (h *httpServer) stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("failed to stop http server", "err", err)
	}
}

var (
	// Only create the prometheus handler once
	promHandler http.Handler
	promOnce    sync.Once
)

func (h *httpServer) metricsEndpoint(w http.ResponseWriter, req *http.Request) {
	promOnce.Do(func() {
		handlerOptions := promhttp.HandlerOpts{
			ErrorLog:           h.logger.Named("prometheus_handler").StandardLogger(nil),
			ErrorHandling:      promhttp.ContinueOnError,
			DisableCompression: true,
		}
		promHandler = promhttp.HandlerFor(prometheus.DefaultGatherer, handlerOptions)
	})
	promHandler.ServeHTTP(w, req)
}
