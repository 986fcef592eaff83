// Package adminserver exposes a read-only JSON status API over the live
// SoupBinTCP session set and MoldUDP64 receivers, grounded on the teacher's
// mux.Router + http.Server pairing in server/server.go. There is no browser
// console here (the teacher's embedded web/ assets are dropped — see
// DESIGN.md) since this domain has no operator UI, only machine-readable
// status.
package adminserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/marketlink/marketlink/metrics"
	"github.com/marketlink/marketlink/soupbin"
)

// Server is the admin HTTP API: session status, receiver status, and the
// Prometheus /metrics endpoint.
type Server struct {
	port       int
	sessions   *soupbin.SessionsManager
	receivers  *ReceiverRegistry
	router     *mux.Router
	httpServer *http.Server
}

// New builds a Server bound to sessions and receivers. It does not start
// listening until Run is called.
func New(port int, sessions *soupbin.SessionsManager, receivers *ReceiverRegistry) *Server {
	s := &Server{
		port:      port,
		sessions:  sessions,
		receivers: receivers,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleSessionStatus).Methods("GET")
	api.HandleFunc("/receivers", s.handleListReceivers).Methods("GET")

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("adminserver: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.router.Use(loggingMiddleware)
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		log.Info("adminserver: context done, shutting down")
		s.httpServer.Shutdown(context.Background())
	}()

	log.Infof("adminserver: listening on port %d", s.port)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
