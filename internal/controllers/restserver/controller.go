// Package restserver serves the enriched network read-only over HTTP: segment
// records, network statistics, regional curves and Prometheus metrics.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	store      store.FeatureStore
	gatherer   prometheus.Gatherer
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller. gatherer backs the
// /metrics endpoint; nil uses the default registry.
func NewController(ctx context.Context, wg *sync.WaitGroup, fs store.FeatureStore, rc config.RESTServerData, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) (*Controller, error) {
	if fs == nil {
		return nil, fmt.Errorf("REST server needs a feature store")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		store:      fs,
		gatherer:   gatherer,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger.Desugar())),
		handlers.PrintRecoveryStack(true),
	)(handlers.CompressHandler(ctrl.setupRouter()))
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the router, for tests and embedding.
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.logRequests)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/segments", c.handlers.GetSegments).Methods(http.MethodGet)
	api.HandleFunc("/segments/{id:[0-9]+}", c.handlers.GetSegment).Methods(http.MethodGet)
	api.HandleFunc("/summary", c.handlers.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/regions", c.handlers.GetRegions).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))

	return router
}

func (c *Controller) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		c.logger.Debugw("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
