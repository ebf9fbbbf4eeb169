// Package ops exposes a small operational HTTP surface: health, circuit
// breaker states, per-account risk metrics and order lookups. It is not an
// order-entry API.
package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradepipe/internal/gateway"
	"tradepipe/internal/logger"
	"tradepipe/internal/pkg/circuit"
	"tradepipe/internal/risk"
	"tradepipe/internal/store/gormstore"
)

// Server serves the ops endpoints.
type Server struct {
	addr     string
	engine   *risk.Engine
	breakers *circuit.Registry
	store    *gormstore.Store

	httpSrv *http.Server
}

func NewServer(addr string, engine *risk.Engine, breakers *circuit.Registry, store *gormstore.Store) *Server {
	return &Server{
		addr:     addr,
		engine:   engine,
		breakers: breakers,
		store:    store,
	}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api/ops")
	{
		api.GET("/breakers", s.handleBreakers)
		api.GET("/risk/:account", s.handleRisk)
		api.GET("/orders/:id", s.handleOrder)
		api.GET("/orders/:id/transitions", s.handleTransitions)
	}
	return r
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("ops server listening on %s", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"breakers": s.breakers.States()})
}

func (s *Server) handleRisk(c *gin.Context) {
	accountID := c.Param("account")
	metrics := s.engine.RiskMetrics(c.Request.Context(), accountID)
	c.JSON(http.StatusOK, gin.H{
		"metrics":           metrics,
		"approaching_limit": s.engine.ApproachingLimit(c.Request.Context(), accountID),
	})
}

func (s *Server) handleOrder(c *gin.Context) {
	orderID := c.Param("id")
	order, err := s.store.Load(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, gateway.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleTransitions(c *gin.Context) {
	orderID := c.Param("id")
	rows, err := s.store.Transitions(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "transitions": rows})
}
