// Package statushttp exposes a small read-only HTTP surface for
// monitoring: health, the trading switch and the open positions.
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"riskpilot/internal/gateway/bybit"
	"riskpilot/internal/logger"

	"github.com/gin-gonic/gin"
)

// StatusStore is the read side of the settings store.
type StatusStore interface {
	TradingEnabled() bool
	GlobalRisk() float64
}

// Exchange is the read-only view of the gateway the server exposes.
type Exchange interface {
	GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error)
}

// Server wraps gin with a fixed route set.
type Server struct {
	addr      string
	router    *gin.Engine
	store     StatusStore
	api       Exchange
	startedAt time.Time
}

func NewServer(addr string, st StatusStore, api Exchange) *Server {
	if addr == "" {
		addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:      addr,
		router:    router,
		store:     st,
		api:       api,
		startedAt: time.Now(),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", s.handleStatus)
	router.GET("/positions", s.handlePositions)
	return s
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"trading_enabled": s.store.TradingEnabled(),
		"risk_usd":        s.store.GlobalRisk(),
		"uptime_seconds":  int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	positions, err := s.api.GetPositions(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	open := make([]gin.H, 0)
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		open = append(open, gin.H{
			"symbol":         p.Symbol,
			"side":           p.Side,
			"size":           p.Size,
			"avg_price":      p.AvgPrice,
			"mark_price":     p.MarkPrice,
			"stop_loss":      p.StopLoss,
			"unrealised_pnl": p.UnrealisedPnl,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": open})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Status HTTP server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Status server shutdown: %v", err)
		}
		return ctx.Err()
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
