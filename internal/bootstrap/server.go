package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/claimjet/api"
	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/service/claims"
	"github.com/Domenick1991/claimjet/internal/service/flights"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout = 5 * time.Second
	swaggerFile     = "claimjet.swagger.json"
)

type Servers struct {
	log        *zap.Logger
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
}

// Run starts the HTTP API and the gRPC health server and blocks until ctx is
// canceled or a server fails.
func Run(ctx context.Context, log *zap.Logger, cfg *config.Config, flightSvc flights.FlightUseCase, claimsSvc claims.ClaimsUseCase) error {
	s := newServers(log, cfg, flightSvc, claimsSvc)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("gRPC health server started", zap.String("addr", lis.Addr().String()))
		if err := s.grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.log.Info("HTTP server started", zap.String("addr", cfg.HTTP.Address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Servers) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("servers stopped")
	return nil
}

func newServers(log *zap.Logger, cfg *config.Config, flightSvc flights.FlightUseCase, claimsSvc claims.ClaimsUseCase) *Servers {
	if log == nil {
		log = zap.NewNop()
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoveryInterceptor(log),
		loggingInterceptor(log),
	))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthServer)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewRouter(log, cfg.HTTP, flightSvc, claimsSvc, cfg.Pricing.ServiceFeeCents),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Servers{
		log:        log,
		grpcServer: grpcSrv,
		health:     healthServer,
		httpServer: httpSrv,
	}
}

// NewRouter wires the API handlers, the health probe and, when a swagger
// directory is configured, the docs UI.
func NewRouter(log *zap.Logger, cfg config.HTTPConfig, flightSvc flights.FlightUseCase, claimsSvc claims.ClaimsUseCase, serviceFeeCents int) *gin.Engine {
	router := gin.New()
	router.Use(tracingMiddleware(), recoveryMiddleware(log), loggingMiddleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	api.NewFlightHandler(flightSvc, serviceFeeCents).Register(v1.Group("/flights"))
	api.NewClaimHandler(claimsSvc).Register(v1.Group("/claims"))

	if cfg.SwaggerDir != "" {
		router.Static("/swagger", cfg.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/swagger/"+swaggerFile),
		)))
	}

	return router
}
