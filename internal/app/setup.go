// Package app contains the application setup for the storefront.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storefront/internal/auth"
	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/service"
	"github.com/abgdnv/storefront/internal/storage"
	transportgrpc "github.com/abgdnv/storefront/internal/transport/grpc"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/server"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
)

type Dependencies struct {
	CartService service.CartService
	Catalog     rest.Catalog
	Session     rest.Session
	Storage     storage.KV
	Health      *transportgrpc.Health
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

// SetupDependencies restores the cart and session from kv and wires them to the catalog.
func SetupDependencies(ctx context.Context, kv storage.KV, catalogCfg config.CatalogConfig, logger *slog.Logger) *Dependencies {
	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:        catalogCfg.BaseURL,
		Timeout:        catalogCfg.Timeout,
		Retention:      catalogCfg.Cache.Retention,
		CircuitBreaker: catalogCfg.CircuitBreaker,
	}, logger)

	c := cart.New(ctx, cart.NewPersistence(kv), logger)
	session := auth.NewSession(kv, logger)
	session.CheckAuthState(ctx)

	return &Dependencies{
		CartService: service.NewService(c, catalogClient, logger),
		Catalog:     catalogClient,
		Session:     session,
		Storage:     kv,
		Health:      transportgrpc.NewHealth(kv, logger),
		Logger:      logger,
	}
}

// SetupHttpHandler initializes the router and routes of the storefront.
// Used by tests to exercise the full middleware chain.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux, _ := newRouter(deps)
	return mux
}

func newRouter(deps *Dependencies) (*chi.Mux, *rest.Handler) {
	mux := server.NewChiRouter(deps.Logger)
	return mux, wireRoutes(mux, deps)
}

// wireRoutes sets up the HTTP routes of the storefront.
func wireRoutes(mux *chi.Mux, deps *Dependencies) *rest.Handler {
	handler := rest.NewHandler(deps.CartService, deps.Catalog, deps.Session, deps.Storage, deps.Logger)
	handler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, deps.MetricsPath, deps.Metrics)
	}
	return handler
}

// SetupHttpServer creates and configures the HTTP server of the storefront.
// Shutting the server down also ends open cart event streams.
func SetupHttpServer(deps *Dependencies, cfg *config.Config, serviceName string) *http.Server {
	mux, handler := newRouter(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	srv := server.NewHTTPServer(httpCfg, serviceName, mux)
	srv.RegisterOnShutdown(handler.Close)
	return srv
}

// SetupGrpcServer creates the gRPC server exposing the health service.
func SetupGrpcServer(deps *Dependencies, enableReflection bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, enableReflection, deps.Health.Register)
}
