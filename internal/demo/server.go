package demo

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/qcache/app/controllers"
	"github.com/shashiranjanraj/qcache/app/models"
	"github.com/shashiranjanraj/qcache/app/routes"
	"github.com/shashiranjanraj/qcache/config"
	"github.com/shashiranjanraj/qcache/pkg/database"
	"github.com/shashiranjanraj/qcache/pkg/event"
	"github.com/shashiranjanraj/qcache/pkg/logger"
	"github.com/shashiranjanraj/qcache/pkg/metrics"
	"github.com/shashiranjanraj/qcache/pkg/middleware"
	"github.com/shashiranjanraj/qcache/pkg/router"
)

// Boot connects the database, migrates the fixture tables, seeds them, and
// builds the root http.Handler routes.RegisterAPI wires up — the same
// middleware ordering pkg/app's kernel assembles for a real deployment,
// trimmed of the Redis-backed session layer the demo has no use for.
func Boot() (http.Handler, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	if err := database.Connect(); err != nil {
		return nil, err
	}
	if err := database.DB.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}); err != nil {
		return nil, err
	}
	if err := SeedFixtures(); err != nil {
		return nil, err
	}

	event.Listen(controllers.ProductCreatedEvent, func(payload any) {
		logger.Info("demo: product created", "product", payload)
	})

	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	routes.RegisterAPI(r)

	return r.Handler(), nil
}

// Serve runs an HTTP server on addr until ctx is canceled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
