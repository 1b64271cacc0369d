package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotbags/backend/config"
	"github.com/hotbags/backend/internal/app"
	httpDelivery "github.com/hotbags/backend/internal/delivery/http"
	"github.com/hotbags/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting HotBags Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Store: %s, Cache: %s, Messaging: %s", cfg.Store.Driver, cfg.Cache.Type, cfg.Messaging.Provider)
	log.Printf("Deal TTL: %s (sweep every %s)", cfg.Deal.TTL, cfg.Deal.ExpirySweep)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	if cfg.Inbound.BearerToken == "" {
		log.Printf("WARNING: inbound.bearer_token is not set - /api/v1/inbound accepts unauthenticated requests")
	}

	handler := httpDelivery.NewHandler(deps.Deals)
	router := httpDelivery.SetupRouter(cfg, handler)

	go runExpirySweep(ctx, deps.Deals, cfg.Deal.ExpirySweep)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// runExpirySweep expires overdue sessions until ctx is cancelled
func runExpirySweep(ctx context.Context, deals *usecase.DealService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := deals.ExpireDue(ctx, now)
			if err != nil {
				log.Printf("[DEAL] Expiry sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[DEAL] Expired %d sessions", n)
			}
		}
	}
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
