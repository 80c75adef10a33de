package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/config"
	"github.com/BrandonDHaskell/Turnstile/internal/db"
	"github.com/BrandonDHaskell/Turnstile/internal/grpcapi"
	"github.com/BrandonDHaskell/Turnstile/internal/httpapi"
	"github.com/BrandonDHaskell/Turnstile/internal/telemetry"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store/memory"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store/sqlite"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type stores struct {
	access     store.AccessStore
	events     store.AccessEventStore
	terminals  store.TerminalStore
	heartbeats store.HeartbeatStore
	close      func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup closes the stores
// and stops the pruner on every path.
func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "turnstile-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, "turnstile-server", cfg.OTLPEndpoint, logger)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Printf("unknown timezone %q, using UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}

	st, err := openStores(ctx, cfg, loc, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.close()

	clk := clock.Real()

	// Services
	registry := service.NewTerminalRegistry(st.terminals, clk)
	accessSvc := service.NewAccessService(registry, st.access, service.AccessConfig{
		Clock:    clk,
		Location: loc,
		Logger:   logger,
	})
	heartbeatSvc := service.NewHeartbeatService(st.heartbeats, clk)
	auditSvc := service.NewAuditService(st.events, clk, loc)
	statusSvc := service.NewStatusService(st.access, clk)

	pruner := service.NewHeartbeatPruner(st.heartbeats, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
		Clock:         clk,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	if cfg.AdminToken == "" {
		logger.Printf("TURNSTILE_ADMIN_TOKEN not set, staff endpoints disabled")
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:             logger,
		Addr:               cfg.HTTPAddr,
		Registry:           registry,
		AccessService:      accessSvc,
		HeartbeatService:   heartbeatSvc,
		AuditService:       auditSvc,
		StatusService:      statusSvc,
		AdminToken:         cfg.AdminToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// gRPC health
	var health *grpcapi.HealthServer
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		health = grpcapi.NewHealthServer(logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Printf("grpc health error: %v", err)
			}
		}()
		health.SetServing(true)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (store=%s env=%s)", cfg.HTTPAddr, cfg.Store, cfg.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http serve: %w", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	if health != nil {
		health.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

func openStores(ctx context.Context, cfg config.Config, loc *time.Location, logger *log.Logger) (*stores, error) {
	if cfg.Store == "memory" {
		return openMemory(cfg, loc, logger)
	}

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}
	if cfg.SeedDev {
		if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{Location: loc}); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		logger.Printf("dev data seeded (terminal %s)", db.DevTerminalID)
	}

	writer := db.NewWorker(sqlDB)
	return &stores{
		access:     sqlite.NewAccessStore(sqlDB, writer),
		events:     sqlite.NewAccessEventStore(sqlDB, writer),
		terminals:  sqlite.NewTerminalStore(sqlDB, writer),
		heartbeats: sqlite.NewHeartbeatStore(sqlDB, writer),
		close: func() {
			writer.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// openMemory keeps everything in process. Only the dev terminal and
// one member are seeded; state is lost on exit.
func openMemory(cfg config.Config, loc *time.Location, logger *log.Logger) (*stores, error) {
	access := memory.NewAccessStore()
	var terminals []types.Terminal

	if cfg.SeedDev {
		hash, err := bcrypt.GenerateFromPassword([]byte(db.DevTerminalSecret), bcrypt.MinCost)
		if err != nil {
			return nil, err
		}
		terminals = append(terminals, types.Terminal{
			ID:         db.DevTerminalID,
			TenantID:   db.DevTenantID,
			BranchID:   db.DevBranchID,
			Name:       "Front desk",
			SecretHash: hash,
			AssignMode: types.AssignManual,
			Timezone:   loc.String(),
		})

		now := time.Now().UTC()
		access.AddAdminCard(db.DevTenantID, "0099991234")
		access.PutMember(types.Member{ID: "m_active", TenantID: db.DevTenantID, BranchID: db.DevBranchID, Name: "Alex Active"})
		access.PutCard(types.Card{UID: "0012345678", TenantID: db.DevTenantID, BranchID: db.DevBranchID, MemberID: "m_active", Status: types.CardActive})
		access.AddSubscription(types.Subscription{
			ID:        "sub_m_active",
			MemberID:  "m_active",
			BranchID:  db.DevBranchID,
			Status:    types.SubscriptionActive,
			StartDate: now.AddDate(0, 0, -30),
			EndDate:   now.AddDate(0, 0, 90),
			CreatedAt: now.AddDate(0, 0, -30),
		})
		logger.Printf("memory store seeded (terminal %s)", db.DevTerminalID)
	}

	return &stores{
		access:     access,
		events:     access,
		terminals:  memory.NewTerminalStore(terminals...),
		heartbeats: memory.NewHeartbeatStore(),
		close:      func() {},
	}, nil
}
