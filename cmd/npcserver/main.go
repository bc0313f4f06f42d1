// Package main provides the NPC interaction server: it hosts one authoritative
// instance per NPC definition and accepts interaction requests over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/npcintent/internal/config"
	"github.com/cory-johannsen/npcintent/internal/game/interaction"
	"github.com/cory-johannsen/npcintent/internal/game/npc"
	"github.com/cory-johannsen/npcintent/internal/gameserver"
	"github.com/cory-johannsen/npcintent/internal/observability"
	"github.com/cory-johannsen/npcintent/internal/scripting"
	"github.com/cory-johannsen/npcintent/internal/server"
	"github.com/cory-johannsen/npcintent/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting npc server",
		zap.String("grpc_addr", cfg.Router.Addr()),
		zap.String("content_source", cfg.Content.Source),
	)

	lifecycle := server.NewLifecycle(logger)

	// Load definitions
	defStart := time.Now()
	var defs []*npc.Definition
	switch cfg.Content.Source {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		if err := pool.RequireSchema(ctx); err != nil {
			logger.Fatal("checking database schema", zap.Error(err))
		}
		defs, err = postgres.NewDefinitionRepository(pool.DB()).List(ctx)
		if err != nil {
			logger.Fatal("loading npc definitions", zap.Error(err))
		}
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})
	default:
		defs, err = npc.LoadDefinitions(cfg.Content.DefinitionsDir)
		if err != nil {
			logger.Fatal("loading npc definitions", zap.Error(err))
		}
	}
	catalog, err := npc.NewCatalog(defs, logger)
	if err != nil {
		logger.Fatal("building npc catalog", zap.Error(err))
	}
	logger.Info("npc definitions loaded",
		zap.Int("count", catalog.Len()),
		zap.Duration("elapsed", time.Since(defStart)),
	)

	// Load hook scripts
	var scriptMgr *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		scriptMgr = scripting.NewManager(logger, cfg.Content.ScriptInstructionLimit)
		defer scriptMgr.Close()
		n, err := scriptMgr.LoadTree(cfg.Content.ScriptsDir)
		if err != nil {
			logger.Fatal("loading npc scripts", zap.Error(err))
		}
		logger.Info("npc scripts loaded", zap.Int("definitions", n))
	}

	metrics := observability.NewMetrics()
	host := gameserver.NewHost(logger,
		gameserver.WithMailboxSize(cfg.Router.MailboxSize),
		gameserver.WithRecorder(metrics),
		gameserver.WithInstanceGauge(metrics.SetInstances),
	)
	for _, def := range catalog.All() {
		inst, err := host.SpawnWith(def, func(instanceID string) interaction.Hooks {
			if scriptMgr == nil {
				return nil
			}
			return scriptMgr.HooksFor(def.ID, instanceID)
		})
		if err != nil {
			logger.Fatal("spawning npc", zap.String("definition", def.ID), zap.Error(err))
		}
		logger.Debug("npc ready", zap.String("instance", inst.ID))
	}

	grpcServer := grpc.NewServer()
	gameserver.RegisterInteractionServer(grpcServer, gameserver.NewInteractionService(host, logger))

	hostStopped := make(chan struct{})
	lifecycle.Add("npc-host", &server.FuncService{
		StartFn: func() error {
			<-hostStopped
			return nil
		},
		StopFn: func() {
			host.Close()
			close(hostStopped)
		},
	})

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Router.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Router.Addr(), err)
			}
			logger.Info("gRPC server listening",
				zap.String("addr", lis.Addr().String()),
			)
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			grpcServer.GracefulStop()
		},
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		lifecycle.Add("metrics", &server.FuncService{
			StartFn: func() error {
				logger.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
				if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			StopFn: func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			},
		})
	}

	logger.Info("npc server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Int("instances", len(host.Instances())),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
