package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/netmend/internal/apply"
	"github.com/fyrsmithlabs/netmend/internal/baseline"
	"github.com/fyrsmithlabs/netmend/internal/config"
	"github.com/fyrsmithlabs/netmend/internal/detect"
	"github.com/fyrsmithlabs/netmend/internal/device"
	"github.com/fyrsmithlabs/netmend/internal/fixplan"
	"github.com/fyrsmithlabs/netmend/internal/inference"
	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/learning"
	"github.com/fyrsmithlabs/netmend/internal/logging"
	"github.com/fyrsmithlabs/netmend/internal/server"
	"github.com/fyrsmithlabs/netmend/internal/session"
	"github.com/fyrsmithlabs/netmend/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the netmend HTTP API",
	Long: `Start the netmend daemon with the HTTP API, the knowledge base and,
when configured, the rule pack watcher. The daemon ships with the
simulated device transport; real transports plug in through the
session provider.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.NewServer(st.manager, st.kb, logger, &server.Config{Addr: cfg.Server.Addr}, nil)
	if err != nil {
		return err
	}

	logger.Info("starting netmend",
		zap.String("addr", cfg.Server.Addr),
		zap.String("history_backend", cfg.Knowledge.HistoryBackend),
		zap.Int("rules", len(st.kb.Rules())),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if st.watcher != nil {
		g.Go(func() error {
			if err := st.watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// stack holds the wired engine components and whatever needs closing.
type stack struct {
	kb      *knowledge.Service
	manager *session.Manager
	watcher *knowledge.Watcher
	sqlite  *knowledge.SQLiteStore
}

func (s *stack) Close() {
	if s.sqlite != nil {
		_ = s.sqlite.Close()
	}
}

func buildStack(cfg *config.Config, logger *zap.Logger) (*stack, error) {
	var history knowledge.HistoryStore
	var sqliteStore *knowledge.SQLiteStore
	switch cfg.Knowledge.HistoryBackend {
	case "sqlite":
		st, err := knowledge.NewSQLiteStore(cfg.Knowledge.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		history = st
		sqliteStore = st
	default:
		history = knowledge.NewMemoryStore()
	}

	kb, err := knowledge.New(&knowledge.Config{
		LearnRate: cfg.Knowledge.LearnRate,
		Decay:     cfg.Knowledge.Decay,
		MinWeight: 0.05,
		MaxWeight: 0.99,
	}, history, logger)
	if err != nil {
		return nil, err
	}
	if err := kb.AddRules(knowledge.SeedRules()); err != nil {
		return nil, err
	}
	for _, path := range cfg.Knowledge.RulePacks {
		pack, err := knowledge.LoadRulePack(path)
		if err != nil {
			return nil, err
		}
		added, err := kb.LoadPack(pack)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded rule pack",
			zap.String("path", path),
			zap.Int("rules_added", added),
		)
	}

	var watcher *knowledge.Watcher
	if cfg.Knowledge.WatchRulePacks && len(cfg.Knowledge.RulePacks) > 0 {
		watcher, err = knowledge.NewWatcher(kb, cfg.Knowledge.RulePacks, logger)
		if err != nil {
			return nil, err
		}
	}

	var baseStore baseline.Store
	if cfg.Baseline.Path != "" {
		st, err := baseline.LoadFile(cfg.Baseline.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load baselines: %w", err)
		}
		baseStore = st
	} else {
		baseStore = baseline.NewStaticStore()
	}

	engine, err := inference.New(&inference.Config{
		ConfidenceThreshold: cfg.Inference.ConfidenceThreshold,
		TopK:                cfg.Inference.TopK,
		MinSampleSize:       cfg.Inference.MinSampleSize,
		LowSampleRuleWeight: 0.7,
		TrustedRuleWeight:   0.5,
		SimilarLimit:        3,
	}, kb, nil, logger)
	if err != nil {
		return nil, err
	}

	recommender, err := fixplan.New(kb, baseStore, logger)
	if err != nil {
		return nil, err
	}

	applier, err := apply.New(&apply.Config{
		CommandTimeout: cfg.Apply.CommandTimeout,
		StepRetries:    cfg.Apply.StepRetries,
	}, logger)
	if err != nil {
		return nil, err
	}

	learner, err := learning.New(kb, logger)
	if err != nil {
		return nil, err
	}

	registry := detect.NewRegistry(logger)
	for _, d := range []detect.Detector{
		detect.NewInterfaceDetector(baseStore),
		detect.NewEIGRPDetector(baseStore),
		detect.NewOSPFDetector(baseStore),
	} {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}

	fleet := device.NewSimFleet(cfg.Device.CommandsPerSecond, cfg.Device.Burst)
	manager, err := session.NewManager(registry, engine, recommender, applier, learner, fleet, logger)
	if err != nil {
		return nil, err
	}

	return &stack{kb: kb, manager: manager, watcher: watcher, sqlite: sqliteStore}, nil
}
