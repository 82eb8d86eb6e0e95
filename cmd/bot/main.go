package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/crypto_reentry_chain/internal/config"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/exchange"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/logger"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/notifier"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/storage"
	"github.com/vitos/crypto_reentry_chain/internal/metrics"
	"github.com/vitos/crypto_reentry_chain/internal/usecase"
	"github.com/vitos/crypto_reentry_chain/internal/web"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	path := os.Getenv("REENTRY_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Rotation)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
		if err != nil {
			fmt.Printf("Failed to init logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Bot stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Init Storage
	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path, false)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	defer store.Close()

	// 4. Init Exchange (Bybit quotes and trend; paper or live orders)
	bybit := exchange.NewBybitAdapter(cfg.Exchange.BybitConfig, log)
	defer bybit.Close()
	var gateway domain.OrderGateway = bybit
	if cfg.Exchange.Paper {
		log.Info("Paper trading enabled, orders are simulated")
		gateway = exchange.NewPaperGateway(bybit, log)
	}

	// 5. Metrics and notifications
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtx, err := metrics.New(reg)
	if err != nil {
		return err
	}
	events := notifier.NewMulti(notifier.NewLogNotifier(log), mtx)

	// 6. Init Services
	machine := usecase.NewChainStateMachine()
	registry := usecase.NewChainRegistry(store, machine, cfg.RegistryConfig(), log)
	ledger := usecase.NewLedgerRiskProvider(registry, cfg.Risk, cfg.Account.Balance)
	svc := usecase.NewReentryService(usecase.ReentryDeps{
		Registry:  registry,
		Machine:   machine,
		Evaluator: usecase.NewTriggerEvaluator(cfg.Triggers),
		Sizer:     usecase.NewPositionSizer(cfg.Sizing, cfg.Risk),
		RiskGate:  usecase.NewRiskGate(),
		TrendGate: usecase.NewTrendGate(bybit, cfg.Trend, log),
		Risk:      ledger,
		Gateway:   gateway,
		Notifier:  events,
		Logger:    log,
		Account:   cfg.Account.ID,
		Chain:     cfg.ChainConfig(),
		Sizing:    cfg.Sizing,
	})

	// 7. Rehydrate ACTIVE chains
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("rehydrate chains: %w", err)
	}
	if stats, err := svc.GetChainStats(ctx); err == nil {
		mtx.Sync(stats)
	}

	// 8. Keep the quote stream subscribed to every symbol we track
	go subscribeLoop(ctx, svc, bybit, cfg.Monitor.Interval, log)

	// 9. Monitor loop
	monitor := usecase.NewChainMonitor(svc, bybit, cfg.MonitorConfig(), log)
	go monitor.Run(ctx)

	// 10. Web Server
	server := web.NewServer(cfg.Server.Port, svc, ledger, cfg.Account.ID,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 11. Wait for Shutdown
	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	log.Info("Server exited properly")
	return nil
}

// subscribeLoop diffs the tracked symbols against what the stream already
// carries and subscribes to the new ones.
func subscribeLoop(ctx context.Context, svc *usecase.ReentryService, bybit *exchange.BybitAdapter, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		seen := make(map[string]bool)
		var symbols []string
		for _, c := range svc.ListActiveChains() {
			if !seen[c.Symbol] {
				seen[c.Symbol] = true
				symbols = append(symbols, c.Symbol)
			}
		}
		for _, w := range svc.Watches() {
			if !seen[w.Symbol] {
				seen[w.Symbol] = true
				symbols = append(symbols, w.Symbol)
			}
		}
		if len(symbols) > 0 {
			if err := bybit.Subscribe(ctx, symbols); err != nil {
				log.Warn("Failed to subscribe, using REST quotes", zap.Strings("symbols", symbols), zap.Error(err))
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
