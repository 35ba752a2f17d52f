package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendex/native/lending"
	"lendex/observability"
	"lendex/observability/logging"
	"lendex/services/liquidator"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/liquidatord.yaml", "path to liquidatord config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LENDEX_ENV"))

	cfg, err := liquidator.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if env == "" {
		env = cfg.Environment
	}

	logger := logging.SetupRotating("liquidatord", env, logging.RotationConfig{
		Path:       cfg.LogRotation.Path,
		MaxSizeMB:  cfg.LogRotation.MaxSizeMB,
		MaxBackups: cfg.LogRotation.MaxBackups,
		MaxAgeDays: cfg.LogRotation.MaxAgeDays,
		Compress:   cfg.LogRotation.Compress,
	})

	genesis, err := lending.LoadConfig(cfg.GenesisPath)
	if err != nil {
		log.Fatalf("load genesis: %v", err)
	}
	engine, oracle, err := genesis.Build()
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	minProfit, err := cfg.MinProfitAmount()
	if err != nil {
		log.Fatalf("parse min_profit: %v", err)
	}

	pool := &liquidator.FlashPool{Account: cfg.FlashPool.Account, FeeBps: cfg.FlashPool.FeeBps}
	swapper := &liquidator.OracleSwapper{Oracle: oracle, Venue: cfg.Swap.Venue, FeeBps: cfg.Swap.FeeBps}
	scanner := liquidator.NewScanner(engine, oracle)
	bot := liquidator.NewBot(engine, scanner, pool, swapper, cfg.Account,
		liquidator.WithMinProfit(minProfit),
		liquidator.WithSweepLimit(cfg.MaxPerSweep, cfg.SweepRate),
		liquidator.WithLogger(logger),
		liquidator.WithMetrics(observability.Lending()),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	gate := &engineGate{engine: engine}

	router.Get("/status", statusHandler(gate))
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("liquidatord listening", "address", cfg.ListenAddress)
		serverErr <- server.ListenAndServe()
	}()

	go sweepLoop(ctx, logger, gate, bot, cfg.ScanInterval)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err.Error())
			_ = server.Close()
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve http: %v", err)
		}
	}
}

// engineGate serialises daemon access to the engine. The engine itself is
// strictly serial; the sweep loop mutates it while the status handler reads
// it, so every touch from either goroutine goes through the gate.
type engineGate struct {
	mu     sync.Mutex
	engine *lending.Engine
}

func (g *engineGate) do(fn func(*lending.Engine) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.engine)
}

// sweepLoop drives the bot on a fixed interval, advancing the engine's block
// height each tick so interest continues to accrue between sweeps.
func sweepLoop(ctx context.Context, logger *slog.Logger, gate *engineGate, bot *liquidator.Bot, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var receipts []*liquidator.Receipt
			err := gate.do(func(engine *lending.Engine) error {
				engine.SetBlockHeight(engine.BlockHeight() + 1)
				var sweepErr error
				receipts, sweepErr = bot.Sweep(ctx)
				return sweepErr
			})
			if err != nil {
				logger.Warn("sweep failed", "error", err.Error())
				continue
			}
			settled := 0
			for _, receipt := range receipts {
				if receipt.Phase == liquidator.PhaseSettled {
					settled++
				}
			}
			if len(receipts) > 0 {
				logger.Info("sweep complete", "attempted", len(receipts), "settled", settled)
			}
		}
	}
}

type marketStatus struct {
	Asset         string `json:"asset"`
	TotalSupply   string `json:"total_supply"`
	TotalBorrows  string `json:"total_borrows"`
	TotalReserves string `json:"total_reserves"`
	BorrowIndex   string `json:"borrow_index"`
	ExchangeRate  string `json:"exchange_rate"`
}

type statusResponse struct {
	BlockHeight uint64         `json:"block_height"`
	Accounts    int            `json:"accounts"`
	Markets     []marketStatus `json:"markets"`
}

func statusHandler(gate *engineGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp statusResponse
		err := gate.do(func(engine *lending.Engine) error {
			assets, err := engine.ListMarkets()
			if err != nil {
				return err
			}
			accounts, err := engine.Accounts()
			if err != nil {
				return err
			}
			resp = statusResponse{
				BlockHeight: engine.BlockHeight(),
				Accounts:    len(accounts),
				Markets:     make([]marketStatus, 0, len(assets)),
			}
			for _, asset := range assets {
				market, err := engine.MarketSnapshot(asset)
				if err != nil {
					continue
				}
				rate, err := engine.ExchangeRate(asset)
				if err != nil {
					continue
				}
				resp.Markets = append(resp.Markets, marketStatus{
					Asset:         asset,
					TotalSupply:   market.TotalSupply.String(),
					TotalBorrows:  market.TotalBorrows.String(),
					TotalReserves: market.TotalReserves.String(),
					BorrowIndex:   market.BorrowIndex.String(),
					ExchangeRate:  rate.String(),
				})
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
