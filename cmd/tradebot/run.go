package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfold/tradebot/internal/broker"
	"github.com/quantfold/tradebot/internal/config"
	"github.com/quantfold/tradebot/internal/conn"
	"github.com/quantfold/tradebot/internal/engine"
	"github.com/quantfold/tradebot/internal/exec"
	"github.com/quantfold/tradebot/internal/notify"
	"github.com/quantfold/tradebot/internal/observ"
	"github.com/quantfold/tradebot/internal/store"
)

// dataRPS bounds the market data fetch paths against broker quotas.
const (
	dataRPS   = 20.0
	dataBurst = 40
)

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the decision and execution loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			observ.SetupLogging(cfg.Log.Level, cfg.Log.Console)
			log.Info().Str("version", version).Str("timeframe", cfg.Engine.Timeframe).
				Int("symbols", len(cfg.Engine.Symbols)).Bool("trading_enabled", cfg.TradingEnabled).
				Msg("tradebot starting")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b := newBroker(cfg)
			defer b.Close()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			var (
				sink     exec.TransitionSink
				hbSink   conn.HeartbeatSink
				outcomes engine.OutcomeSink
			)
			if st != nil {
				defer st.Close()
				sink, hbSink, outcomes = st, st, st
			}

			notifier := notify.New(cfg.Notify.Config())
			defer notifier.Close()

			handle := config.NewHandle(cfg)
			sup := conn.NewSupervisor(b, cfg.Conn.Config(), handle.TradingEnabled, hbSink)
			executor := exec.New(b, sup.Gate, sink, notifier, cfg.Exec.Config())

			// Resolve attempts left in flight by a previous process before
			// submitting anything new.
			if st != nil {
				keys, err := st.UnresolvedKeys(ctx)
				if err != nil {
					return fmt.Errorf("load unresolved keys: %w", err)
				}
				if len(keys) > 0 {
					if _, err := executor.Reconcile(ctx, keys); err != nil {
						return fmt.Errorf("startup reconciliation: %w", err)
					}
				}
			}

			go observ.ServeMetrics(ctx, cfg.MetricsAddr)
			go sup.Run(ctx)

			eng := engine.New(cfg, handle, b, sup, executor, outcomes)
			unresolved := eng.Run(ctx)
			if len(unresolved) > 0 {
				log.Warn().Strs("keys", unresolved).Msg("exiting with unresolved attempts")
			}
			log.Info().Msg("tradebot stopped")
			return nil
		},
	}
}

func newReconcileCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve order attempts left non-terminal by a previous run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			observ.SetupLogging(cfg.Log.Level, cfg.Log.Console)

			if cfg.Store.DSN == "" {
				return fmt.Errorf("reconcile requires store.dsn to be configured")
			}
			st, err := store.Open(cmd.Context(), cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			keys, err := st.UnresolvedKeys(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Println("no unresolved attempts")
				return nil
			}

			b := newBroker(cfg)
			defer b.Close()
			executor := exec.New(b, alwaysConnected, st, nil, cfg.Exec.Config())
			resolved, err := executor.Reconcile(cmd.Context(), keys)
			if err != nil {
				return err
			}
			for key, status := range resolved {
				fmt.Printf("%s\t%s\n", key, status)
			}
			return nil
		},
	}
}

// alwaysConnected is the gate for one-shot reconciliation, which never
// submits orders.
func alwaysConnected() exec.AccountGate {
	return exec.AccountGate{Connected: true, TradeMode: broker.ModeDemo, TradingEnabled: false}
}

func loadConfig(path string) (config.Root, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newBroker(cfg config.Root) broker.Broker {
	sim := broker.NewSim(cfg.Sim.Seed, broker.DefaultSimSymbols())
	return broker.NewRateLimited(sim, dataRPS, dataBurst)
}

func openStore(ctx context.Context, cfg config.Root) (*store.Store, error) {
	if cfg.Store.DSN == "" {
		log.Warn().Msg("store.dsn not set, persistence and restart reconciliation disabled")
		return nil, nil
	}
	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
