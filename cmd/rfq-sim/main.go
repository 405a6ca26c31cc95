package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"rfqsettle/config"
	"rfqsettle/core/genesis"
	"rfqsettle/observability/logging"
	telemetry "rfqsettle/observability/otel"
)

func main() {
	configPath := flag.String("config", "./rfq.toml", "Path to simulator configuration file")
	genesisPath := flag.String("genesis", "", "Genesis spec, overrides GenesisFile from the config")
	scenarioPath := flag.String("scenario", "", "Scenario to replay")
	tps := flag.Float64("tps", 0, "Maximum transactions per second during replay (0 = unlimited)")
	flag.Parse()

	if err := run(*configPath, *genesisPath, *scenarioPath, *tps); err != nil {
		fmt.Fprintf(os.Stderr, "rfq-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, genesisPath, scenarioPath string, tps float64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, logCloser, err := logging.Setup("rfq-sim", cfg.Logging.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Output:     os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "rfq-sim",
			Environment: cfg.Logging.Environment,
			Network:     cfg.NetworkName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     cfg.Telemetry.Headers,
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	if strings.TrimSpace(genesisPath) == "" {
		genesisPath = cfg.GenesisFile
	}
	spec, err := genesis.LoadGenesisSpec(genesisPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(scenarioPath) == "" {
		return fmt.Errorf("scenario path must be provided")
	}
	scenario, err := LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	sim, err := newSimulator(cfg, spec, logger)
	if err != nil {
		return err
	}
	defer sim.Close()
	sim.SetPace(tps)
	for name, key := range sim.dir.Signers() {
		logger.Debug("development signer", "label", name, "signer", key.Address().String(),
			"privateKey", key.PrivateKey.String())
	}

	report, err := sim.Run(ctx, scenario)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if report.Mismatches > 0 {
		return fmt.Errorf("%d transaction(s) did not match their expected outcome", report.Mismatches)
	}
	return nil
}
