package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"poolvault/config"
	"poolvault/core/events"
	"poolvault/core/state"
	"poolvault/gateway"
	"poolvault/native/vault"
	"poolvault/observability/logging"
	"poolvault/observability/metrics"
	"poolvault/storage"
)

// staticPauses satisfies the pause view from boot configuration.
type staticPauses struct {
	vaultPaused bool
}

func (p staticPauses) IsPaused(module string) bool {
	return module == "vault" && p.vaultPaused
}

// metricsEmitter bridges engine events into the prometheus registry and the
// structured log.
type metricsEmitter struct {
	logger *slog.Logger
}

func (m metricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	eventType := evt.EventType()
	metrics.Vault().ObserveEvent(eventType)
	switch eventType {
	case vault.EventTypePoolRegistered:
		metrics.Vault().ObservePoolRegistered()
	case vault.EventTypeLiquidityAdded:
		metrics.Vault().ObserveLiquidity("add")
	case vault.EventTypeLiquidityRemoved:
		metrics.Vault().ObserveLiquidity("remove")
	case vault.EventTypeBatchSettled:
		metrics.Vault().ObserveBatchSettled()
	case vault.EventTypeFlashLoan:
		metrics.Vault().ObserveFlashLoan()
	case vault.EventTypeInvested:
		metrics.Vault().ObserveInvestment("invest")
	case vault.EventTypeDivested:
		metrics.Vault().ObserveInvestment("divest")
	case vault.EventTypeManagedUpdated:
		metrics.Vault().ObserveInvestment("update")
	}
	m.logger.Info("vault event", slog.String("type", eventType))
}

func main() {
	configFile := flag.String("config", "./vaultd.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("VAULTD_ENV"))
	logger := logging.Setup("vaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	engine := vault.NewEngine()
	engine.SetStorage(state.NewVaultKV(db))
	engine.SetPauses(staticPauses{vaultPaused: cfg.PauseVault})
	engine.SetEmitter(metricsEmitter{logger: logger})
	if err := engine.SetFees(vault.FeeConfig{
		SwapFeeBps:      cfg.SwapFeeBps,
		WithdrawFeeBps:  cfg.WithdrawFeeBps,
		FlashLoanFeeBps: cfg.FlashLoanFeeBps,
	}); err != nil {
		logger.Error("invalid fee configuration", slog.Any("error", err))
		os.Exit(1)
	}

	gw := gateway.New(engine)
	logger.Info("vaultd listening", slog.String("address", cfg.ListenAddress))
	if err := http.ListenAndServe(cfg.ListenAddress, gw.Router()); err != nil {
		logger.Error("http server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
