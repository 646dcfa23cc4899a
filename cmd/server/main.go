package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/better-wallet/seedless/internal/api"
	"github.com/better-wallet/seedless/internal/app"
	"github.com/better-wallet/seedless/internal/audit"
	"github.com/better-wallet/seedless/internal/config"
	"github.com/better-wallet/seedless/internal/eth"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/metrics"
	"github.com/better-wallet/seedless/internal/provisioning"
	"github.com/better-wallet/seedless/internal/remote"
	"github.com/better-wallet/seedless/internal/wallet"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := logger.WithWalletID(context.Background(), cfg.WalletID)
	m := metrics.New()

	// Secure store
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open secure store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()
	auditRecorder := audit.NewRecorder(stores.Audit, cfg.WalletID)

	// Remote signing sessions
	remoteCfg := app.RemoteConfig{
		Transport: cfg.SignerTransport,
		IsTestnet: cfg.IsTestnet,
		APIURL:    cfg.SeedlessAPIURL,
		OrgID:     cfg.SeedlessOrgID,
		Timeout:   cfg.SignerTimeout,
		RateLimit: cfg.SignerRateLimitRPS,
	}
	if cfg.SignerTransport == "enclave" {
		dialer, err := remote.NewDialer(cfg.DialerConfig())
		if err != nil {
			slog.Error("failed to initialize enclave dialer", "error", err)
			os.Exit(1)
		}
		remoteCfg.Dialer = dialer
	}
	if cfg.SignerTransport == "local" {
		slog.Warn("local signer transport signs in process; use for development only")
	}
	sessions, err := app.NewSessionFactory(remoteCfg, m)
	if err != nil {
		slog.Error("failed to initialize session factory", "error", err)
		os.Exit(1)
	}

	slog.Info("initialized signer transport", "transport", cfg.SignerTransport)

	// Account provisioning
	var provisioner wallet.Provisioner
	if cfg.ProvisioningAPIURL != "" {
		client, err := provisioning.NewClient(cfg.ProvisioningAPIURL, cfg.SignerTimeout, m)
		if err != nil {
			slog.Error("failed to initialize provisioning client", "error", err)
			os.Exit(1)
		}
		provisioner = client
	} else {
		slog.Warn("PROVISIONING_API_URL not set; adding accounts is disabled")
	}

	// Optional EVM node for filling transaction fields
	var txFiller api.TxFiller
	if cfg.EVMRPCURL != "" {
		client, err := eth.NewClient(cfg.EVMRPCURL)
		if err != nil {
			slog.Error("failed to connect to EVM node", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		txFiller = client
		slog.Info("connected to EVM node", "chain_id", client.ChainID())
	}

	unlockService := app.NewUnlockService(stores.Keychain, cfg.WalletID, sessions, provisioner, m)
	unlockService.SetAuditRecorder(auditRecorder)

	state, err := unlockService.KeychainState(ctx)
	if err != nil {
		slog.Error("failed to read keychain state", "error", err)
		os.Exit(1)
	}
	slog.Info("keychain state", "state", state)

	// Initialize API server
	server := api.NewServer(cfg, unlockService, txFiller, m)
	server.SetAuditRecorder(auditRecorder)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}
		unlockService.Lock()

		slog.Info("server stopped")
	}
}
