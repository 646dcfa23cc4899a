// Package main runs the development signing backend.
//
// It answers the enclave protocol (length-prefixed JSON over TCP) with keys
// derived in memory from a BIP-39 mnemonic, and optionally serves the account
// provisioning API. It is meant for local development with
// SIGNER_TRANSPORT=enclave and SIGNER_PLATFORM=dev.
//
// With -onboard-pin it instead writes a legacy PIN-protected wallet secret
// into the configured secure store and exits, so the daemon has a wallet to
// migrate on its first unlock.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/better-wallet/seedless/internal/app"
	"github.com/better-wallet/seedless/internal/config"
	"github.com/better-wallet/seedless/internal/devsigner"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/remote"
	"github.com/better-wallet/seedless/internal/validation"
)

func main() {
	var (
		port             = flag.Uint("port", 5000, "Enclave protocol TCP port")
		provisioningPort = flag.Uint("provisioning-port", 5080, "Provisioning API port (0 disables)")
		token            = flag.String("token", os.Getenv("DEVSIGNER_TOKEN"), "Session token required on every request")
		testnet          = flag.Bool("testnet", os.Getenv("TESTNET") == "true", "Use Fuji/testnet key types")
		onboardPin       = flag.String("onboard-pin", "", "Store a legacy wallet secret under this PIN and exit")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	mnemonic := os.Getenv("DEVSIGNER_MNEMONIC")
	if mnemonic == "" {
		generated, err := devsigner.GenerateMnemonic()
		if err != nil {
			log.Fatalf("Failed to generate mnemonic: %v", err)
		}
		mnemonic = generated
		slog.Warn("DEVSIGNER_MNEMONIC not set; using a fresh mnemonic that is lost on exit")
	}

	signer, err := devsigner.New(mnemonic, *testnet)
	if err != nil {
		log.Fatalf("Failed to initialize signer: %v", err)
	}
	slog.Info("dev signer ready", "mnemonic_id", signer.MnemonicID(), "testnet", *testnet)

	if *onboardPin != "" {
		if err := onboard(*onboardPin, *token, mnemonic); err != nil {
			log.Fatalf("Onboarding failed: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, signer, uint32(*port), uint32(*provisioningPort), *token); err != nil {
		slog.Error("dev signer stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("dev signer stopped")
}

func run(ctx context.Context, signer *devsigner.Signer, port, provisioningPort uint32, token string) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("serving enclave protocol", "port", port)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return signer.Serve(ctx, ln, token)
	})

	if provisioningPort != 0 {
		srv := &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", provisioningPort),
			Handler:           signer.ProvisioningHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("serving provisioning API", "port", provisioningPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// onboard writes the wallet secret the daemon's transport expects as legacy
// PIN-protected data
func onboard(pin, token, mnemonic string) error {
	if err := validation.ValidatePIN(pin); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := logger.WithWalletID(context.Background(), cfg.WalletID)

	var secret []byte
	switch cfg.SignerTransport {
	case "local":
		secret = []byte(mnemonic)
	case "enclave":
		if token == "" {
			return fmt.Errorf("-token is required for the enclave transport")
		}
		if secret, err = json.Marshal(remote.SessionSecret{Token: token}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("onboarding supports SIGNER_TRANSPORT local or enclave, got %s", cfg.SignerTransport)
	}

	keychain, closeStore, err := app.OpenKeychain(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := keychain.StoreLegacyWalletWithPin(ctx, secret, pin); err != nil {
		return err
	}
	logger.Info(ctx, "legacy wallet stored", "transport", cfg.SignerTransport)
	return nil
}
