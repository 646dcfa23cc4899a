package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/better-wallet/seedless/internal/remote"
	"github.com/better-wallet/seedless/internal/securestore"
)

// Config holds the daemon configuration. Wallet secrets and session
// credentials live in the secure store, never here.
type Config struct {
	// Server
	Port           int
	APISecretHash  string // bcrypt hash checked against X-API-Secret
	RateLimitRPS   float64
	RateLimitBurst int

	// Wallet
	WalletID  string
	IsTestnet bool

	// Secure store
	StoreBackend string // memory or postgres
	PostgresDSN  string
	PinScryptN   int

	// Sealer for the biometric factor
	SealerProvider        string // local, aws-kms or vault
	SealerLocalMasterKey  string
	SealerAWSKeyID        string
	SealerAWSRegion       string
	SealerVaultAddress    string
	SealerVaultToken      string
	SealerVaultTransitKey string

	// Remote signing
	SignerTransport    string // http, enclave or local
	SeedlessAPIURL     string
	SeedlessOrgID      string
	SignerPlatform     string // dev or aws-nitro
	SignerVsockCID     uint32
	SignerVsockPort    uint32
	SignerTimeout      time.Duration
	SignerRateLimitRPS float64

	ProvisioningAPIURL string
	EVMRPCURL          string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		APISecretHash:  getEnv("API_SECRET_HASH", ""),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		WalletID:  getEnv("WALLET_ID", "default"),
		IsTestnet: getEnvBool("TESTNET", false),

		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		PinScryptN:   getEnvInt("PIN_SCRYPT_N", securestore.DefaultScryptN),

		SealerProvider:        getEnv("SEALER_PROVIDER", "local"),
		SealerLocalMasterKey:  getEnv("SEALER_LOCAL_MASTER_KEY", ""),
		SealerAWSKeyID:        getEnv("SEALER_AWS_KEY_ID", ""),
		SealerAWSRegion:       getEnv("SEALER_AWS_REGION", ""),
		SealerVaultAddress:    getEnv("SEALER_VAULT_ADDRESS", ""),
		SealerVaultToken:      getEnv("SEALER_VAULT_TOKEN", ""),
		SealerVaultTransitKey: getEnv("SEALER_VAULT_TRANSIT_KEY", ""),

		SignerTransport:    getEnv("SIGNER_TRANSPORT", "http"),
		SeedlessAPIURL:     getEnv("SEEDLESS_API_URL", ""),
		SeedlessOrgID:      getEnv("SEEDLESS_ORG_ID", ""),
		SignerPlatform:     getEnv("SIGNER_PLATFORM", "dev"),
		SignerVsockCID:     uint32(getEnvInt("SIGNER_VSOCK_CID", 0)),
		SignerVsockPort:    uint32(getEnvInt("SIGNER_VSOCK_PORT", 5000)),
		SignerTimeout:      getEnvDuration("SIGNER_TIMEOUT", 30*time.Second),
		SignerRateLimitRPS: getEnvFloat("SIGNER_RATE_LIMIT_RPS", 0),

		ProvisioningAPIURL: getEnv("PROVISIONING_API_URL", ""),
		EVMRPCURL:          getEnv("EVM_RPC_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	if c.WalletID == "" {
		return fmt.Errorf("WALLET_ID is required")
	}

	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND is 'postgres'")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be 'memory' or 'postgres', got: %s", c.StoreBackend)
	}

	if c.PinScryptN < 2 || c.PinScryptN&(c.PinScryptN-1) != 0 {
		return fmt.Errorf("PIN_SCRYPT_N must be a power of two greater than 1, got: %d", c.PinScryptN)
	}

	switch securestore.SealerType(c.SealerProvider) {
	case securestore.SealerLocal:
		if c.SealerLocalMasterKey == "" {
			return fmt.Errorf("SEALER_LOCAL_MASTER_KEY is required when SEALER_PROVIDER is 'local'")
		}
	case securestore.SealerAWSKMS:
		if c.SealerAWSKeyID == "" {
			return fmt.Errorf("SEALER_AWS_KEY_ID is required when SEALER_PROVIDER is 'aws-kms'")
		}
	case securestore.SealerVault:
		if c.SealerVaultAddress == "" || c.SealerVaultToken == "" || c.SealerVaultTransitKey == "" {
			return fmt.Errorf("SEALER_VAULT_ADDRESS, SEALER_VAULT_TOKEN and SEALER_VAULT_TRANSIT_KEY are required when SEALER_PROVIDER is 'vault'")
		}
	default:
		return fmt.Errorf("SEALER_PROVIDER must be 'local', 'aws-kms' or 'vault', got: %s", c.SealerProvider)
	}

	switch c.SignerTransport {
	case "http":
		if c.SeedlessAPIURL == "" {
			return fmt.Errorf("SEEDLESS_API_URL is required when SIGNER_TRANSPORT is 'http'")
		}
	case "enclave":
		switch remote.Platform(c.SignerPlatform) {
		case remote.PlatformDev:
		case remote.PlatformAWSNitro:
			if c.SignerVsockCID == 0 {
				return fmt.Errorf("SIGNER_VSOCK_CID is required when SIGNER_PLATFORM is 'aws-nitro'")
			}
		default:
			return fmt.Errorf("SIGNER_PLATFORM must be 'dev' or 'aws-nitro', got: %s", c.SignerPlatform)
		}
	case "local":
	default:
		return fmt.Errorf("SIGNER_TRANSPORT must be 'http', 'enclave' or 'local', got: %s", c.SignerTransport)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// SealerConfig returns the sealer settings
func (c *Config) SealerConfig() *securestore.SealerConfig {
	return &securestore.SealerConfig{
		Provider:          c.SealerProvider,
		LocalMasterKeyHex: c.SealerLocalMasterKey,
		AWSKMSKeyID:       c.SealerAWSKeyID,
		AWSKMSRegion:      c.SealerAWSRegion,
		VaultAddress:      c.SealerVaultAddress,
		VaultToken:        c.SealerVaultToken,
		VaultTransitKey:   c.SealerVaultTransitKey,
	}
}

// DialerConfig returns the enclave transport settings
func (c *Config) DialerConfig() *remote.DialerConfig {
	return &remote.DialerConfig{
		Platform:          c.SignerPlatform,
		VsockCID:          c.SignerVsockCID,
		Port:              c.SignerVsockPort,
		ConnectionTimeout: c.SignerTimeout,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}
