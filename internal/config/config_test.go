package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                 8080,
		RateLimitRPS:         20,
		RateLimitBurst:       40,
		WalletID:             "default",
		StoreBackend:         "postgres",
		PostgresDSN:          "postgres://localhost:5432/test",
		PinScryptN:           1 << 15,
		SealerProvider:       "local",
		SealerLocalMasterKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		SignerTransport:      "http",
		SeedlessAPIURL:       "https://signer.example.com",
		SignerPlatform:       "dev",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid http signer with postgres store",
			mutate: func(c *Config) {},
		},
		{
			name: "valid memory store without DSN",
			mutate: func(c *Config) {
				c.StoreBackend = "memory"
				c.PostgresDSN = ""
			},
		},
		{
			name: "valid AWS KMS sealer",
			mutate: func(c *Config) {
				c.SealerProvider = "aws-kms"
				c.SealerAWSKeyID = "alias/wallet"
			},
		},
		{
			name: "valid Vault sealer",
			mutate: func(c *Config) {
				c.SealerProvider = "vault"
				c.SealerVaultAddress = "http://localhost:8200"
				c.SealerVaultToken = "s.token123"
				c.SealerVaultTransitKey = "wallet"
			},
		},
		{
			name: "valid enclave signer on aws-nitro",
			mutate: func(c *Config) {
				c.SignerTransport = "enclave"
				c.SignerPlatform = "aws-nitro"
				c.SignerVsockCID = 16
			},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: true,
			errMsg:  "PORT must be between",
		},
		{
			name:    "missing wallet id",
			mutate:  func(c *Config) { c.WalletID = "" },
			wantErr: true,
			errMsg:  "WALLET_ID is required",
		},
		{
			name:    "missing PostgresDSN",
			mutate:  func(c *Config) { c.PostgresDSN = "" },
			wantErr: true,
			errMsg:  "POSTGRES_DSN is required",
		},
		{
			name:    "invalid store backend",
			mutate:  func(c *Config) { c.StoreBackend = "sqlite" },
			wantErr: true,
			errMsg:  "STORE_BACKEND must be",
		},
		{
			name:    "scrypt cost not a power of two",
			mutate:  func(c *Config) { c.PinScryptN = 1000 },
			wantErr: true,
			errMsg:  "PIN_SCRYPT_N",
		},
		{
			name:    "local sealer missing master key",
			mutate:  func(c *Config) { c.SealerLocalMasterKey = "" },
			wantErr: true,
			errMsg:  "SEALER_LOCAL_MASTER_KEY",
		},
		{
			name:    "AWS sealer missing key ID",
			mutate:  func(c *Config) { c.SealerProvider = "aws-kms" },
			wantErr: true,
			errMsg:  "SEALER_AWS_KEY_ID is required",
		},
		{
			name: "Vault sealer missing transit key",
			mutate: func(c *Config) {
				c.SealerProvider = "vault"
				c.SealerVaultAddress = "http://localhost:8200"
				c.SealerVaultToken = "token"
			},
			wantErr: true,
			errMsg:  "SEALER_VAULT_TRANSIT_KEY",
		},
		{
			name:    "unsupported sealer",
			mutate:  func(c *Config) { c.SealerProvider = "hsm" },
			wantErr: true,
			errMsg:  "SEALER_PROVIDER must be",
		},
		{
			name:    "http signer missing API URL",
			mutate:  func(c *Config) { c.SeedlessAPIURL = "" },
			wantErr: true,
			errMsg:  "SEEDLESS_API_URL is required",
		},
		{
			name: "aws-nitro missing vsock CID",
			mutate: func(c *Config) {
				c.SignerTransport = "enclave"
				c.SignerPlatform = "aws-nitro"
			},
			wantErr: true,
			errMsg:  "SIGNER_VSOCK_CID is required",
		},
		{
			name: "unsupported enclave platform",
			mutate: func(c *Config) {
				c.SignerTransport = "enclave"
				c.SignerPlatform = "sgx"
			},
			wantErr: true,
			errMsg:  "SIGNER_PLATFORM must be",
		},
		{
			name:    "unsupported transport",
			mutate:  func(c *Config) { c.SignerTransport = "grpc" },
			wantErr: true,
			errMsg:  "SIGNER_TRANSPORT must be",
		},
		{
			name:    "non-positive rate limit",
			mutate:  func(c *Config) { c.RateLimitBurst = 0 },
			wantErr: true,
			errMsg:  "RATE_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("valid configuration from environment", func(t *testing.T) {
		t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/test")
		t.Setenv("SEALER_LOCAL_MASTER_KEY", "ab")
		t.Setenv("SEEDLESS_API_URL", "https://signer.example.com")
		t.Setenv("SEEDLESS_ORG_ID", "Org#1")
		t.Setenv("WALLET_ID", "wallet-1")
		t.Setenv("SIGNER_TIMEOUT", "5s")
		t.Setenv("SIGNER_RATE_LIMIT_RPS", "2.5")
		t.Setenv("TESTNET", "true")
		t.Setenv("PORT", "9090")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/test", cfg.PostgresDSN)
		assert.Equal(t, "wallet-1", cfg.WalletID)
		assert.Equal(t, "Org#1", cfg.SeedlessOrgID)
		assert.Equal(t, 5*time.Second, cfg.SignerTimeout)
		assert.Equal(t, 2.5, cfg.SignerRateLimitRPS)
		assert.True(t, cfg.IsTestnet)
		assert.Equal(t, 9090, cfg.Port)
	})

	t.Run("default values", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("SEALER_LOCAL_MASTER_KEY", "ab")
		t.Setenv("SEEDLESS_API_URL", "https://signer.example.com")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "default", cfg.WalletID)
		assert.Equal(t, "local", cfg.SealerProvider)
		assert.Equal(t, "http", cfg.SignerTransport)
		assert.Equal(t, 30*time.Second, cfg.SignerTimeout)
		assert.Equal(t, uint32(5000), cfg.SignerVsockPort)
		assert.Equal(t, 1<<15, cfg.PinScryptN)
		assert.False(t, cfg.IsTestnet)
	})

	t.Run("missing required POSTGRES_DSN", func(t *testing.T) {
		t.Setenv("POSTGRES_DSN", "")
		t.Setenv("STORE_BACKEND", "postgres")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "POSTGRES_DSN is required")
	})
}

func TestConfig_DerivedSettings(t *testing.T) {
	cfg := validConfig()
	cfg.SignerVsockCID = 16
	cfg.SignerVsockPort = 7000
	cfg.SignerTimeout = time.Second

	sealer := cfg.SealerConfig()
	assert.Equal(t, "local", sealer.Provider)
	assert.Equal(t, cfg.SealerLocalMasterKey, sealer.LocalMasterKeyHex)

	dialer := cfg.DialerConfig()
	assert.Equal(t, "dev", dialer.Platform)
	assert.Equal(t, uint32(16), dialer.VsockCID)
	assert.Equal(t, uint32(7000), dialer.Port)
	assert.Equal(t, time.Second, dialer.ConnectionTimeout)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_GET_ENV_VAR"
	defer os.Unsetenv(key)

	t.Run("returns default when env not set", func(t *testing.T) {
		os.Unsetenv(key)
		result := getEnv(key, "default-value")
		assert.Equal(t, "default-value", result)
	})

	t.Run("returns env value when set", func(t *testing.T) {
		os.Setenv(key, "actual-value")
		result := getEnv(key, "default-value")
		assert.Equal(t, "actual-value", result)
	})

	t.Run("returns default when env is empty string", func(t *testing.T) {
		os.Setenv(key, "")
		result := getEnv(key, "default-value")
		assert.Equal(t, "default-value", result)
	})
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT_VAR"
	defer os.Unsetenv(key)

	t.Run("returns default when env not set", func(t *testing.T) {
		os.Unsetenv(key)
		result := getEnvInt(key, 42)
		assert.Equal(t, 42, result)
	})

	t.Run("returns parsed int when set", func(t *testing.T) {
		os.Setenv(key, "100")
		result := getEnvInt(key, 42)
		assert.Equal(t, 100, result)
	})

	t.Run("returns default when value is not a valid int", func(t *testing.T) {
		os.Setenv(key, "not-a-number")
		result := getEnvInt(key, 42)
		assert.Equal(t, 42, result)
	})

	t.Run("returns default when value is empty", func(t *testing.T) {
		os.Setenv(key, "")
		result := getEnvInt(key, 42)
		assert.Equal(t, 42, result)
	})

	t.Run("handles negative numbers", func(t *testing.T) {
		os.Setenv(key, "-10")
		result := getEnvInt(key, 42)
		assert.Equal(t, -10, result)
	})
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_GET_ENV_BOOL_VAR"
	defer os.Unsetenv(key)

	tests := []struct {
		name     string
		envValue string
		setEnv   bool
		defValue bool
		expected bool
	}{
		{
			name:     "returns default when env not set",
			setEnv:   false,
			defValue: true,
			expected: true,
		},
		{
			name:     "true value",
			envValue: "true",
			setEnv:   true,
			defValue: false,
			expected: true,
		},
		{
			name:     "TRUE value (case insensitive)",
			envValue: "TRUE",
			setEnv:   true,
			defValue: false,
			expected: true,
		},
		{
			name:     "1 value",
			envValue: "1",
			setEnv:   true,
			defValue: false,
			expected: true,
		},
		{
			name:     "yes value",
			envValue: "yes",
			setEnv:   true,
			defValue: false,
			expected: true,
		},
		{
			name:     "YES value (case insensitive)",
			envValue: "YES",
			setEnv:   true,
			defValue: false,
			expected: true,
		},
		{
			name:     "false value",
			envValue: "false",
			setEnv:   true,
			defValue: true,
			expected: false,
		},
		{
			name:     "0 value",
			envValue: "0",
			setEnv:   true,
			defValue: true,
			expected: false,
		},
		{
			name:     "no value",
			envValue: "no",
			setEnv:   true,
			defValue: true,
			expected: false,
		},
		{
			name:     "empty string returns default",
			envValue: "",
			setEnv:   true,
			defValue: true,
			expected: true,
		},
		{
			name:     "invalid value returns false",
			envValue: "invalid",
			setEnv:   true,
			defValue: true,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			result := getEnvBool(key, tt.defValue)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetEnvFloatAndDuration(t *testing.T) {
	t.Setenv("TEST_FLOAT", "1.5")
	t.Setenv("TEST_BAD_FLOAT", "fast")
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_BAD_DURATION", "soon")

	assert.Equal(t, 1.5, getEnvFloat("TEST_FLOAT", 3))
	assert.Equal(t, 3.0, getEnvFloat("TEST_BAD_FLOAT", 3))
	assert.Equal(t, 3.0, getEnvFloat("TEST_UNSET_FLOAT", 3))

	assert.Equal(t, 250*time.Millisecond, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_BAD_DURATION", time.Second))
}
