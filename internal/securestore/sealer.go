package securestore

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	vault "github.com/hashicorp/vault/api"
)

// Sealer protects the biometric factor. On a device this is the hardware
// keystore; on a host it is a KMS reachable only by this process.
type Sealer interface {
	Encrypt(ctx context.Context, data []byte) ([]byte, error)
	Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error)

	// Provider returns the provider name (e.g., "local", "aws-kms", "vault")
	Provider() string
}

// SealerType represents supported sealer providers
type SealerType string

const (
	// SealerLocal uses a local master key (development/simple deployments)
	SealerLocal SealerType = "local"

	// SealerAWSKMS uses AWS KMS
	SealerAWSKMS SealerType = "aws-kms"

	// SealerVault uses the HashiCorp Vault Transit engine
	SealerVault SealerType = "vault"
)

// SealerConfig contains configuration for sealer providers
type SealerConfig struct {
	Provider string

	LocalMasterKeyHex string

	AWSKMSKeyID  string
	AWSKMSRegion string

	VaultAddress    string
	VaultToken      string
	VaultTransitKey string
}

// LocalSealer encrypts with AES-256-GCM under a local master key
type LocalSealer struct {
	masterKey []byte
}

// NewLocalSealer creates a sealer from a hex-encoded 32-byte master key
func NewLocalSealer(masterKeyHex string) (*LocalSealer, error) {
	if masterKeyHex == "" {
		return nil, fmt.Errorf("master key is required for local sealer")
	}

	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex: %w", err)
	}
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}

	return &LocalSealer{masterKey: masterKey}, nil
}

// Encrypt encrypts data using AES-GCM with the local master key
func (s *LocalSealer) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	return sealAESGCM(s.masterKey, data)
}

// Decrypt decrypts data using AES-GCM with the local master key
func (s *LocalSealer) Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error) {
	return openAESGCM(s.masterKey, encryptedData)
}

// Provider returns the provider name
func (s *LocalSealer) Provider() string {
	return string(SealerLocal)
}

// AWSKMSSealer seals with AWS KMS
type AWSKMSSealer struct {
	keyID  string
	client *kms.Client
}

// NewAWSKMSSealer creates a sealer using the default AWS credential chain
func NewAWSKMSSealer(ctx context.Context, keyID, region string) (*AWSKMSSealer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("AWS KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSKMSSealer{
		keyID:  keyID,
		client: kms.NewFromConfig(cfg),
	}, nil
}

// Encrypt encrypts data using AWS KMS
func (s *AWSKMSSealer) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	output, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: data,
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS encrypt failed: %w", err)
	}
	return output.CiphertextBlob, nil
}

// Decrypt decrypts data using AWS KMS
func (s *AWSKMSSealer) Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error) {
	output, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(s.keyID),
		CiphertextBlob: encryptedData,
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS decrypt failed: %w", err)
	}
	return output.Plaintext, nil
}

// Provider returns the provider name
func (s *AWSKMSSealer) Provider() string {
	return string(SealerAWSKMS)
}

// VaultSealer seals with the Vault Transit engine
type VaultSealer struct {
	transitKey string
	client     *vault.Client
}

// NewVaultSealer creates a new Vault Transit sealer
func NewVaultSealer(address, token, transitKey string) (*VaultSealer, error) {
	if address == "" {
		return nil, fmt.Errorf("Vault address is required")
	}
	if token == "" {
		return nil, fmt.Errorf("Vault token is required")
	}
	if transitKey == "" {
		return nil, fmt.Errorf("Vault transit key name is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSealer{
		transitKey: transitKey,
		client:     client,
	}, nil
}

// Encrypt encrypts data using Vault Transit
func (s *VaultSealer) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	path := fmt.Sprintf("transit/encrypt/%s", s.transitKey)
	secret, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("Vault Transit encrypt failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault Transit encrypt returned empty response")
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("Vault Transit encrypt: ciphertext not found in response")
	}

	// vault:v1:... string
	return []byte(ciphertext), nil
}

// Decrypt decrypts data using Vault Transit
func (s *VaultSealer) Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error) {
	path := fmt.Sprintf("transit/decrypt/%s", s.transitKey)
	secret, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"ciphertext": string(encryptedData),
	})
	if err != nil {
		return nil, fmt.Errorf("Vault Transit decrypt failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault Transit decrypt returned empty response")
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("Vault Transit decrypt: plaintext not found in response")
	}

	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, fmt.Errorf("Vault Transit decrypt: failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

// Provider returns the provider name
func (s *VaultSealer) Provider() string {
	return string(SealerVault)
}

// NewSealer creates a Sealer based on the configuration
func NewSealer(ctx context.Context, cfg *SealerConfig) (Sealer, error) {
	provider := SealerType(cfg.Provider)

	switch provider {
	case SealerLocal, "":
		return NewLocalSealer(cfg.LocalMasterKeyHex)

	case SealerAWSKMS:
		return NewAWSKMSSealer(ctx, cfg.AWSKMSKeyID, cfg.AWSKMSRegion)

	case SealerVault:
		return NewVaultSealer(cfg.VaultAddress, cfg.VaultToken, cfg.VaultTransitKey)

	default:
		return nil, fmt.Errorf("unsupported sealer provider: %s (supported: %s, %s, %s)",
			provider, SealerLocal, SealerAWSKMS, SealerVault)
	}
}

var (
	_ Sealer = (*LocalSealer)(nil)
	_ Sealer = (*AWSKMSSealer)(nil)
	_ Sealer = (*VaultSealer)(nil)
)
