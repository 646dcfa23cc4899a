// Package validation checks request input at the API boundary, before any
// key material or remote session is touched.
package validation

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/pkg/types"
)

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// pinPattern accepts the numeric PINs the wallet UI produces
var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// MaxAccountIndex bounds account indices accepted from clients
const MaxAccountIndex = 1 << 16

// ValidatePIN checks the PIN format. Whether the PIN is correct is decided
// by the keychain, not here.
func ValidatePIN(pin string) error {
	if pin == "" {
		return fmt.Errorf("PIN cannot be empty")
	}
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("PIN must be 6 digits")
	}
	return nil
}

// ValidateAccessType validates an unlock access type
func ValidateAccessType(access types.AccessType) error {
	if !access.IsValid() {
		return fmt.Errorf("access type must be %q or %q, got: %q", types.AccessTypePIN, types.AccessTypeBIO, access)
	}
	return nil
}

// ValidateAccountIndex validates a wallet account index
func ValidateAccountIndex(index int) error {
	if index < 0 {
		return fmt.Errorf("account index cannot be negative")
	}
	if index >= MaxAccountIndex {
		return fmt.Errorf("account index too large: maximum %d", MaxAccountIndex-1)
	}
	return nil
}

// ValidatePublicKeyHex validates a hex encoded uncompressed secp256k1 key
func ValidatePublicKeyHex(pub string) error {
	raw, err := crypto.DecodePubKeyHex(pub)
	if err != nil {
		return err
	}
	return crypto.ValidateUncompressedPubKey(raw)
}

// ValidateEthereumAddress validates an Ethereum address format
func ValidateEthereumAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !EthereumAddressPattern.MatchString(address) {
		return fmt.Errorf("invalid Ethereum address format: must be 0x followed by 40 hex characters")
	}

	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid Ethereum address")
	}

	// Prevent sending to zero address (common mistake)
	if strings.ToLower(address) == "0x0000000000000000000000000000000000000000" {
		return fmt.Errorf("cannot send to zero address")
	}

	return nil
}

// ValidateChainID validates an EVM chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	return nil
}

// ValidateTransactionValue validates a transaction value
func ValidateTransactionValue(value *big.Int, maxValue *big.Int) error {
	if value == nil {
		return fmt.Errorf("value cannot be nil")
	}

	if value.Sign() < 0 {
		return fmt.Errorf("value cannot be negative")
	}

	if maxValue != nil && value.Cmp(maxValue) > 0 {
		return fmt.Errorf("value exceeds maximum allowed: %s > %s", value.String(), maxValue.String())
	}

	return nil
}

// ValidateGasParameters validates gas-related parameters
func ValidateGasParameters(gasLimit uint64, gasFeeCap, gasTipCap *big.Int) error {
	if gasLimit < 21000 {
		return fmt.Errorf("gas limit too low: minimum 21000 for transfers")
	}

	// Maximum reasonable gas limit (to prevent excessive fees)
	if gasLimit > 30000000 {
		return fmt.Errorf("gas limit too high: maximum 30000000")
	}

	if gasFeeCap == nil || gasTipCap == nil {
		return fmt.Errorf("gas fee cap and tip cap are required")
	}

	if gasFeeCap.Sign() <= 0 {
		return fmt.Errorf("gas fee cap must be positive")
	}

	if gasTipCap.Sign() < 0 {
		return fmt.Errorf("gas tip cap cannot be negative")
	}

	if gasTipCap.Cmp(gasFeeCap) > 0 {
		return fmt.Errorf("gas tip cap cannot exceed gas fee cap")
	}

	// 100000 Gwei
	maxGasPrice := new(big.Int).SetUint64(100000000000000)
	if gasFeeCap.Cmp(maxGasPrice) > 0 {
		return fmt.Errorf("gas fee cap too high: maximum 100000 Gwei")
	}

	return nil
}

// ValidateTransactionData validates transaction data (calldata)
func ValidateTransactionData(data []byte, maxDataSize int) error {
	if maxDataSize > 0 && len(data) > maxDataSize {
		return fmt.Errorf("transaction data too large: %d bytes > %d bytes max", len(data), maxDataSize)
	}

	return nil
}

// TransactionValidationConfig holds configuration for transaction validation
type TransactionValidationConfig struct {
	MaxValue        *big.Int // Maximum transaction value (nil = no limit)
	MaxDataSize     int      // Maximum data size in bytes (0 = no limit)
	AllowedChainIDs []int64  // Allowed chain IDs (nil/empty = all allowed)
}

// ValidateEvmTransaction checks an unsigned EVM transaction before it is
// sent for signing. Contract creation (nil recipient) is allowed.
func ValidateEvmTransaction(tx *ethtypes.Transaction, chainID int64, config *TransactionValidationConfig) error {
	if tx == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	if to := tx.To(); to != nil {
		if err := ValidateEthereumAddress(to.Hex()); err != nil {
			return fmt.Errorf("invalid recipient address: %w", err)
		}
	}

	if err := ValidateChainID(chainID); err != nil {
		return fmt.Errorf("invalid chain ID: %w", err)
	}
	if tx.Type() != ethtypes.LegacyTxType && tx.ChainId().Int64() != chainID {
		return fmt.Errorf("transaction chain ID %s does not match %d", tx.ChainId(), chainID)
	}

	if config != nil && len(config.AllowedChainIDs) > 0 {
		allowed := false
		for _, allowedID := range config.AllowedChainIDs {
			if chainID == allowedID {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("chain ID %d not allowed", chainID)
		}
	}

	var maxValue *big.Int
	maxDataSize := 0
	if config != nil {
		maxValue = config.MaxValue
		maxDataSize = config.MaxDataSize
	}
	if err := ValidateTransactionValue(tx.Value(), maxValue); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	if err := ValidateGasParameters(tx.Gas(), tx.GasFeeCap(), tx.GasTipCap()); err != nil {
		return fmt.Errorf("invalid gas parameters: %w", err)
	}

	if err := ValidateTransactionData(tx.Data(), maxDataSize); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}

	return nil
}

// ValidateBtcTransactionRequest checks inputs and outputs before a PSBT is built
func ValidateBtcTransactionRequest(req *types.BtcTransactionRequest) error {
	if req == nil || len(req.Inputs) == 0 {
		return fmt.Errorf("at least one input is required")
	}
	if len(req.Outputs) == 0 {
		return fmt.Errorf("at least one output is required")
	}

	seen := make(map[string]bool, len(req.Inputs))
	for i, in := range req.Inputs {
		if len(in.TxHash) != 64 {
			return fmt.Errorf("input %d: tx hash must be 64 hex characters", i)
		}
		if _, err := hex.DecodeString(in.TxHash); err != nil {
			return fmt.Errorf("input %d: tx hash is not hex", i)
		}
		if in.Value <= 0 {
			return fmt.Errorf("input %d: value must be positive", i)
		}
		if _, err := hex.DecodeString(in.Script); err != nil || in.Script == "" {
			return fmt.Errorf("input %d: script must be non-empty hex", i)
		}
		outpoint := fmt.Sprintf("%s:%d", strings.ToLower(in.TxHash), in.Index)
		if seen[outpoint] {
			return fmt.Errorf("input %d: duplicate outpoint %s", i, outpoint)
		}
		seen[outpoint] = true
	}

	for i, out := range req.Outputs {
		if out.Address == "" {
			return fmt.Errorf("output %d: address is required", i)
		}
		if out.Value <= 0 {
			return fmt.Errorf("output %d: value must be positive", i)
		}
	}

	return nil
}
