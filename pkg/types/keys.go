package types

// KeyType is the algorithm tag the custody backend attaches to a key
type KeyType string

const (
	KeyTypeSecpEthAddr     KeyType = "SecpEthAddr"
	KeyTypeSecpAvaAddr     KeyType = "SecpAvaAddr"
	KeyTypeSecpAvaTestAddr KeyType = "SecpAvaTestAddr"
	KeyTypeSecpBtc         KeyType = "SecpBtc"
	KeyTypeSecpBtcTest     KeyType = "SecpBtcTest"
	KeyTypeMnemonic        KeyType = "Mnemonic"

	KeyTypeEd25519SolanaAddr KeyType = "Ed25519SolanaAddr"
)

// IsAvalanche reports whether the key signs for the X/P chains
func (k KeyType) IsAvalanche() bool {
	return k == KeyTypeSecpAvaAddr || k == KeyTypeSecpAvaTestAddr
}

// DerivationInfo records which mnemonic a key descends from and where
type DerivationInfo struct {
	MnemonicID     string `json:"mnemonic_id"`
	DerivationPath string `json:"derivation_path"`
}

// KeyInfo describes one remote signing key.
// MaterialID is the address derived from the key material.
type KeyInfo struct {
	KeyID          string          `json:"key_id"`
	KeyType        KeyType         `json:"key_type"`
	MaterialID     string          `json:"material_id"`
	PublicKey      string          `json:"public_key"`
	Enabled        bool            `json:"enabled"`
	DerivationInfo *DerivationInfo `json:"derivation_info,omitempty"`
}

// IdentityProof is the backend-issued proof used to authorize provisioning
type IdentityProof struct {
	ID       string    `json:"id,omitempty"`
	Aud      string    `json:"aud,omitempty"`
	Email    string    `json:"email,omitempty"`
	ExpEpoch int64     `json:"exp_epoch"`
	Identity *Identity `json:"identity,omitempty"`
	UserInfo *UserInfo `json:"user_info,omitempty"`
}

// Identity is the OIDC issuer/subject pair behind a proof
type Identity struct {
	Iss string `json:"iss"`
	Sub string `json:"sub"`
}

// UserInfo is the backend user record attached to a proof
type UserInfo struct {
	UserID      string `json:"user_id"`
	Initialized bool   `json:"initialized"`
}

// PubKeys holds the identity public keys of one account as uncompressed hex
// without the 0x prefix. EVM and Bitcoin addresses derive from EVM. SVM is
// the 32-byte Ed25519 key and is absent for wallets created before Solana.
type PubKeys struct {
	EVM string `json:"evm"`
	XP  string `json:"xp,omitempty"`
	SVM string `json:"svm,omitempty"`
}

// VMType selects the chain family a key or address belongs to
type VMType string

const (
	VMTypeEVM     VMType = "EVM"
	VMTypeBitcoin VMType = "BITCOIN"
	VMTypeAVM     VMType = "AVM"
	VMTypePVM     VMType = "PVM"
	VMTypeCoreEth VMType = "CoreEth"
	VMTypeSVM     VMType = "SVM"
)

// RPCMethod is a message signing method a dapp may request
type RPCMethod string

const (
	RPCEthSign              RPCMethod = "eth_sign"
	RPCPersonalSign         RPCMethod = "personal_sign"
	RPCSignTypedData        RPCMethod = "eth_signTypedData"
	RPCSignTypedDataV1      RPCMethod = "eth_signTypedData_v1"
	RPCSignTypedDataV3      RPCMethod = "eth_signTypedData_v3"
	RPCSignTypedDataV4      RPCMethod = "eth_signTypedData_v4"
	RPCAvalancheSignMessage RPCMethod = "avalanche_signMessage"
)

// TypedDataV1Field is one entry of a legacy eth_signTypedData payload
type TypedDataV1Field struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}
