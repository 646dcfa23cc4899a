package remote

import (
	"sort"
	"strconv"
	"strings"

	"github.com/better-wallet/seedless/internal/crypto"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// accountIndex returns the account component of a derivation path: the last
// one for secp256k1 keys, the third for Solana's m/44'/501'/i'/0'.
func accountIndex(keyType types.KeyType, path string) (int, bool) {
	parts := strings.Split(path, "/")
	component := parts[len(parts)-1]
	if keyType == types.KeyTypeEd25519SolanaAddr {
		if len(parts) != 5 {
			return 0, false
		}
		component = parts[3]
	}
	idx, err := strconv.Atoi(strings.TrimSuffix(component, "'"))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// TransformKeyInfosToPubKeys groups the session's derived EVM, X/P and Solana
// keys by mnemonic and account index. It returns the accounts of the first
// mnemonic, index 0 first, stopping at the first index without both the EVM
// and the X/P key. The Solana key is optional.
func TransformKeyInfosToPubKeys(keys []types.KeyInfo) ([]types.PubKeys, error) {
	type pair struct{ evm, xp, svm string }

	var mnemonics []string
	byMnemonic := make(map[string]map[int]*pair)

	for _, k := range keys {
		if !k.Enabled || k.DerivationInfo == nil || k.DerivationInfo.DerivationPath == "" {
			continue
		}
		if k.KeyType != types.KeyTypeSecpEthAddr && !k.KeyType.IsAvalanche() && k.KeyType != types.KeyTypeEd25519SolanaAddr {
			continue
		}
		idx, ok := accountIndex(k.KeyType, k.DerivationInfo.DerivationPath)
		if !ok {
			continue
		}

		mid := k.DerivationInfo.MnemonicID
		accounts, seen := byMnemonic[mid]
		if !seen {
			accounts = make(map[int]*pair)
			byMnemonic[mid] = accounts
			mnemonics = append(mnemonics, mid)
		}
		p := accounts[idx]
		if p == nil {
			p = &pair{}
			accounts[idx] = p
		}
		switch k.KeyType {
		case types.KeyTypeSecpEthAddr:
			p.evm = crypto.Strip0x(k.PublicKey)
		case types.KeyTypeEd25519SolanaAddr:
			p.svm = crypto.Strip0x(k.PublicKey)
		default:
			p.xp = crypto.Strip0x(k.PublicKey)
		}
	}

	if len(mnemonics) == 0 {
		return nil, apperrors.ErrAccountsNotCreated
	}

	accounts := byMnemonic[mnemonics[0]]
	indices := make([]int, 0, len(accounts))
	for idx := range accounts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var out []types.PubKeys
	for want, idx := range indices {
		p := accounts[idx]
		if idx != want || p.evm == "" || p.xp == "" {
			break
		}
		out = append(out, types.PubKeys{EVM: p.evm, XP: p.xp, SVM: p.svm})
	}

	if len(out) == 0 {
		return nil, apperrors.ErrAddressNotFound
	}
	return out, nil
}
