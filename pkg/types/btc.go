package types

// UTXO is an unspent output consumed by a Bitcoin transaction
type UTXO struct {
	TxHash   string `json:"tx_hash"`
	Index    uint32 `json:"index"`
	Value    int64  `json:"value"`
	Script   string `json:"script"`
	Sequence uint32 `json:"sequence,omitempty"`
}

// BtcOutput is a payment to an address
type BtcOutput struct {
	Address string `json:"address"`
	Value   int64  `json:"value"`
}

// BtcTransactionRequest is an unsigned Bitcoin transaction
type BtcTransactionRequest struct {
	Inputs   []UTXO      `json:"inputs"`
	Outputs  []BtcOutput `json:"outputs"`
	LockTime uint32      `json:"lock_time,omitempty"`
}

// BtcSignRequest asks the custody backend for one segwit input signature
type BtcSignRequest struct {
	SigKind BtcSigKind      `json:"sig_kind"`
	Tx      BtcTxDescriptor `json:"tx"`
}

// BtcSigKind selects the sighash algorithm
type BtcSigKind struct {
	Segwit *BtcSegwitSig `json:"Segwit,omitempty"`
}

// BtcSegwitSig carries the BIP-143 inputs for a single signature
type BtcSegwitSig struct {
	InputIndex int    `json:"input_index"`
	ScriptCode string `json:"script_code"`
	Value      int64  `json:"value"`
	Sighash    string `json:"sighash"`
}

// BtcTxDescriptor is a backend-agnostic view of the transaction being signed
type BtcTxDescriptor struct {
	Version  int32      `json:"version"`
	LockTime uint32     `json:"lock_time"`
	Input    []BtcTxIn  `json:"input"`
	Output   []BtcTxOut `json:"output"`
}

// BtcTxIn points at a previous output as "txid:vout"
type BtcTxIn struct {
	PreviousOutput string   `json:"previous_output"`
	ScriptSig      string   `json:"script_sig"`
	Sequence       uint32   `json:"sequence"`
	Witness        []string `json:"witness"`
}

// BtcTxOut is an output as value plus hex script
type BtcTxOut struct {
	Value        int64  `json:"value"`
	ScriptPubkey string `json:"script_pubkey"`
}
