// Package eth fills unsigned EVM transactions from an RPC node before they
// are signed. It never sees keys and never broadcasts.
package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// TxRequest is an EVM transaction as sent by a client. Nil fields are
// filled from the node.
type TxRequest struct {
	ChainID   *hexutil.Big    `json:"chainId"`
	Nonce     *hexutil.Uint64 `json:"nonce,omitempty"`
	To        *common.Address `json:"to,omitempty"`
	Value     *hexutil.Big    `json:"value,omitempty"`
	Data      hexutil.Bytes   `json:"data,omitempty"`
	Gas       *hexutil.Uint64 `json:"gas,omitempty"`
	GasFeeCap *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	GasTipCap *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
}

// backend is the subset of ethclient.Client used here
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	Close()
}

// Client wraps an Ethereum RPC client
type Client struct {
	client  backend
	chainID *big.Int
}

// NewClient creates a new EVM client and auto-detects chain ID
func NewClient(rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	c, err := newClient(context.Background(), client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func newClient(ctx context.Context, b backend) (*Client, error) {
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return &Client{client: b, chainID: chainID}, nil
}

// ChainID returns the chain ID
func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// ChainIDBig returns the chain ID as big.Int
func (c *Client) ChainIDBig() *big.Int {
	return c.chainID
}

// Fill completes req for sender and returns an EIP-1559 transaction.
// A request for another chain than the node's is rejected.
func (c *Client) Fill(ctx context.Context, from common.Address, req *TxRequest) (*types.Transaction, error) {
	if req.ChainID != nil && req.ChainID.ToInt().Cmp(c.chainID) != 0 {
		return nil, fmt.Errorf("chain ID %s does not match node chain ID %s", req.ChainID.ToInt(), c.chainID)
	}

	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = uint64(*req.Nonce)
	} else {
		n, err := c.client.PendingNonceAt(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce: %w", err)
		}
		nonce = n
	}

	var gas uint64
	if req.Gas != nil {
		gas = uint64(*req.Gas)
	} else {
		estimated, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: req.To, Value: value, Data: req.Data})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		// Add 20% buffer for safety
		gas = estimated * 120 / 100
	}

	var tipCap *big.Int
	if req.GasTipCap != nil {
		tipCap = req.GasTipCap.ToInt()
	} else {
		tip, err := c.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
		}
		tipCap = tip
	}

	var feeCap *big.Int
	if req.GasFeeCap != nil {
		feeCap = req.GasFeeCap.ToInt()
	} else {
		price, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		feeCap = new(big.Int).Add(new(big.Int).Mul(price, big.NewInt(2)), tipCap)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        req.To,
		Value:     value,
		Data:      req.Data,
	}), nil
}

// Complete reports whether req can be built without a node
func (req *TxRequest) Complete() bool {
	return req.ChainID != nil && req.Nonce != nil && req.Gas != nil && req.GasFeeCap != nil && req.GasTipCap != nil
}

// Build turns a complete request into an EIP-1559 transaction
func (req *TxRequest) Build() (*types.Transaction, error) {
	if !req.Complete() {
		return nil, fmt.Errorf("chainId, nonce, gas, maxFeePerGas and maxPriorityFeePerGas are required without an RPC node")
	}
	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   req.ChainID.ToInt(),
		Nonce:     uint64(*req.Nonce),
		GasTipCap: req.GasTipCap.ToInt(),
		GasFeeCap: req.GasFeeCap.ToInt(),
		Gas:       uint64(*req.Gas),
		To:        req.To,
		Value:     value,
		Data:      req.Data,
	}), nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}
