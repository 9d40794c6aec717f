package blockchain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"bridge-settle.backend/internal/usecases/reconcile"
)

// ChainReceiptFetcher implements reconcile.ReceiptFetcher over the
// ClientFactory's per-chain EVM clients, keyed by chain id via a
// caller-provided rpcURL map (the same chain-to-RPC association
// ClientFactory itself is built around).
type ChainReceiptFetcher struct {
	factory *ClientFactory
	rpcURLs map[string]string // chain -> rpc url
}

func NewChainReceiptFetcher(factory *ClientFactory, rpcURLs map[string]string) *ChainReceiptFetcher {
	return &ChainReceiptFetcher{factory: factory, rpcURLs: rpcURLs}
}

func (c *ChainReceiptFetcher) FetchReceiptStatus(ctx context.Context, chain, txHash string) (reconcile.ReceiptStatus, error) {
	rpcURL, ok := c.rpcURLs[chain]
	if !ok {
		return reconcile.ReceiptPending, errors.New("no rpc url configured for chain " + chain)
	}
	client, err := c.factory.GetEVMClient(rpcURL)
	if err != nil {
		return reconcile.ReceiptPending, err
	}

	receipt, err := client.GetTransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return reconcile.ReceiptPending, nil
	}
	if err != nil {
		return reconcile.ReceiptPending, err
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return reconcile.ReceiptSuccess, nil
	}
	return reconcile.ReceiptFailed, nil
}
