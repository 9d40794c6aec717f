package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/internal/usecases/sequencer"
)

const defaultGasLimit = 300_000

// Account is a single signing identity on one EVM chain: one (chainId,
// privateKey) pair, per spec §4.3/§4.4. It persists the SerialRelation
// anchor before ever risking a broadcast, so a crash between signing and
// the node's acknowledgement is recoverable on restart.
type Account struct {
	evm     *EVMClient
	chain   string
	privKey *ecdsa.PrivateKey
	address common.Address

	nonces  *NonceManager
	serials domainrepos.SerialRelationRepository

	routerAddress        common.Address
	minFeePerGas         *big.Int
	minPriorityFeePerGas *big.Int
	feeTimeout           time.Duration
}

// NewAccount builds an Account from a raw hex-encoded private key (already
// decrypted by the caller via DecryptSignerKey).
func NewAccount(
	evm *EVMClient,
	chain string,
	privateKeyHex string,
	nonces *NonceManager,
	serials domainrepos.SerialRelationRepository,
	routerAddress string,
	minFeePerGas, minPriorityFeePerGas string,
	feeTimeout time.Duration,
) (*Account, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer private key: %w", err)
	}

	minFee, ok := new(big.Int).SetString(minFeePerGas, 10)
	if !ok {
		return nil, fmt.Errorf("invalid minFeePerGas: %s", minFeePerGas)
	}
	minTip, ok := new(big.Int).SetString(minPriorityFeePerGas, 10)
	if !ok {
		return nil, fmt.Errorf("invalid minPriorityFeePerGas: %s", minPriorityFeePerGas)
	}

	return &Account{
		evm:                  evm,
		chain:                chain,
		privKey:              privKey,
		address:              crypto.PubkeyToAddress(privKey.PublicKey),
		nonces:               nonces,
		serials:              serials,
		routerAddress:        common.HexToAddress(routerAddress),
		minFeePerGas:         minFee,
		minPriorityFeePerGas: minTip,
		feeTimeout:           feeTimeout,
	}, nil
}

func (a *Account) Address() string { return a.address.Hex() }

// Transfer sends the native asset directly to to.
func (a *Account) Transfer(ctx context.Context, sourceIDs []string, to, amount string) (string, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return "", domainerrors.NewSendBeforeError(err)
	}
	return a.send(ctx, sourceIDs, "", common.HexToAddress(to), value, nil)
}

// TransferToken sends an ERC-20 token directly to to.
func (a *Account) TransferToken(ctx context.Context, sourceIDs []string, token, to, amount string) (string, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return "", domainerrors.NewSendBeforeError(err)
	}
	data := EncodeERC20Transfer(common.HexToAddress(to), value)
	return a.send(ctx, sourceIDs, token, common.HexToAddress(token), big.NewInt(0), data)
}

// Transfers broadcasts a batch native-asset payout via the router's
// transfers(address[],uint256[]) entrypoint.
func (a *Account) Transfers(ctx context.Context, sourceIDs []string, tos, amounts []string) (string, error) {
	addrs, values, total, err := parseBatch(tos, amounts)
	if err != nil {
		return "", domainerrors.NewSendBeforeError(err)
	}
	data := EncodeRouterTransfers(addrs, values)
	return a.send(ctx, sourceIDs, "", a.routerAddress, total, data)
}

// TransferTokens broadcasts a batch ERC-20 payout via the router's
// transferTokens(address,address[],uint256[]) entrypoint.
func (a *Account) TransferTokens(ctx context.Context, sourceIDs []string, token string, tos, amounts []string) (string, error) {
	addrs, values, _, err := parseBatch(tos, amounts)
	if err != nil {
		return "", domainerrors.NewSendBeforeError(err)
	}
	data := EncodeRouterTransferTokens(common.HexToAddress(token), addrs, values)
	return a.send(ctx, sourceIDs, token, a.routerAddress, big.NewInt(0), data)
}

// WaitForTransactionConfirmation polls for a receipt and classifies the
// outcome.
func (a *Account) WaitForTransactionConfirmation(ctx context.Context, txHash string) (*sequencer.Receipt, error) {
	receipt, err := a.evm.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return &sequencer.Receipt{Success: receipt.Status == types.ReceiptStatusSuccessful, From: a.address.Hex()}, nil
}

// send implements the sign -> hash -> anchor -> broadcast ordering spec
// §4.4 requires: the SerialRelation row is written before the node ever
// sees the transaction, so a crash right after broadcast is still
// recoverable from (sourceIDs -> txHash) on restart.
func (a *Account) send(ctx context.Context, sourceIDs []string, token string, to common.Address, value *big.Int, data []byte) (string, error) {
	lease, err := a.nonces.Next(ctx, a.chain, a.address.Hex())
	if err != nil {
		return "", domainerrors.NewSendBeforeError(err)
	}

	tipCap, feeCap, gasLimit, err := a.gasParams(ctx, to, value, data)
	if err != nil {
		lease.Rollback()
		return "", domainerrors.NewSendBeforeError(err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   a.evm.ChainID(),
		Nonce:     lease.Nonce(),
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signer := types.LatestSignerForChainID(a.evm.ChainID())
	signedTx, err := types.SignTx(tx, signer, a.privKey)
	if err != nil {
		lease.Rollback()
		return "", domainerrors.NewSendBeforeError(err)
	}
	txHash := signedTx.Hash().Hex()

	if err := a.serials.Save(ctx, sourceIDs, a.address.Hex(), a.chain, token, txHash); err != nil {
		lease.Rollback()
		return "", domainerrors.NewSendBeforeError(err)
	}

	if err := a.evm.SendTransaction(ctx, signedTx); err != nil {
		if isNonceRejected(err) {
			lease.Rollback()
			return "", domainerrors.NewSendBeforeError(err)
		}
		// The node may have accepted the tx despite an error on this call
		// (e.g. a timeout waiting for the ack). The SerialRelation anchor
		// above is what lets the reconciler find it again.
		return txHash, domainerrors.NewSendAfterError(err)
	}

	return txHash, nil
}

// gasParams derives EIP-1559 fee parameters, enforcing the configured
// floors and estimating gas for the call. feeTimeout bounds the RPC round
// trips so a stalled node cannot stall the whole exclusive section.
func (a *Account) gasParams(ctx context.Context, to common.Address, value *big.Int, data []byte) (tipCap, feeCap *big.Int, gasLimit uint64, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.feeTimeout)
	defer cancel()

	tipCap, err = a.evm.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	if tipCap.Cmp(a.minPriorityFeePerGas) < 0 {
		tipCap = a.minPriorityFeePerGas
	}
	if tipCap.Sign() <= 0 {
		return nil, nil, 0, errors.New("gas tip cap resolved to zero")
	}

	header, err := a.evm.HeaderByNumber(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("fetch header for base fee: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	feeCap = new(big.Int).Add(baseFee, tipCap)
	if feeCap.Cmp(a.minFeePerGas) < 0 {
		feeCap = a.minFeePerGas
	}
	if feeCap.Sign() <= 0 {
		return nil, nil, 0, errors.New("gas fee cap resolved to zero")
	}

	gasLimit, err = a.evm.EstimateGas(ctx, ethereumCallMsg(a.address, to, value, data))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("estimate gas: %w", err)
	}
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	return tipCap, feeCap, gasLimit, nil
}

func ethereumCallMsg(from, to common.Address, value *big.Int, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: &to, Value: value, Data: data}
}

func isNonceRejected(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "nonce too high") ||
		strings.Contains(msg, "replacement transaction underpriced")
}

func parseAmount(amount string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return value, nil
}

func parseBatch(tos, amounts []string) ([]common.Address, []*big.Int, *big.Int, error) {
	if len(tos) != len(amounts) {
		return nil, nil, nil, fmt.Errorf("tos/amounts length mismatch: %d != %d", len(tos), len(amounts))
	}
	addrs := make([]common.Address, len(tos))
	values := make([]*big.Int, len(amounts))
	total := big.NewInt(0)
	for i, to := range tos {
		addrs[i] = common.HexToAddress(to)
		v, err := parseAmount(amounts[i])
		if err != nil {
			return nil, nil, nil, err
		}
		values[i] = v
		total.Add(total, v)
	}
	return addrs, values, total, nil
}
