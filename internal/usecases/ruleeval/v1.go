package ruleeval

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
)

// V1Evaluator implements the legacy calldata-encoded dialect (spec §4.1's
// closing paragraph): the target chain id and target address are decoded
// straight out of the deposit's swap calldata rather than spliced into the
// on-chain value.
type V1Evaluator struct {
	rules domainrepos.RuleProvider
}

func NewV1Evaluator(rules domainrepos.RuleProvider) *V1Evaluator {
	return &V1Evaluator{rules: rules}
}

// decodedV1Swap is the result of decodeV1SwapData.
type decodedV1Swap struct {
	TargetChainID string
	TargetAddress string
}

// decodeV1SwapData extracts the target chain id and target address from a
// V1 deposit's calldata. The V1 wire layout is 32-byte word aligned: word 0
// is the target chain id, word 1 is the target address (left-padded to 32
// bytes, last 20 bytes significant) -- the same convention the EVM ABI uses
// for a plain (uint256,address) tuple.
func decodeV1SwapData(callData string) (*decodedV1Swap, error) {
	raw := strings.TrimPrefix(callData, "0x")
	data, err := hex.DecodeString(raw)
	if err != nil || len(data) < 64 {
		return nil, domainerrors.ErrSecurityCodeInvalid
	}

	chainWord := data[0:32]
	addrWord := data[32:64]

	chainID := new(big.Int).SetBytes(chainWord)
	if chainID.Sign() == 0 {
		return nil, domainerrors.ErrSecurityCodeInvalid
	}

	return &decodedV1Swap{
		TargetChainID: chainID.String(),
		TargetAddress: "0x" + hex.EncodeToString(addrWord[12:32]),
	}, nil
}

func (e *V1Evaluator) Evaluate(ctx context.Context, transfer *entities.Transfer) (*entities.EvaluatedPayout, error) {
	swap, err := decodeV1SwapData(transfer.CallData)
	if err != nil {
		return nil, err
	}

	nonce, err := strconv.Atoi(transfer.Nonce)
	if err != nil || nonce > 9999 {
		return nil, domainerrors.ErrSecurityCodeInvalid
	}

	rule, err := e.rules.ResolveRule(ctx, transfer.Receiver, transfer.Timestamp, 0, 0)
	if err != nil {
		return nil, domainerrors.ErrRuleNotFound
	}

	targetToken, targetSymbol, err := e.rules.ResolveTargetToken(ctx, transfer.ChainID, transfer.Token, swap.TargetChainID)
	if err != nil {
		return nil, domainerrors.ErrRuleNotFound
	}

	side := rule.SideFor(transfer.ChainID)

	amount, ok := new(big.Int).SetString(transfer.Value, 10)
	if !ok {
		return nil, domainerrors.ErrSecurityCodeInvalid
	}

	tradeAmount := new(big.Int).Sub(amount, side.WithholdingFee)
	tradingFee := new(big.Int).Mul(tradeAmount, big.NewInt(side.TradeFeeBps))
	tradingFee.Div(tradingFee, tenK)
	net := new(big.Int).Sub(tradeAmount, tradingFee)
	responseAmount := spliceSafetyCode(net, safetyCodeFromNonce(nonce))

	if side.MaxPrice != nil && side.MaxPrice.Sign() > 0 && responseAmount.Cmp(side.MaxPrice) > 0 {
		return nil, domainerrors.ErrAmountOutOfRange
	}

	return &entities.EvaluatedPayout{
		RuleID:         rule.ID,
		EBCAddress:     rule.EBCAddress,
		DealerAddress:  rule.DealerAddress,
		TargetChain:    swap.TargetChainID,
		TargetToken:    targetToken,
		TargetSymbol:   targetSymbol,
		WithholdingFee: side.WithholdingFee.String(),
		TradeFee:       tradingFee.String(),
		ResponseAmount: responseAmount.String(),
		ResponseMaker:  normalizeResponseMaker(transfer.Receiver, side.ResponseMakers),
	}, nil
}
