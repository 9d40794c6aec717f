package ruleeval

import (
	"context"
	"math/big"
	"strconv"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
)

// V2Evaluator implements the security-code/safety-code splice dialect
// (spec §4.1 steps 1-8): the on-chain deposit value's low 4 digits encode
// dealer, EBC, and target chain; the payout's low 4 digits are overwritten
// with the source nonce so the reverse matcher can pair the two legs.
type V2Evaluator struct {
	rules domainrepos.RuleProvider
}

func NewV2Evaluator(rules domainrepos.RuleProvider) *V2Evaluator {
	return &V2Evaluator{rules: rules}
}

func (e *V2Evaluator) Evaluate(ctx context.Context, transfer *entities.Transfer) (*entities.EvaluatedPayout, error) {
	nonce, err := strconv.Atoi(transfer.Nonce)
	if err != nil || nonce > 9999 {
		return nil, domainerrors.ErrSecurityCodeInvalid
	}

	value, ok := new(big.Int).SetString(transfer.Value, 10)
	if !ok {
		return nil, domainerrors.ErrSecurityCodeInvalid
	}
	code := parseSecurityCode(value)

	rule, err := e.rules.ResolveRule(ctx, transfer.Receiver, transfer.Timestamp, code.DealerID, code.EBCID)
	if err != nil {
		return nil, domainerrors.ErrRuleNotFound
	}

	targetChain, err := e.rules.ResolveTargetChain(ctx, code.TargetChainIDIndex)
	if err != nil {
		return nil, domainerrors.ErrRuleNotFound
	}

	targetToken, targetSymbol, err := e.rules.ResolveTargetToken(ctx, transfer.ChainID, transfer.Token, targetChain)
	if err != nil {
		return nil, domainerrors.ErrRuleNotFound
	}

	side := rule.SideFor(transfer.ChainID)

	tradeAmount := new(big.Int).Sub(value, big.NewInt(int64(codeAsInt(code))))
	tradeAmount.Sub(tradeAmount, side.WithholdingFee)

	tradingFee := new(big.Int).Mul(tradeAmount, big.NewInt(side.TradeFeeBps))
	tradingFee.Div(tradingFee, tenK)

	net := new(big.Int).Sub(tradeAmount, tradingFee)
	responseAmount := spliceSafetyCode(net, safetyCodeFromNonce(nonce))

	if side.MaxPrice != nil && side.MaxPrice.Sign() > 0 && responseAmount.Cmp(side.MaxPrice) > 0 {
		return nil, domainerrors.ErrAmountOutOfRange
	}
	// MinPrice is parsed and retained on RuleSide but deliberately never
	// enforced here; see DESIGN.md Open Question decision.

	return &entities.EvaluatedPayout{
		RuleID:         rule.ID,
		EBCAddress:     rule.EBCAddress,
		DealerAddress:  rule.DealerAddress,
		TargetChain:    targetChain,
		TargetToken:    targetToken,
		TargetSymbol:   targetSymbol,
		WithholdingFee: side.WithholdingFee.String(),
		TradeFee:       tradingFee.String(),
		ResponseAmount: responseAmount.String(),
		ResponseMaker:  normalizeResponseMaker(transfer.Receiver, side.ResponseMakers),
	}, nil
}

// codeAsInt reassembles the 4-digit security code into the integer that
// was originally subtracted out of value, i.e. value mod 10000.
func codeAsInt(code entities.SecurityCode) int {
	return code.DealerID + code.EBCID*10 + code.TargetChainIDIndex*100
}
