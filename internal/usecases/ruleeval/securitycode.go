package ruleeval

import (
	"math/big"

	"bridge-settle.backend/internal/domain/entities"
)

var tenK = big.NewInt(10000)

// parseSecurityCode splits the low 4 decimal digits out of a deposit's raw
// value (spec §4.1 step 1): digit 0 = dealerId, digit 1 = ebcId, digits 2-3
// = targetChainIdIndex, all read least-significant-digit-first.
func parseSecurityCode(value *big.Int) entities.SecurityCode {
	code := new(big.Int).Mod(value, tenK)
	codeInt := code.Int64()

	dealerID := int(codeInt % 10)
	ebcID := int((codeInt / 10) % 10)
	targetChainIdx := int(codeInt / 100)

	return entities.SecurityCode{
		DealerID:           dealerID,
		EBCID:              ebcID,
		TargetChainIDIndex: targetChainIdx,
	}
}

// spliceSafetyCode overwrites the trailing 4 decimal digits of amount with
// the 4-digit zero-padded safety code (spec §4.1 step 6): the result is
// `amount` with its last 4 digits truncated, then the safety code appended.
// This is an exact digit operation, not addition, to stay bit-compatible
// with the existing on-chain payout encoding.
func spliceSafetyCode(amount *big.Int, safetyCode int) *big.Int {
	truncated := new(big.Int).Div(amount, tenK)
	truncated.Mul(truncated, tenK)
	return new(big.Int).Add(truncated, big.NewInt(int64(safetyCode)))
}

// safetyCodeFromNonce left-pads nonce to its 4-digit representation,
// spliced into the payout amount so the reverse matcher can recover the
// source nonce from a maker payout's value (spec GLOSSARY: Safety code).
func safetyCodeFromNonce(nonce int) int {
	return nonce % 10000
}
