package repositories

import (
	"context"
	"time"

	"bridge-settle.backend/internal/domain/entities"
)

// RuleProvider is the external rule/config graph collaborator (the
// source's "mdc"/"manager") that this engine treats as out of scope,
// specified only by the interface it must satisfy (spec §1, §9). It
// resolves a security code against the current rule snapshot and answers
// token-pair lookups used to cross chains by mainnet token.
type RuleProvider interface {
	// ResolveRule resolves dealer, EBC, and rule fee parameters for the
	// given owner (deposit receiver), observation time, and rule id
	// decoded from the security code. Returns ErrRuleNotFound if no
	// mapping exists.
	ResolveRule(ctx context.Context, owner string, at time.Time, dealerID, ebcID int) (*entities.Rule, error)
	// ResolveTargetChain maps a security code's target-chain index to a
	// concrete chain id.
	ResolveTargetChain(ctx context.Context, targetChainIDIndex int) (string, error)
	// ResolveTargetToken finds the token on targetChain sharing a
	// mainnet_token identity with (sourceChain, sourceToken).
	ResolveTargetToken(ctx context.Context, sourceChain, sourceToken, targetChain string) (tokenAddress, symbol string, err error)
}

// ExchangeRateProvider is the external fiat exchange-rate side service
// (spec §1) used by the Sequencer's validatingValueMatches sanity bound.
type ExchangeRateProvider interface {
	// Rate returns how many units of quoteSymbol one unit of baseSymbol is
	// worth, as of now.
	Rate(ctx context.Context, baseSymbol, quoteSymbol string) (float64, error)
}

// Alerter is the one-shot alert sink (spec §6): sendMessage(text, channels)
// that never retries internally.
type Alerter interface {
	Alert(ctx context.Context, text string, channels ...string) error
}
