// Package ruleeval derives the exact payout amount and routing metadata for
// a matched source-chain deposit. It is a pure function of the transfer and
// the rule graph snapshot handed back by the RuleProvider collaborator.
package ruleeval

import (
	"context"
	"strings"

	"bridge-settle.backend/internal/domain/entities"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
)

// RuleEvaluator derives an EvaluatedPayout from a source Transfer. Two
// dialects exist behind this one capability, selected by transfer.version
// prefix (spec §4.1, §9): V2 splices a security code out of the on-chain
// value, V1 decodes the target chain and address from deposit calldata.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, transfer *entities.Transfer) (*entities.EvaluatedPayout, error)
}

// Dispatcher selects V1Evaluator or V2Evaluator by the transfer's version
// prefix, per spec §4.1's closing paragraph.
type Dispatcher struct {
	v1 RuleEvaluator
	v2 RuleEvaluator
}

func NewDispatcher(rules domainrepos.RuleProvider) *Dispatcher {
	return &Dispatcher{
		v1: &V1Evaluator{rules: rules},
		v2: &V2Evaluator{rules: rules},
	}
}

func (d *Dispatcher) Evaluate(ctx context.Context, transfer *entities.Transfer) (*entities.EvaluatedPayout, error) {
	if transfer.Version.IsV1() {
		return d.v1.Evaluate(ctx, transfer)
	}
	return d.v2.Evaluate(ctx, transfer)
}

var _ RuleEvaluator = (*Dispatcher)(nil)

// normalizeResponseMaker lowercases and dedupes the response maker set,
// always including the deposit's original receiver (spec §3 invariant).
func normalizeResponseMaker(receiver string, configured []string) []string {
	seen := make(map[string]struct{}, len(configured)+1)
	out := make([]string, 0, len(configured)+1)

	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	add(receiver)
	for _, addr := range configured {
		add(addr)
	}
	return out
}
