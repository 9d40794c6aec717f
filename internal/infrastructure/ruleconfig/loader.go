// Package ruleconfig loads the maker rule documents (spec.md §6) and
// exposes them through the domainrepos.RuleProvider interface the Rule
// Evaluator depends on. Documents are plain JSON on disk so an operator
// can edit them and trigger a reload without restarting the process.
package ruleconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
)

// makerDoc is the on-disk shape of one maker-N.json file. The distilled
// spec only describes the chain-pair/symbol-pair rules themselves
// (`Rules`); dealer and EBC identity, needed to populate entities.Rule,
// are carried as an envelope around that map -- see DESIGN.md's Open
// Question decision.
type makerDoc struct {
	DealerID      int                             `json:"dealerId"`
	DealerAddress string                          `json:"dealerAddress"`
	EBCID         int                             `json:"ebcId"`
	EBCAddress    string                          `json:"ebcAddress"`
	Rules         map[string]map[string]ruleEntry `json:"rules"`
}

type ruleEntry struct {
	TradeFee       string         `json:"tradeFee"`
	WithholdingFee string         `json:"withholdingFee"`
	MinPrice       string         `json:"minPrice"`
	MaxPrice       string         `json:"maxPrice"`
	ResponseMakers responseMakers `json:"responseMakers"`
}

type responseMakers struct {
	ResponseMakerList []string `json:"response_maker_list"`
}

// tokenEntry is one row of tokens.json: a (chain, address) pair sharing a
// mainnetToken identity with its peers, used to answer ResolveTargetToken.
type tokenEntry struct {
	MainnetToken string `json:"mainnetToken"`
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
}

// snapshot is the fully-indexed, immutable view of one load of the config
// directory. Loader swaps this atomically on reload so readers never see
// a partially-updated rule set.
type snapshot struct {
	// byDealerEBC indexes the flattened rule record by (dealerID, ebcID).
	byDealerEBC map[[2]int]*entities.Rule
	chainIndex  []string // position = targetChainIDIndex
	tokens      []tokenEntry
}

// Loader implements domainrepos.RuleProvider over a directory of JSON
// documents. Call Reload once at startup before serving traffic, and again
// on SIGHUP to pick up operator edits without restarting (spec.md §6
// supplement, see SPEC_FULL.md §5).
type Loader struct {
	dir string
	cur atomic.Pointer[snapshot]
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Reload re-reads every maker-*.json, chain_index.json and tokens.json
// file under dir and atomically swaps them in. A malformed directory
// leaves the previous snapshot (if any) in place.
func (l *Loader) Reload() error {
	snap, err := loadSnapshot(l.dir)
	if err != nil {
		return err
	}
	l.cur.Store(snap)
	return nil
}

func loadSnapshot(dir string) (*snapshot, error) {
	makerFiles, err := filepath.Glob(filepath.Join(dir, "maker-*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob maker files: %w", err)
	}

	byDealerEBC := make(map[[2]int]*entities.Rule, len(makerFiles))
	for _, path := range makerFiles {
		rule, err := loadMakerFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		dealerID, _ := strconv.Atoi(rule.DealerID)
		ebcID, _ := strconv.Atoi(rule.EBCID)
		byDealerEBC[[2]int{dealerID, ebcID}] = rule
	}

	chainIndex, err := loadChainIndex(filepath.Join(dir, "chain_index.json"))
	if err != nil {
		return nil, err
	}

	tokens, err := loadTokens(filepath.Join(dir, "tokens.json"))
	if err != nil {
		return nil, err
	}

	return &snapshot{byDealerEBC: byDealerEBC, chainIndex: chainIndex, tokens: tokens}, nil
}

func loadMakerFile(path string) (*entities.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc makerDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	chains := make([]string, 0, len(doc.Rules))
	for pair := range doc.Rules {
		chains = append(chains, pair)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chain pairs in %s", path)
	}
	sort.Strings(chains)

	// A maker file may fold several chain pairs together; this loader
	// flattens to the first pair's two sides (in sorted key order),
	// matching spec.md §4.1's Rule.Side0/Side1 model (one rule resolves to exactly two sides).
	pairKey := chains[0]
	chainParts := strings.SplitN(pairKey, "-", 2)
	if len(chainParts) != 2 {
		return nil, fmt.Errorf("malformed chain pair key %q in %s", pairKey, path)
	}

	symbols := doc.Rules[pairKey]
	var side0, side1 entities.RuleSide
	for symPair, entry := range symbols {
		symParts := strings.SplitN(symPair, "-", 2)
		if len(symParts) != 2 {
			continue
		}
		side, err := toRuleSide(entry)
		if err != nil {
			return nil, err
		}
		// Both sides of a pair share the same fee schedule in this
		// flattening; only one symbol pair entry is needed to populate
		// both Side0 and Side1.
		side0, side1 = side, side
		break
	}

	return &entities.Rule{
		ID:            filepath.Base(path),
		DealerID:      strconv.Itoa(doc.DealerID),
		DealerAddress: strings.ToLower(doc.DealerAddress),
		EBCID:         strconv.Itoa(doc.EBCID),
		EBCAddress:    strings.ToLower(doc.EBCAddress),
		Chain0:        chainParts[0],
		Chain1:        chainParts[1],
		Side0:         side0,
		Side1:         side1,
	}, nil
}

func toRuleSide(entry ruleEntry) (entities.RuleSide, error) {
	tradeFeeBps, err := strconv.ParseInt(entry.TradeFee, 10, 64)
	if err != nil {
		return entities.RuleSide{}, fmt.Errorf("invalid tradeFee %q: %w", entry.TradeFee, err)
	}
	withholding, ok := new(big.Int).SetString(entry.WithholdingFee, 10)
	if !ok {
		return entities.RuleSide{}, fmt.Errorf("invalid withholdingFee %q", entry.WithholdingFee)
	}
	minPrice := parseOptionalBig(entry.MinPrice)
	maxPrice := parseOptionalBig(entry.MaxPrice)

	return entities.RuleSide{
		TradeFeeBps:    tradeFeeBps,
		WithholdingFee: withholding,
		MinPrice:       minPrice,
		MaxPrice:       maxPrice,
		ResponseMakers: entry.ResponseMakers.ResponseMakerList,
	}, nil
}

func parseOptionalBig(raw string) *big.Int {
	if raw == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil
	}
	return v
}

func loadChainIndex(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chain index: %w", err)
	}
	var idx []string
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("parse chain index: %w", err)
	}
	return idx, nil
}

func loadTokens(path string) ([]tokenEntry, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	var entries []tokenEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse tokens: %w", err)
	}
	return entries, nil
}

// ResolveRule implements domainrepos.RuleProvider. This loader does not
// model rule versioning by effective time (the on-disk documents carry no
// "valid from" field); at is accepted for interface parity and ignored --
// see DESIGN.md's Open Question decision.
func (l *Loader) ResolveRule(ctx context.Context, owner string, at time.Time, dealerID, ebcID int) (*entities.Rule, error) {
	snap := l.cur.Load()
	if snap == nil {
		return nil, domainerrors.ErrRuleNotFound
	}
	rule, ok := snap.byDealerEBC[[2]int{dealerID, ebcID}]
	if !ok {
		return nil, domainerrors.ErrRuleNotFound
	}
	return rule, nil
}

// ResolveTargetChain maps a security code's 2-digit target-chain index
// into the configured chain id at that position.
func (l *Loader) ResolveTargetChain(ctx context.Context, targetChainIDIndex int) (string, error) {
	snap := l.cur.Load()
	if snap == nil || targetChainIDIndex < 0 || targetChainIDIndex >= len(snap.chainIndex) {
		return "", domainerrors.ErrRuleNotFound
	}
	return snap.chainIndex[targetChainIDIndex], nil
}

// ResolveTargetToken finds the token on targetChain sharing a mainnetToken
// identity with (sourceChain, sourceToken).
func (l *Loader) ResolveTargetToken(ctx context.Context, sourceChain, sourceToken, targetChain string) (string, string, error) {
	snap := l.cur.Load()
	if snap == nil {
		return "", "", domainerrors.ErrRuleNotFound
	}

	var mainnetToken string
	for _, t := range snap.tokens {
		if t.ChainID == sourceChain && strings.EqualFold(t.TokenAddress, sourceToken) {
			mainnetToken = t.MainnetToken
			break
		}
	}
	if mainnetToken == "" {
		return "", "", domainerrors.ErrRuleNotFound
	}

	for _, t := range snap.tokens {
		if t.ChainID == targetChain && t.MainnetToken == mainnetToken {
			return t.TokenAddress, t.Symbol, nil
		}
	}
	return "", "", domainerrors.ErrRuleNotFound
}
