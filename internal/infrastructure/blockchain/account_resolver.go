package blockchain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/internal/usecases/sequencer"
)

// SignerEntry is one configured signer: its chain, address, and the
// encrypted-at-rest private key material EncryptSignerKey produced.
type SignerEntry struct {
	Chain          string `json:"chain"`
	Address        string `json:"address"`
	EncryptedKey   string `json:"encryptedKey"`
	RPCURL         string `json:"rpcUrl"`
	RouterAddress  string `json:"routerAddress"`
	MinFeePerGas   string `json:"minFeePerGas"`
	MinPriorityFee string `json:"minPriorityFee"`
}

// AccountResolver lazily builds and caches one blockchain.Account per
// (chain, sender), decrypting its signing key on first use. It implements
// sequencer.AccountResolver, closing the narrow interface the Sequencer
// depends on without the usecases layer ever importing blockchain types.
type AccountResolver struct {
	factory    *ClientFactory
	nonces     *NonceManager
	serials    domainrepos.SerialRelationRepository
	passphrase string
	feeTimeout time.Duration
	entries    map[string]SignerEntry // key: chain+":"+lower(address)

	mu       sync.Mutex
	accounts map[string]*Account
}

func NewAccountResolver(
	factory *ClientFactory,
	nonces *NonceManager,
	serials domainrepos.SerialRelationRepository,
	passphrase string,
	feeTimeout time.Duration,
	entries []SignerEntry,
) *AccountResolver {
	indexed := make(map[string]SignerEntry, len(entries))
	for _, e := range entries {
		indexed[signerKey(e.Chain, e.Address)] = e
	}
	return &AccountResolver{
		factory:    factory,
		nonces:     nonces,
		serials:    serials,
		passphrase: passphrase,
		feeTimeout: feeTimeout,
		entries:    indexed,
		accounts:   make(map[string]*Account),
	}
}

func signerKey(chain, address string) string { return chain + ":" + strings.ToLower(address) }

// Resolve returns the signing Account for (chain, sender), decrypting and
// constructing it on first use and caching it for subsequent calls.
func (r *AccountResolver) Resolve(chain, sender string) (sequencer.SenderAccount, error) {
	key := signerKey(chain, sender)

	r.mu.Lock()
	defer r.mu.Unlock()

	if acct, ok := r.accounts[key]; ok {
		return acct, nil
	}

	entry, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("account resolver: no signer configured for chain=%s sender=%s", chain, sender)
	}

	plaintext, err := DecryptSignerKey(entry.EncryptedKey, r.passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt signer key for %s: %w", key, err)
	}

	evm, err := r.factory.GetEVMClient(entry.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("get evm client for chain %s: %w", chain, err)
	}

	acct, err := NewAccount(evm, chain, string(plaintext), r.nonces, r.serials,
		entry.RouterAddress, entry.MinFeePerGas, entry.MinPriorityFee, r.feeTimeout)
	if err != nil {
		return nil, fmt.Errorf("build account for %s: %w", key, err)
	}

	pending, err := evm.PendingNonceAt(context.Background(), acct.Address())
	if err != nil {
		return nil, fmt.Errorf("seed nonce for %s: %w", key, err)
	}
	r.nonces.Seed(chain, acct.Address(), pending)

	r.accounts[key] = acct
	return acct, nil
}
