package wallet

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// Watcher polls the provider and reports account and network switches.
type Watcher struct {
	Provider          Provider
	Interval          time.Duration
	OnAccountsChanged func(accounts []common.Address)
	OnChainChanged    func(chainID *big.Int)

	accounts []common.Address
	chainID  *big.Int
	seeded   bool
}

// Seed sets the baseline the next poll compares against.
func (w *Watcher) Seed(accounts []common.Address, chainID *big.Int) {
	w.accounts = append([]common.Address(nil), accounts...)
	if chainID != nil {
		w.chainID = new(big.Int).Set(chainID)
	}
	w.seeded = true
}

// Poll runs one round. A network switch is reported alone: accounts are re-read after reload anyway.
func (w *Watcher) Poll(ctx context.Context) {
	chainID, err := w.Provider.ChainID(ctx)
	if err != nil {
		logger.WithError(err).Debug("watch: chain id")
	} else if w.chainID == nil {
		w.chainID = chainID
	} else if chainID.Cmp(w.chainID) != 0 {
		logger.WithFields(logrus.Fields{"from": w.chainID, "to": chainID}).Info("network changed")
		w.chainID = chainID
		if w.OnChainChanged != nil {
			w.OnChainChanged(new(big.Int).Set(chainID))
		}
		return
	}

	accts, err := w.Provider.Accounts(ctx)
	if err != nil {
		logger.WithError(err).Debug("watch: accounts")
		return
	}
	if !w.seeded {
		w.Seed(accts, w.chainID)
		return
	}
	if sameAccounts(accts, w.accounts) {
		return
	}
	w.accounts = append([]common.Address(nil), accts...)
	if w.OnAccountsChanged != nil {
		w.OnAccountsChanged(accts)
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	every := w.Interval
	if every <= 0 {
		every = 2 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Poll(ctx)
		}
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WaitMined polls for the receipt of hash. A failed receipt is returned together with an error.
func WaitMined(ctx context.Context, p Provider, hash common.Hash, every time.Duration) (*types.Receipt, error) {
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		r, err := p.TransactionReceipt(ctx, hash)
		if err == nil && r != nil {
			if r.Status == types.ReceiptStatusFailed {
				return r, &RevertedError{Hash: hash}
			}
			return r, nil
		}
		if err != nil && !isNotFound(err) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

type RevertedError struct{ Hash common.Hash }

func (e *RevertedError) Error() string {
	return "Transaction has been reverted by the EVM: " + e.Hash.Hex()
}
