// Package wallet talks to the wallet provider: account authorization, gas estimates,
// submissions, receipts and change notifications.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/bridgepay/internal/config"
)

var logger = logrus.StandardLogger().WithField("module", "wallet")

var (
	// ErrNotInstalled means no provider is configured in this environment.
	ErrNotInstalled = errors.New("wallet provider not installed")
	ErrNoAccounts   = errors.New("no accounts authorized")
)

// Provider is the single handle every chain action goes through.
type Provider interface {
	// RequestAccounts asks for authorization; it may prompt and may be rejected.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns the currently exposed accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// SendTransaction submits msg with msg.Gas as the gas limit and returns the tx hash.
	SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Close()
}

// Opener produces a fresh provider; it is called on every (re)connect.
type Opener interface {
	Open(ctx context.Context) (Provider, error)
}

type OpenerFunc func(ctx context.Context) (Provider, error)

func (f OpenerFunc) Open(ctx context.Context) (Provider, error) { return f(ctx) }

// NewOpener selects the provider kind from settings.
// A provider without an endpoint (or, for key mode, without a key) is reported as ErrNotInstalled.
func NewOpener(st config.Settings) Opener {
	return OpenerFunc(func(ctx context.Context) (Provider, error) {
		url := strings.TrimSpace(st.RPCURL)
		switch st.Provider {
		case config.ProviderNode, "":
			if url == "" {
				return nil, ErrNotInstalled
			}
			rc, err := rpc.DialContext(ctx, url)
			if err != nil {
				return nil, fmt.Errorf("dial %s: %w", url, err)
			}
			p := NewNodeProvider(rc)
			if err := checkChainID(ctx, p, st.ChainID); err != nil {
				p.Close()
				return nil, err
			}
			logger.WithField("url", url).Debug("node provider opened")
			return p, nil
		case config.ProviderKey:
			if url == "" || strings.TrimSpace(st.PrivateKeyHex) == "" {
				return nil, ErrNotInstalled
			}
			ec, err := ethclient.DialContext(ctx, url)
			if err != nil {
				return nil, fmt.Errorf("dial %s: %w", url, err)
			}
			chainID, err := ec.ChainID(ctx)
			if err != nil {
				ec.Close()
				return nil, err
			}
			if err := matchChainID(st.ChainID, chainID); err != nil {
				ec.Close()
				return nil, err
			}
			p, err := NewKeyProvider(ec, st.PrivateKeyHex, chainID, st.BaseMul)
			if err != nil {
				ec.Close()
				return nil, err
			}
			logger.WithFields(logrus.Fields{"url": url, "account": p.from.Hex()}).Debug("key provider opened")
			return p, nil
		default:
			return nil, fmt.Errorf("unknown wallet provider %q", st.Provider)
		}
	})
}

func checkChainID(ctx context.Context, p Provider, want string) error {
	if strings.TrimSpace(want) == "" {
		return nil
	}
	got, err := p.ChainID(ctx)
	if err != nil {
		return err
	}
	return matchChainID(want, got)
}

func matchChainID(want string, got *big.Int) error {
	want = strings.TrimSpace(want)
	if want == "" {
		return nil
	}
	w, ok := new(big.Int).SetString(want, 0)
	if !ok {
		return fmt.Errorf("bad CHAIN_ID %q", want)
	}
	if got == nil || w.Cmp(got) != 0 {
		return fmt.Errorf("chain id mismatch: configured %s, node %v", w, got)
	}
	return nil
}
