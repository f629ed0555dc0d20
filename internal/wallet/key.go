package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/bridgepay/internal/units"
)

var errNoBaseFee = errors.New("no baseFee (pre-1559?)")

// KeyProvider signs with one configured key through go-ethereum's keyed transactor
// and submits raw transactions to a plain node.
type KeyProvider struct {
	ec      *ethclient.Client
	opts    *bind.TransactOpts
	from    common.Address
	chainID *big.Int
	baseMul int64
}

func NewKeyProvider(ec *ethclient.Client, pkHex string, chainID *big.Int, baseMul int64) (*KeyProvider, error) {
	opts, err := NewTransactorFromHex(pkHex, chainID)
	if err != nil {
		return nil, err
	}
	if baseMul <= 0 {
		baseMul = 2
	}
	return &KeyProvider{ec: ec, opts: opts, from: opts.From, chainID: new(big.Int).Set(chainID), baseMul: baseMul}, nil
}

// NewTransactorFromHex builds *bind.TransactOpts from hex key and chain ID.
func NewTransactorFromHex(pkHex string, chainID *big.Int) (*bind.TransactOpts, error) {
	h := strings.TrimPrefix(strings.TrimSpace(pkHex), "0x")
	if h == "" {
		return nil, errors.New("empty private key")
	}
	prv, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(prv, chainID)
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.from}, nil
}

func (p *KeyProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.from}, nil
}

func (p *KeyProvider) ChainID(ctx context.Context) (*big.Int, error) { return p.ec.ChainID(ctx) }

func (p *KeyProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return p.ec.EstimateGas(ctx, msg)
}

func (p *KeyProvider) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	if msg.From != p.from {
		return common.Hash{}, fmt.Errorf("account %s is not managed by this wallet", msg.From.Hex())
	}
	nonce, err := p.ec.PendingNonceAt(ctx, p.from)
	if err != nil {
		return common.Hash{}, err
	}
	value := msg.Value
	if value == nil {
		value = big.NewInt(0)
	}

	var tx *types.Transaction
	baseFee, err := latestBaseFee(ctx, p.ec)
	switch {
	case errors.Is(err, errNoBaseFee):
		gasPrice, err := p.ec.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		tx = types.NewTx(&types.LegacyTx{Nonce: nonce, GasPrice: gasPrice, Gas: msg.Gas, To: msg.To, Value: value, Data: msg.Data})
	case err != nil:
		return common.Hash{}, err
	default:
		tip, err := p.ec.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(p.baseMul)), tip)
		tx = buildDynamicTx(p.chainID, nonce, msg.To, value, msg.Gas, tip, feeCap, msg.Data)
		logger.WithFields(logrus.Fields{"baseFee": units.FormatGwei(baseFee), "tip": units.FormatGwei(tip)}).Debug("fees (gwei)")
	}

	signed, err := p.opts.Signer(p.from, tx)
	if err != nil {
		return common.Hash{}, err
	}
	if err := p.ec.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (p *KeyProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.ec.TransactionReceipt(ctx, hash)
}

func (p *KeyProvider) Close() { p.ec.Close() }

// Build EIP-1559 transaction.
func buildDynamicTx(chain *big.Int, nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, tip, feeCap *big.Int, data []byte) *types.Transaction {
	df := &types.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		Gas:       gasLimit,
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(feeCap),
		To:        to,
		Value:     new(big.Int).Set(value),
		Data:      data,
	}
	return types.NewTx(df)
}

// Latest base fee from the head header.
func latestBaseFee(ctx context.Context, ec *ethclient.Client) (*big.Int, error) {
	h, err := ec.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if h.BaseFee == nil {
		return nil, errNoBaseFee
	}
	return new(big.Int).Set(h.BaseFee), nil
}
