package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const errCodeMethodNotFound = -32601

// eth_sendTransaction params; the node fills nonce and fees and signs.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Gas   hexutil.Uint64  `json:"gas"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// NodeProvider is a provider whose node holds the accounts (Ganache, geth with unlocked accounts, signer proxies).
type NodeProvider struct {
	rc *rpc.Client
	ec *ethclient.Client
}

func NewNodeProvider(rc *rpc.Client) *NodeProvider {
	return &NodeProvider{rc: rc, ec: ethclient.NewClient(rc)}
}

// RequestAccounts calls eth_requestAccounts; nodes that do not know it are asked for eth_accounts.
func (p *NodeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accts []common.Address
	err := p.rc.CallContext(ctx, &accts, "eth_requestAccounts")
	if isMethodNotFound(err) {
		logger.Debug("eth_requestAccounts not supported, falling back to eth_accounts")
		accts = nil
		err = p.rc.CallContext(ctx, &accts, "eth_accounts")
	}
	if err != nil {
		return nil, err
	}
	if len(accts) == 0 {
		return nil, ErrNoAccounts
	}
	return accts, nil
}

func (p *NodeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accts []common.Address
	if err := p.rc.CallContext(ctx, &accts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accts, nil
}

func (p *NodeProvider) ChainID(ctx context.Context) (*big.Int, error) { return p.ec.ChainID(ctx) }

func (p *NodeProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return p.ec.EstimateGas(ctx, msg)
}

func (p *NodeProvider) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	args := sendTxArgs{From: msg.From, To: msg.To, Gas: hexutil.Uint64(msg.Gas), Data: msg.Data}
	if msg.Value != nil {
		args.Value = (*hexutil.Big)(msg.Value)
	}
	var hash common.Hash
	if err := p.rc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (p *NodeProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.ec.TransactionReceipt(ctx, hash)
}

func (p *NodeProvider) Close() { p.rc.Close() }

func isMethodNotFound(err error) bool {
	var rerr rpc.Error
	return errors.As(err, &rerr) && rerr.ErrorCode() == errCodeMethodNotFound
}

func isNotFound(err error) bool { return errors.Is(err, ethereum.NotFound) }
