package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/bridgepay/internal/config"
)

var (
	acctA    = common.HexToAddress("0x000000000000000000000000000000000000abc1")
	acctB    = common.HexToAddress("0x0000000000000000000000000000000000001111")
	contract = common.HexToAddress("0x52f0a97698463481ea39b438962446D4E5065554")
)

type fakeSendArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Gas   hexutil.Uint64  `json:"gas"`
	Value *hexutil.Big    `json:"value"`
	Data  hexutil.Bytes   `json:"data"`
}

// fakeEth is served as the "eth" namespace of an in-process RPC server.
type fakeEth struct {
	mu          sync.Mutex
	accounts    []common.Address
	chainID     int64
	gas         uint64
	estimateErr error
	sendErr     error
	estimates   []map[string]interface{}
	sent        []fakeSendArgs
	receipts    map[common.Hash]*types.Receipt
	pendingFor  int // receipt lookups answered with null before the receipt shows up
	status      uint64
}

func newFakeEth() *fakeEth {
	return &fakeEth{accounts: []common.Address{acctA, acctB}, chainID: 1337, gas: 42000, status: types.ReceiptStatusSuccessful, receipts: map[common.Hash]*types.Receipt{}}
}

func (f *fakeEth) RequestAccounts() ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts, nil
}

func (f *fakeEth) Accounts() []common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts
}

func (f *fakeEth) ChainId() *hexutil.Big {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (*hexutil.Big)(big.NewInt(f.chainID))
}

func (f *fakeEth) EstimateGas(args map[string]interface{}, block *string) (hexutil.Uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates = append(f.estimates, args)
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return hexutil.Uint64(f.gas), nil
}

func (f *fakeEth) SendTransaction(args fakeSendArgs) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sent = append(f.sent, args)
	h := common.BigToHash(big.NewInt(int64(len(f.sent))))
	f.receipts[h] = &types.Receipt{Status: f.status, CumulativeGasUsed: f.gas, GasUsed: f.gas, TxHash: h, Logs: []*types.Log{}}
	return h, nil
}

func (f *fakeEth) GetTransactionReceipt(h common.Hash) *types.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingFor > 0 {
		f.pendingFor--
		return nil
	}
	return f.receipts[h]
}

func (f *fakeEth) setAccounts(a ...common.Address) {
	f.mu.Lock()
	f.accounts = a
	f.mu.Unlock()
}

func (f *fakeEth) setChain(id int64) {
	f.mu.Lock()
	f.chainID = id
	f.mu.Unlock()
}

// legacyEth has no eth_requestAccounts, like a plain node.
type legacyEth struct{ accounts []common.Address }

func (l *legacyEth) Accounts() []common.Address { return l.accounts }

func dialFake(t *testing.T, svc any) *NodeProvider {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", svc))
	p := NewNodeProvider(rpc.DialInProc(srv))
	t.Cleanup(func() {
		p.Close()
		srv.Stop()
	})
	return p
}

func TestNodeRequestAccounts(t *testing.T) {
	p := dialFake(t, newFakeEth())

	accts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{acctA, acctB}, accts)
}

func TestNodeRequestAccountsFallsBackToEthAccounts(t *testing.T) {
	p := dialFake(t, &legacyEth{accounts: []common.Address{acctB}})

	accts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{acctB}, accts)
}

func TestNodeRequestAccountsEmpty(t *testing.T) {
	p := dialFake(t, &legacyEth{})

	_, err := p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestNodeEstimateSendAndWait(t *testing.T) {
	fe := newFakeEth()
	fe.pendingFor = 2
	p := dialFake(t, fe)
	ctx := context.Background()

	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	msg := ethereum.CallMsg{From: acctA, To: &contract, Value: value, Data: common.FromHex("0xd0e30db0")}

	gas, err := p.EstimateGas(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(42000), gas)
	require.Len(t, fe.estimates, 1)
	assert.Equal(t, hexutil.EncodeBig(value), fe.estimates[0]["value"])

	msg.Gas = gas
	hash, err := p.SendTransaction(ctx, msg)
	require.NoError(t, err)
	require.Len(t, fe.sent, 1)
	assert.Equal(t, acctA, fe.sent[0].From)
	assert.Equal(t, contract, *fe.sent[0].To)
	assert.Equal(t, uint64(42000), uint64(fe.sent[0].Gas))
	assert.Equal(t, value, fe.sent[0].Value.ToInt())
	assert.Equal(t, msg.Data, []byte(fe.sent[0].Data))

	r, err := WaitMined(ctx, p, hash, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, hash, r.TxHash)
	assert.Equal(t, 0, fe.pendingFor)
}

func TestNodeErrorsAreVerbatim(t *testing.T) {
	fe := newFakeEth()
	fe.estimateErr = errors.New("insufficient funds for gas * price + value")
	fe.sendErr = errors.New("User denied transaction signature")
	p := dialFake(t, fe)

	_, err := p.EstimateGas(context.Background(), ethereum.CallMsg{From: acctA, To: &contract})
	assert.EqualError(t, err, "insufficient funds for gas * price + value")

	_, err = p.SendTransaction(context.Background(), ethereum.CallMsg{From: acctA, To: &contract, Gas: 1})
	assert.EqualError(t, err, "User denied transaction signature")
}

func TestWaitMinedReverted(t *testing.T) {
	fe := newFakeEth()
	fe.status = types.ReceiptStatusFailed
	p := dialFake(t, fe)

	hash, err := p.SendTransaction(context.Background(), ethereum.CallMsg{From: acctA, To: &contract, Gas: 1})
	require.NoError(t, err)

	r, err := WaitMined(context.Background(), p, hash, time.Millisecond)
	var rev *RevertedError
	require.ErrorAs(t, err, &rev)
	assert.Equal(t, hash, rev.Hash)
	assert.NotNil(t, r)
}

func TestWaitMinedCancelled(t *testing.T) {
	p := dialFake(t, newFakeEth())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WaitMined(ctx, p, common.HexToHash("0xdead"), time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// brokenReceipts fails every receipt lookup with a transport error, cancelling first when cancel is set.
type brokenReceipts struct {
	Provider
	cancel context.CancelFunc
}

func (b brokenReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if b.cancel != nil {
		b.cancel()
	}
	return nil, errors.New("write pipe: i/o timeout")
}

func TestWaitMinedTransportErrorAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := WaitMined(ctx, brokenReceipts{cancel: cancel}, common.HexToHash("0xdead"), time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = WaitMined(context.Background(), brokenReceipts{}, common.HexToHash("0xdead"), time.Millisecond)
	assert.EqualError(t, err, "write pipe: i/o timeout")
}

func TestWatcherReportsAccountChange(t *testing.T) {
	fe := newFakeEth()
	p := dialFake(t, fe)

	var got [][]common.Address
	w := &Watcher{Provider: p, OnAccountsChanged: func(a []common.Address) { got = append(got, a) }}
	w.Seed([]common.Address{acctA, acctB}, big.NewInt(1337))

	w.Poll(context.Background())
	assert.Empty(t, got)

	fe.setAccounts(acctB)
	w.Poll(context.Background())
	w.Poll(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, []common.Address{acctB}, got[0])

	fe.setAccounts()
	w.Poll(context.Background())
	require.Len(t, got, 2)
	assert.Empty(t, got[1])
}

func TestWatcherReportsChainChangeOnly(t *testing.T) {
	fe := newFakeEth()
	p := dialFake(t, fe)

	var chains []*big.Int
	accountCalls := 0
	w := &Watcher{
		Provider:          p,
		OnChainChanged:    func(id *big.Int) { chains = append(chains, id) },
		OnAccountsChanged: func([]common.Address) { accountCalls++ },
	}
	w.Seed([]common.Address{acctA, acctB}, big.NewInt(1337))

	fe.setChain(5)
	fe.setAccounts(acctB)
	w.Poll(context.Background())
	require.Len(t, chains, 1)
	assert.Equal(t, int64(5), chains[0].Int64())
	assert.Equal(t, 0, accountCalls)
}

func TestWatcherUnseededTakesBaseline(t *testing.T) {
	p := dialFake(t, newFakeEth())
	calls := 0
	w := &Watcher{Provider: p, OnAccountsChanged: func([]common.Address) { calls++ }, OnChainChanged: func(*big.Int) { calls++ }}

	w.Poll(context.Background())
	w.Poll(context.Background())
	assert.Equal(t, 0, calls)
}

func TestOpenerNotInstalled(t *testing.T) {
	ctx := context.Background()

	_, err := NewOpener(config.Settings{Provider: config.ProviderNode}).Open(ctx)
	assert.ErrorIs(t, err, ErrNotInstalled)

	_, err = NewOpener(config.Settings{Provider: config.ProviderKey, RPCURL: "http://127.0.0.1:7545"}).Open(ctx)
	assert.ErrorIs(t, err, ErrNotInstalled)

	_, err = NewOpener(config.Settings{Provider: "ledger", RPCURL: "http://127.0.0.1:7545"}).Open(ctx)
	assert.EqualError(t, err, `unknown wallet provider "ledger"`)
}

func TestMatchChainID(t *testing.T) {
	assert.NoError(t, matchChainID("", big.NewInt(1)))
	assert.NoError(t, matchChainID("1337", big.NewInt(1337)))
	assert.NoError(t, matchChainID("0x539", big.NewInt(1337)))
	assert.EqualError(t, matchChainID("1", big.NewInt(5)), "chain id mismatch: configured 1, node 5")
	assert.EqualError(t, matchChainID("main", big.NewInt(5)), `bad CHAIN_ID "main"`)
}

func TestNewTransactorFromHex(t *testing.T) {
	const pk = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	opts, err := NewTransactorFromHex(pk, big.NewInt(1337))
	require.NoError(t, err)

	prv, _ := crypto.HexToECDSA(pk[2:])
	assert.Equal(t, crypto.PubkeyToAddress(prv.PublicKey), opts.From)

	_, err = NewTransactorFromHex("  ", big.NewInt(1))
	assert.EqualError(t, err, "empty private key")
}

func TestBuildDynamicTx(t *testing.T) {
	tx := buildDynamicTx(big.NewInt(1337), 7, &contract, big.NewInt(5), 42000, big.NewInt(2), big.NewInt(30), []byte{1})
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(42000), tx.Gas())
	assert.Equal(t, int64(30), tx.GasFeeCap().Int64())
	assert.Equal(t, int64(2), tx.GasTipCap().Int64())
	assert.Equal(t, contract, *tx.To())
}
