// Package session owns the wallet connection, the status banner state and the two payment actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/bridgepay/internal/contract"
	"github.com/ligun0805/bridgepay/internal/units"
	"github.com/ligun0805/bridgepay/internal/wallet"
)

var logger = logrus.StandardLogger().WithField("module", "session")

const (
	MsgInstall         = "Please install MetaMask!"
	MsgConnected       = "MetaMask connected successfully!"
	MsgConnectFailed   = "Error connecting to MetaMask: "
	MsgContractMissing = "Contract not loaded."
	MsgDepositOK       = "Deposit successful!"
	MsgDepositFailed   = "Deposit failed: "
	MsgTransferOK      = "Transfer successful!"
	MsgTransferFailed  = "Transfer failed: "
	MsgAccountChanged  = "Account changed to "
	MsgAccountNone     = "none"
)

var (
	ErrContractNotLoaded = errors.New("contract not loaded")
	ErrBusy              = errors.New("action already in progress")
	ErrClosed            = errors.New("session closed")
	// ErrReloaded is returned by an action whose session was reset while it was in flight.
	ErrReloaded = errors.New("session reloaded")
)

type Options struct {
	ContractAddress string
	PollInterval    time.Duration
	ReceiptPoll     time.Duration
	// NewBinding defaults to contract.New.
	NewBinding func(address string) (*contract.Binding, error)
}

// Manager is the connection manager. All fields below mu are guarded by it.
type Manager struct {
	opener wallet.Opener
	opts   Options

	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup

	mu       sync.Mutex
	state    State
	gen      uint64
	closed   bool
	provider wallet.Provider
	binding  *contract.Binding
	account  common.Address
	sessCtx  context.Context
	stopSess context.CancelFunc
	pending  []Event
	draining bool

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Event)
}

func NewManager(opener wallet.Opener, opts Options) *Manager {
	if opts.NewBinding == nil {
		opts.NewBinding = contract.New
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReceiptPoll <= 0 {
		opts.ReceiptPoll = time.Second
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{opener: opener, opts: opts, base: base, stopBase: stop}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every state change, in mutation order. Callbacks run
// without the state lock held, so fn may call State; it should return quickly
// since one slow callback delays delivery to all others.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// emitLocked queues a snapshot of the current state. Called with m.mu held; returns with it released.
// Events are queued under m.mu, so queue order is mutation order. Whoever finds the queue idle
// delivers until it is empty; concurrent emitters leave their event to that goroutine.
func (m *Manager) emitLocked(kind EventKind) {
	m.pending = append(m.pending, Event{Kind: kind, State: m.state})
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		m.deliver(batch)
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func (m *Manager) deliver(batch []Event) {
	m.subsMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, s := range m.subs {
		fns = append(fns, s.fn)
	}
	m.subsMu.Unlock()
	for _, ev := range batch {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func (m *Manager) setStatusLocked(msg string, sev Severity) {
	m.state.Status = msg
	m.state.Severity = sev
}

// resetLocked drops the provider and starts a new generation; in-flight actions of the old one are discarded.
func (m *Manager) resetLocked() wallet.Provider {
	m.gen++
	if m.stopSess != nil {
		m.stopSess()
	}
	m.sessCtx, m.stopSess = context.WithCancel(m.base)
	old := m.provider
	m.provider = nil
	m.binding = nil
	m.account = common.Address{}
	m.state = State{}
	return old
}

// Connect runs the wallet bootstrap: detect provider, request accounts, bind the contract,
// then watch for account and network switches. The returned error is also reflected in State.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old := m.resetLocked()
	gen, sessCtx := m.gen, m.sessCtx
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	fail := func(err error, p wallet.Provider) error {
		if p != nil {
			p.Close()
		}
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return ErrReloaded
		}
		if errors.Is(err, wallet.ErrNotInstalled) {
			m.setStatusLocked(MsgInstall, SeverityWarning)
			logger.Warn("no wallet provider configured")
		} else {
			m.setStatusLocked(MsgConnectFailed+err.Error(), SeverityError)
			logger.WithError(err).Error("wallet connect failed")
		}
		m.emitLocked(EventConnected)
		return err
	}

	p, err := m.opener.Open(ctx)
	if err != nil {
		return fail(err, nil)
	}
	accts, err := p.RequestAccounts(ctx)
	if err != nil {
		return fail(err, p)
	}
	if len(accts) == 0 {
		return fail(wallet.ErrNoAccounts, p)
	}
	binding, err := m.opts.NewBinding(m.opts.ContractAddress)
	if err != nil {
		return fail(err, p)
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		logger.WithError(err).Warn("chain id unavailable")
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		p.Close()
		return ErrReloaded
	}
	m.provider = p
	m.binding = binding
	m.account = accts[0]
	m.state.Account = accts[0].Hex()
	if chainID != nil {
		m.state.ChainID = chainID.String()
	}
	m.state.Connected = true
	m.setStatusLocked(MsgConnected, SeveritySuccess)
	logger.WithFields(logrus.Fields{"account": m.state.Account, "chain": m.state.ChainID, "contract": binding.Address().Hex()}).Info("wallet connected")

	w := &wallet.Watcher{
		Provider:          p,
		Interval:          m.opts.PollInterval,
		OnAccountsChanged: func(a []common.Address) { m.accountsChanged(gen, a) },
		OnChainChanged: func(id *big.Int) {
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				m.networkChanged(gen, id)
			}()
		},
	}
	w.Seed(accts, chainID)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.Run(sessCtx)
	}()
	m.emitLocked(EventConnected)
	return nil
}

func (m *Manager) accountsChanged(gen uint64, accts []common.Address) {
	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		return
	}
	if len(accts) == 0 {
		m.account = common.Address{}
		m.state.Account = ""
		m.setStatusLocked(MsgAccountChanged+MsgAccountNone, SeverityInfo)
	} else {
		m.account = accts[0]
		m.state.Account = accts[0].Hex()
		m.setStatusLocked(MsgAccountChanged+m.state.Account, SeverityInfo)
	}
	logger.WithField("account", m.state.Account).Info("account changed")
	m.emitLocked(EventAccountChanged)
}

func (m *Manager) networkChanged(gen uint64, id *big.Int) {
	m.mu.Lock()
	stale := m.gen != gen || m.closed
	m.mu.Unlock()
	if stale {
		return
	}
	logger.WithField("chain", id).Info("network changed, reloading session")
	_ = m.Reload(m.base)
}

// Reload discards the whole session (in-flight results included) and bootstraps again.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old := m.resetLocked()
	m.emitLocked(EventReloaded)
	if old != nil {
		old.Close()
	}
	return m.Connect(ctx)
}

// Close stops the watcher, cancels in-flight actions and closes the provider.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	if m.stopSess != nil {
		m.stopSess()
	}
	p := m.provider
	m.provider = nil
	m.binding = nil
	m.mu.Unlock()

	m.stopBase()
	if p != nil {
		p.Close()
	}
	m.wg.Wait()
}

// Deposit sends amount (decimal ether) to the contract's payable deposit().
func (m *Manager) Deposit(ctx context.Context, amount string) error {
	_, err := m.DepositTx(ctx, amount)
	return err
}

// DepositTx is Deposit returning the mined transaction hash.
func (m *Manager) DepositTx(ctx context.Context, amount string) (common.Hash, error) {
	return m.run(ctx, depositAction, func(b *contract.Binding, from common.Address) (ethereum.CallMsg, error) {
		wei, err := units.ToWei(amount)
		if err != nil {
			return ethereum.CallMsg{}, err
		}
		return b.DepositCall(from, wei)
	})
}

// Transfer calls transferTo(recipient, amount) with amount in decimal ether.
func (m *Manager) Transfer(ctx context.Context, recipient, amount string) error {
	_, err := m.TransferTx(ctx, recipient, amount)
	return err
}

// TransferTx is Transfer returning the mined transaction hash.
func (m *Manager) TransferTx(ctx context.Context, recipient, amount string) (common.Hash, error) {
	return m.run(ctx, transferAction, func(b *contract.Binding, from common.Address) (ethereum.CallMsg, error) {
		wei, err := units.ToWei(amount)
		if err != nil {
			return ethereum.CallMsg{}, err
		}
		return b.TransferCall(from, recipient, wei)
	})
}

type action struct {
	name    string
	okMsg   string
	failMsg string
	flag    func(*State) *bool
}

var (
	depositAction  = action{name: "deposit", okMsg: MsgDepositOK, failMsg: MsgDepositFailed, flag: func(s *State) *bool { return &s.DepositLoading }}
	transferAction = action{name: "transfer", okMsg: MsgTransferOK, failMsg: MsgTransferFailed, flag: func(s *State) *bool { return &s.TransferLoading }}
)

// run returns the hash only once the transaction is mined successfully.
func (m *Manager) run(ctx context.Context, a action, build func(*contract.Binding, common.Address) (ethereum.CallMsg, error)) (common.Hash, error) {
	m.mu.Lock()
	if m.binding == nil || m.provider == nil {
		m.setStatusLocked(MsgContractMissing, SeverityError)
		m.emitLocked(EventStatus)
		return common.Hash{}, ErrContractNotLoaded
	}
	flag := a.flag(&m.state)
	if *flag {
		m.mu.Unlock()
		return common.Hash{}, ErrBusy
	}
	*flag = true
	gen, p, b, from, sessCtx := m.gen, m.provider, m.binding, m.account, m.sessCtx
	m.emitLocked(EventLoading)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessCtx, cancel)
	defer stop()

	log := logger.WithFields(logrus.Fields{"action": a.name, "from": from.Hex()})
	hash, err := m.submit(runCtx, p, b, from, build)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		log.WithError(err).Info("result discarded after reload")
		return common.Hash{}, ErrReloaded
	}
	*a.flag(&m.state) = false
	if err != nil {
		m.setStatusLocked(a.failMsg+err.Error(), SeverityError)
		log.WithError(err).Warn("action failed")
		hash = common.Hash{}
	} else {
		m.state.LastTx = hash.Hex()
		m.setStatusLocked(a.okMsg, SeveritySuccess)
		log.WithField("tx", hash.Hex()).Info("action mined")
	}
	m.emitLocked(EventStatus)
	return hash, err
}

// submit: convert+pack, estimate, send with the estimate as gas limit, wait until mined.
func (m *Manager) submit(ctx context.Context, p wallet.Provider, b *contract.Binding, from common.Address, build func(*contract.Binding, common.Address) (ethereum.CallMsg, error)) (common.Hash, error) {
	msg, err := build(b, from)
	if err != nil {
		return common.Hash{}, err
	}
	gas, err := p.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, err
	}
	msg.Gas = gas
	hash, err := p.SendTransaction(ctx, msg)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := wallet.WaitMined(ctx, p, hash, m.opts.ReceiptPoll); err != nil {
		return hash, err
	}
	return hash, nil
}

func (m *Manager) String() string {
	s := m.State()
	return fmt.Sprintf("account=%q chain=%s status=%q (%s)", s.Account, s.ChainID, s.Status, s.Severity)
}
