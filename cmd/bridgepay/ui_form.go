package main

import (
	"context"
	"errors"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/bridgepay/internal/session"
)

const (
	labelProcessing = "Processing..."
	labelNoAccount  = "No account connected"
)

// payments is the part of session.Manager the form drives.
type payments interface {
	State() session.State
	DepositTx(ctx context.Context, amount string) (common.Hash, error)
	TransferTx(ctx context.Context, recipient, amount string) (common.Hash, error)
}

// payForm holds the widgets bound to one session.
type payForm struct {
	pay payments

	banner       *widget.Label
	account      *widget.Label
	depositAmt   *widget.Entry
	depositBtn   *widget.Button
	depositProg  *widget.ProgressBarInfinite
	recipient    *widget.Entry
	transferAmt  *widget.Entry
	transferBtn  *widget.Button
	transferProg *widget.ProgressBarInfinite
}

func newPayForm(pay payments) *payForm {
	f := &payForm{pay: pay}
	f.banner = widget.NewLabel("")
	f.banner.Wrapping = fyne.TextWrapWord
	f.banner.Hide()
	f.account = widget.NewLabel("")
	f.account.TextStyle = fyne.TextStyle{Monospace: true}

	f.depositAmt = widget.NewEntry()
	f.depositAmt.SetPlaceHolder("0.0")
	f.depositBtn = widget.NewButtonWithIcon("Deposit", theme.DownloadIcon(), f.onDeposit)
	f.depositProg = widget.NewProgressBarInfinite()
	f.depositProg.Stop()
	f.depositProg.Hide()

	f.recipient = widget.NewEntry()
	f.recipient.SetPlaceHolder("0x...")
	f.transferAmt = widget.NewEntry()
	f.transferAmt.SetPlaceHolder("0.0")
	f.transferBtn = widget.NewButtonWithIcon("Transfer", theme.MailSendIcon(), f.onTransfer)
	f.transferProg = widget.NewProgressBarInfinite()
	f.transferProg.Stop()
	f.transferProg.Hide()

	f.render(pay.State())
	return f
}

func (f *payForm) content() fyne.CanvasObject {
	heading := widget.NewLabelWithStyle("BridgePay", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	depositCard := widget.NewCard("Deposit", "", container.NewVBox(
		widget.NewForm(widget.NewFormItem("Deposit Amount (ETH)", f.depositAmt)),
		f.depositBtn, f.depositProg,
	))
	transferCard := widget.NewCard("Transfer", "", container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Recipient Address", f.recipient),
			widget.NewFormItem("Transfer Amount (ETH)", f.transferAmt),
		),
		f.transferBtn, f.transferProg,
	))
	return container.NewVBox(heading, f.banner, f.account, depositCard, transferCard)
}

// handle is the session subscriber.
func (f *payForm) handle(ev session.Event) {
	if ev.Kind == session.EventReloaded {
		f.depositAmt.SetText("")
		f.recipient.SetText("")
		f.transferAmt.SetText("")
	}
	f.render(ev.State)
}

func (f *payForm) render(s session.State) {
	if s.Status == "" {
		f.banner.Hide()
	} else {
		f.banner.Importance = importanceFor(s.Severity)
		f.banner.SetText(s.Status)
		f.banner.Show()
	}
	acct := s.Account
	if acct == "" {
		acct = labelNoAccount
	}
	f.account.SetText("Connected Account: " + acct)
	setBusy(f.depositBtn, f.depositProg, "Deposit", s.DepositLoading)
	setBusy(f.transferBtn, f.transferProg, "Transfer", s.TransferLoading)
}

func setBusy(btn *widget.Button, prog *widget.ProgressBarInfinite, idle string, busy bool) {
	if busy {
		btn.SetText(labelProcessing)
		btn.Disable()
		prog.Show()
		prog.Start()
		return
	}
	btn.SetText(idle)
	btn.Enable()
	prog.Stop()
	prog.Hide()
}

func importanceFor(s session.Severity) widget.Importance {
	switch s {
	case session.SeveritySuccess:
		return widget.SuccessImportance
	case session.SeverityWarning:
		return widget.WarningImportance
	case session.SeverityError:
		return widget.DangerImportance
	}
	return widget.HighImportance
}

func (f *payForm) onDeposit() {
	amount := f.depositAmt.Text
	account := f.pay.State().Account
	go func() {
		hash, err := f.pay.DepositTx(context.Background(), amount)
		f.record("deposit", account, "", amount, hash, err)
	}()
}

func (f *payForm) onTransfer() {
	to, amount := f.recipient.Text, f.transferAmt.Text
	account := f.pay.State().Account
	go func() {
		hash, err := f.pay.TransferTx(context.Background(), to, amount)
		f.record("transfer", account, to, amount, hash, err)
	}()
}

// record keeps attempts that produced a result; busy and discarded calls are skipped.
// account is the one shown when the button was pressed.
func (f *payForm) record(action, account, to, amount string, hash common.Hash, err error) {
	if errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrReloaded) || errors.Is(err, session.ErrContractNotLoaded) {
		return
	}
	it := ActivityItem{
		Time:    time.Now().UTC().Format(time.RFC3339),
		Action:  action,
		Account: account,
		To:      to,
		Amount:  amount,
		OK:      err == nil,
	}
	if err != nil {
		it.Error = err.Error()
	} else {
		it.TxHash = hash.Hex()
	}
	actAdd(it)
}
