// Command bridgepay is the desktop front end: connect the wallet, deposit into the
// payment contract and transfer out of it.
package main

import (
	"context"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/bridgepay/internal/config"
	"github.com/ligun0805/bridgepay/internal/session"
	"github.com/ligun0805/bridgepay/internal/wallet"
)

var logger = logrus.StandardLogger().WithField("module", "ui")

func main() {
	hideConsoleWindow()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, keeping info")
	}

	a := app.NewWithID("io.bridgepay.desktop")
	curTheme := makeTheme(cfg.Theme, false)
	a.Settings().SetTheme(curTheme)
	logrus.AddHook(newActivityHook(a))

	mgr := session.NewManager(wallet.NewOpener(cfg), session.Options{
		ContractAddress: cfg.ContractAddress,
		PollInterval:    cfg.PollInterval,
		ReceiptPoll:     cfg.ReceiptPoll,
	})

	w := a.NewWindow("BridgePay")
	form := newPayForm(mgr)
	unsubscribe := mgr.Subscribe(form.handle)
	w.SetOnClosed(func() {
		unsubscribe()
		actWinMu.Lock()
		aw := actWin
		actWinMu.Unlock()
		if aw != nil {
			aw.Close()
		}
		mgr.Close()
	})

	themeSelect := widget.NewSelect([]string{"Dark", "Light"}, func(s string) {
		mode := "dark"
		if s == "Light" {
			mode = "light"
		}
		curTheme = makeTheme(mode, curTheme.compact)
		a.Settings().SetTheme(curTheme)
	})
	if curTheme.mode == "light" {
		themeSelect.SetSelected("Light")
	} else {
		themeSelect.SetSelected("Dark")
	}
	compactCheck := widget.NewCheck("Compact", func(b bool) {
		curTheme = makeTheme(curTheme.mode, b)
		a.Settings().SetTheme(curTheme)
	})
	activityBtn := widget.NewButtonWithIcon("Activity", theme.ListIcon(), func() { showActivityWindow(a) })
	reconnectBtn := widget.NewButtonWithIcon("Reconnect", theme.ViewRefreshIcon(), func() {
		go func() { _ = mgr.Reload(context.Background()) }()
	})
	toolbar := container.NewGridWithColumns(4, themeSelect, compactCheck, activityBtn, reconnectBtn)

	bg := canvas.NewLinearGradient(color.NRGBA{12, 16, 24, 255}, color.NRGBA{20, 28, 40, 255}, 90)
	w.SetContent(container.NewStack(
		bg,
		container.NewBorder(toolbar, nil, nil, nil, container.NewVScroll(form.content())),
	))
	w.Resize(fyne.NewSize(620, 560))

	go func() {
		if err := mgr.Connect(context.Background()); err != nil {
			logger.WithError(err).Debug("initial connect did not succeed")
		}
	}()
	w.ShowAndRun()
}
