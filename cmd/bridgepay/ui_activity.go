package main

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

var (
	actWinMu  sync.Mutex
	actWin    fyne.Window
	actBox    *widget.Entry
	actScroll *container.Scroll
)

// ensureActivityWindow creates the activity window on first use. Caller holds actWinMu.
func ensureActivityWindow(a fyne.App) fyne.Window {
	if actWin != nil {
		return actWin
	}
	actWin = a.NewWindow("Activity")
	actWin.SetOnClosed(func() {
		actWinMu.Lock()
		actWin, actBox, actScroll = nil, nil, nil
		actWinMu.Unlock()
	})
	exportBtn := widget.NewButtonWithIcon("Export Activity JSON", theme.DocumentSaveIcon(), func() {
		saveActivityJSON(a)
	})
	bg := canvas.NewLinearGradient(color.NRGBA{12, 16, 24, 255}, color.NRGBA{20, 28, 40, 255}, 90)
	actBox = widget.NewMultiLineEntry()
	actBox.Disable()
	actBox.Wrapping = fyne.TextWrapWord
	actScroll = container.NewVScroll(actBox)
	actScroll.SetMinSize(fyne.NewSize(640, 180))
	top := container.NewBorder(nil, nil, nil, exportBtn, widget.NewLabel("Wallet and payment events"))
	actWin.SetContent(container.NewBorder(top, nil, nil, nil, container.NewStack(bg, actScroll)))
	actWin.Resize(fyne.NewSize(820, 520))
	return actWin
}

func showActivityWindow(a fyne.App) {
	actWinMu.Lock()
	w := ensureActivityWindow(a)
	actWinMu.Unlock()
	w.Show()
}

// appendActivityLine adds a timestamped line; the window is created hidden if needed.
func appendActivityLine(a fyne.App, s string) {
	actWinMu.Lock()
	defer actWinMu.Unlock()
	ensureActivityWindow(a)
	actBox.SetText(actBox.Text + time.Now().Format("15:04:05 ") + s + "\n")
	actScroll.ScrollToBottom()
}

// saveActivityJSON writes the activity records to log_data/<timestamp>.json next to the executable.
func saveActivityJSON(a fyne.App) {
	exe, _ := os.Executable()
	dir := filepath.Join(filepath.Dir(exe), "log_data")
	path, err := exportActivity(dir, time.Now())
	if err != nil {
		a.SendNotification(&fyne.Notification{Title: "Save error", Content: fmt.Sprintf("%v", err)})
		return
	}
	a.SendNotification(&fyne.Notification{Title: "Saved", Content: path})
}

func exportActivity(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, now.Format("20060102_150405")+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := writeActivityJSON(f, actSnapshot()); err != nil {
		return "", err
	}
	return path, nil
}

// activityHook mirrors log entries into the activity window.
type activityHook struct {
	app fyne.App
	fmt logrus.Formatter
}

func newActivityHook(a fyne.App) *activityHook {
	return &activityHook{app: a, fmt: &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}}
}

func (h *activityHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (h *activityHook) Fire(e *logrus.Entry) error {
	line, err := h.fmt.Format(e)
	if err != nil {
		return err
	}
	appendActivityLine(h.app, strings.TrimRight(string(line), "\n"))
	return nil
}
