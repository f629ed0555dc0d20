package main

import (
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

type payTheme struct {
	mode    string
	compact bool
}

// makeTheme accepts "dark" or "light"; anything else falls back to dark.
func makeTheme(mode string, compact bool) *payTheme {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "light" {
		mode = "dark"
	}
	return &payTheme{mode: mode, compact: compact}
}

func (t *payTheme) base() fyne.Theme {
	if t.mode == "light" {
		return theme.LightTheme()
	}
	return theme.DarkTheme()
}

func (t *payTheme) variant() fyne.ThemeVariant {
	if t.mode == "light" {
		return theme.VariantLight
	}
	return theme.VariantDark
}

func (t *payTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	dark := t.mode == "dark"
	switch n {
	case theme.ColorNameForeground:
		if dark {
			return color.NRGBA{240, 240, 240, 255}
		}
		return color.NRGBA{0, 0, 0, 255}
	case theme.ColorNamePlaceHolder, theme.ColorNameDisabled:
		if dark {
			return color.NRGBA{200, 200, 200, 255}
		}
		return color.NRGBA{90, 90, 90, 255}
	// banner tints
	case theme.ColorNameSuccess:
		return color.NRGBA{46, 160, 67, 255}
	case theme.ColorNameWarning:
		return color.NRGBA{210, 153, 34, 255}
	case theme.ColorNameError:
		return color.NRGBA{218, 54, 51, 255}
	}
	return t.base().Color(n, t.variant())
}

func (t *payTheme) Font(style fyne.TextStyle) fyne.Resource { return t.base().Font(style) }

func (t *payTheme) Icon(n fyne.ThemeIconName) fyne.Resource { return t.base().Icon(n) }

func (t *payTheme) Size(n fyne.ThemeSizeName) float32 {
	base := t.base().Size(n)
	switch n {
	case theme.SizeNameText:
		if t.compact {
			return base * 0.95
		}
		return base * 1.05
	case theme.SizeNamePadding:
		if t.compact {
			return base * 0.85
		}
		return base * 1.10
	}
	return base
}
