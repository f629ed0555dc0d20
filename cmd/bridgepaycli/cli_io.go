package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ligun0805/bridgepay/internal/session"
)

// readPassword reads without echo from a terminal, or one line from piped input.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func maskHex(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}

func printState(w io.Writer, s session.State) {
	acct := s.Account
	if acct == "" {
		acct = "No account connected"
	}
	chain := s.ChainID
	if chain == "" {
		chain = "unknown"
	}
	fmt.Fprintln(w, "Connected Account:", acct)
	fmt.Fprintln(w, "Chain ID         :", chain)
	if s.Status != "" {
		fmt.Fprintf(w, "Status           : [%s] %s\n", s.Severity, s.Status)
	}
	if s.LastTx != "" {
		fmt.Fprintln(w, "Last tx          :", s.LastTx)
	}
}

func printEvent(w io.Writer, ev session.Event) {
	s := ev.State
	switch ev.Kind {
	case session.EventLoading:
		fmt.Fprintf(w, "[%s] deposit=%t transfer=%t\n", ev.Kind, s.DepositLoading, s.TransferLoading)
	case session.EventReloaded:
		fmt.Fprintf(w, "[%s] network changed, session reset\n", ev.Kind)
	default:
		fmt.Fprintf(w, "[%s] %s: %s (account %s)\n", ev.Kind, s.Severity, s.Status, orNone(s.Account))
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
