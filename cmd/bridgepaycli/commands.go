package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ligun0805/bridgepay/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect the wallet and print the session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newManager()
		defer m.Close()
		if err := m.Connect(cmd.Context()); err != nil {
			logger.WithError(err).Debug("connect failed")
		}
		printState(cmd.OutOrStdout(), m.State())
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Deposit ether into the payment contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetString("amount")
		return runAction(cmd, func(ctx context.Context, m *session.Manager) error {
			return m.Deposit(ctx, amount)
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer ether held by the contract to a recipient",
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		amount, _ := cmd.Flags().GetString("amount")
		return runAction(cmd, func(ctx context.Context, m *session.Manager) error {
			return m.Transfer(ctx, to, amount)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and print session events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watch(ctx, cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, depositCmd, transferCmd, watchCmd)

	depositCmd.Flags().String("amount", "", "Amount in ETH (e.g. 1.5)")
	depositCmd.MarkFlagRequired("amount")

	transferCmd.Flags().String("to", "", "Recipient address")
	transferCmd.Flags().String("amount", "", "Amount in ETH (e.g. 0.1)")
	transferCmd.MarkFlagRequired("to")
	transferCmd.MarkFlagRequired("amount")
}

func newManager() *session.Manager {
	return session.NewManager(openerFor(settings), session.Options{
		ContractAddress: settings.ContractAddress,
		PollInterval:    settings.PollInterval,
		ReceiptPoll:     settings.ReceiptPoll,
	})
}

// runAction connects, runs one handler and prints the final state. A failed connect
// still runs the handler so the "Contract not loaded." path is reported the same way.
func runAction(cmd *cobra.Command, do func(context.Context, *session.Manager) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := newManager()
	defer m.Close()
	if err := m.Connect(ctx); err != nil {
		logger.WithError(err).Debug("connect failed")
	}
	err := do(ctx, m)
	printState(cmd.OutOrStdout(), m.State())
	return err
}

func watch(ctx context.Context, cmd *cobra.Command) error {
	m := newManager()
	defer m.Close()
	out := cmd.OutOrStdout()
	unsubscribe := m.Subscribe(func(ev session.Event) { printEvent(out, ev) })
	defer unsubscribe()

	if err := m.Connect(ctx); err != nil && !errors.Is(err, session.ErrReloaded) {
		logger.WithError(err).Debug("connect failed")
	}
	<-ctx.Done()
	return nil
}
