// Command bridgepaycli drives the BridgePay session from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ligun0805/bridgepay/internal/config"
	"github.com/ligun0805/bridgepay/internal/wallet"
)

var logger = logrus.StandardLogger().WithField("module", "cli")

var (
	settings config.Settings
	// openerFor builds the wallet opener for the loaded settings.
	openerFor = wallet.NewOpener
)

var rootCmd = &cobra.Command{
	Use:           "bridgepaycli",
	Short:         "BridgePay wallet client",
	Long:          "Connect a wallet, deposit ether into the BridgePay contract and transfer it out to a recipient",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Env file to load instead of .env")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("prompt-key", false, "Read the signing key from the terminal and use the key provider")
}

func setup(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	level, _ := cmd.Flags().GetString("log-level")
	promptKey, _ := cmd.Flags().GetBool("prompt-key")

	var err error
	if envFile != "" {
		settings, err = config.Load(envFile)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	if level == "" {
		level = settings.LogLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(cmd.ErrOrStderr())

	if promptKey {
		key, err := readPassword(cmd, "Private key: ")
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		settings.PrivateKeyHex = key
		settings.Provider = config.ProviderKey
	}
	logger.WithFields(logrus.Fields{
		"provider": settings.Provider,
		"rpc":      settings.RPCURL,
		"contract": settings.ContractAddress,
		"key":      maskHex(settings.PrivateKeyHex),
	}).Debug("configuration loaded")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
