package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderNode = "node" // node manages the accounts (eth_requestAccounts / eth_sendTransaction)
	ProviderKey  = "key"  // local key, raw transactions
)

// Settings keeps all configuration options.
// Key names follow the .env file; lower_case spellings of the string keys are accepted too.
type Settings struct {
	ContractAddress string        `envconfig:"CONTRACT_ADDRESS"`
	Provider        string        `envconfig:"WALLET_PROVIDER"` // node when unset
	RPCURL          string        `envconfig:"WALLET_RPC_URL"`
	PrivateKeyHex   string        `envconfig:"WALLET_PRIVATE_KEY"`
	ChainID         string        `envconfig:"CHAIN_ID"` // optional, checked against the node when set
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	ReceiptPoll     time.Duration `envconfig:"RECEIPT_POLL" default:"1s"`
	BaseMul         int64         `envconfig:"BASEFEE_MUL" default:"2"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	Theme           string        `envconfig:"THEME" default:"dark"`
}

// Load reads .env (or the given files), overlays .env.local and decodes the environment.
func Load(envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else {
		_ = godotenv.Load(envFiles...)
	}
	_ = godotenv.Overload(".env.local")
	return FromEnv()
}

// FromEnv decodes the process environment without touching any file.
func FromEnv() (Settings, error) {
	var st Settings
	if err := envconfig.Process("", &st); err != nil {
		return Settings{}, err
	}

	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}
	fill := func(dst *string, keys ...string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = get(keys...)
		}
		*dst = strings.TrimSpace(*dst)
	}
	fill(&st.ContractAddress, "contract_address", "REACT_APP_CONTRACT_ADDRESS")
	fill(&st.RPCURL, "wallet_rpc_url", "rpc_url", "RPC_URL")
	fill(&st.PrivateKeyHex, "wallet_private_key")
	fill(&st.Provider, "wallet_provider")
	st.Provider = strings.ToLower(st.Provider)
	if st.Provider == "" {
		st.Provider = ProviderNode
	}
	if st.PollInterval <= 0 {
		st.PollInterval = 2 * time.Second
	}
	if st.ReceiptPoll <= 0 {
		st.ReceiptPoll = time.Second
	}
	if st.BaseMul <= 0 {
		st.BaseMul = 2
	}
	return st, nil
}
