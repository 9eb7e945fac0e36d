package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrMissingPrivateKey = errors.New("PRIVATE_KEY is not set")

const (
	DefaultRPCURL          = "https://apechain.calderachain.xyz/http"
	DefaultContractAddress = "0x075893707e168162234b62a5b39650e124ff3321"
	// DefaultGasLimit is the measured mint() ceiling of DefaultContractAddress. Other
	// contracts need their own value.
	DefaultGasLimit    = 150000
	DefaultMintCount   = 500
	DefaultExplorerURL = "https://apescan.io/tx/"
	DefaultCurrency    = "APE"
)

// Keys are shared by flags, environment variables (upper-cased, '-' -> '_') and viper.
const (
	KeyRPCURL           = "rpc-url"
	KeyContract         = "contract"
	KeyPrivateKey       = "private-key"
	KeyGasLimit         = "gas-limit"
	KeyQuotaMarkers     = "quota-markers"
	KeyPollInterval     = "receipt-poll-interval"
	KeyRPCTimeout       = "rpc-timeout"
	KeyExplorerURL      = "explorer-url"
	KeyCurrency         = "currency"
	KeyCount            = "count"
	KeyAssumeZeroMinted = "assume-zero-minted"
	KeyAttemptTimeout   = "attempt-timeout"
	KeyMaxRate          = "max-rate"
	KeyInterruptible    = "interruptible"
	KeyProgressEvery    = "progress-every"
	KeyErrorSampleEvery = "error-sample-every"
	KeyUnit             = "unit"
	KeyMetricsAddr      = "metrics-addr"
	KeyLogLevel         = "log-level"
	KeyLogFormat        = "log-format"
)

// AppConfig is everything the CLI resolves before any chain code runs.
type AppConfig struct {
	Chain   ChainConfig
	Mint    MintConfig
	Service ServiceConfig
	Log     LogConfig
}

type ChainConfig struct {
	RPCURL              string
	ContractAddress     string
	PrivateKey          string
	GasLimit            uint64
	QuotaMarkers        []string
	ReceiptPollInterval time.Duration
	RPCTimeout          time.Duration
	ExplorerURL         string
	Currency            string
}

type MintConfig struct {
	Count                 int
	AssumeZeroMintedToday bool
	AttemptTimeout        time.Duration
	MaxAttemptsPerSecond  float64
	Interruptible         bool
	ProgressEvery         int
	ErrorSampleEvery      int
	Unit                  string
}

type ServiceConfig struct {
	MetricsAddr string
}

type LogConfig struct {
	Level  string
	Format string
}

// RegisterFlags declares every tunable on fs. Secrets are environment-only.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyRPCURL, DefaultRPCURL, "JSON-RPC endpoint")
	fs.String(KeyContract, DefaultContractAddress, "Mint contract address")
	fs.Uint64(KeyGasLimit, DefaultGasLimit, "Fixed gas ceiling for mint(); specific to the contract")
	fs.StringSlice(KeyQuotaMarkers, []string{"daily"}, "Revert reason fragments that mean the daily quota is spent")
	fs.Duration(KeyPollInterval, time.Second, "Interval between receipt polls")
	fs.Duration(KeyRPCTimeout, 30*time.Second, "HTTP timeout for a single RPC request")
	fs.String(KeyExplorerURL, DefaultExplorerURL, "Transaction explorer URL prefix")
	fs.String(KeyCurrency, DefaultCurrency, "Symbol of the chain's native currency")
	fs.Int(KeyCount, DefaultMintCount, "Mint attempts to request (capped at the remaining quota)")
	fs.Bool(KeyAssumeZeroMinted, false, "Ignore the contract's mintedToday value when computing the remaining quota")
	fs.Duration(KeyAttemptTimeout, 0, "Deadline for one submit+confirm cycle (0 = none)")
	fs.Float64(KeyMaxRate, 0, "Maximum mint submissions per second (0 = unlimited)")
	fs.Bool(KeyInterruptible, false, "Let SIGINT/SIGTERM stop a running batch between attempts")
	fs.Int(KeyProgressEvery, 10, "Print a progress line every N attempts")
	fs.Int(KeyErrorSampleEvery, 50, "Print the error of every Nth failure")
	fs.String(KeyUnit, "units", "Name of the minted item in console output")
	fs.String(KeyMetricsAddr, "", "Serve Prometheus metrics and health on this address (empty = off)")
	fs.String(KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, "text", "Log format (text, json)")
}

// Load resolves configuration from flags, then environment, then defaults.
func Load(flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyPrivateKey, "PRIVATE_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv(KeyContract, "CONTRACT_ADDRESS"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv(KeyCount, "MINT_COUNT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &AppConfig{
		Chain: ChainConfig{
			RPCURL:              strings.TrimSpace(v.GetString(KeyRPCURL)),
			ContractAddress:     strings.TrimSpace(v.GetString(KeyContract)),
			PrivateKey:          strings.TrimSpace(v.GetString(KeyPrivateKey)),
			GasLimit:            v.GetUint64(KeyGasLimit),
			QuotaMarkers:        splitList(v.GetStringSlice(KeyQuotaMarkers)),
			ReceiptPollInterval: v.GetDuration(KeyPollInterval),
			RPCTimeout:          v.GetDuration(KeyRPCTimeout),
			ExplorerURL:         v.GetString(KeyExplorerURL),
			Currency:            v.GetString(KeyCurrency),
		},
		Mint: MintConfig{
			Count:                 v.GetInt(KeyCount),
			AssumeZeroMintedToday: v.GetBool(KeyAssumeZeroMinted),
			AttemptTimeout:        v.GetDuration(KeyAttemptTimeout),
			MaxAttemptsPerSecond:  v.GetFloat64(KeyMaxRate),
			Interruptible:         v.GetBool(KeyInterruptible),
			ProgressEvery:         v.GetInt(KeyProgressEvery),
			ErrorSampleEvery:      v.GetInt(KeyErrorSampleEvery),
			Unit:                  v.GetString(KeyUnit),
		},
		Service: ServiceConfig{
			MetricsAddr: v.GetString(KeyMetricsAddr),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPCURL, DefaultRPCURL)
	v.SetDefault(KeyContract, DefaultContractAddress)
	v.SetDefault(KeyGasLimit, DefaultGasLimit)
	v.SetDefault(KeyQuotaMarkers, []string{"daily"})
	v.SetDefault(KeyPollInterval, time.Second)
	v.SetDefault(KeyRPCTimeout, 30*time.Second)
	v.SetDefault(KeyExplorerURL, DefaultExplorerURL)
	v.SetDefault(KeyCurrency, DefaultCurrency)
	v.SetDefault(KeyCount, DefaultMintCount)
	v.SetDefault(KeyProgressEvery, 10)
	v.SetDefault(KeyErrorSampleEvery, 50)
	v.SetDefault(KeyUnit, "units")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

func (c *AppConfig) Validate() error {
	if c.Chain.PrivateKey == "" {
		return ErrMissingPrivateKey
	}
	if c.Chain.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", c.Chain.ContractAddress)
	}
	if c.Chain.GasLimit == 0 {
		return errors.New("gas limit must be greater than zero")
	}
	if len(c.Chain.QuotaMarkers) == 0 {
		return errors.New("at least one quota marker is required")
	}
	if c.Mint.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Mint.Count)
	}
	if c.Mint.MaxAttemptsPerSecond < 0 {
		return fmt.Errorf("max rate must not be negative, got %v", c.Mint.MaxAttemptsPerSecond)
	}
	if c.Mint.AttemptTimeout < 0 {
		return fmt.Errorf("attempt timeout must not be negative, got %s", c.Mint.AttemptTimeout)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// splitList accepts both repeated values and comma separated ones.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
