package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	PrivateKey    string
	LogLevel      string
	DEX           string
	PGDSN         string
	Journal       string
	StableTokens  []string
	StableSymbols []string
	SwapPools     map[string]string
	GasStrategy   string
	MaxGasUSD     *decimal.Decimal
	EthUSD        *decimal.Decimal
	EthUSDPool    string
	Wait          bool
	WaitTimeout   time.Duration
	NoBatch       bool
	Fresh         bool
	Diagnostics   bool
	Quoter        string
	MetricsAddr   string
	Jobs          []JobConfig
	MaxRetries    int
	RetryBackoff  time.Duration
}

// JobConfig is one entry of the jobs list in the config file.
type JobConfig struct {
	Name      string `mapstructure:"name"`
	Vault     string `mapstructure:"vault"`
	DEX       string `mapstructure:"dex"`
	Kind      string `mapstructure:"kind"`
	Schedule  string `mapstructure:"schedule"`
	Strategy  string `mapstructure:"strategy"`
	MaxGasUSD string `mapstructure:"max-gas-usd"`
}

// DotEnvFile is read before anything else when present.
var DotEnvFile = ".env"

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix("VAULTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("dex", "pancake_v3")
	v.SetDefault("journal", "./data/tx_outcomes.jsonl")
	v.SetDefault("gas-strategy", "default")
	v.SetDefault("wait", true)
	v.SetDefault("wait-timeout", 3*time.Minute)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		PrivateKey:    v.GetString("private-key"),
		LogLevel:      v.GetString("log-level"),
		DEX:           v.GetString("dex"),
		PGDSN:         v.GetString("pg-dsn"),
		Journal:       v.GetString("journal"),
		StableTokens:  getStringSlice(v, "stable-tokens"),
		StableSymbols: getStringSlice(v, "stable-symbols"),
		SwapPools:     getStringMap(v, "swap-pools"),
		GasStrategy:   v.GetString("gas-strategy"),
		EthUSDPool:    v.GetString("eth-usd-pool"),
		Wait:          v.GetBool("wait"),
		WaitTimeout:   v.GetDuration("wait-timeout"),
		NoBatch:       v.GetBool("no-batch"),
		Fresh:         v.GetBool("fresh"),
		Diagnostics:   v.GetBool("diagnostics"),
		Quoter:        v.GetString("quoter"),
		MetricsAddr:   v.GetString("metrics-addr"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
	}

	var err error
	if cfg.MaxGasUSD, err = getDecimal(v, "max-gas-usd"); err != nil {
		return Config{}, err
	}
	if cfg.EthUSD, err = getDecimal(v, "eth-usd"); err != nil {
		return Config{}, err
	}
	if err := v.UnmarshalKey("jobs", &cfg.Jobs); err != nil {
		return Config{}, fmt.Errorf("decode jobs: %w", err)
	}

	return cfg, nil
}

func getDecimal(v *viper.Viper, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &d, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, item := range typed {
			out[k] = fmt.Sprintf("%v", item)
		}
		return out
	case string:
		return parseStringMap(typed)
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	default:
		return map[string]string{}
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// parseStringMap reads "a=b,c=d" pairs, skipping malformed ones.
func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
