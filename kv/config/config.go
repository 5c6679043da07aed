package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Protocol names accepted by Config.Protocol.
const (
	ProtocolOCC   = "occ"
	ProtocolTwoPL = "2pl"
)

type Config struct {
	LogLevel string `toml:"log-level"`

	DBPath string `toml:"db-path"` // Directory to store the data in. Should exist and be writable.

	Protocol string `toml:"protocol"` // "occ" or "2pl"

	NumThreads    int `toml:"threads"`
	TxnsPerThread int `toml:"txns-per-thread"`

	TotalKeys  int     `toml:"total-keys"`
	HotsetSize int     `toml:"hotset-size"`
	HotsetProb float64 `toml:"hotset-prob"`

	// Base sleep, in microseconds, for the exponential backoff used both by
	// the executor's retry loop and by 2PL lock acquisition. The sleep for
	// retry r is base * 2^min(r,10) plus uniform jitter.
	RetryBackoffBaseUs int `toml:"retry-backoff-base-us"`
	LockBackoffBaseUs  int `toml:"lock-backoff-base-us"`

	// Every account is preloaded with this balance before the run.
	InitialBalance int `toml:"initial-balance"`
}

func (c *Config) Validate() error {
	if c.Protocol != ProtocolOCC && c.Protocol != ProtocolTwoPL {
		return fmt.Errorf("unknown protocol %q, want %q or %q", c.Protocol, ProtocolOCC, ProtocolTwoPL)
	}
	if c.NumThreads <= 0 {
		return fmt.Errorf("threads must be greater than 0")
	}
	if c.TxnsPerThread < 0 {
		return fmt.Errorf("txns-per-thread must not be negative")
	}
	if c.TotalKeys <= 0 {
		return fmt.Errorf("total-keys must be greater than 0")
	}
	if c.HotsetSize <= 0 || c.HotsetSize > c.TotalKeys {
		return fmt.Errorf("hotset-size must be in [1, total-keys], got %d", c.HotsetSize)
	}
	if c.HotsetProb < 0 || c.HotsetProb > 1 {
		return fmt.Errorf("hotset-prob must be in [0, 1], got %v", c.HotsetProb)
	}
	if c.RetryBackoffBaseUs <= 0 || c.LockBackoffBaseUs <= 0 {
		return fmt.Errorf("backoff bases must be greater than 0")
	}
	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:           getLogLevel(),
		DBPath:             "transaction_db",
		Protocol:           ProtocolOCC,
		NumThreads:         4,
		TxnsPerThread:      100,
		TotalKeys:          1000,
		HotsetSize:         10,
		HotsetProb:         0.5,
		RetryBackoffBaseUs: 100,
		LockBackoffBaseUs:  100,
		InitialBalance:     1000,
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:           getLogLevel(),
		DBPath:             "/tmp/tinytxn",
		Protocol:           ProtocolOCC,
		NumThreads:         4,
		TxnsPerThread:      10,
		TotalKeys:          100,
		HotsetSize:         10,
		HotsetProb:         0.5,
		RetryBackoffBaseUs: 50,
		LockBackoffBaseUs:  50,
		InitialBalance:     1000,
	}
}

// LoadFromFile overlays c with the values from a TOML file. Flags parsed
// after the file is loaded win over file values.
func (c *Config) LoadFromFile(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}
