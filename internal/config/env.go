package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// AppName names the data directory and the database file
const AppName = "exchange-json-rpc"

// Config contains all configuration parameters for the application.
type Config struct {
	Host    string `envconfig:"HOST" default:"127.0.0.1"`
	Port    int    `envconfig:"PORT" default:"8080"`
	Network string `envconfig:"NETWORK" default:"devnet"`

	// Peer pins every request to one node, disabling discovery
	Peer       string `envconfig:"PEER"`
	PeerPort   int    `envconfig:"PEER_PORT" default:"4003"`
	SeedSource string `envconfig:"SEED_SOURCE" default:"https://raw.githubusercontent.com/ArkEcosystem/peers/master"`

	AllowRemote bool     `envconfig:"ALLOW_REMOTE" default:"false"`
	Whitelist   []string `envconfig:"WHITELIST" default:"127.0.0.1,::ffff:127.0.0.1,::1"`

	DataPath string `envconfig:"DATA_PATH"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"3s"`
	ProbeTimeout        time.Duration `envconfig:"PROBE_TIMEOUT" default:"1s"`
	MaxAttempts         int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	MaxPeerProbes       int           `envconfig:"MAX_PEER_PROBES" default:"10"`
	PeerRefreshInterval time.Duration `envconfig:"PEER_REFRESH_INTERVAL" default:"0"`
	RateLimit           int           `envconfig:"RATE_LIMIT" default:"0"`
	CacheSize           int           `envconfig:"CACHE_SIZE" default:"256"`
	FeeCacheTTL         time.Duration `envconfig:"FEE_CACHE_TTL" default:"1m"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if _, err := crypto.NetworkByName(c.Network); err != nil {
		return err
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PeerPort < 1 || c.PeerPort > 65535 {
		return fmt.Errorf("invalid peer port %d", c.PeerPort)
	}
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.MaxPeerProbes < 1 {
		return errors.New("max peer probes must be at least 1")
	}
	if c.RequestTimeout <= 0 || c.ProbeTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.PeerRefreshInterval < 0 || c.RateLimit < 0 {
		return errors.New("refresh interval and rate limit cannot be negative")
	}
	if !c.AllowRemote && len(c.Whitelist) == 0 {
		return errors.New("whitelist cannot be empty when remote access is disabled")
	}
	return nil
}

// CryptoNetwork returns the parameters of the configured network
func (c *Config) CryptoNetwork() crypto.Network {
	n, _ := crypto.NetworkByName(c.Network)
	return n
}

// DatabasePath is DATA_PATH or $XDG_DATA_HOME/exchange-json-rpc/<network>/exchange-json-rpc.db
func (c *Config) DatabasePath() string {
	if c.DataPath != "" {
		return filepath.Join(c.DataPath, AppName+".db")
	}

	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, AppName, c.Network, AppName+".db")
}

// ListenAddress is host:port for the HTTP server
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PromptForPassword reads a password from the terminal without echoing it.
// Caller must zero the returned slice after use.
func PromptForPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run interactively to enter password")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	return raw, nil
}
