package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"okinoko_governor/contract"
	"okinoko_governor/contract/dao"
	"okinoko_governor/sdk"
)

type ctxKey string

const configContextKey ctxKey = "governor.config"

// EnvPrefix is prepended to every environment override, e.g. GOVERNOR_DATA_DIR.
const EnvPrefix = "governor"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DataDir    string `yaml:"dataDir"    split_words:"true"`
	InMemory   bool   `yaml:"inMemory"   split_words:"true"`
	IndexerDir string `yaml:"indexerDir" split_words:"true"`
	BindAddr   string `yaml:"bindAddr"   split_words:"true"`
	Port       uint   `yaml:"port"`

	AdminAddress    sdk.Address `yaml:"adminAddress"    split_words:"true"`
	TokenAddress    sdk.Address `yaml:"tokenAddress"    split_words:"true"`
	TreasuryAddress sdk.Address `yaml:"treasuryAddress" split_words:"true"`
	GovernorAddress sdk.Address `yaml:"governorAddress" split_words:"true"`

	ProposalThreshold uint64        `yaml:"proposalThreshold" split_words:"true"`
	VotingPeriod      time.Duration `yaml:"votingPeriod"      split_words:"true"`
	QuorumVotes       uint64        `yaml:"quorumVotes"       split_words:"true"`
}

// DefaultConfig is what LoadConfig starts from before the file and the
// environment are applied.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           ".governor",
		BindAddr:          "127.0.0.1",
		Port:              8090,
		AdminAddress:      "hive:admin",
		TokenAddress:      "contract:token",
		TreasuryAddress:   "contract:treasury",
		GovernorAddress:   "contract:governor",
		ProposalThreshold: contract.FallbackProposalThreshold,
		VotingPeriod:      time.Duration(contract.FallbackVotingPeriodSecs) * time.Second,
		QuorumVotes:       contract.FallbackQuorumVotes,
	}
}

// LoadConfig reads configFile, or ~/.governor/governor.yaml, or
// /etc/governor/governor.yaml when it is empty, then applies GOVERNOR_*
// environment overrides.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".governor", "governor.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/governor/governor.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate catches settings the components would reject later anyway, so
// a bad file fails at startup rather than on the first deploy.
func (c *Config) Validate() error {
	if c.VotingPeriod < time.Second {
		return fmt.Errorf("invalid votingPeriod %s: must be at least 1s", c.VotingPeriod)
	}
	if c.VotingPeriod%time.Second != 0 {
		return fmt.Errorf("invalid votingPeriod %s: must be whole seconds", c.VotingPeriod)
	}
	for name, addr := range map[string]sdk.Address{
		"tokenAddress":    c.TokenAddress,
		"treasuryAddress": c.TreasuryAddress,
		"governorAddress": c.GovernorAddress,
	} {
		if addr.IsNull() {
			return fmt.Errorf("%s must be set", name)
		}
	}
	if c.TokenAddress == c.TreasuryAddress || c.TokenAddress == c.GovernorAddress || c.TreasuryAddress == c.GovernorAddress {
		return errors.New("contract addresses must be distinct")
	}
	return nil
}

// GovernorDefaults is the configuration a freshly deployed governor starts with.
func (c *Config) GovernorDefaults() dao.GovernorConfig {
	return dao.GovernorConfig{
		ProposalThreshold: c.ProposalThreshold,
		VotingPeriod:      int64(c.VotingPeriod / time.Second),
		QuorumVotes:       c.QuorumVotes,
	}
}

// ListenAddr is the host:port served by `governor serve`.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}
