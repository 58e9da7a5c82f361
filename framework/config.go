package framework

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile      = "brownie-config.yaml"
	DefaultDeploymentsPath = "build/deployments.db"
)

type Config struct {
	Networks    NetworksConfig    `yaml:"networks"`
	Wallets     WalletsConfig     `yaml:"wallets"`
	Deployments DeploymentsConfig `yaml:"deployments"`
}

// NetworksConfig maps network names to connection settings. The reserved key
// "default" names the network used when none is selected.
type NetworksConfig struct {
	Default string
	Named   map[string]NetworkConfig
}

type NetworkConfig struct {
	Host    string `yaml:"host"`     // RPC endpoint
	ChainID uint64 `yaml:"chain_id"` // optional, checked against the node
}

type WalletsConfig struct {
	FromKey string `yaml:"from_key"`
}

type DeploymentsConfig struct {
	Path         string `yaml:"path"`          // sqlite file, empty disables recording
	DevArtifacts bool   `yaml:"dev_artifacts"` // also record development deployments
}

func DefaultConfig() *Config {
	return &Config{
		Networks: NetworksConfig{
			Default: DevelopmentNetwork,
			Named:   map[string]NetworkConfig{},
		},
		Deployments: DeploymentsConfig{
			Path: DefaultDeploymentsPath,
		},
	}
}

// LoadConfig reads a YAML config file, expanding ${VAR} references from the
// environment first. A missing file yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(strings.NewReader(os.ExpandEnv(string(data))))
}

func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeStrict(r, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Network returns the settings of a named live network.
func (c *Config) Network(name string) (NetworkConfig, error) {
	nc, ok := c.Networks.Named[name]
	if !ok || nc.Host == "" {
		return NetworkConfig{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return nc, nil
}

// ActiveNetwork resolves the network to use: the explicit selection, then the
// configured default, then the development network.
func (c *Config) ActiveNetwork(selected string) string {
	if selected != "" {
		return selected
	}
	if c.Networks.Default != "" {
		return c.Networks.Default
	}
	return DevelopmentNetwork
}

func (n *NetworksConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("networks: expected a mapping, got %s", value.Tag)
	}
	if n.Named == nil {
		n.Named = map[string]NetworkConfig{}
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		if key == "default" {
			if err := val.Decode(&n.Default); err != nil {
				return fmt.Errorf("networks.default: %w", err)
			}
			continue
		}
		// Node.Decode does not inherit KnownFields, re-decode strictly.
		raw, err := yaml.Marshal(val)
		if err != nil {
			return fmt.Errorf("networks.%s: %w", key, err)
		}
		var nc NetworkConfig
		if err := decodeStrict(bytes.NewReader(raw), &nc); err != nil {
			return fmt.Errorf("networks.%s: %w", key, err)
		}
		n.Named[key] = nc
	}
	return nil
}

// decodeStrict decodes YAML and rejects unknown fields. An empty document
// leaves out untouched.
func decodeStrict(r io.Reader, out interface{}) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
