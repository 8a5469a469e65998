package corestate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-decoded process configuration: the serializable
// subset of Snapshot's shape (gossip seeds, fail2ban tuning, fallback
// admin, protocol limits, relay hosts, network policy). Building the
// in-scope interface fields of a Snapshot (Directories, LookupStores, ARC
// sealers, DKIM signers) from this Config is left to the caller, since
// those backends are out of scope; Config only carries what the
// in-scope components need.
type Config struct {
	Listen        ListenConfig         `yaml:"listen"`
	Gossip        GossipConfig         `yaml:"gossip"`
	Fail2Ban      Fail2BanConfig       `yaml:"fail2ban"`
	FallbackAdmin FallbackAdminYAML    `yaml:"fallback_admin"`
	JMAP          JMAPConfig           `yaml:"jmap"`
	Network       NetworkYAML          `yaml:"network"`
	RelayHosts    map[string]RelayHost `yaml:"relay_hosts"`
	DatabasePath  string               `yaml:"database_path"`
}

type ListenConfig struct {
	HTTPAddr      string `yaml:"http_addr"`
	GossipUDPAddr string `yaml:"gossip_udp_addr"`
}

type GossipConfig struct {
	Seeds []string `yaml:"seeds"`
}

type Fail2BanConfig struct {
	Enabled   bool `yaml:"enabled"`
	Threshold int  `yaml:"threshold"`
	WindowSec int  `yaml:"window_seconds"`
}

type FallbackAdminYAML struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`
	Master       bool   `yaml:"master"`
}

type JMAPConfig struct {
	MaxSizeRequest    int `yaml:"max_size_request"`
	MaxCallsInRequest int `yaml:"max_calls_in_request"`
}

type NetworkYAML struct {
	BlockedIPs []string `yaml:"blocked_ips"`
	URLExpr    string   `yaml:"url_expr"`
}

// LoadConfig reads and validates a Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corestate: read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates raw YAML config bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("corestate: parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("corestate: invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.HTTPAddr == "" {
		cfg.Listen.HTTPAddr = ":8080"
	}
	if cfg.Listen.GossipUDPAddr == "" {
		cfg.Listen.GossipUDPAddr = ":7946"
	}
	if cfg.JMAP.MaxSizeRequest == 0 {
		cfg.JMAP.MaxSizeRequest = 10 * 1024 * 1024
	}
	if cfg.JMAP.MaxCallsInRequest == 0 {
		cfg.JMAP.MaxCallsInRequest = 16
	}
	if cfg.Fail2Ban.Threshold == 0 {
		cfg.Fail2Ban.Threshold = 5
	}
	if cfg.Fail2Ban.WindowSec == 0 {
		cfg.Fail2Ban.WindowSec = 900
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./coremail.db"
	}
}

// Validate applies per-section structural checks, one validateX helper per
// config section.
func Validate(cfg *Config) error {
	if err := validateListen(cfg.Listen); err != nil {
		return err
	}
	if err := validateFail2Ban(cfg.Fail2Ban); err != nil {
		return err
	}
	if err := validateFallbackAdmin(cfg.FallbackAdmin); err != nil {
		return err
	}
	if err := validateJMAP(cfg.JMAP); err != nil {
		return err
	}
	return nil
}

func validateListen(l ListenConfig) error {
	if l.HTTPAddr == "" {
		return fmt.Errorf("listen.http_addr must not be empty")
	}
	if l.GossipUDPAddr == "" {
		return fmt.Errorf("listen.gossip_udp_addr must not be empty")
	}
	return nil
}

func validateFail2Ban(f Fail2BanConfig) error {
	if f.Enabled && f.Threshold <= 0 {
		return fmt.Errorf("fail2ban.threshold must be positive when fail2ban is enabled")
	}
	if f.Enabled && f.WindowSec <= 0 {
		return fmt.Errorf("fail2ban.window_seconds must be positive when fail2ban is enabled")
	}
	return nil
}

func validateFallbackAdmin(a FallbackAdminYAML) error {
	if a.Name == "" && a.PasswordHash == "" {
		return nil // fallback admin not configured at all
	}
	if a.Name == "" {
		return fmt.Errorf("fallback_admin.name must be set when password_hash is set")
	}
	if a.PasswordHash == "" {
		return fmt.Errorf("fallback_admin.password_hash must be set when name is set")
	}
	return nil
}

func validateJMAP(j JMAPConfig) error {
	if j.MaxSizeRequest <= 0 {
		return fmt.Errorf("jmap.max_size_request must be positive")
	}
	if j.MaxCallsInRequest <= 0 {
		return fmt.Errorf("jmap.max_calls_in_request must be positive")
	}
	return nil
}
