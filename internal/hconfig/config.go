// Package hconfig loads Harbor's process configuration: a default YAML
// file under config/, optionally merged with an environment-specific
// override, then overlaid with environment variables via Viper. This
// mirrors the teacher's pkg/config.Load (default + env merge +
// viper.AutomaticEnv), generalized from a blockchain node's
// network/consensus/VM sections to Harbor's identity/transport/store
// sections.
package hconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the unified configuration for any Harbor process (full
// client, bootstrap node, or relay).
type Config struct {
	Identity struct {
		DataDir string `mapstructure:"data_dir"`
	} `mapstructure:"identity"`

	Transport struct {
		ListenPort     int      `mapstructure:"listen_port"`
		ExternalIP     string   `mapstructure:"external_ip"`
		DiscoveryTag   string   `mapstructure:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers"`
		EnableRelay    bool     `mapstructure:"enable_relay"`
	} `mapstructure:"transport"`

	Store struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"store"`

	Media struct {
		Root           string `mapstructure:"root"`
		ChunkSizeBytes int    `mapstructure:"chunk_size_bytes"`
	} `mapstructure:"media"`

	Relay struct {
		Community            bool   `mapstructure:"community"`
		CommunityName        string `mapstructure:"community_name"`
		MaxReservations      int    `mapstructure:"max_reservations"`
		MaxCircuitsPerPeer   int    `mapstructure:"max_circuits_per_peer"`
		MaxCircuits          int    `mapstructure:"max_circuits"`
		RateLimitMaxRequests int    `mapstructure:"rate_limit_max_requests"`
		RateLimitWindowSecs  int    `mapstructure:"rate_limit_window_secs"`
	} `mapstructure:"relay"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Load reads config/default.yaml, merges config/<env>.yaml on top of it
// when env is non-empty, then applies environment variable overrides
// (HARBOR_ prefixed, e.g. HARBOR_TRANSPORT_LISTEN_PORT).
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.AddConfigPath("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("hconfig: load default config: %w", err)
	}

	if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("hconfig: merge %s config: %w", env, err)
		}
	}

	v.SetEnvPrefix("harbor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("hconfig: unmarshal config: %w", err)
	}
	return &cfg, nil
}
