package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// GatewayConfig captures the orchestrator's runtime settings: where to
// listen, where the registry and blob root live, and the routing
// tunables exposed as environment variables.
type GatewayConfig struct {
	ListenAddr         string  `mapstructure:"listen_addr"`
	RegistryPath       string  `mapstructure:"registry_path"`
	SystemsBaseURL     string  `mapstructure:"systems_base_url"`
	PublicBaseURL      string  `mapstructure:"public_base_url"`
	BlobRoot           string  `mapstructure:"blob_root"`
	DatabaseURL        string  `mapstructure:"database_url"`
	ChatProviderURL    string  `mapstructure:"chat_provider_url"`
	ChatProviderAPIKey string  `mapstructure:"chat_provider_api_key"`
	MinimumListenTime  float64 `mapstructure:"minimum_listen_time"`
	Flakiness          float64 `mapstructure:"flakiness"`
	RateLimitRPS       int     `mapstructure:"rate_limit_rps"`
	RequestTimeoutMs   int     `mapstructure:"request_timeout_ms"`
	Weights            string  `mapstructure:"weights"`
	PrebakedPath       string  `mapstructure:"prebaked_path"`
}

// LoadGateway loads configuration from defaults, an optional
// ./configs/config.yaml, and GATEWAY_-prefixed environment variables, in
// that order of increasing precedence. A few keys (MINIMUM_LISTEN_TIME,
// SYSTEMS_BASE_URL, FLAKINESS) are also bound unprefixed via explicit
// BindEnv so deployments that don't namespace their env vars still work.
func LoadGateway() (GatewayConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("GATEWAY")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("registry_path", "registry.yaml")
	v.SetDefault("systems_base_url", "http://localhost")
	v.SetDefault("public_base_url", "")
	v.SetDefault("blob_root", "./data/blobs")
	v.SetDefault("database_url", "")
	v.SetDefault("chat_provider_url", "")
	v.SetDefault("chat_provider_api_key", "")
	v.SetDefault("minimum_listen_time", 5.0)
	v.SetDefault("flakiness", 0.0)
	v.SetDefault("rate_limit_rps", 20)
	v.SetDefault("request_timeout_ms", 30000)
	v.SetDefault("weights", "")
	v.SetDefault("prebaked_path", "prebaked.json")

	_ = v.BindEnv("minimum_listen_time", "MINIMUM_LISTEN_TIME")
	_ = v.BindEnv("systems_base_url", "SYSTEMS_BASE_URL")
	_ = v.BindEnv("flakiness", "FLAKINESS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return GatewayConfig{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
