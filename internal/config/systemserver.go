package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SystemServerConfig captures one generator process's runtime settings:
// which port to serve on, and the batching/GPU tunables passed straight
// into systemserver.Config.
type SystemServerConfig struct {
	ListenAddr      string  `mapstructure:"listen_addr"`
	MaxBatchSize    int     `mapstructure:"max_batch_size"`
	MaxDelayMs      int     `mapstructure:"max_delay_ms"`
	QueueCapacity   int     `mapstructure:"queue_capacity"`
	GPUTotalGB      float64 `mapstructure:"gpu_total_gb"`
	GPUMemGBPerItem float64 `mapstructure:"gpu_mem_gb_per_item"`
}

// LoadSystemServer loads configuration from defaults, an optional
// ./configs/config.yaml, and SYSTEM_SERVER_-prefixed environment
// variables, in that order of increasing precedence.
func LoadSystemServer() (SystemServerConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("SYSTEM_SERVER")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("max_batch_size", 8)
	v.SetDefault("max_delay_ms", 2000)
	v.SetDefault("queue_capacity", 64)
	v.SetDefault("gpu_total_gb", 0.0)
	v.SetDefault("gpu_mem_gb_per_item", 0.0)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return SystemServerConfig{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg SystemServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SystemServerConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
