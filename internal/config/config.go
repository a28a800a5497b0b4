package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	MergeDelay         time.Duration `mapstructure:"merge_delay"`
	SwapAfterMerge     bool          `mapstructure:"swap_after_merge"`
	MultipartyCapacity int           `mapstructure:"multiparty_capacity"`

	EmergencyRetryInterval time.Duration `mapstructure:"emergency_retry_interval"`
	EmergencyRetryBudget   int           `mapstructure:"emergency_retry_budget"`

	// AlertMode is one of off, vibrate, tone, tone_vibrate.
	AlertMode string `mapstructure:"alert_mode"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("merge_delay", "6s")
	v.SetDefault("swap_after_merge", true)
	v.SetDefault("multiparty_capacity", 5)
	v.SetDefault("emergency_retry_interval", "5s")
	v.SetDefault("emergency_retry_budget", 5)
	v.SetDefault("alert_mode", "tone_vibrate")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | MergeDelay: %s\n", cfg.Mode, cfg.Port, cfg.MergeDelay)
	return &cfg, nil
}
