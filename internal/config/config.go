package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	LoopIntervalSeconds     int    `mapstructure:"LOOP_INTERVAL_SECONDS"`
	ICUCapacityThreshold    int    `mapstructure:"ICU_CAPACITY_THRESHOLD"`
	FatigueThresholdHours   int    `mapstructure:"FATIGUE_THRESHOLD_HOURS"`
	FatigueWarningHours     int    `mapstructure:"FATIGUE_WARNING_HOURS"`
	MaxPatientsPerDoctor    int    `mapstructure:"MAX_PATIENTS_PER_DOCTOR"`
	MaxPatientsPerNurse     int    `mapstructure:"MAX_PATIENTS_PER_NURSE"`
	SnapshotPath            string `mapstructure:"SNAPSHOT_PATH"`
	SnapshotIntervalSeconds int    `mapstructure:"SNAPSHOT_INTERVAL_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOOP_INTERVAL_SECONDS", 5)
	v.SetDefault("ICU_CAPACITY_THRESHOLD", 80)
	v.SetDefault("FATIGUE_THRESHOLD_HOURS", 12)
	v.SetDefault("FATIGUE_WARNING_HOURS", 10)
	v.SetDefault("MAX_PATIENTS_PER_DOCTOR", 5)
	v.SetDefault("MAX_PATIENTS_PER_NURSE", 8)
	v.SetDefault("SNAPSHOT_PATH", "data/snapshot.json")
	v.SetDefault("SNAPSHOT_INTERVAL_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("LOOP_INTERVAL_SECONDS")
	v.BindEnv("ICU_CAPACITY_THRESHOLD")
	v.BindEnv("FATIGUE_THRESHOLD_HOURS")
	v.BindEnv("FATIGUE_WARNING_HOURS")
	v.BindEnv("MAX_PATIENTS_PER_DOCTOR")
	v.BindEnv("MAX_PATIENTS_PER_NURSE")
	v.BindEnv("SNAPSHOT_PATH")
	v.BindEnv("SNAPSHOT_INTERVAL_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.LoopIntervalSeconds <= 0 {
		return fmt.Errorf("LOOP_INTERVAL_SECONDS must be positive")
	}
	if c.ICUCapacityThreshold <= 0 || c.ICUCapacityThreshold > 100 {
		return fmt.Errorf("ICU_CAPACITY_THRESHOLD must be in (0,100]")
	}
	if c.FatigueWarningHours > c.FatigueThresholdHours {
		return fmt.Errorf("FATIGUE_WARNING_HOURS exceeds FATIGUE_THRESHOLD_HOURS")
	}
	if c.MaxPatientsPerDoctor <= 0 || c.MaxPatientsPerNurse <= 0 {
		return fmt.Errorf("staff capacity limits must be positive")
	}
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.LoopIntervalSeconds) * time.Second
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}
