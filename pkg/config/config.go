package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Model      ModelConfig
	Prediction PredictionConfig
	Training   TrainingConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type ModelConfig struct {
	ArtifactPath string
	Version      string
}

type PredictionConfig struct {
	BatchWorkers    int
	ExpiryDays      int
	MineCacheTTLSec int
}

type TrainingConfig struct {
	LookbackDays int
	LabelWindow  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ppe-detector")

	viper.SetEnvPrefix("PPE_DETECTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required")
	}
	if c.Prediction.BatchWorkers < 1 {
		return fmt.Errorf("prediction.batchWorkers must be positive")
	}
	if c.Prediction.ExpiryDays < 1 {
		return fmt.Errorf("prediction.expiryDays must be positive")
	}
	// the training window needs room for a reference point plus a full
	// 30-day label window on each side
	if c.Training.LookbackDays < 60 {
		return fmt.Errorf("training.lookbackDays must be at least 60, got %d", c.Training.LookbackDays)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/ppe-detector.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", true)

	viper.SetDefault("model.artifactPath", "./data/risk-model.json")
	viper.SetDefault("model.version", "ensemble-v1")

	viper.SetDefault("prediction.batchWorkers", 8)
	viper.SetDefault("prediction.expiryDays", 7)
	viper.SetDefault("prediction.mineCacheTTLSec", 300)

	viper.SetDefault("training.lookbackDays", 180)
	viper.SetDefault("training.labelWindow", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
