package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server `mapstructure:"server"`
	Ledger Ledger `mapstructure:"ledger"`
	IPFS   IPFS   `mapstructure:"ipfs"`
	Redis  Redis  `mapstructure:"redis"`
	Fetch  Fetch  `mapstructure:"fetch"`
}

type Server struct {
	Port           int     `mapstructure:"port"`
	TimeoutSeconds int     `mapstructure:"timeoutSeconds"`
	RateLimitRPS   float64 `mapstructure:"rateLimitRps"`
	RateLimitBurst int     `mapstructure:"rateLimitBurst"`
}

type Ledger struct {
	RPCURL          string `mapstructure:"rpcUrl"`
	ContractAddress string `mapstructure:"contractAddress"`
	DefaultSigner   string `mapstructure:"defaultSigner"`
}

type IPFS struct {
	APIURL string `mapstructure:"apiUrl"`
}

type Redis struct {
	URL string `mapstructure:"url"`
}

// Fetch bounds the retrieval fan-out against the content store.
type Fetch struct {
	Concurrency       int `mapstructure:"concurrency"`
	ProfileTTLSeconds int `mapstructure:"profileTtlSeconds"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("server.rateLimitRps", 50)
	viper.SetDefault("server.rateLimitBurst", 100)
	viper.SetDefault("ipfs.apiUrl", "localhost:5001")
	viper.SetDefault("fetch.concurrency", 8)
	viper.SetDefault("fetch.profileTtlSeconds", 300)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Ledger.RPCURL == "" {
		return nil, fmt.Errorf("ledger.rpcUrl is required")
	}
	if config.Ledger.ContractAddress == "" {
		return nil, fmt.Errorf("ledger.contractAddress is required")
	}

	return &config, nil
}
