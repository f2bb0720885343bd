package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v8"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddress           = ":8080"
	defaultAutoAcceptMinutes = 20
	defaultVerifyInterval    = time.Minute
)

type Config struct {
	Address               string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	PaymentGatewayAddress string        `env:"PAYMENT_GATEWAY_ADDRESS"`
	AMQPURI               string        `env:"AMQP_URI"`
	AutoAccept            bool          `env:"AUTO_ACCEPT"`
	AutoAcceptMinutes     int           `env:"AUTO_ACCEPT_MINUTES"`
	VerifyInterval        time.Duration `env:"VERIFY_INTERVAL"`
}

// fileConfig mirrors Config for the optional YAML file pointed to by
// CONFIG_FILE. The interval is a string so "30s" style values work.
type fileConfig struct {
	Address               string `yaml:"address"`
	DatabaseURI           string `yaml:"database_uri"`
	PaymentGatewayAddress string `yaml:"payment_gateway_address"`
	AMQPURI               string `yaml:"amqp_uri"`
	AutoAccept            bool   `yaml:"auto_accept"`
	AutoAcceptMinutes     int    `yaml:"auto_accept_minutes"`
	VerifyInterval        string `yaml:"verify_interval"`
}

// NewConfig builds the configuration with precedence
// defaults < config file < flags < environment.
func NewConfig(args []string) (Config, error) {
	config := Config{
		Address:           defaultAddress,
		AutoAcceptMinutes: defaultAutoAcceptMinutes,
		VerifyInterval:    defaultVerifyInterval,
	}

	if err := config.loadFile(os.Getenv("CONFIG_FILE")); err != nil {
		return Config{}, err
	}

	if err := config.parseFlags(args); err != nil {
		return Config{}, err
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	if err := config.validateConfig(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) loadFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if file.Address != "" {
		c.Address = file.Address
	}
	if file.DatabaseURI != "" {
		c.DatabaseURI = file.DatabaseURI
	}
	if file.PaymentGatewayAddress != "" {
		c.PaymentGatewayAddress = file.PaymentGatewayAddress
	}
	if file.AMQPURI != "" {
		c.AMQPURI = file.AMQPURI
	}
	if file.AutoAccept {
		c.AutoAccept = true
	}
	if file.AutoAcceptMinutes != 0 {
		c.AutoAcceptMinutes = file.AutoAcceptMinutes
	}
	if file.VerifyInterval != "" {
		interval, err := time.ParseDuration(file.VerifyInterval)
		if err != nil {
			return fmt.Errorf("error parsing verify_interval: %w", err)
		}

		c.VerifyInterval = interval
	}

	return nil
}

func (c *Config) parseFlags(args []string) error {
	flags := flag.NewFlagSet("dastarhan", flag.ContinueOnError)

	flags.StringVar(&c.Address, "a", c.Address, "Service address")
	flags.StringVar(&c.DatabaseURI, "d", c.DatabaseURI, "Database URI")
	flags.StringVar(&c.PaymentGatewayAddress, "p", c.PaymentGatewayAddress, "Payment gateway address")
	flags.StringVar(&c.AMQPURI, "q", c.AMQPURI, "AMQP broker URI for notifications")
	flags.BoolVar(&c.AutoAccept, "auto-accept", c.AutoAccept, "Accept orders automatically after payment confirmation")
	flags.IntVar(&c.AutoAcceptMinutes, "auto-accept-minutes", c.AutoAcceptMinutes, "Estimated preparation minutes for auto-accepted orders")
	flags.DurationVar(&c.VerifyInterval, "verify-interval", c.VerifyInterval, "Interval between payment verification sweeps")

	return flags.Parse(args)
}

func (c *Config) validateConfig() error {
	if c.DatabaseURI == "" {
		return fmt.Errorf("database URI is required")
	}

	if _, err := url.ParseRequestURI(c.PaymentGatewayAddress); err != nil {
		return fmt.Errorf("invalid payment gateway address: %w", err)
	}

	if c.AutoAcceptMinutes <= 0 {
		return fmt.Errorf("auto-accept minutes must be positive")
	}

	if c.VerifyInterval <= 0 {
		return fmt.Errorf("verify interval must be positive")
	}

	return nil
}
