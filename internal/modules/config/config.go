package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	binanceKeyENV     = "BINANCE_API_KEY"
	binanceSecretENV  = "BINANCE_API_SECRET"
)

type Config struct {
	Telegram struct {
		Token     string `mapstructure:"token"`
		ChatID    int64  `mapstructure:"chat_id"`    // notification chat
		ChannelID int64  `mapstructure:"channel_id"` // signal source channel
	} `mapstructure:"telegram"`

	DB string `mapstructure:"db_dsn"`

	Service struct {
		Host      string `mapstructure:"host"`
		AdminPort int    `mapstructure:"admin_port"`
	} `mapstructure:"service"`

	Binance struct {
		APIKey     string `mapstructure:"api_key"`
		APISecret  string `mapstructure:"api_secret"`
		QuoteAsset string `mapstructure:"quote_asset"`
	} `mapstructure:"binance"`

	Trading struct {
		// Fraction of the free balance committed per signal, in percent.
		OrderFractionPct  float64       `mapstructure:"order_fraction_pct"`
		MaxNotional       float64       `mapstructure:"max_notional"`
		MarginMode        string        `mapstructure:"margin_mode"`
		MaxLeverage       int           `mapstructure:"max_leverage"`
		ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	} `mapstructure:"trading"`

	Parser struct {
		RulesFile string `mapstructure:"rules_file"`
	} `mapstructure:"parser"`

	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	v := viper.New()
	v.SetConfigFile("configs/" + configFileName)

	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.admin_port", 8081)
	v.SetDefault("binance.quote_asset", "USDT")
	v.SetDefault("trading.order_fraction_pct", 2.0)
	v.SetDefault("trading.max_notional", 100.0)
	v.SetDefault("trading.margin_mode", "ISOLATED")
	v.SetDefault("trading.max_leverage", 5)
	v.SetDefault("trading.reconcile_interval", "10s")
	v.SetDefault("parser.rules_file", "configs/rules.yaml")
	v.SetDefault("jaeger.host", "127.0.0.1")
	v.SetDefault("jaeger.port", 6831)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if key := os.Getenv(binanceKeyENV); key != "" {
		config.Binance.APIKey = key
	}
	if secret := os.Getenv(binanceSecretENV); secret != "" {
		config.Binance.APISecret = secret
	}

	return config, nil
}
