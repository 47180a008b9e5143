package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

// LedgerConfig identifies this deployment and seeds the central authority.
type LedgerConfig struct {
	// ID is bound into every voucher payload, preventing cross-environment replay.
	ID          string            `mapstructure:"id"`
	CentralBank CentralBankConfig `mapstructure:"central_bank"`
}

// CentralBankConfig bootstraps the central-bank operator on first start.
type CentralBankConfig struct {
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Name      string `mapstructure:"name"`
	AccountID string `mapstructure:"account_id"`
}

// PolicyConfig is the tier limit table. Amounts are minor currency units.
type PolicyConfig struct {
	Tier0 TierPolicyConfig `mapstructure:"tier0"`
	Tier1 TierPolicyConfig `mapstructure:"tier1"`
	Tier2 TierPolicyConfig `mapstructure:"tier2"`
}

type TierPolicyConfig struct {
	DailyTransferLimit int64         `mapstructure:"daily_transfer_limit"`
	OfflineMaxBalance  int64         `mapstructure:"offline_max_balance"`
	OfflineTxLimit     int64         `mapstructure:"offline_tx_limit"`
	OfflineVoucherTTL  time.Duration `mapstructure:"offline_voucher_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CBL_ (CBDC Ledger).
// Nested keys use underscore: CBL_DATABASE_HOST, CBL_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "cbdc_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "cbdc-ledger")
	v.SetDefault("aes.key", "")
	v.SetDefault("ledger.id", "cbdc-ledger-dev")
	v.SetDefault("ledger.central_bank.username", "central-bank")
	v.SetDefault("ledger.central_bank.password", "")
	v.SetDefault("ledger.central_bank.name", "Central Bank")
	v.SetDefault("ledger.central_bank.account_id", "cb-reserve")
	// Tier limits mirror the pilot risk rules: tight caps at tier 0,
	// loosened as KYC strengthens. Offline TTL is the device sync window.
	v.SetDefault("policy.tier0.daily_transfer_limit", 50_000_00)
	v.SetDefault("policy.tier0.offline_max_balance", 500_00)
	v.SetDefault("policy.tier0.offline_tx_limit", 50_00)
	v.SetDefault("policy.tier0.offline_voucher_ttl", "168h")
	v.SetDefault("policy.tier1.daily_transfer_limit", 500_000_00)
	v.SetDefault("policy.tier1.offline_max_balance", 2_000_00)
	v.SetDefault("policy.tier1.offline_tx_limit", 200_00)
	v.SetDefault("policy.tier1.offline_voucher_ttl", "168h")
	v.SetDefault("policy.tier2.daily_transfer_limit", 5_000_000_00)
	v.SetDefault("policy.tier2.offline_max_balance", 10_000_00)
	v.SetDefault("policy.tier2.offline_tx_limit", 1_000_00)
	v.SetDefault("policy.tier2.offline_voucher_ttl", "336h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CBL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CBL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
