// Package config загружает настройки сервера: значения по умолчанию,
// YAML файл, переменные окружения и флаги командной строки.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret используется только для локальной разработки
const DefaultJWTSecret = "nodekeeper-dev-secret-change-me"

// Драйверы хранилища
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	envPrefix = "NODEKEEPER"
	fileName  = "nodekeeper"
)

// Config - полная конфигурация сервера
type Config struct {
	Provisioning ProvisioningConfig `mapstructure:"provisioning" yaml:"provisioning"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	JWT          JWTConfig          `mapstructure:"jwt" yaml:"jwt"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit" yaml:"ratelimit"`
}

// ServerConfig - HTTP сервер
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr возвращает адрес для net.Listen
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig - хранилище аккаунтов
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// JWTConfig - токены сессии
type JWTConfig struct {
	Secret string        `mapstructure:"secret" yaml:"secret"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// ProvisioningConfig - удаленный сервис провижининга нод
type ProvisioningConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	CertPath string `mapstructure:"cert_path" yaml:"cert_path"`
	KeyPath  string `mapstructure:"key_path" yaml:"key_path"`
	CAPath   string `mapstructure:"ca_path" yaml:"ca_path"`
	Network  string `mapstructure:"network" yaml:"network"`
}

// RateLimitConfig - ограничение частоты запросов к /auth
type RateLimitConfig struct {
	AuthRequests int           `mapstructure:"auth_requests" yaml:"auth_requests"`
	AuthWindow   time.Duration `mapstructure:"auth_window" yaml:"auth_window"`
}

// LogConfig - уровень и формат логов
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "nodekeeper.db",
		},
		JWT: JWTConfig{
			Secret: DefaultJWTSecret,
			TTL:    24 * time.Hour,
		},
		Provisioning: ProvisioningConfig{
			Address:  "scheduler.gl.blckstrm.com:2601",
			CertPath: "./client.crt",
			KeyPath:  "./client-key.pem",
			Network:  "bitcoin",
		},
		RateLimit: RateLimitConfig{
			AuthRequests: 10,
			AuthWindow:   time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaults раскладывает Default() в ключи viper
func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"server.host":             d.Server.Host,
		"server.port":             d.Server.Port,
		"server.shutdown_timeout": d.Server.ShutdownTimeout,
		"database.driver":         d.Database.Driver,
		"database.dsn":            d.Database.DSN,
		"jwt.secret":              d.JWT.Secret,
		"jwt.ttl":                 d.JWT.TTL,
		"provisioning.address":    d.Provisioning.Address,
		"provisioning.cert_path":  d.Provisioning.CertPath,
		"provisioning.key_path":   d.Provisioning.KeyPath,
		"provisioning.ca_path":    d.Provisioning.CAPath,
		"provisioning.network":    d.Provisioning.Network,
		"ratelimit.auth_requests": d.RateLimit.AuthRequests,
		"ratelimit.auth_window":   d.RateLimit.AuthWindow,
		"log.level":               d.Log.Level,
		"log.format":              d.Log.Format,
	}
}

// legacyEnv - имена переменных окружения без префикса, которые тоже читаются
var legacyEnv = map[string]string{
	"server.host":            "HOST",
	"server.port":            "PORT",
	"database.dsn":           "DATABASE_URL",
	"jwt.secret":             "JWT_SECRET",
	"provisioning.cert_path": "GL_CERT_PATH",
	"provisioning.key_path":  "GL_KEY_PATH",
	"provisioning.network":   "GL_NETWORK",
}

// FlagKeys связывает имена флагов с ключами конфигурации
var FlagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"db-driver": "database.driver",
	"db-dsn":    "database.dsn",
	"log-level": "log.level",
}

// Load читает конфигурацию. Приоритет: флаги, окружение, файл, значения по умолчанию.
// path - явный путь к файлу (--config), пустой - поиск nodekeeper.yaml в стандартных каталогах.
// flags может быть nil.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "nodekeeper"))
		}
		v.AddConfigPath("/etc/nodekeeper")
	}

	if err := v.ReadInConfig(); err != nil {
		// Отсутствие файла в стандартных каталогах - не ошибка, явно указанного - ошибка
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", legacy, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt.ttl must be positive"))
	}
	switch c.Provisioning.Network {
	case "bitcoin", "testnet", "signet", "regtest":
	default:
		errs = append(errs, fmt.Errorf("provisioning.network %q is not supported", c.Provisioning.Network))
	}
	if c.RateLimit.AuthRequests <= 0 || c.RateLimit.AuthWindow <= 0 {
		errs = append(errs, errors.New("ratelimit.auth_requests and ratelimit.auth_window must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesDefaultSecret сообщает, что подпись токенов использует секрет для разработки
func (c *Config) UsesDefaultSecret() bool {
	return c.JWT.Secret == DefaultJWTSecret
}

// WriteFile сохраняет конфигурацию в YAML. Файл может содержать секрет, права 0600.
func WriteFile(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
