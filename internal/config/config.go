package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yml"

type OwnershipRule struct {
	Method    string `yaml:"method"`
	Path      string `yaml:"path"`
	Source    string `yaml:"source"`
	ParamName string `yaml:"paramName"`
}

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	LogLevel        string `yaml:"log_level"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	Issuer     string `yaml:"issuer"`
	AccessTTL  string `yaml:"access_ttl"`
	RefreshTTL string `yaml:"refresh_ttl"`
}

type SecurityConfig struct {
	BcryptCost          int    `yaml:"bcrypt_cost"`
	LockoutThreshold    int    `yaml:"lockout_threshold"`
	LockoutDuration     string `yaml:"lockout_duration"`
	AutoUnlock          *bool  `yaml:"auto_unlock"`
	MaintenanceInterval string `yaml:"maintenance_interval"`
	LoginThrottleLimit  int    `yaml:"login_throttle_limit"`
	LoginThrottleWindow string `yaml:"login_throttle_window"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

// BootstrapAdmin describes the super admin created at startup when no account uses its username
type BootstrapAdmin struct {
	Username   string `yaml:"username"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	EmployeeID string `yaml:"employee_id"`
}

type ConfigFile struct {
	App       AppConfig      `yaml:"app"`
	Database  DatabaseConfig `yaml:"database"`
	Redis     RedisConfig    `yaml:"redis"`
	JWT       JWTConfig      `yaml:"jwt"`
	Security  SecurityConfig `yaml:"security"`
	Kafka     KafkaConfig    `yaml:"kafka"`
	Log       LogConfig      `yaml:"log"`
	Casbin    CasbinConfig   `yaml:"casbin"`
	Bootstrap BootstrapAdmin `yaml:"bootstrap_admin"`
}

type Config struct {
	Port    string
	GinMode string

	DSN               string
	DBLogLevel        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	JWTIssuer  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	BcryptCost          int
	LockoutThreshold    int
	LockoutDuration     time.Duration
	AutoUnlock          bool
	MaintenanceInterval time.Duration
	LoginThrottleLimit  int
	LoginThrottleWindow time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string

	CasbinModelPath string
	OwnershipRules  []OwnershipRule
	BootstrapAdmin  BootstrapAdmin
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env (when present), the YAML file named by CONFIG_PATH and the
// ownership rules next to it, then applies environment overrides.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return LoadFrom(env("CONFIG_PATH", defaultConfigPath))
}

// LoadFrom builds a Config from the YAML file at path plus environment overrides
func LoadFrom(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg := &Config{
		Port:            fmt.Sprintf("%d", configFile.App.Port),
		GinMode:         configFile.App.GinMode,
		DSN:             env("DATABASE_DSN", configFile.Database.DSN),
		DBLogLevel:      configFile.Database.LogLevel,
		DBMaxOpenConns:  configFile.Database.MaxOpenConns,
		DBMaxIdleConns:  configFile.Database.MaxIdleConns,
		RedisAddr:       env("REDIS_ADDR", configFile.Redis.Addr),
		RedisPassword:   env("REDIS_PASSWORD", configFile.Redis.Password),
		RedisDB:         configFile.Redis.DB,
		JWTSecret:       env("JWT_SECRET", configFile.JWT.Secret),
		JWTIssuer:       configFile.JWT.Issuer,
		BcryptCost:      configFile.Security.BcryptCost,
		KafkaBrokers:    configFile.Kafka.Brokers,
		KafkaTopic:      configFile.Kafka.Topic,
		LogLevel:        env("LOG_LEVEL", configFile.Log.Level),
		LogFormat:       env("LOG_FORMAT", configFile.Log.Format),
		CasbinModelPath: configFile.Casbin.ModelPath,
		BootstrapAdmin:  configFile.Bootstrap,

		LockoutThreshold:   configFile.Security.LockoutThreshold,
		AutoUnlock:         true,
		LoginThrottleLimit: configFile.Security.LoginThrottleLimit,
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if cfg.Port == "0" {
		cfg.Port = "8080"
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "bookauth"
	}
	if cfg.LockoutThreshold == 0 {
		cfg.LockoutThreshold = 5
	}
	if configFile.Security.AutoUnlock != nil {
		cfg.AutoUnlock = *configFile.Security.AutoUnlock
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		cfg.BootstrapAdmin.Password = v
	}

	durations := []struct {
		name   string
		raw    string
		def    time.Duration
		target *time.Duration
	}{
		{"jwt access ttl", configFile.JWT.AccessTTL, 15 * time.Minute, &cfg.AccessTTL},
		{"jwt refresh ttl", configFile.JWT.RefreshTTL, 7 * 24 * time.Hour, &cfg.RefreshTTL},
		{"lockout duration", configFile.Security.LockoutDuration, 30 * time.Minute, &cfg.LockoutDuration},
		{"maintenance interval", configFile.Security.MaintenanceInterval, time.Minute, &cfg.MaintenanceInterval},
		{"login throttle window", configFile.Security.LoginThrottleWindow, time.Minute, &cfg.LoginThrottleWindow},
		{"database conn max lifetime", configFile.Database.ConnMaxLifetime, 0, &cfg.DBConnMaxLifetime},
	}
	for _, d := range durations {
		if *d.target, err = parseDuration(d.raw, d.def); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	// millisecond overrides used by deployments that template plain integers
	if cfg.AccessTTL, err = millisOverride("JWT_ACCESS_TTL_MS", cfg.AccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = millisOverride("JWT_REFRESH_TTL_MS", cfg.RefreshTTL); err != nil {
		return nil, err
	}

	cfg.OwnershipRules, err = loadOwnershipRules(filepath.Join(filepath.Dir(path), "ownership_rules.yml"))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run safely with
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("jwt secret must be at least 32 characters"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("jwt access ttl must be positive"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("jwt refresh ttl must be positive"))
	}
	if c.AccessTTL > c.RefreshTTL {
		errs = append(errs, errors.New("jwt access ttl must not exceed refresh ttl"))
	}
	if c.LockoutThreshold < 1 {
		errs = append(errs, errors.New("lockout threshold must be at least 1"))
	}
	if c.LockoutDuration <= 0 {
		errs = append(errs, errors.New("lockout duration must be positive"))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.BootstrapAdmin.Username != "" && len(c.BootstrapAdmin.Password) < 8 {
		errs = append(errs, errors.New("bootstrap admin password must be at least 8 characters"))
	}
	return errors.Join(errs...)
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

// loadOwnershipRules returns no rules when the file does not exist
func loadOwnershipRules(path string) ([]OwnershipRule, error) {
	bytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read ownership rules file: %w", err)
	}

	var rules struct {
		Rules []OwnershipRule `yaml:"ownershipRules"`
	}
	if err := yaml.Unmarshal(bytes, &rules); err != nil {
		return nil, fmt.Errorf("could not parse ownership rules yaml: %w", err)
	}
	return rules.Rules, nil
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func millisOverride(key string, current time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return current, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
