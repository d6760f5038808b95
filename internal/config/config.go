// Package config loads the gateway configuration from config.yaml, a .env
// file and GATEWAY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"security-gateway/middleware/security/domain"
)

const EnvPrefix = "GATEWAY"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Security    SecurityConfig    `mapstructure:"security"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
}

type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	UpstreamURL       string        `mapstructure:"upstream_url"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout must stay above the largest slow-down delay.
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type PolicyConfig struct {
	Window  time.Duration `mapstructure:"window"`
	Max     int           `mapstructure:"max"`
	Message string        `mapstructure:"message"`
}

type SlowDownConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Window     time.Duration `mapstructure:"window"`
	DelayAfter int           `mapstructure:"delay_after"`
	Delay      time.Duration `mapstructure:"delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

type BurstConfig struct {
	Window  time.Duration `mapstructure:"window"`
	Max     int           `mapstructure:"max"`
	Penalty int           `mapstructure:"penalty"`
}

type ReputationConfig struct {
	Threshold int `mapstructure:"threshold"`
	Penalty   int `mapstructure:"penalty"`
}

type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// RoutesConfig maps path prefixes to profiles. Anything unmatched is public.
type RoutesConfig struct {
	Auth      []string `mapstructure:"auth"`
	Sensitive []string `mapstructure:"sensitive"`
	API       []string `mapstructure:"api"`
}

type SecurityConfig struct {
	// Store is "memory" (state lost on restart) or "redis" (shared, persistent).
	Store              string `mapstructure:"store"`
	TrustXForwardedFor bool   `mapstructure:"trust_x_forwarded_for"`
	FailurePolicy      string `mapstructure:"failure_policy"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
	IdentityHeader     string `mapstructure:"identity_header"`
	EmailHeader        string `mapstructure:"email_header"`

	Auth      PolicyConfig `mapstructure:"auth"`
	API       PolicyConfig `mapstructure:"api"`
	Sensitive PolicyConfig `mapstructure:"sensitive"`
	Public    PolicyConfig `mapstructure:"public"`

	APISlowDown    SlowDownConfig `mapstructure:"api_slow_down"`
	PublicSlowDown SlowDownConfig `mapstructure:"public_slow_down"`

	Burst      BurstConfig      `mapstructure:"burst"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	Routes     RoutesConfig     `mapstructure:"routes"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type StatsConfig struct {
	// Backend is "", "memory" or "redis"; empty disables stats.
	Backend  string        `mapstructure:"backend"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Bucket   string        `mapstructure:"bucket"`
	TrackIPs bool          `mapstructure:"track_ips"`
}

type ConcurrencyConfig struct {
	Max            int           `mapstructure:"max"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

// Load reads path when given, otherwise config.yaml from ./configs or the
// working directory if one exists. A .env file is loaded into the process
// environment first; variables already set win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.upstream_url", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("security.store", "memory")
	v.SetDefault("security.trust_x_forwarded_for", false)
	v.SetDefault("security.failure_policy", "fail-open")
	v.SetDefault("security.max_body_bytes", domain.DefaultMaxBodyBytes)
	v.SetDefault("security.identity_header", "")
	v.SetDefault("security.email_header", "")

	setPolicyDefaults(v, "security.auth", domain.AuthPolicy())
	setPolicyDefaults(v, "security.api", domain.APIPolicy())
	setPolicyDefaults(v, "security.sensitive", domain.SensitivePolicy())
	setPolicyDefaults(v, "security.public", domain.PublicPolicy())
	setSlowDownDefaults(v, "security.api_slow_down", domain.APISlowDown())
	setSlowDownDefaults(v, "security.public_slow_down", domain.PublicSlowDown())

	v.SetDefault("security.burst.window", domain.DefaultBurstWindow)
	v.SetDefault("security.burst.max", domain.DefaultBurstMax)
	v.SetDefault("security.burst.penalty", domain.DefaultBurstPenalty)
	v.SetDefault("security.reputation.threshold", domain.DefaultSuspicionThreshold)
	v.SetDefault("security.reputation.penalty", domain.DefaultPenalty)
	v.SetDefault("security.cleanup.interval", 10*time.Minute)
	v.SetDefault("security.cleanup.max_age", domain.DefaultSweepMaxAge)

	v.SetDefault("security.routes.auth", []string{"/api/auth"})
	v.SetDefault("security.routes.sensitive", []string{"/api/admin"})
	v.SetDefault("security.routes.api", []string{"/api"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "security")

	v.SetDefault("stats.backend", "")
	v.SetDefault("stats.prefix", "security:stats")
	v.SetDefault("stats.ttl", 24*time.Hour)
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_ips", false)

	v.SetDefault("concurrency.max", 0)
	v.SetDefault("concurrency.acquire_timeout", time.Duration(0))
}

func setPolicyDefaults(v *viper.Viper, prefix string, p domain.Policy) {
	v.SetDefault(prefix+".window", p.Window)
	v.SetDefault(prefix+".max", p.Max)
	v.SetDefault(prefix+".message", p.Message)
}

func setSlowDownDefaults(v *viper.Viper, prefix string, p domain.SlowDownPolicy) {
	v.SetDefault(prefix+".enabled", true)
	v.SetDefault(prefix+".window", p.Window)
	v.SetDefault(prefix+".delay_after", p.DelayAfter)
	v.SetDefault(prefix+".delay", p.Delay)
	v.SetDefault(prefix+".max_delay", p.MaxDelay)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.UpstreamURL != "" {
		if u, err := url.Parse(c.Server.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.upstream_url %q is not an absolute URL", c.Server.UpstreamURL))
		}
	}
	switch c.Security.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("security.store must be memory or redis, got %q", c.Security.Store))
	}
	switch c.Security.FailurePolicy {
	case "fail-open", "fail-closed":
	default:
		errs = append(errs, fmt.Errorf("security.failure_policy must be fail-open or fail-closed, got %q", c.Security.FailurePolicy))
	}
	switch c.Stats.Backend {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("stats.backend must be empty, memory or redis, got %q", c.Stats.Backend))
	}
	if (c.Security.Store == "redis" || c.Stats.Backend == "redis") && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is used"))
	}
	if c.Security.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("security.max_body_bytes must be > 0"))
	}
	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("concurrency.max must be >= 0"))
	}
	for _, p := range c.Security.Policies() {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Security.SlowDowns() {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Policies returns the rate-limit profiles keyed by scope.
func (s SecurityConfig) Policies() map[domain.Scope]domain.Policy {
	p := func(scope domain.Scope, c PolicyConfig) domain.Policy {
		return domain.Policy{Scope: scope, Window: c.Window, Max: c.Max, Message: c.Message}
	}
	return map[domain.Scope]domain.Policy{
		domain.ScopeAuth:      p(domain.ScopeAuth, s.Auth),
		domain.ScopeAPI:       p(domain.ScopeAPI, s.API),
		domain.ScopeSensitive: p(domain.ScopeSensitive, s.Sensitive),
		domain.ScopePublic:    p(domain.ScopePublic, s.Public),
	}
}

// SlowDowns returns the enabled slow-down profiles keyed by scope.
func (s SecurityConfig) SlowDowns() map[domain.Scope]domain.SlowDownPolicy {
	out := make(map[domain.Scope]domain.SlowDownPolicy, 2)
	add := func(scope domain.Scope, c SlowDownConfig) {
		if !c.Enabled {
			return
		}
		out[scope] = domain.SlowDownPolicy{
			Scope:      scope,
			Window:     c.Window,
			DelayAfter: c.DelayAfter,
			Delay:      c.Delay,
			MaxDelay:   c.MaxDelay,
		}
	}
	add(domain.ScopeAPI, s.APISlowDown)
	add(domain.ScopePublic, s.PublicSlowDown)
	return out
}
