package cfg

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	MinIDLength = 5
	MaxIDLength = 16
)

const (
	PinHashSHA256   = "sha256"
	PinHashArgon2id = "argon2id"
)

type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}
func (s Secret) Value() string {
	return string(s.value)
}
func (s Secret) Wipe() {
	for i := range s.value {
		s.value[i] = 0
	}
}
func (s Secret) String() string {
	return "***REDACTED***"
}

type Cfg struct {
	Port              string
	Environment       string
	LogLevel          string
	DatabasePath      string
	BaseURL           string
	IDLength          int
	RateLimit         RateLimitCfg
	PinHashMode       string
	Argon2Time        uint32
	Argon2Memory      uint32
	Argon2Parallelism uint8
	HasherConcurrency int
	LRUCacheSize      int
	RedisURL          string
	RedisPassword     Secret
	RedisTimeout      time.Duration
	RedisCacheTTL     time.Duration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBQueryTimeout    time.Duration
	ContextTimeout    time.Duration
	MaxContentSize    int64
	TrustedProxies    []string
	AllowedOrigins    []string
	MetricsUser       string
	MetricsPass       Secret
}

type RateLimitCfg struct {
	RPM        int
	GlobalRPS  float64
	MaxClients int
}

func Load() (*Cfg, error) {
	c := &Cfg{}
	c.Port = getEnv("PORT", "5000")
	c.Environment = getEnv("ENVIRONMENT", "development")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.DatabasePath = getEnv("DB_PATH", "codes.db")
	c.BaseURL = getEnv("BASE_URL", "")
	c.PinHashMode = strings.ToLower(getEnv("PIN_HASH_MODE", PinHashSHA256))
	c.RedisURL = getEnv("REDIS_URL", "")
	c.RedisPassword = NewSecret(getEnv("REDIS_PASSWORD", ""))
	c.TrustedProxies = getSlice("TRUSTED_PROXIES", []string{})
	c.AllowedOrigins = getSlice("ALLOWED_ORIGINS", []string{"*"})
	c.MetricsUser = getEnv("METRICS_USER", "")
	c.MetricsPass = NewSecret(getEnv("METRICS_PASS", ""))

	var err error
	c.IDLength, err = getInt("ID_LENGTH", 7)
	if err != nil {
		return nil, err
	}
	c.RateLimit.RPM, err = getInt("RATE_LIMIT_RPM", 60)
	if err != nil {
		return nil, err
	}
	c.RateLimit.GlobalRPS, err = getFloat("RATE_LIMIT_GLOBAL_RPS", 0)
	if err != nil {
		return nil, err
	}
	c.RateLimit.MaxClients, err = getInt("RATE_LIMIT_MAX_CLIENTS", 100000)
	if err != nil {
		return nil, err
	}
	c.Argon2Time, err = getUint32("ARGON2_TIME", 3)
	if err != nil {
		return nil, err
	}
	c.Argon2Memory, err = getUint32("ARGON2_MEMORY", 64*1024)
	if err != nil {
		return nil, err
	}
	p, err := getUint32("ARGON2_PARALLELISM", 2)
	if err != nil {
		return nil, err
	}
	if p > 255 {
		return nil, errors.New("ARGON2_PARALLELISM must be <= 255")
	}
	c.Argon2Parallelism = uint8(p)
	c.HasherConcurrency, err = getInt("HASHER_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	c.LRUCacheSize, err = getInt("LRU_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	c.RedisTimeout, err = getDuration("REDIS_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	c.RedisCacheTTL, err = getDuration("REDIS_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	c.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	c.DBMaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	c.DBQueryTimeout, err = getDuration("DB_QUERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.ContextTimeout, err = getDuration("CONTEXT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	c.MaxContentSize, err = getInt64("MAX_CONTENT_SIZE", 1024*1024)
	if err != nil {
		return nil, err
	}
	return c, nil
}
func Validate(c *Cfg) error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.New("PORT must be a number")
	}
	if c.DatabasePath == "" {
		return errors.New("DB_PATH is required")
	}
	if c.IDLength < MinIDLength || c.IDLength > MaxIDLength {
		return fmt.Errorf("ID_LENGTH must be between %d and %d", MinIDLength, MaxIDLength)
	}
	if c.RateLimit.RPM <= 0 {
		return errors.New("RATE_LIMIT_RPM must be positive")
	}
	if c.RateLimit.GlobalRPS < 0 {
		return errors.New("RATE_LIMIT_GLOBAL_RPS must not be negative")
	}
	if c.RateLimit.MaxClients <= 0 {
		return errors.New("RATE_LIMIT_MAX_CLIENTS must be positive")
	}
	switch c.PinHashMode {
	case PinHashSHA256:
	case PinHashArgon2id:
		if c.Argon2Time < 1 {
			return errors.New("ARGON2_TIME must be at least 1")
		}
		if c.Argon2Memory < 8*1024 {
			return errors.New("ARGON2_MEMORY must be >= 8192 (8MB)")
		}
		if c.Argon2Parallelism < 1 {
			return errors.New("ARGON2_PARALLELISM must be at least 1")
		}
	default:
		return fmt.Errorf("PIN_HASH_MODE must be %q or %q", PinHashSHA256, PinHashArgon2id)
	}
	if c.HasherConcurrency <= 0 {
		return errors.New("HASHER_CONCURRENCY must be positive")
	}
	if c.LRUCacheSize <= 0 {
		return errors.New("LRU_CACHE_SIZE must be positive")
	}
	if c.RedisURL != "" {
		if !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
			return errors.New("REDIS_URL must start with redis:// or rediss://")
		}
	}
	if c.MaxContentSize <= 0 {
		return errors.New("MAX_CONTENT_SIZE must be positive")
	}
	if c.MaxContentSize > 16*1024*1024 {
		return errors.New("MAX_CONTENT_SIZE cannot exceed 16MB")
	}
	for _, proxy := range c.TrustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid CIDR in TRUSTED_PROXIES: %s", proxy)
			}
		} else if net.ParseIP(proxy) == nil {
			return fmt.Errorf("invalid IP in TRUSTED_PROXIES: %s", proxy)
		}
	}
	if (c.MetricsUser == "") != (c.MetricsPass.Value() == "") {
		return errors.New("METRICS_USER and METRICS_PASS must be set together")
	}
	return nil
}

// PasteURL formats the link returned to clients after a save.
func (c *Cfg) PasteURL(id string) string {
	if c.BaseURL == "" {
		return "/p/" + id
	}
	return strings.TrimRight(c.BaseURL, "/") + "/p/" + id
}

func (c *Cfg) Wipe() {
	c.RedisPassword.Wipe()
	c.MetricsPass.Wipe()
}
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getInt64(key string, fallback int64) (int64, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getUint32(key string, fallback uint32) (uint32, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uint32 for %s: %w", key, err)
	}
	return uint32(v), nil
}
func getFloat(key string, fallback float64) (float64, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return v, nil
}
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}
func getSlice(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
