package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Policy holds the comment rules. Defaults apply unless a TOML policy file
// overrides them.
type Policy struct {
	MaxDepth        int      `koanf:"max_depth"`
	MaxTextLength   int      `koanf:"max_text_length"`
	DefaultPageSize int      `koanf:"default_page_size"`
	MaxPageSize     int      `koanf:"max_page_size"`
	MaxBatchSize    int      `koanf:"max_batch_size"`
	ModeratorRoles  []string `koanf:"moderator_roles"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxDepth:        4,
		MaxTextLength:   5000,
		DefaultPageSize: 20,
		MaxPageSize:     100,
		MaxBatchSize:    100,
		ModeratorRoles:  []string{"admin", "moderator"},
	}
}

func (p Policy) Validate() error {
	switch {
	case p.MaxDepth < 0:
		return fmt.Errorf("max_depth must be >= 0, got %d", p.MaxDepth)
	case p.MaxTextLength <= 0:
		return fmt.Errorf("max_text_length must be > 0, got %d", p.MaxTextLength)
	case p.MaxPageSize <= 0:
		return fmt.Errorf("max_page_size must be > 0, got %d", p.MaxPageSize)
	case p.DefaultPageSize <= 0 || p.DefaultPageSize > p.MaxPageSize:
		return fmt.Errorf("default_page_size must be in 1..%d, got %d", p.MaxPageSize, p.DefaultPageSize)
	case p.MaxBatchSize <= 0:
		return fmt.Errorf("max_batch_size must be > 0, got %d", p.MaxBatchSize)
	}
	return nil
}

// LoadPolicy reads path over the defaults. An empty path returns defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return Policy{}, fmt.Errorf("load policy %s: %w", path, err)
	}
	if err := k.Unmarshal("", &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy %s: %w", path, err)
	}
	if k.Exists("moderator_roles") {
		// replace rather than merge into the default list
		p.ModeratorRoles = k.Strings("moderator_roles")
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

type Config struct {
	GRPCAddr      string
	DatabaseURL   string
	JWTSecret     string
	NATSURL       string
	RedisURL      string
	AsyncConsumer bool
	CommandTTL    time.Duration

	GeoBaseURL   string
	GeoCacheSize int

	// Circuit-breaker settings for the geolocation client.
	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32

	Policy Policy
}

func Load() (Config, error) {
	grpcAddr := strings.TrimSpace(os.Getenv("GRPC_ADDR"))
	if grpcAddr == "" {
		grpcAddr = ":9090"
	}
	policy, err := LoadPolicy(os.Getenv("COMMENTS_POLICY_FILE"))
	if err != nil {
		return Config{}, err
	}
	return Config{
		GRPCAddr:           grpcAddr,
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		NATSURL:            strings.TrimSpace(os.Getenv("NATS_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		AsyncConsumer:      envBool("COMMENTS_ASYNC_CONSUMER", false),
		CommandTTL:         envDuration("COMMENTS_COMMAND_TTL", 24*time.Hour),
		GeoBaseURL:         strings.TrimSpace(os.Getenv("GEO_BASE_URL")),
		GeoCacheSize:       envInt("GEO_CACHE_SIZE", 4096),
		CBMaxRequests:      uint32(envInt("CB_MAX_REQUESTS", 5)),
		CBInterval:         envDuration("CB_INTERVAL", 60*time.Second),
		CBTimeout:          envDuration("CB_TIMEOUT", 30*time.Second),
		CBFailureThreshold: uint32(envInt("CB_FAILURE_THRESHOLD", 5)),
		Policy:             policy,
	}, nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
