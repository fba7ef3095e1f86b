// Package storefront parses storefront command flags and runs one CLI
// command against the storefront API.
package storefront

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/storefront/internal/platform/cmd"
)

// Cart storage backends.
const (
	BackendBbolt  = "bbolt"
	BackendSQLite = "sqlite"
)

// Config holds storefront command configuration. Env names are relative to
// the STOREFRONT_ prefix.
type Config struct {
	APIURL          string        `env:"API_URL" envDefault:"http://localhost:8080/api"`
	AccessToken     string        `env:"ACCESS_TOKEN"`
	Locale          string        `env:"LOCALE" envDefault:"en-US"`
	CartBackend     string        `env:"CART_BACKEND" envDefault:"bbolt"`
	CartPath        string        `env:"CART_PATH" envDefault:"data/cart.db"`
	CacheStaleAfter time.Duration `env:"CACHE_STALE_AFTER" envDefault:"30s"`
	CacheGCAfter    time.Duration `env:"CACHE_GC_AFTER" envDefault:"5m"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// Args is the command and its arguments left after flags.
	Args []string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "The storefront API base URL")
	fs.StringVar(&cfg.AccessToken, "access-token", cfg.AccessToken, "Bearer access token of the signed-in shopper")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale of notifications (en-US, pt-BR)")
	fs.StringVar(&cfg.CartBackend, "cart-backend", cfg.CartBackend, "Cart storage backend (bbolt, sqlite)")
	fs.StringVar(&cfg.CartPath, "cart-path", cfg.CartPath, "Cart storage file path")
	fs.DurationVar(&cfg.CacheStaleAfter, "cache-stale-after", cfg.CacheStaleAfter, "How long fetched data is served without a refetch")
	fs.DurationVar(&cfg.CacheGCAfter, "cache-gc-after", cfg.CacheGCAfter, "How long unused cache entries are kept")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Conversation refresh interval")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Remote request timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	cfg.CartBackend = strings.ToLower(strings.TrimSpace(cfg.CartBackend))
	switch cfg.CartBackend {
	case BackendBbolt, BackendSQLite:
	default:
		return fmt.Errorf("unknown cart backend %q", cfg.CartBackend)
	}
	if strings.TrimSpace(cfg.CartPath) == "" {
		return fmt.Errorf("cart path is required")
	}
	return nil
}

// Run executes the configured command, writing results to stdout and
// notifications to stderr.
func Run(ctx context.Context, cfg Config) error {
	return RunWithOutput(ctx, cfg, os.Stdout, os.Stderr)
}

// RunWithOutput is Run with explicit writers.
func RunWithOutput(ctx context.Context, cfg Config, out, notices io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStorefront, func(ctx context.Context) error {
		rt, err := openRuntime(ctx, cfg, notices)
		if err != nil {
			return err
		}
		defer rt.close()
		return execute(ctx, rt, cfg.Args, out)
	})
}
