package storefront

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/app"
	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/poller"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
	"github.com/louisbranch/storefront/internal/services/storefront/storage"
	storefrontbbolt "github.com/louisbranch/storefront/internal/services/storefront/storage/bbolt"
	storefrontsqlite "github.com/louisbranch/storefront/internal/services/storefront/storage/sqlite"
)

type recordStore interface {
	storage.RecordStore
	Close() error
}

// runtime is the set of process-wide services one command runs on.
type runtime struct {
	client       *app.Client
	cache        *querycache.Cache
	pipeline     *mutation.Pipeline
	poller       *poller.Poller
	store        recordStore
	stopJanitor  context.CancelFunc
	pollInterval time.Duration
	timeout      time.Duration
}

func openRuntime(ctx context.Context, cfg Config, notices io.Writer) (*runtime, error) {
	store, err := openRecordStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ledger, err := cart.Open(ctx, store)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("open cart: %w", err)
	}

	tokens := identity.NewTokenProvider(cfg.AccessToken, nil)
	api, err := remote.NewHTTPClient(cfg.APIURL,
		remote.WithBearerToken(tokens.Token),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	printer := notify.NewPrinter(cfg.Locale)
	var sink notify.Sink = notify.LogSink{Localizer: printer}
	if notices != nil {
		sink = notify.NewWriterSink(notices, printer)
	}

	cache := querycache.New(
		querycache.WithStaleAfter(cfg.CacheStaleAfter),
		querycache.WithGCAfter(cfg.CacheGCAfter),
	)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	go cache.Run(janitorCtx, cfg.CacheGCAfter)

	pipeline := mutation.New(cache,
		mutation.WithIdentity(tokens),
		mutation.WithSink(sink),
		mutation.WithTimeout(cfg.RequestTimeout),
	)
	polls := poller.New(cache, poller.WithInterval(cfg.PollInterval))

	rt := &runtime{
		cache:        cache,
		pipeline:     pipeline,
		poller:       polls,
		store:        store,
		stopJanitor:  stopJanitor,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.RequestTimeout,
	}
	client, err := app.New(app.Dependencies{
		Remote:   api,
		Cache:    cache,
		Pipeline: pipeline,
		Poller:   polls,
		Ledger:   ledger,
		Identity: tokens,
		Sink:     sink,
	}, app.WithPollInterval(cfg.PollInterval))
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.client = client
	return rt, nil
}

func (rt *runtime) close() {
	rt.poller.Stop()
	rt.pipeline.Close()
	rt.stopJanitor()
	rt.cache.Close()
	closeStore(rt.store)
}

func openRecordStore(ctx context.Context, cfg Config) (recordStore, error) {
	if dir := filepath.Dir(cfg.CartPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cart dir: %w", err)
		}
	}
	if cfg.CartBackend == BackendSQLite {
		store, err := storefrontsqlite.Open(ctx, cfg.CartPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storefrontbbolt.Open(cfg.CartPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func closeStore(store recordStore) {
	if err := store.Close(); err != nil {
		log.Printf("close cart store: %v", err)
	}
}
