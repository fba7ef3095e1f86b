// Package app is the storefront client facade: catalog, orders, wishlist,
// cart and chat on top of the query cache, the mutation pipeline and the
// cart ledger.
package app

import (
	"errors"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/chat"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/poller"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

// ErrClientNotConfigured indicates a missing dependency.
var ErrClientNotConfigured = errors.New("storefront client is not configured")

// Dependencies are the process-wide services the client runs on.
type Dependencies struct {
	Remote   remote.Client
	Cache    *querycache.Cache
	Pipeline *mutation.Pipeline
	Poller   *poller.Poller
	Ledger   *cart.Ledger
	Identity identity.Provider
	Sink     notify.Sink
}

// Client is the storefront facade used by the CLI.
type Client struct {
	remote   remote.Client
	cache    *querycache.Cache
	pipeline *mutation.Pipeline
	ledger   *cart.Ledger
	identity identity.Provider
	sink     notify.Sink
	chat     *chat.Service

	now          func() time.Time
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the clock used for optimistic records.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPollInterval sets how often watched conversations are refetched.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// New builds a client over deps.
func New(deps Dependencies, opts ...Option) (*Client, error) {
	if deps.Remote == nil || deps.Cache == nil || deps.Pipeline == nil || deps.Poller == nil || deps.Ledger == nil {
		return nil, ErrClientNotConfigured
	}
	c := &Client{
		remote:   deps.Remote,
		cache:    deps.Cache,
		pipeline: deps.Pipeline,
		ledger:   deps.Ledger,
		identity: deps.Identity,
		sink:     notify.OrDiscard(deps.Sink),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	chatService, err := chat.NewService(chat.Dependencies{
		Client:   deps.Remote,
		Cache:    deps.Cache,
		Pipeline: deps.Pipeline,
		Poller:   deps.Poller,
		Identity: deps.Identity,
		Sink:     c.sink,
	}, chat.WithClock(c.now), chat.WithPollInterval(c.pollInterval))
	if err != nil {
		return nil, err
	}
	c.chat = chatService
	return c, nil
}

// signedIn returns the current user without side effects.
func (c *Client) signedIn() (identity.User, bool) {
	if c.identity == nil {
		return identity.User{}, false
	}
	return c.identity.CurrentUser()
}

// requireUser returns the current user or notifies and returns
// AuthenticationRequired.
func (c *Client) requireUser(action string) (identity.User, error) {
	if user, ok := c.signedIn(); ok {
		return user, nil
	}
	err := apperrors.New(apperrors.CodeAuthenticationRequired, "sign in to "+action)
	c.sink.Notify(notify.FromError(err))
	return identity.User{}, err
}

// reject notifies err and returns it.
func (c *Client) reject(err error) error {
	if err != nil {
		c.sink.Notify(notify.FromError(err))
	}
	return err
}

func requireID(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.New(apperrors.CodeValidationFailure, name+" is required")
	}
	return value, nil
}
