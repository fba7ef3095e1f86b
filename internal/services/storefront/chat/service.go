// Package chat runs shopper-to-store conversations with optimistic sends.
//
// A Session moves from NoConversation through Starting to Active once the
// conversation with the store is created or fetched. Sent messages show up
// immediately as an optimistic overlay on top of the server message list and
// leave the overlay once a refetch that includes them lands, or right away
// when their send fails.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/poller"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
	"golang.org/x/sync/singleflight"
)

// ErrServiceNotConfigured indicates a missing dependency.
var ErrServiceNotConfigured = errors.New("chat service is not configured")

// Dependencies are the process-wide services a chat Service runs on.
type Dependencies struct {
	Client   remote.Client
	Cache    *querycache.Cache
	Pipeline *mutation.Pipeline
	Poller   *poller.Poller
	Identity identity.Provider
	Sink     notify.Sink
}

// Service owns the chat sessions of the process, one per shopper and store.
type Service struct {
	client   remote.Client
	cache    *querycache.Cache
	pipeline *mutation.Pipeline
	poller   *poller.Poller
	identity identity.Provider
	sink     notify.Sink

	now      func() time.Time
	interval time.Duration
	timeout  time.Duration

	starts singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp optimistic messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPollInterval sets how often a watched conversation is refetched.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTimeout bounds the create-or-fetch call of a conversation.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService builds a chat service.
func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	if deps.Client == nil || deps.Cache == nil || deps.Pipeline == nil || deps.Poller == nil {
		return nil, ErrServiceNotConfigured
	}
	s := &Service{
		client:   deps.Client,
		cache:    deps.Cache,
		pipeline: deps.Pipeline,
		poller:   deps.Poller,
		identity: deps.Identity,
		sink:     notify.OrDiscard(deps.Sink),
		now:      time.Now,
		interval: timeouts.MessagePoll,
		timeout:  timeouts.RemoteRequest,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Session returns the session of the signed-in shopper with storeID,
// creating it in the NoConversation state on first use.
func (s *Service) Session(storeID string) (*Session, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailure, "store id is required")
	}
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(user.ID, storeID)
	if session, ok := s.sessions[key]; ok {
		return session, nil
	}
	session := newSession(s, user.ID, storeID)
	s.sessions[key] = session
	return session, nil
}

// Open returns the active session with storeID, starting the conversation
// when needed. Concurrent and repeated opens converge on one conversation.
func (s *Service) Open(ctx context.Context, storeID string) (*Session, error) {
	session, err := s.Session(storeID)
	if err != nil {
		return nil, err
	}
	if _, err := session.Start(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// currentUser returns the signed-in shopper or notifies and returns
// AuthenticationRequired.
func (s *Service) currentUser() (identity.User, error) {
	if s.identity != nil {
		if user, ok := s.identity.CurrentUser(); ok {
			return user, nil
		}
	}
	err := apperrors.New(apperrors.CodeAuthenticationRequired, "sign in to message a store")
	s.sink.Notify(notify.FromError(err))
	return identity.User{}, err
}

func sessionKey(userID, storeID string) string {
	return userID + "/" + storeID
}
