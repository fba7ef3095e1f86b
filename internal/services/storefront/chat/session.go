package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

// SessionState is the lifecycle of a chat session.
type SessionState int

const (
	// StateNoConversation means no conversation is known yet.
	StateNoConversation SessionState = iota
	// StateStarting means a create-or-fetch call is outstanding.
	StateStarting
	// StateActive means the conversation is known and messages can be sent.
	StateActive
)

// String returns the lowercase state name.
func (s SessionState) String() string {
	switch s {
	case StateNoConversation:
		return "no_conversation"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// overlayMessage is an optimistic message kept until the server list
// includes it.
type overlayMessage struct {
	message     Message
	sent        bool
	serverID    string
	confirmedAt time.Time
}

// Session is one shopper's conversation with one store.
type Session struct {
	svc     *Service
	userID  string
	storeID string

	mu           sync.Mutex
	state        SessionState
	conversation Conversation
	overlay      []*overlayMessage
	draft        string
}

func newSession(svc *Service, userID, storeID string) *Session {
	return &Session{svc: svc, userID: userID, storeID: storeID}
}

// StoreID returns the store on the other side of the conversation.
func (s *Session) StoreID() string {
	return s.storeID
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns the conversation once the session is active.
func (s *Session) Conversation() (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation, s.state == StateActive
}

// Start creates or fetches the conversation with the store. An active
// session returns its conversation without a network call; concurrent starts
// share one request.
func (s *Session) Start(ctx context.Context) (Conversation, error) {
	if !identity.IsAuthenticated(s.svc.identity) {
		_, err := s.svc.currentUser()
		return Conversation{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.state == StateActive {
		conversation := s.conversation
		s.mu.Unlock()
		return conversation, nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	result, err, _ := s.svc.starts.Do(sessionKey(s.userID, s.storeID), func() (any, error) {
		// Shared by every concurrent opener, so no single caller may cancel it.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.svc.timeout)
		defer cancel()
		conversation, err := startConversation(callCtx, s.svc.client, s.storeID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(conversation.ID) == "" {
			return nil, apperrors.New(apperrors.CodeUnknown, "conversation response has no id")
		}
		return conversation, nil
	})

	s.mu.Lock()
	if err != nil {
		if s.state == StateStarting {
			s.state = StateNoConversation
		}
		s.mu.Unlock()
		if _, ok := apperrors.As(err); !ok {
			err = remote.Classify(err)
		}
		s.svc.sink.Notify(notify.FromError(err))
		return Conversation{}, err
	}
	conversation := result.(Conversation)
	started := s.state != StateActive
	s.conversation = conversation
	s.state = StateActive
	s.mu.Unlock()

	if started {
		s.svc.cache.Invalidate(keys.Conversations(s.userID))
		s.svc.sink.Notify(notify.Success(notify.EventConversationStarted, map[string]string{"StoreID": s.storeID}))
	}
	return conversation, nil
}

// Compose sets the unsent input text.
func (s *Session) Compose(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft returns the unsent input text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SendDraft sends the composed input.
func (s *Session) SendDraft(ctx context.Context) (Message, *mutation.Mutation, error) {
	return s.Send(ctx, s.Draft())
}

// Send appends an optimistic message and clears the input immediately, then
// posts it. Each message is tracked on its own: a failure removes only that
// message from the overlay.
func (s *Session) Send(ctx context.Context, content string) (Message, *mutation.Mutation, error) {
	content = strings.TrimSpace(content)
	tempID, err := id.NewTemporaryID()
	if err != nil {
		return Message{}, nil, fmt.Errorf("generate message id: %w", err)
	}

	var (
		optimistic     Message
		pending        *overlayMessage
		conversationID string
	)
	m, err := s.svc.pipeline.Run(ctx, mutation.Request{
		Name:            "send message",
		RequireIdentity: true,
		Local: func(context.Context) (mutation.UndoFunc, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.state != StateActive {
				return nil, apperrors.WithMetadata(apperrors.CodeConversationNotActive, "conversation is not active", map[string]string{
					"StoreID": s.storeID,
					"State":   s.state.String(),
				})
			}
			if content == "" {
				return nil, apperrors.New(apperrors.CodeValidationFailure, "message is empty")
			}
			conversationID = s.conversation.ID
			optimistic = Message{
				ID:             tempID,
				ConversationID: conversationID,
				SenderID:       s.userID,
				Content:        content,
				IsOptimistic:   true,
				DateCreated:    s.svc.now(),
			}
			pending = &overlayMessage{message: optimistic}
			s.overlay = append(s.overlay, pending)
			s.draft = ""
			return func(context.Context) error {
				s.drop(pending)
				return nil
			}, nil
		},
		Remote: func(ctx context.Context) (any, error) {
			return postMessage(ctx, s.svc.client, conversationID, content)
		},
		OnConfirm: func(_ context.Context, result any) {
			sent, _ := result.(Message)
			// Invalidate first so a list fetched before the send cannot
			// retire the overlay entry.
			s.svc.cache.Invalidate(MessagesKey(conversationID))
			s.confirm(pending, sent.ID)
		},
		Invalidate: []querycache.Key{keys.Conversations(s.userID)},
	})
	if err != nil {
		return Message{}, nil, err
	}
	return optimistic, m, nil
}

// Messages returns the server message list of the active conversation with
// the optimistic overlay appended, and the cache entry backing it. It
// starts a background refetch when the list is stale.
func (s *Session) Messages() ([]Message, querycache.Entry) {
	conversation, ok := s.Conversation()
	if !ok {
		return nil, querycache.Entry{}
	}
	entry := s.svc.cache.Read(
		MessagesKey(conversation.ID),
		MessagesFetcher(s.svc.client, conversation.ID),
		querycache.Policy{StaleAfter: s.svc.interval},
	)
	server, _ := querycache.Value[[]Message](entry)
	return s.merge(server, entry), entry
}

// Watch polls the message list while the returned detach func is not
// called.
func (s *Session) Watch() (func(), error) {
	conversation, ok := s.Conversation()
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeConversationNotActive, "conversation is not active", map[string]string{
			"StoreID": s.storeID,
		})
	}
	key := MessagesKey(conversation.ID)
	fetcher := MessagesFetcher(s.svc.client, conversation.ID)
	// Registers the fetcher so invalidations refetch while watched.
	s.svc.cache.Read(key, fetcher, querycache.Policy{StaleAfter: s.svc.interval})
	return s.svc.poller.Attach(key, fetcher, s.svc.interval)
}

// Pending returns the optimistic messages still shown.
func (s *Session) Pending() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]Message, 0, len(s.overlay))
	for _, o := range s.overlay {
		messages = append(messages, o.message)
	}
	return messages
}

// merge retires confirmed overlay entries the server list already covers:
// those whose server id is listed, and all of them once a list fetched
// after their confirmation is current.
func (s *Session) merge(server []Message, entry querycache.Entry) []Message {
	listed := make(map[string]struct{}, len(server))
	for _, message := range server {
		listed[message.ID] = struct{}{}
	}
	current := entry.HasValue && !entry.Stale

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := slices.Clone(server)
	kept := make([]*overlayMessage, 0, len(s.overlay))
	for _, o := range s.overlay {
		if o.sent {
			if _, ok := listed[o.serverID]; ok {
				continue
			}
			if current && !entry.FetchedAt.Before(o.confirmedAt) {
				continue
			}
		}
		kept = append(kept, o)
		merged = append(merged, o.message)
	}
	s.overlay = kept
	return merged
}

func (s *Session) confirm(pending *overlayMessage, serverID string) {
	if pending == nil {
		return
	}
	if id.IsTemporary(serverID) {
		serverID = ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pending.sent = true
	pending.serverID = serverID
	pending.confirmedAt = s.svc.now()
}

func (s *Session) drop(pending *overlayMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = slices.DeleteFunc(s.overlay, func(o *overlayMessage) bool {
		return o == pending
	})
}
