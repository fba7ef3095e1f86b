package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/platform/identity"
	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
	"github.com/louisbranch/storefront/internal/services/storefront/notify"
	"github.com/louisbranch/storefront/internal/services/storefront/poller"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

type fakeClient struct {
	mu            sync.Mutex
	conversations map[string]Conversation
	messages      map[string][]Message
	startCalls    int
	startErr      error
	failContent   string
	sendGate      chan struct{}
	nextID        int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]Message),
	}
}

func (f *fakeClient) Get(_ context.Context, path string) (remote.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == conversationsPath {
		list := make([]Conversation, 0, len(f.conversations))
		for _, conversation := range f.conversations {
			list = append(list, conversation)
		}
		return encode(list)
	}
	conversationID, ok := conversationFromMessagesPath(path)
	if !ok {
		return nil, &remote.Error{Status: http.StatusNotFound, Message: "no route"}
	}
	return encode(append([]Message{}, f.messages[conversationID]...))
}

func (f *fakeClient) Post(ctx context.Context, path string, body any) (remote.Payload, error) {
	if path == conversationsPath {
		return f.start(body.(startConversationBody).StoreID)
	}
	conversationID, ok := conversationFromMessagesPath(path)
	if !ok {
		return nil, &remote.Error{Status: http.StatusNotFound, Message: "no route"}
	}
	content := body.(sendMessageBody).Content

	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failContent != "" && content == f.failContent {
		return nil, &remote.Error{Status: http.StatusServiceUnavailable, Message: "unavailable"}
	}
	f.nextID++
	message := Message{
		ID:             fmt.Sprintf("m%d", f.nextID),
		ConversationID: conversationID,
		SenderID:       "u1",
		Content:        content,
		DateCreated:    time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], message)
	return encode(message)
}

func (f *fakeClient) Put(context.Context, string, any) (remote.Payload, error) {
	return nil, &remote.Error{Status: http.StatusMethodNotAllowed, Message: "put"}
}

func (f *fakeClient) Patch(context.Context, string, any) (remote.Payload, error) {
	return nil, &remote.Error{Status: http.StatusMethodNotAllowed, Message: "patch"}
}

func (f *fakeClient) Delete(context.Context, string) (remote.Payload, error) {
	return nil, &remote.Error{Status: http.StatusMethodNotAllowed, Message: "delete"}
}

func (f *fakeClient) start(storeID string) (remote.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	conversation, ok := f.conversations[storeID]
	if !ok {
		conversation = Conversation{
			ID:                 "c-" + storeID,
			ParticipantStoreID: storeID,
			DateCreated:        time.Now(),
		}
		f.conversations[storeID] = conversation
	}
	return encode(conversation)
}

func (f *fakeClient) addServerMessage(conversationID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.messages[conversationID] = append(f.messages[conversationID], Message{
		ID:             fmt.Sprintf("m%d", f.nextID),
		ConversationID: conversationID,
		Content:        content,
		DateCreated:    time.Now(),
	})
}

func (f *fakeClient) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func conversationFromMessagesPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, conversationsPath+"/")
	if !ok {
		return "", false
	}
	conversationID, ok := strings.CutSuffix(rest, "/messages")
	return conversationID, ok
}

func encode(value any) (remote.Payload, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return remote.Payload(data), nil
}

type testEnv struct {
	svc      *Service
	client   *fakeClient
	cache    *querycache.Cache
	recorder *notify.Recorder
	users    *identity.Static
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	client := newFakeClient()
	users := identity.NewStatic(identity.User{ID: "u1", Name: "Ana"})
	recorder := &notify.Recorder{}
	cache := querycache.New()
	pipeline := mutation.New(cache, mutation.WithIdentity(users), mutation.WithSink(recorder))
	polls := poller.New(cache)
	t.Cleanup(func() {
		polls.Stop()
		pipeline.Close()
		cache.Close()
	})
	svc, err := NewService(Dependencies{
		Client:   client,
		Cache:    cache,
		Pipeline: pipeline,
		Poller:   polls,
		Identity: users,
		Sink:     recorder,
	}, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return testEnv{svc: svc, client: client, cache: cache, recorder: recorder, users: users}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func settle(t *testing.T, m *mutation.Mutation) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := m.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("mutation %s never settled", m.ID)
	}
	return err
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewService(Dependencies{}); !errors.Is(err, ErrServiceNotConfigured) {
		t.Fatalf("NewService error = %v, want %v", err, ErrServiceNotConfigured)
	}
}

func TestOpenRequiresIdentity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.users.Set(identity.User{})

	_, err := env.svc.Open(context.Background(), "s1")
	if code := apperrors.CodeOf(err); code != apperrors.CodeAuthenticationRequired {
		t.Fatalf("Open code = %q, want %q", code, apperrors.CodeAuthenticationRequired)
	}
	if got := env.client.starts(); got != 0 {
		t.Fatalf("start calls = %d, want 0", got)
	}
	toasts := env.recorder.Toasts()
	if len(toasts) != 1 || toasts[0].Code != apperrors.CodeAuthenticationRequired {
		t.Fatalf("toasts = %+v, want one authentication toast", toasts)
	}
}

func TestStartOnSignedOutSessionLeavesNoConversation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	session, err := env.svc.Session("s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	env.users.Set(identity.User{})

	if _, err := session.Start(context.Background()); apperrors.CodeOf(err) != apperrors.CodeAuthenticationRequired {
		t.Fatalf("Start error = %v, want authentication required", err)
	}
	if state := session.State(); state != StateNoConversation {
		t.Fatalf("state = %v, want %v", state, StateNoConversation)
	}
}

func TestOpenConvergesOnOneConversation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	const openers = 8
	sessions := make([]*Session, openers)
	errs := make([]error, openers)
	var wg sync.WaitGroup
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = env.svc.Open(context.Background(), "s1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < openers; i++ {
		if errs[i] != nil {
			t.Fatalf("open %d: %v", i, errs[i])
		}
		if sessions[i] != sessions[0] {
			t.Fatalf("open %d returned a different session", i)
		}
	}
	conversation, ok := sessions[0].Conversation()
	if !ok || conversation.ID != "c-s1" {
		t.Fatalf("conversation = %+v (active %v), want c-s1", conversation, ok)
	}

	before := env.client.starts()
	if _, err := env.svc.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if after := env.client.starts(); after != before {
		t.Fatalf("reopen issued %d start calls, want none", after-before)
	}
}

func TestOpenInvalidatesConversationList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.cache.Write(keys.Conversations("u1"), []Conversation{})

	if _, err := env.svc.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	entry, ok := env.cache.Peek(keys.Conversations("u1"))
	if !ok || !entry.Stale {
		t.Fatalf("conversation list entry = %+v, want stale", entry)
	}
}

func TestStartFailureReturnsToNoConversation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.client.startErr = &remote.Error{Status: http.StatusBadGateway, Message: "bad gateway"}
	session, err := env.svc.Session("s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	_, err = session.Start(context.Background())
	if code := apperrors.CodeOf(err); code != apperrors.CodeNetworkFailure {
		t.Fatalf("Start code = %q, want %q", code, apperrors.CodeNetworkFailure)
	}
	if state := session.State(); state != StateNoConversation {
		t.Fatalf("state = %v, want %v", state, StateNoConversation)
	}
}

func TestSendBeforeStartIsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	session, err := env.svc.Session("s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	_, _, err = session.Send(context.Background(), "hello")
	if code := apperrors.CodeOf(err); code != apperrors.CodeConversationNotActive {
		t.Fatalf("Send code = %q, want %q", code, apperrors.CodeConversationNotActive)
	}
	if pending := session.Pending(); len(pending) != 0 {
		t.Fatalf("pending = %+v, want none", pending)
	}
}

func TestSendAppendsImmediatelyAndClearsInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gate := make(chan struct{})
	env.client.sendGate = gate
	session, err := env.svc.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	session.Compose("  is this in stock?  ")
	message, m, err := session.SendDraft(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !message.IsOptimistic || !id.IsTemporary(message.ID) || message.Content != "is this in stock?" {
		t.Fatalf("message = %+v, want optimistic temporary message", message)
	}
	if draft := session.Draft(); draft != "" {
		t.Fatalf("draft = %q, want cleared", draft)
	}
	pending := session.Pending()
	if len(pending) != 1 || pending[0].ID != message.ID {
		t.Fatalf("pending = %+v, want the optimistic message", pending)
	}
	if status := m.Status(); status != mutation.StatusPending {
		t.Fatalf("status = %v, want pending", status)
	}

	close(gate)
	if err := settle(t, m); err != nil {
		t.Fatalf("settle: %v", err)
	}
}

func TestSendEmptyMessageIsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	session, err := env.svc.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, _, err = session.Send(context.Background(), "   ")
	if code := apperrors.CodeOf(err); code != apperrors.CodeValidationFailure {
		t.Fatalf("Send code = %q, want %q", code, apperrors.CodeValidationFailure)
	}
}

func TestFailedSendRemovesOnlyThatMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.client.failContent = "boom"
	session, err := env.svc.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, failing, err := session.Send(context.Background(), "boom")
	if err != nil {
		t.Fatalf("send failing: %v", err)
	}
	kept, sending, err := session.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send ok: %v", err)
	}

	if err := settle(t, failing); apperrors.CodeOf(err) != apperrors.CodeNetworkFailure {
		t.Fatalf("failing send error = %v, want network failure", err)
	}
	if err := settle(t, sending); err != nil {
		t.Fatalf("ok send: %v", err)
	}

	pending := session.Pending()
	if len(pending) != 1 || pending[0].ID != kept.ID {
		t.Fatalf("pending = %+v, want only %s", pending, kept.ID)
	}
	var failureToasts int
	for _, toast := range env.recorder.Toasts() {
		if toast.Level == notify.LevelError {
			failureToasts++
		}
	}
	if failureToasts != 1 {
		t.Fatalf("failure toasts = %d, want 1", failureToasts)
	}
}

func TestSentMessageIsReplacedAfterRefetch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	session, err := env.svc.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	session.Messages()
	waitFor(t, "initial message list", func() bool {
		_, entry := session.Messages()
		return entry.HasValue
	})

	optimistic, m, err := session.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := settle(t, m); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Until the refetch lands the optimistic copy is still shown.
	messages, _ := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("messages = %+v, want one", messages)
	}

	waitFor(t, "server copy", func() bool {
		messages, _ := session.Messages()
		return len(messages) == 1 && !messages[0].IsOptimistic
	})
	messages, _ = session.Messages()
	if messages[0].ID == optimistic.ID || id.IsTemporary(messages[0].ID) {
		t.Fatalf("message id = %q, want the server id", messages[0].ID)
	}
	if messages[0].Content != "hello" {
		t.Fatalf("content = %q, want hello", messages[0].Content)
	}
	if pending := session.Pending(); len(pending) != 0 {
		t.Fatalf("pending = %+v, want none", pending)
	}
}

func TestWatchPicksUpIncomingMessages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	session, err := env.svc.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	detach, err := session.Watch()
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer detach()

	env.client.addServerMessage("c-s1", "hi from the store")
	waitFor(t, "incoming message", func() bool {
		entry, ok := env.cache.Peek(MessagesKey("c-s1"))
		if !ok {
			return false
		}
		messages, _ := querycache.Value[[]Message](entry)
		return len(messages) == 1
	})
}

func TestWatchRequiresActiveSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	session, err := env.svc.Session("s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if _, err := session.Watch(); apperrors.CodeOf(err) != apperrors.CodeConversationNotActive {
		t.Fatalf("Watch error = %v, want conversation not active", err)
	}
}

func TestSessionsAreScopedToUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	first, err := env.svc.Session("s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	env.users.Set(identity.User{ID: "u2"})
	second, err := env.svc.Session("s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if first == second {
		t.Fatal("sessions of different users must differ")
	}
}
