package chat

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/platform/remote"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

// Conversation is the thread between one shopper and one store.
type Conversation struct {
	ID                 string    `json:"id"`
	ParticipantStoreID string    `json:"participantStoreId"`
	ParticipantUserID  string    `json:"participantUserId,omitempty"`
	DateCreated        time.Time `json:"dateCreated"`
}

// Message is one chat message. SenderID is empty for system messages.
// IsOptimistic marks a message that only exists locally and carries a
// temporary id.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId,omitempty"`
	Content        string    `json:"content"`
	IsOptimistic   bool      `json:"isOptimistic,omitempty"`
	DateCreated    time.Time `json:"dateCreated"`
}

type startConversationBody struct {
	StoreID string `json:"storeId"`
}

type sendMessageBody struct {
	Content string `json:"content"`
}

const conversationsPath = "/conversations"

func conversationPath(conversationID string) string {
	return conversationsPath + "/" + url.PathEscape(conversationID)
}

func messagesPath(conversationID string) string {
	return conversationPath(conversationID) + "/messages"
}

// startConversation creates the conversation with storeID or returns the
// existing one; the remote side keeps one conversation per shopper and store.
func startConversation(ctx context.Context, client remote.Client, storeID string) (Conversation, error) {
	payload, err := client.Post(ctx, conversationsPath, startConversationBody{StoreID: storeID})
	if err != nil {
		return Conversation{}, err
	}
	var conversation Conversation
	if err := payload.Decode(&conversation); err != nil {
		return Conversation{}, err
	}
	return conversation, nil
}

func postMessage(ctx context.Context, client remote.Client, conversationID, content string) (Message, error) {
	payload, err := client.Post(ctx, messagesPath(conversationID), sendMessageBody{Content: content})
	if err != nil {
		return Message{}, err
	}
	var message Message
	if err := payload.Decode(&message); err != nil {
		return Message{}, err
	}
	message.IsOptimistic = false
	return message, nil
}

// MessagesFetcher loads the message list of conversationID.
func MessagesFetcher(client remote.Client, conversationID string) querycache.Fetcher {
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		messages, err := remote.GetJSON[[]Message](ctx, client, messagesPath(conversationID))
		if err != nil {
			return nil, err
		}
		for i := range messages {
			messages[i].IsOptimistic = false
		}
		return messages, nil
	}
}

// ConversationsFetcher loads the conversation list of the signed-in shopper.
func ConversationsFetcher(client remote.Client) querycache.Fetcher {
	return func(ctx context.Context, _ querycache.Key) (any, error) {
		return remote.GetJSON[[]Conversation](ctx, client, conversationsPath)
	}
}

// MessagesKey is the cache key of the message list of conversationID.
func MessagesKey(conversationID string) querycache.Key {
	return keys.Messages(strings.TrimSpace(conversationID))
}
