package app

import (
	"context"

	"github.com/louisbranch/storefront/internal/services/storefront/chat"
	"github.com/louisbranch/storefront/internal/services/storefront/keys"
	"github.com/louisbranch/storefront/internal/services/storefront/querycache"
)

// Conversations returns the conversation list of the signed-in shopper.
func (c *Client) Conversations() ([]chat.Conversation, querycache.Entry) {
	user, ok := c.signedIn()
	if !ok {
		return nil, querycache.Entry{}
	}
	entry := c.cache.Read(keys.Conversations(user.ID), chat.ConversationsFetcher(c.remote), querycache.Policy{})
	conversations, _ := querycache.Value[[]chat.Conversation](entry)
	return conversations, entry
}

// Chat opens the conversation with storeID.
func (c *Client) Chat(ctx context.Context, storeID string) (*chat.Session, error) {
	return c.chat.Open(ctx, storeID)
}
