// Package storefront groups the shopper-side sync layer: the persisted cart
// ledger, the query cache over server collections, optimistic mutations,
// message polling and the chat session built on top of them.
//
// Subpackages are wired together by the app package; the storefront command
// in internal/cmd/storefront is the only process entrypoint.
package storefront
