package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.AmericanEnglish

	message.SetString(lang, "toast.cart.item_added", "Added %s to your cart.")
	message.SetString(lang, "toast.cart.item_removed", "Removed %s from your cart.")
	message.SetString(lang, "toast.cart.updated", "Cart updated.")
	message.SetString(lang, "toast.cart.cleared", "Your cart is empty.")
	message.SetString(lang, "toast.order.placed", "Order placed for %s items.")
	message.SetString(lang, "toast.wishlist.added", "Saved %s to your wishlist.")
	message.SetString(lang, "toast.wishlist.removed", "Removed %s from your wishlist.")
	message.SetString(lang, "toast.conversation.started", "Conversation started.")

	message.SetString(lang, "toast.error.cross_store_conflict", "Your cart holds items from another store. Clear it before adding %s.")
	message.SetString(lang, "toast.error.insufficient_stock", "Only %s of %s available.")
	message.SetString(lang, "toast.error.authentication_required", "Sign in to continue.")
	message.SetString(lang, "toast.error.network_failure", "We could not reach the store. Please try again.")
	message.SetString(lang, "toast.error.not_found", "That item is no longer available.")
	message.SetString(lang, "toast.error.validation_failure", "Please check your input: %s")
	message.SetString(lang, "toast.error.mutation_in_flight", "Still working on your last request.")
	message.SetString(lang, "toast.error.conversation_not_active", "Open a conversation before sending messages.")
	message.SetString(lang, "toast.error.unknown", "Something went wrong. Please try again.")
}
