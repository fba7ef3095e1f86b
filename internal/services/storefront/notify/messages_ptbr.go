package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BrazilianPortuguese

	message.SetString(lang, "toast.cart.item_added", "%s adicionado ao carrinho.")
	message.SetString(lang, "toast.cart.item_removed", "%s removido do carrinho.")
	message.SetString(lang, "toast.cart.updated", "Carrinho atualizado.")
	message.SetString(lang, "toast.cart.cleared", "Seu carrinho está vazio.")
	message.SetString(lang, "toast.order.placed", "Pedido realizado com %s itens.")
	message.SetString(lang, "toast.wishlist.added", "%s salvo na lista de desejos.")
	message.SetString(lang, "toast.wishlist.removed", "%s removido da lista de desejos.")
	message.SetString(lang, "toast.conversation.started", "Conversa iniciada.")

	message.SetString(lang, "toast.error.cross_store_conflict", "Seu carrinho tem itens de outra loja. Esvazie-o antes de adicionar %s.")
	message.SetString(lang, "toast.error.insufficient_stock", "Apenas %s unidades de %s disponíveis.")
	message.SetString(lang, "toast.error.authentication_required", "Entre na sua conta para continuar.")
	message.SetString(lang, "toast.error.network_failure", "Não foi possível falar com a loja. Tente novamente.")
	message.SetString(lang, "toast.error.not_found", "Esse item não está mais disponível.")
	message.SetString(lang, "toast.error.validation_failure", "Verifique os dados informados: %s")
	message.SetString(lang, "toast.error.mutation_in_flight", "Ainda processando sua última solicitação.")
	message.SetString(lang, "toast.error.conversation_not_active", "Abra uma conversa antes de enviar mensagens.")
	message.SetString(lang, "toast.error.unknown", "Algo deu errado. Tente novamente.")
}
