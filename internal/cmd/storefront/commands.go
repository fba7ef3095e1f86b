package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/louisbranch/storefront/internal/services/storefront/app"
	"github.com/louisbranch/storefront/internal/services/storefront/cart"
	"github.com/louisbranch/storefront/internal/services/storefront/chat"
	"github.com/louisbranch/storefront/internal/services/storefront/mutation"
)

// ErrUsage indicates a missing or malformed command.
var ErrUsage = errors.New("usage")

type command struct {
	usage   string
	minArgs int
	run     func(ctx context.Context, rt *runtime, args []string, out io.Writer) error
}

var commands = map[string]command{
	"cart":     {usage: "cart", run: runCart},
	"add":      {usage: "add <product> [quantity]", minArgs: 1, run: runAdd},
	"set":      {usage: "set <product> <quantity>", minArgs: 2, run: runSet},
	"remove":   {usage: "remove <product>", minArgs: 1, run: runRemove},
	"clear":    {usage: "clear", run: runClear},
	"checkout": {usage: "checkout [shipping address]", run: runCheckout},
	"products": {usage: "products [store]", run: runProducts},
	"orders":   {usage: "orders", run: runOrders},
	"wishlist": {usage: "wishlist [product]", run: runWishlist},
	"chat":     {usage: "chat <store> <message>", minArgs: 2, run: runChat},
	"watch":    {usage: "watch <store>", minArgs: 1, run: runWatch},
}

// Usage lists the supported commands.
func Usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("commands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	return b.String()
}

func execute(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command\n%s", ErrUsage, Usage())
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, args[0], Usage())
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}
	return cmd.run(ctx, rt, args[1:], out)
}

func runCart(_ context.Context, rt *runtime, _ []string, out io.Writer) error {
	return printCart(out, rt.client.Cart())
}

func runAdd(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	quantity := 1
	if len(args) > 1 {
		parsed, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		quantity = parsed
	}
	product, err := rt.client.LoadProduct(ctx, args[0])
	if err != nil {
		return err
	}
	if err := rt.client.AddToCart(ctx, product, quantity); err != nil {
		return err
	}
	return printCart(out, rt.client.Cart())
}

func runSet(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	quantity, err := parseQuantity(args[1])
	if err != nil {
		return err
	}
	if err := rt.client.UpdateCartQuantity(ctx, args[0], quantity); err != nil {
		return err
	}
	return printCart(out, rt.client.Cart())
}

func runRemove(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	if err := rt.client.RemoveFromCart(ctx, args[0]); err != nil {
		return err
	}
	return printCart(out, rt.client.Cart())
}

func runClear(ctx context.Context, rt *runtime, _ []string, out io.Writer) error {
	if err := rt.client.ClearCart(ctx); err != nil {
		return err
	}
	return printCart(out, rt.client.Cart())
}

func runCheckout(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	pending, m, err := rt.client.PlaceOrder(ctx, app.PlaceOrderInput{
		ShippingAddress: strings.Join(args, " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "placing order %s (%s)\n", pending.ID, pending.Total.StringFixed(2))
	result, err := rt.wait(ctx, m)
	if err != nil {
		return err
	}
	if placed, ok := result.(app.Order); ok {
		fmt.Fprintf(out, "order %s %s\n", placed.ID, placed.Status)
	}
	return nil
}

func runProducts(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	var filter map[string]string
	if len(args) > 0 {
		filter = map[string]string{"store": args[0]}
	}
	products, err := rt.client.LoadProducts(ctx, filter)
	if err != nil {
		return err
	}
	return printProducts(out, products)
}

func runOrders(ctx context.Context, rt *runtime, _ []string, out io.Writer) error {
	orders, err := rt.client.LoadOrders(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTORE\tSTATUS\tTOTAL\tDATE")
	for _, order := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", order.ID, order.StoreID, order.Status, order.Total.StringFixed(2), order.DateCreated.Format(time.DateOnly))
	}
	return w.Flush()
}

func runWishlist(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	if len(args) == 0 {
		products, err := rt.client.LoadWishlist(ctx)
		if err != nil {
			return err
		}
		return printProducts(out, products)
	}
	target, m, err := rt.client.ToggleWishlist(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := rt.wait(ctx, m); err != nil {
		return err
	}
	state := "removed from"
	if target {
		state = "added to"
	}
	fmt.Fprintf(out, "%s %s wishlist\n", args[0], state)
	return nil
}

func runChat(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	session, err := rt.client.Chat(ctx, args[0])
	if err != nil {
		return err
	}
	_, m, err := session.Send(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	result, err := rt.wait(ctx, m)
	if err != nil {
		return err
	}
	if sent, ok := result.(chat.Message); ok {
		fmt.Fprintf(out, "sent %s\n", sent.ID)
	}
	return nil
}

func runWatch(ctx context.Context, rt *runtime, args []string, out io.Writer) error {
	session, err := rt.client.Chat(ctx, args[0])
	if err != nil {
		return err
	}
	detach, err := session.Watch()
	if err != nil {
		return err
	}
	defer detach()

	printed := make(map[string]struct{})
	ticker := time.NewTicker(rt.pollInterval)
	defer ticker.Stop()
	for {
		messages, _ := session.Messages()
		for _, message := range messages {
			if message.IsOptimistic {
				continue
			}
			if _, ok := printed[message.ID]; ok {
				continue
			}
			printed[message.ID] = struct{}{}
			fmt.Fprintf(out, "%s %s: %s\n", message.DateCreated.Format(time.TimeOnly), senderLabel(message), message.Content)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// wait blocks until m settles, bounded by twice the request timeout.
func (rt *runtime) wait(ctx context.Context, m *mutation.Mutation) (any, error) {
	waitCtx, cancel := context.WithTimeout(ctx, 2*rt.timeout)
	defer cancel()
	return m.Wait(waitCtx)
}

func parseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q is not a number", ErrUsage, raw)
	}
	return quantity, nil
}

func senderLabel(message chat.Message) string {
	if message.SenderID == "" {
		return "system"
	}
	return message.SenderID
}

func printCart(out io.Writer, snapshot cart.Snapshot) error {
	if snapshot.Empty() {
		_, err := fmt.Fprintln(out, "cart is empty")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "store %s\n", snapshot.ActiveStoreID)
	fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tPRICE\tTOTAL")
	for _, line := range snapshot.Lines {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", line.ProductID, line.Product.Name, line.Quantity, line.Product.Price.StringFixed(2), line.Total().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%s\n", snapshot.ItemCount(), snapshot.Subtotal().StringFixed(2))
	return w.Flush()
}

func printProducts(out io.Writer, products []cart.Product) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTORE\tNAME\tPRICE\tSTOCK")
	for _, product := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", product.ID, product.StoreID, product.Name, product.Price.StringFixed(2), product.AvailableStock)
	}
	return w.Flush()
}
