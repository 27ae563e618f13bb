package conversation

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/internal/storage/orderjournal"
)

const (
	assetButtonsPerRow = 3
	serverTimeLayout   = "Jan 02, 2006 at 03:04:05.000 PM MST"
)

// Button is an inline keyboard button carrying an encoded action token.
type Button struct {
	Text string
	Data string
}

// Reply is what the transport shows in response to one event.
// Text is HTML. An empty Text means nothing is sent, only Notice is shown.
type Reply struct {
	Text    string
	Buttons [][]Button
	Notice  string
}

func noticeReply(notice string) Reply {
	return Reply{Notice: notice}
}

// button builds a button for a static action. Static actions always encode.
func button(text string, a Action) Button {
	data, _ := a.Encode()
	return Button{Text: text, Data: data}
}

func backRow() []Button {
	return []Button{button("⬅️ Back", Action{Kind: ActionBack})}
}

func mainMenuReply(name string) Reply {
	greeting := "Hello!"
	if name != "" {
		greeting = fmt.Sprintf("Hello, <b>%s</b>!", html.EscapeString(name))
	}
	return Reply{
		Text: greeting + "\nChoose a command:",
		Buttons: [][]Button{
			{button("💳 Wallet", Action{Kind: ActionWallet}), button("📊 Orders", Action{Kind: ActionOrders})},
			{button("📈 Sell", Action{Kind: ActionSellMenu}), button("🔄 Refresh", Action{Kind: ActionMenu})},
		},
	}
}

func walletReply(w domain.Wallet, quote string, min decimal.Decimal) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>💼 Wallet Overview</b>\n<code>Total: $%s %s</code>\n\n", w.Total().StringFixed(2), quote)

	visible := w.Visible(min)
	for _, item := range visible {
		fmt.Fprintf(&b, "<b>%s</b>\n└ <code>$%s</code> @ <code>$%s</code>\n└ 24h: %s\n\n",
			item.Asset, item.BalanceValue().StringFixed(2), item.LastPrice.StringFixed(4), formatPnL(item))
	}

	fmt.Fprintf(&b, "\n<i>Showing %d of %d assets</i>\n<i>Last updated: %s</i>",
		len(visible), len(w.Items), w.ServerTime.UTC().Format(serverTimeLayout))

	return Reply{
		Text:    b.String(),
		Buttons: [][]Button{{button("🔄 Refresh", Action{Kind: ActionWallet})}, backRow()},
	}
}

func sellAssetsReply(items []domain.WalletItem) Reply {
	if len(items) == 0 {
		return Reply{Text: "<b>Nothing to sell.</b>\nNo asset is worth enough to place an order.", Buttons: [][]Button{backRow()}}
	}

	rows := make([][]Button, 0, len(items)/assetButtonsPerRow+2)
	row := make([]Button, 0, assetButtonsPerRow)
	for _, item := range items {
		row = append(row, button(item.Asset, SelectAsset(item.Asset)))
		if len(row) == assetButtonsPerRow {
			rows = append(rows, row)
			row = make([]Button, 0, assetButtonsPerRow)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, backRow())

	return Reply{Text: "<b>Select asset to sell:</b>", Buttons: rows}
}

func assetCardReply(item domain.WalletItem) Reply {
	text := fmt.Sprintf("<b>🔸 Sell %s</b>\n\n"+
		"Available: <code>%s</code>\n"+
		"Value: <code>$%s</code>\n"+
		"Price: <code>$%s</code>\n"+
		"LIQ: <code>$%s</code>\n"+
		"24h Change: %s\n\n"+
		"<b>Select order type:</b>",
		item.Asset, item.Free.StringFixed(8), item.BalanceValue().StringFixed(2),
		item.LastPrice.StringFixed(4), item.Depth.StringFixed(4), formatPnL(item))

	return Reply{
		Text: text,
		Buttons: [][]Button{
			{button("Market Order", SelectType(item.Asset, domain.OrderKindMarket))},
			{button("Limit Order", SelectType(item.Asset, domain.OrderKindLimit))},
			backRow(),
		},
	}
}

func amountPromptReply(asset string) Reply {
	return Reply{
		Text:    fmt.Sprintf("<i>Enter amount of %s to sell (e.g 0.0023) or as a percentage (e.g. 20%%):</i>", asset),
		Buttons: [][]Button{backRow()},
	}
}

func pricePromptReply(quote string, last decimal.Decimal) Reply {
	return Reply{
		Text:    fmt.Sprintf("Enter limit price in %s (current price: $%s):", quote, last.StringFixed(4)),
		Buttons: [][]Button{backRow()},
	}
}

func previewReply(p domain.Preview, confirmToken string) Reply {
	var text, label string
	switch p.Kind {
	case domain.OrderKindLimit:
		label = "🔸 Place Limit Order 🔸"
		text = fmt.Sprintf("<b>Limit Order Preview:</b>\n\n"+
			"Sell %s %s\n"+
			"at limit price: $%s\n"+
			"Current price: $%s\n"+
			"Value if filled: $%s",
			p.Amount.String(), p.Asset, p.Price.StringFixed(4), p.LastPrice.StringFixed(4), p.Value().StringFixed(2))
	default:
		label = "🔸 Sell at Market 🔸"
		text = fmt.Sprintf("<b>Market Order Preview:</b>\n\n"+
			"Sell %s %s\n"+
			"at market price ($%s)\n"+
			"Value: $%s",
			p.Amount.String(), p.Asset, p.LastPrice.StringFixed(4), p.Value().StringFixed(2))
	}

	return Reply{
		Text: text,
		Buttons: [][]Button{
			{{Text: label, Data: confirmToken}},
			{button("⬅️ Back", SelectAsset(p.Asset))},
		},
	}
}

func orderPlacedReply(p domain.Preview, res domain.OrderResult) Reply {
	var text string
	switch p.Kind {
	case domain.OrderKindLimit:
		text = fmt.Sprintf("<b>Limit Order Placed:</b>\nSelling %s %s\nat $%s\nOrder: %s",
			p.Amount.StringFixed(8), p.Asset, p.Price.StringFixed(4), orderRef(res))
	default:
		text = fmt.Sprintf("<b>Market Order Executed:</b>\nSold %s %s\nOrder: %s",
			p.Amount.StringFixed(8), p.Asset, orderRef(res))
	}
	return Reply{Text: text, Buttons: [][]Button{backRow()}}
}

// orderRef omits the status suffix when the exchange did not report one.
func orderRef(res domain.OrderResult) string {
	ref := "<code>" + html.EscapeString(res.OrderID) + "</code>"
	if res.Status == "" {
		return ref
	}
	return ref + " (" + html.EscapeString(res.Status) + ")"
}

func orderFailedReply(p domain.Preview, cause error) Reply {
	return Reply{
		Text: fmt.Sprintf("<b>❌ Order Failed</b>\nThe %s sell of %s %s was not placed.\n<i>%s</i>",
			p.Kind, p.Amount.String(), p.Asset, html.EscapeString(cause.Error())),
		Buttons: [][]Button{
			{button("🔁 Retry", SelectAsset(p.Asset))},
			backRow(),
		},
	}
}

func errorReply(text string) Reply {
	return Reply{Text: text, Buttons: [][]Button{backRow()}}
}

func ordersReply(records []orderjournal.Record) Reply {
	if len(records) == 0 {
		return Reply{Text: "<b>📊 Recent Orders</b>\n\nNo orders yet.", Buttons: [][]Button{backRow()}}
	}

	var b strings.Builder
	b.WriteString("<b>📊 Recent Orders</b>\n\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s <b>%s</b> %s %s", statusIcon(r.Status), r.Kind, r.Quantity.String(), r.Symbol)
		if r.Kind == domain.OrderKindLimit {
			fmt.Fprintf(&b, " @ $%s", r.Price.StringFixed(4))
		}
		fmt.Fprintf(&b, "\n└ %s · %s", r.Status, r.Time.UTC().Format("Jan 02 15:04 MST"))
		if r.OrderID != "" {
			fmt.Fprintf(&b, " · <code>%s</code>", html.EscapeString(r.OrderID))
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "\n└ <i>%s</i>", html.EscapeString(r.Error))
		}
		b.WriteString("\n\n")
	}

	return Reply{
		Text:    strings.TrimRight(b.String(), "\n"),
		Buttons: [][]Button{{button("🔄 Refresh", Action{Kind: ActionOrders})}, backRow()},
	}
}

func statusIcon(s orderjournal.Status) string {
	switch s {
	case orderjournal.StatusDone:
		return "✅"
	case orderjournal.StatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

func formatPnL(item domain.WalletItem) string {
	icon, sign := "🟢", "+"
	if item.PnLPercent.IsNegative() {
		icon, sign = "🔴", "-"
	}
	return fmt.Sprintf("%s %s%s%% (%s$%s)", icon, sign, item.PnLPercent.Abs().StringFixed(2), sign, item.PersonalPnLValue().Abs().StringFixed(2))
}
