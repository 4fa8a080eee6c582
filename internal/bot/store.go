package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nexoplatform/nexo-bot/internal/domain"
	"github.com/nexoplatform/nexo-bot/internal/gateway"
	"github.com/nexoplatform/nexo-bot/internal/repo"
	"github.com/nexoplatform/nexo-bot/internal/utils"
)

// Store workflow steps.
const (
	stepAwaitQuantity   = "store:await_quantity"
	stepAwaitServerName = "store:await_server_name"
)

// Store implements the product catalog and purchase workflow. The catalog is
// fetched once per /store (or refresh) and paged from the cache; the purchase
// itself re-checks the live balance before committing.
type Store struct {
	*Deps
	Auth *Auth
}

// HandleStore fetches the catalog and shows the first page.
func (st *Store) HandleStore(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := st.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID); !ok {
		return
	}

	res, err := st.Gateway.Products(ctx)
	if err != nil || !res.Success {
		_ = st.Msgr.Send(msg.Chat.ID, "❌ Could not load the store. Check the connection and try again.", nil)
		return
	}
	if len(res.Data) == 0 {
		_ = st.Msgr.Send(msg.Chat.ID, "🛒 The store is empty right now. Check back later!", nil)
		return
	}

	st.Caches.Products.Store(msg.From.ID, res.Data)
	st.showProductsPage(msg.Chat.ID, msg.From.ID, 0, 0)
}

// showProductsPage renders one catalog page. A non-zero editMessageID edits
// the existing panel in place instead of sending a new message.
func (st *Store) showProductsPage(chatID, userID int64, page, editMessageID int) {
	items, totalPages := st.Caches.Products.Page(userID, page, productsPerPage)
	if len(items) == 0 {
		_ = st.Msgr.Send(chatID, "🛒 The store is empty right now. Check back later!", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 *Store* (page %d/%d)\n", page+1, totalPages)
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range items {
		fmt.Fprintf(&sb, "\n📦 *%s*\n💰 %.2f coins\n", p.Name, p.Price)
		if p.Description != "" {
			fmt.Fprintf(&sb, "📝 %s\n", p.Description)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🛍 Buy %s", p.Name), "buy_product_"+p.ID.String()),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("store_page_%d", page-1)))
	}
	if page < totalPages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("store_page_%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh_store"),
	))

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	text := utils.Clip(sb.String(), telegramTextLimit)
	if editMessageID != 0 {
		_ = st.Msgr.Edit(chatID, editMessageID, text, &kb)
	} else {
		_ = st.Msgr.Send(chatID, text, &kb)
	}
}

// HandleCallback handles store pagination, buy buttons and refresh.
func (st *Store) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, "store_page_"):
		page := utils.AtoiDefault(utils.SuffixID(cb.Data), 0)
		st.showProductsPage(chatID, userID, page, cb.Message.MessageID)
		_ = st.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "buy_product_"):
		id := strings.TrimPrefix(cb.Data, "buy_product_")
		p, ok := st.Caches.Products.Find(userID, id)
		if !ok {
			_ = st.Msgr.AnswerCallback(cb.ID, "Product not found, refresh the store")
			return
		}
		st.beginPurchase(chatID, userID, p)
		_ = st.Msgr.AnswerCallback(cb.ID, "")

	case cb.Data == "refresh_store":
		res, err := st.Gateway.Products(ctx)
		if err != nil || !res.Success {
			_ = st.Msgr.AnswerCallback(cb.ID, "Could not refresh the store")
			return
		}
		st.Caches.Products.Store(userID, res.Data)
		st.showProductsPage(chatID, userID, 0, cb.Message.MessageID)
		_ = st.Msgr.AnswerCallback(cb.ID, "Store refreshed")
	}
}

// beginPurchase starts the purchase dialog. Products whose name mentions a
// server are provisioned singly and ask for a server name instead of a
// quantity.
func (st *Store) beginPurchase(chatID, userID int64, p gateway.Product) {
	fields := map[string]string{"product_id": p.ID.String()}
	if strings.Contains(strings.ToLower(p.Name), "server") {
		fields["quantity"] = "1"
		st.Tracker.Begin(userID, stepAwaitServerName, fields)
		text := fmt.Sprintf("🖥 *%s* — %.2f coins\n\nEnter a name for your new server (at least 3 characters):", p.Name, p.Price)
		_ = st.Msgr.Send(chatID, text, nil)
		return
	}
	st.Tracker.Begin(userID, stepAwaitQuantity, fields)
	text := fmt.Sprintf("📦 *%s* — %.2f coins each\n\nHow many would you like to buy? Enter a number:", p.Name, p.Price)
	_ = st.Msgr.Send(chatID, text, nil)
}

// HandleText consumes quantity or server-name input.
func (st *Store) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	step, ok := st.Tracker.Step(userID)
	if !ok {
		return
	}
	input := strings.TrimSpace(msg.Text)

	switch step {
	case stepAwaitQuantity:
		qty, err := strconv.Atoi(input)
		if err != nil || qty <= 0 {
			// Invalid input re-prompts without advancing the step.
			_ = st.Msgr.Send(msg.Chat.ID, "❌ Enter a whole number greater than zero:", nil)
			return
		}
		st.Tracker.SetField(userID, "quantity", strconv.Itoa(qty))
		st.executePurchase(ctx, msg.Chat.ID, userID)

	case stepAwaitServerName:
		if len(input) < 3 {
			_ = st.Msgr.Send(msg.Chat.ID, "❌ The server name must be at least 3 characters. Try again:", nil)
			return
		}
		st.Tracker.SetField(userID, "server_name", input)
		st.executePurchase(ctx, msg.Chat.ID, userID)
	}
}

// executePurchase runs the balance check and the purchase itself, then
// records the local audit trail. The tracker entry is consumed up front so a
// failed purchase never leaves the user stuck mid-dialog.
func (st *Store) executePurchase(ctx context.Context, chatID, userID int64) {
	productID := st.Tracker.Field(userID, "product_id")
	qty := utils.AtoiDefault(st.Tracker.Field(userID, "quantity"), 1)
	serverName := st.Tracker.Field(userID, "server_name")
	st.Tracker.End(userID)

	p, ok := st.Caches.Products.Find(userID, productID)
	if !ok {
		_ = st.Msgr.Send(chatID, "❌ That product is no longer available, refresh the store with /store.", nil)
		return
	}

	u, err := repo.GetUser(ctx, st.DB, userID)
	if err != nil || u.APIKey == "" {
		_ = st.Msgr.Send(chatID, loginRequiredText, nil)
		return
	}

	total := p.Price * float64(qty)

	bal, err := st.Gateway.Balance(ctx, u.APIKey)
	if err != nil || !bal.Success {
		_ = st.Msgr.Send(chatID, "❌ Could not verify your balance. Try again later.", nil)
		return
	}
	if bal.Data.Balance < total {
		text := fmt.Sprintf(`❌ *Insufficient balance*

💰 Current balance: %.2f coins
💳 Required: %.2f coins
📉 Missing: %.2f coins

Top up with /coupon and try again.`, bal.Data.Balance, total, total-bal.Data.Balance)
		_ = st.Msgr.Send(chatID, text, nil)
		return
	}

	res, err := st.Gateway.Purchase(ctx, u.APIKey, productID, qty)
	if err != nil {
		_ = st.Msgr.Send(chatID, "❌ Purchase failed: could not reach the panel.", nil)
		return
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "the panel rejected the purchase"
		}
		_ = st.Msgr.Send(chatID, "❌ Purchase failed: "+reason, nil)
		return
	}

	if res.Data.ServerID != "" {
		name := serverName
		if name == "" {
			name = p.Name
		}
		if _, err := repo.CreateLinkedServer(ctx, st.DB, userID, res.Data.ServerID, name, p.Name); err != nil {
			st.Log.Error().Err(err).Int64("user_id", userID).Msg("recording linked server failed")
		}
	}

	desc := fmt.Sprintf("Purchase: %s x%d", p.Name, qty)
	if _, err := repo.CreateTransaction(ctx, st.DB, userID, domain.TxPurchase, -total, desc); err != nil {
		st.Log.Error().Err(err).Int64("user_id", userID).Msg("recording purchase transaction failed")
	}
	remaining := bal.Data.Balance - total
	_ = repo.UpdateBalance(ctx, st.DB, userID, remaining)

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ *Purchase complete!*\n\n📦 *Product:* %s\n🔢 *Quantity:* %d\n💳 *Paid:* %.2f coins\n💰 *Remaining balance:* %.2f coins", p.Name, qty, total, remaining)
	if res.Data.ServerID != "" {
		fmt.Fprintf(&sb, "\n\n🖥 Your new server is being provisioned. Manage it with /servers.")
	}
	_ = st.Msgr.Send(chatID, sb.String(), nil)
}
