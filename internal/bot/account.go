package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nexoplatform/nexo-bot/internal/domain"
	"github.com/nexoplatform/nexo-bot/internal/repo"
	"github.com/nexoplatform/nexo-bot/internal/utils"
)

// Account workflow steps.
const stepAwaitCoupon = "account:await_coupon"

// telegramTextLimit is the hard cap on a single message body.
const telegramTextLimit = 4096

// Account implements the account/wallet workflow: profile, balance and
// transaction views are stateless reads (live gateway calls plus local
// audit rows); coupon redemption is the only multi-step flow.
type Account struct {
	*Deps
	Auth *Auth
}

// HandleAccount renders the account overview with live profile and balance
// plus local stats (linked servers, recent transactions).
func (ac *Account) HandleAccount(ctx context.Context, msg *tgbotapi.Message) {
	u, ok := ac.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return
	}

	info, err := ac.Gateway.UserInfo(ctx, u.APIKey)
	if err != nil || !info.Success {
		_ = ac.Msgr.Send(msg.Chat.ID, "❌ Could not fetch your account details. Check the connection and try again.", nil)
		return
	}

	balance := u.Balance
	if res, err := ac.Gateway.Balance(ctx, u.APIKey); err == nil && res.Success {
		balance = res.Data.Balance
		_ = repo.UpdateBalance(ctx, ac.DB, u.TelegramID, balance)
	}

	serverCount, _ := repo.CountLinkedServers(ctx, ac.DB, u.TelegramID)
	recent, _ := repo.ListTransactions(ctx, ac.DB, u.TelegramID, 5)

	text := fmt.Sprintf(`👤 *Account details*

📧 *Email:* %s
💰 *Balance:* %.2f coins
🆔 *User id:* %s
📅 *Registered:* %s
🕐 *Last activity:* %s

📊 *Quick stats:*
🖥 Linked servers: %d
💳 Recent transactions: %d`,
		orDash(info.Data.Email),
		balance,
		orDash(info.Data.ID.String()),
		orDash(info.Data.CreatedAt),
		time.Now().UTC().Format("2006-01-02 15:04"),
		serverCount,
		len(recent),
	)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💰 Show balance", "show_balance")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📜 Recent transactions", "show_transactions")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👥 Referral program", "show_referral")),
	)
	_ = ac.Msgr.Send(msg.Chat.ID, text, &kb)
}

// HandleBalance renders the live wallet balance with recent local activity.
func (ac *Account) HandleBalance(ctx context.Context, msg *tgbotapi.Message) {
	u, ok := ac.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return
	}

	res, err := ac.Gateway.Balance(ctx, u.APIKey)
	if err != nil || !res.Success {
		_ = ac.Msgr.Send(msg.Chat.ID, "❌ Could not fetch your balance. Check the connection and try again.", nil)
		return
	}
	_ = repo.UpdateBalance(ctx, ac.DB, u.TelegramID, res.Data.Balance)

	recent, _ := repo.ListTransactions(ctx, ac.DB, u.TelegramID, 5)

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 *Wallet balance*\n\n💎 *Current balance:* %.2f coins\n\n📊 *Recent transactions:*", res.Data.Balance)
	if len(recent) == 0 {
		sb.WriteString("\n📝 No recent transactions")
	} else {
		for _, t := range recent {
			sb.WriteString("\n" + formatTransaction(t, false))
		}
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎫 Redeem coupon", "redeem_coupon")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📜 Full history", "transaction_history")),
	)
	_ = ac.Msgr.Send(msg.Chat.ID, sb.String(), &kb)
}

// HandleCoupon starts the coupon redemption flow.
func (ac *Account) HandleCoupon(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := ac.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID); !ok {
		return
	}
	ac.Tracker.Begin(msg.From.ID, stepAwaitCoupon, nil)
	_ = ac.Msgr.Send(msg.Chat.ID, "🎫 *Redeem a top-up coupon*\n\nEnter the coupon code:", nil)
}

// HandleReferral renders the referral program stats.
func (ac *Account) HandleReferral(ctx context.Context, msg *tgbotapi.Message) {
	u, ok := ac.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return
	}
	text, ok2 := ac.referralText(ctx, u.APIKey)
	if !ok2 {
		_ = ac.Msgr.Send(msg.Chat.ID, "❌ Could not fetch your referral details.", nil)
		return
	}
	_ = ac.Msgr.Send(msg.Chat.ID, text, nil)
}

// HandleText consumes the coupon code input.
func (ac *Account) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if step, ok := ac.Tracker.Step(userID); !ok || step != stepAwaitCoupon {
		return
	}

	code := strings.TrimSpace(msg.Text)
	if len(code) < 3 {
		// Local validation failure: re-prompt without touching the gateway
		// or advancing the step.
		_ = ac.Msgr.Send(msg.Chat.ID, "❌ That coupon code looks too short. Enter the full code:", nil)
		return
	}
	ac.Tracker.End(userID)

	u, err := repo.GetUser(ctx, ac.DB, userID)
	if err != nil || u.APIKey == "" {
		_ = ac.Msgr.Send(msg.Chat.ID, loginRequiredText, nil)
		return
	}

	res, err := ac.Gateway.RedeemCoupon(ctx, u.APIKey, code)
	if err != nil {
		_ = ac.Msgr.Send(msg.Chat.ID, "❌ Coupon redemption failed: could not reach the panel.", nil)
		return
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "the coupon is invalid or has expired"
		}
		_ = ac.Msgr.Send(msg.Chat.ID, "❌ Coupon redemption failed: "+reason, nil)
		return
	}

	if _, err := repo.CreateTransaction(ctx, ac.DB, userID, domain.TxCouponRedeem, res.Data.Amount, "Coupon redeemed: "+code); err != nil {
		ac.Log.Error().Err(err).Int64("user_id", userID).Msg("recording coupon transaction failed")
	}
	_ = repo.UpdateBalance(ctx, ac.DB, userID, res.Data.NewBalance)

	text := fmt.Sprintf(`✅ *Coupon redeemed!*

🎫 *Code:* %s
💎 *Amount added:* %.2f coins
💰 *New balance:* %.2f coins`, code, res.Data.Amount, res.Data.NewBalance)
	_ = ac.Msgr.Send(msg.Chat.ID, text, nil)
}

// HandleCallback handles the wallet panel buttons.
func (ac *Account) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	switch cb.Data {
	case "show_balance":
		u, err := repo.GetUser(ctx, ac.DB, userID)
		if err != nil || u.APIKey == "" {
			_ = ac.Msgr.AnswerCallback(cb.ID, "Log in first with /login")
			return
		}
		res, err := ac.Gateway.Balance(ctx, u.APIKey)
		if err != nil || !res.Success {
			_ = ac.Msgr.AnswerCallback(cb.ID, "Could not fetch your balance")
			return
		}
		_ = repo.UpdateBalance(ctx, ac.DB, userID, res.Data.Balance)
		_ = ac.Msgr.AnswerCallback(cb.ID, fmt.Sprintf("Current balance: %.2f coins", res.Data.Balance))

	case "show_transactions":
		ac.renderHistory(ctx, cb, ac.TxLimit, false)

	case "transaction_history":
		ac.renderHistory(ctx, cb, 20, true)

	case "redeem_coupon":
		ac.Tracker.Begin(userID, stepAwaitCoupon, nil)
		_ = ac.Msgr.Edit(chatID, cb.Message.MessageID, "🎫 *Redeem a top-up coupon*\n\nEnter the coupon code:", nil)

	case "show_referral":
		u, err := repo.GetUser(ctx, ac.DB, userID)
		if err != nil || u.APIKey == "" {
			_ = ac.Msgr.AnswerCallback(cb.ID, "Log in first with /login")
			return
		}
		text, ok := ac.referralText(ctx, u.APIKey)
		if !ok {
			_ = ac.Msgr.AnswerCallback(cb.ID, "Could not fetch referral details")
			return
		}
		_ = ac.Msgr.Edit(chatID, cb.Message.MessageID, text, nil)
	}
}

func (ac *Account) renderHistory(ctx context.Context, cb *tgbotapi.CallbackQuery, limit int, withDates bool) {
	transactions, err := repo.ListTransactions(ctx, ac.DB, cb.From.ID, limit)
	if err != nil || len(transactions) == 0 {
		_ = ac.Msgr.AnswerCallback(cb.ID, "No transactions yet")
		return
	}

	var sb strings.Builder
	if withDates {
		sb.WriteString("📜 *Full transaction history:*\n\n")
	} else {
		sb.WriteString("📜 *Recent transactions:*\n\n")
	}
	for _, t := range transactions {
		sb.WriteString(formatTransaction(t, withDates) + "\n")
	}
	_ = ac.Msgr.Edit(cb.Message.Chat.ID, cb.Message.MessageID, utils.Clip(sb.String(), telegramTextLimit), nil)
}

func (ac *Account) referralText(ctx context.Context, apiKey string) (string, bool) {
	res, err := ac.Gateway.ReferralInfo(ctx, apiKey)
	if err != nil || !res.Success {
		return "", false
	}
	text := fmt.Sprintf(`👥 *Referral program*

🔗 *Your link:*
%s

📊 *Stats:*
👤 Sign-ups: %d
💰 Earnings: %.2f coins

💡 Share your link with friends and earn rewards when they register!`,
		orDash(res.Data.ReferralLink), res.Data.ReferralCount, res.Data.ReferralEarnings)
	return text, true
}

// formatTransaction renders one audit row as a history line. Credits get a
// plus marker, debits a minus; the amount is always shown unsigned.
func formatTransaction(t domain.Transaction, withDate bool) string {
	marker := "➖"
	if t.Amount > 0 {
		marker = "➕"
	}
	amount := t.Amount
	if amount < 0 {
		amount = -amount
	}
	line := fmt.Sprintf("%s %.2f - %s", marker, amount, t.Description)
	if withDate {
		line += "\n📅 " + t.CreatedAt.Format("2006-01-02 15:04") + "\n"
	}
	return line
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
