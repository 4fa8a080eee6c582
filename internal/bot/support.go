package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nexoplatform/nexo-bot/internal/domain"
	"github.com/nexoplatform/nexo-bot/internal/gateway"
	"github.com/nexoplatform/nexo-bot/internal/repo"
	"github.com/nexoplatform/nexo-bot/internal/utils"
)

// Support workflow steps.
const (
	stepAwaitSubject = "support:await_subject"
	stepAwaitMessage = "support:await_message"
	stepAwaitReply   = "support:await_reply"
)

// Support implements the ticket workflow: listing, detail view, creation
// (subject, message, priority), replies and status changes.
type Support struct {
	*Deps
	Auth *Auth
}

func ticketStatusEmoji(status string) string {
	switch strings.ToLower(status) {
	case "open":
		return "🟢"
	case "pending":
		return "🟡"
	case "closed":
		return "🔴"
	case "resolved":
		return "✅"
	default:
		return "⚪"
	}
}

func priorityEmoji(priority string) string {
	switch strings.ToLower(priority) {
	case "high":
		return "🔴"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	default:
		return "⚪"
	}
}

// HandleSupport fetches the ticket list and shows the first page, or the
// empty-state panel when the user has no tickets.
func (sp *Support) HandleSupport(ctx context.Context, msg *tgbotapi.Message) {
	u, ok := sp.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return
	}

	res, err := sp.Gateway.Tickets(ctx, u.APIKey)
	if err != nil || !res.Success {
		_ = sp.Msgr.Send(msg.Chat.ID, "❌ Could not load your tickets. Check the connection and try again.", nil)
		return
	}

	sp.Caches.Tickets.Store(msg.From.ID, res.Data)
	if len(res.Data) == 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📝 New ticket", "create_new_ticket"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh_tickets"),
			),
		)
		_ = sp.Msgr.Send(msg.Chat.ID, "🎫 *Support*\n\nYou have no tickets yet. Need help? Open one!", &kb)
		return
	}
	sp.showTicketsPage(msg.Chat.ID, msg.From.ID, 0, 0)
}

// showTicketsPage renders one page of the cached ticket list.
func (sp *Support) showTicketsPage(chatID, userID int64, page, editMessageID int) {
	items, totalPages := sp.Caches.Tickets.Page(userID, page, ticketsPerPage)
	if len(items) == 0 {
		_ = sp.Msgr.Send(chatID, "🎫 No tickets cached, run /support again.", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎫 *Your tickets* (page %d/%d)\n", page+1, totalPages)
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range items {
		fmt.Fprintf(&sb, "\n%s *#%s %s*\n%s Priority: %s | 📅 %s\n",
			ticketStatusEmoji(t.Status), t.ID.String(), t.Subject,
			priorityEmoji(t.Priority), t.Priority, t.CreatedAt)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👁 View #"+t.ID.String(), "view_ticket_"+t.ID.String()),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("tickets_page_%d", page-1)))
	}
	if page < totalPages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("tickets_page_%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 New ticket", "create_new_ticket"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh_tickets"),
		),
	)

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	text := utils.Clip(sb.String(), telegramTextLimit)
	if editMessageID != 0 {
		_ = sp.Msgr.Edit(chatID, editMessageID, text, &kb)
	} else {
		_ = sp.Msgr.Send(chatID, text, &kb)
	}
}

// showTicketDetails renders one cached ticket with a status-gated keyboard:
// open and pending tickets can be replied to or closed, closed tickets can
// be reopened.
func (sp *Support) showTicketDetails(chatID, userID int64, messageID int, t gateway.Ticket) {
	text := fmt.Sprintf(`🎫 *Ticket #%s*

📋 *Subject:* %s
%s *Status:* %s
%s *Priority:* %s
📅 *Created:* %s
🕐 *Updated:* %s

💬 *Message:*
%s`,
		t.ID.String(), t.Subject,
		ticketStatusEmoji(t.Status), t.Status,
		priorityEmoji(t.Priority), t.Priority,
		orDash(t.CreatedAt), orDash(t.UpdatedAt),
		orDash(t.Message))

	var rows [][]tgbotapi.InlineKeyboardButton
	switch strings.ToLower(t.Status) {
	case "open", "pending":
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Reply", "reply_ticket_"+t.ID.String()),
			tgbotapi.NewInlineKeyboardButtonData("🔒 Close", "close_ticket_"+t.ID.String()),
		))
	case "closed":
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔓 Reopen", "reopen_ticket_"+t.ID.String()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to tickets", "back_to_tickets"),
	))

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	clipped := utils.Clip(text, telegramTextLimit)
	if messageID != 0 {
		_ = sp.Msgr.Edit(chatID, messageID, clipped, &kb)
	} else {
		_ = sp.Msgr.Send(chatID, clipped, &kb)
	}
}

// HandleCallback handles ticket pagination, detail views, creation,
// priority selection, replies and status changes.
func (sp *Support) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, "tickets_page_"):
		page := utils.AtoiDefault(utils.SuffixID(cb.Data), 0)
		sp.showTicketsPage(chatID, userID, page, cb.Message.MessageID)
		_ = sp.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "view_ticket_"):
		id := strings.TrimPrefix(cb.Data, "view_ticket_")
		t, ok := sp.Caches.Tickets.Find(userID, id)
		if !ok {
			_ = sp.Msgr.AnswerCallback(cb.ID, "Ticket not found, refresh the list")
			return
		}
		sp.showTicketDetails(chatID, userID, cb.Message.MessageID, t)
		_ = sp.Msgr.AnswerCallback(cb.ID, "")

	case cb.Data == "create_new_ticket":
		sp.Tracker.Begin(userID, stepAwaitSubject, nil)
		_ = sp.Msgr.Edit(chatID, cb.Message.MessageID,
			"📝 *New ticket*\n\nEnter a short subject for your ticket:", nil)
		_ = sp.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "priority_"):
		priority := strings.TrimPrefix(cb.Data, "priority_")
		sp.createTicket(ctx, cb, priority)

	case strings.HasPrefix(cb.Data, "reply_ticket_"):
		id := strings.TrimPrefix(cb.Data, "reply_ticket_")
		sp.Tracker.Begin(userID, stepAwaitReply, map[string]string{"ticket_id": id})
		_ = sp.Msgr.Edit(chatID, cb.Message.MessageID,
			fmt.Sprintf("💬 *Reply to ticket #%s*\n\nEnter your message:", id), nil)
		_ = sp.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "close_ticket_"):
		sp.changeTicketStatus(ctx, cb, strings.TrimPrefix(cb.Data, "close_ticket_"), "closed")

	case strings.HasPrefix(cb.Data, "reopen_ticket_"):
		sp.changeTicketStatus(ctx, cb, strings.TrimPrefix(cb.Data, "reopen_ticket_"), "open")

	case cb.Data == "back_to_tickets":
		if sp.Caches.Tickets.Len(userID) == 0 {
			_ = sp.Msgr.AnswerCallback(cb.ID, "No tickets cached, run /support")
			return
		}
		sp.showTicketsPage(chatID, userID, 0, cb.Message.MessageID)
		_ = sp.Msgr.AnswerCallback(cb.ID, "")

	case cb.Data == "refresh_tickets":
		u, err := repo.GetUser(ctx, sp.DB, userID)
		if err != nil || u.APIKey == "" {
			_ = sp.Msgr.AnswerCallback(cb.ID, "Log in first with /login")
			return
		}
		res, err := sp.Gateway.Tickets(ctx, u.APIKey)
		if err != nil || !res.Success {
			_ = sp.Msgr.AnswerCallback(cb.ID, "Could not refresh tickets")
			return
		}
		sp.Caches.Tickets.Store(userID, res.Data)
		if len(res.Data) == 0 {
			_ = sp.Msgr.Edit(chatID, cb.Message.MessageID, "🎫 *Support*\n\nYou have no tickets yet. Need help? Open one!", nil)
		} else {
			sp.showTicketsPage(chatID, userID, 0, cb.Message.MessageID)
		}
		_ = sp.Msgr.AnswerCallback(cb.ID, "Tickets refreshed")
	}
}

// createTicket submits the collected subject and message with the chosen
// priority. The tracker entry is consumed regardless of the outcome.
func (sp *Support) createTicket(ctx context.Context, cb *tgbotapi.CallbackQuery, priority string) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	subject := sp.Tracker.Field(userID, "subject")
	message := sp.Tracker.Field(userID, "message")
	sp.Tracker.End(userID)

	if subject == "" || message == "" {
		_ = sp.Msgr.AnswerCallback(cb.ID, "Ticket draft expired, start over with /support")
		return
	}

	u, err := repo.GetUser(ctx, sp.DB, userID)
	if err != nil || u.APIKey == "" {
		_ = sp.Msgr.AnswerCallback(cb.ID, "Log in first with /login")
		return
	}

	res, err := sp.Gateway.CreateTicket(ctx, u.APIKey, subject, message, priority)
	if err != nil || !res.Success {
		_ = sp.Msgr.Edit(chatID, cb.Message.MessageID, "❌ Could not create the ticket. Try again later.", nil)
		_ = sp.Msgr.AnswerCallback(cb.ID, "")
		return
	}

	if _, err := repo.CreateTransaction(ctx, sp.DB, userID, domain.TxTicketCreated, 0, "Ticket opened: "+subject); err != nil {
		sp.Log.Error().Err(err).Int64("user_id", userID).Msg("recording ticket transaction failed")
	}

	text := fmt.Sprintf(`✅ *Ticket created!*

🎫 *Ticket id:* #%s
📋 *Subject:* %s
%s *Priority:* %s

Our team will get back to you soon. Track it with /support.`,
		res.Data.ID.String(), subject, priorityEmoji(priority), priority)
	_ = sp.Msgr.Edit(chatID, cb.Message.MessageID, text, nil)
	_ = sp.Msgr.AnswerCallback(cb.ID, "")
}

func (sp *Support) changeTicketStatus(ctx context.Context, cb *tgbotapi.CallbackQuery, ticketID, status string) {
	u, err := repo.GetUser(ctx, sp.DB, cb.From.ID)
	if err != nil || u.APIKey == "" {
		_ = sp.Msgr.AnswerCallback(cb.ID, "Log in first with /login")
		return
	}
	res, err := sp.Gateway.UpdateTicketStatus(ctx, u.APIKey, ticketID, status)
	if err != nil || !res.Success {
		_ = sp.Msgr.AnswerCallback(cb.ID, "❌ Could not update the ticket")
		return
	}
	if status == "closed" {
		_ = sp.Msgr.AnswerCallback(cb.ID, "🔒 Ticket closed")
	} else {
		_ = sp.Msgr.AnswerCallback(cb.ID, "🔓 Ticket reopened")
	}
	_ = sp.Msgr.Edit(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("🎫 Ticket #%s is now *%s*. Refresh with /support.", ticketID, status), nil)
}

// HandleText consumes subject, message and reply input.
func (sp *Support) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	step, ok := sp.Tracker.Step(userID)
	if !ok {
		return
	}
	input := strings.TrimSpace(msg.Text)

	switch step {
	case stepAwaitSubject:
		if len(input) < 3 {
			_ = sp.Msgr.Send(msg.Chat.ID, "❌ The subject must be at least 3 characters. Try again:", nil)
			return
		}
		sp.Tracker.SetField(userID, "subject", input)
		sp.Tracker.Advance(userID, stepAwaitMessage)
		_ = sp.Msgr.Send(msg.Chat.ID, "💬 Now describe your issue in detail:", nil)

	case stepAwaitMessage:
		if len(input) < 10 {
			_ = sp.Msgr.Send(msg.Chat.ID, "❌ Please give a bit more detail (at least 10 characters):", nil)
			return
		}
		sp.Tracker.SetField(userID, "message", input)
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔴 High", "priority_high"),
				tgbotapi.NewInlineKeyboardButtonData("🟡 Medium", "priority_medium"),
				tgbotapi.NewInlineKeyboardButtonData("🟢 Low", "priority_low"),
			),
		)
		_ = sp.Msgr.Send(msg.Chat.ID, "⚡️ Pick a priority for your ticket:", &kb)

	case stepAwaitReply:
		ticketID := sp.Tracker.Field(userID, "ticket_id")
		sp.Tracker.End(userID)

		if input == "" || ticketID == "" {
			_ = sp.Msgr.Send(msg.Chat.ID, "❌ Nothing to send. Open the ticket again from /support.", nil)
			return
		}
		u, err := repo.GetUser(ctx, sp.DB, userID)
		if err != nil || u.APIKey == "" {
			_ = sp.Msgr.Send(msg.Chat.ID, loginRequiredText, nil)
			return
		}
		res, err := sp.Gateway.ReplyTicket(ctx, u.APIKey, ticketID, input)
		if err != nil || !res.Success {
			_ = sp.Msgr.Send(msg.Chat.ID, "❌ Could not send your reply. Try again later.", nil)
			return
		}
		_ = sp.Msgr.Send(msg.Chat.ID, fmt.Sprintf("✅ Reply added to ticket #%s.", ticketID), nil)
	}
}
