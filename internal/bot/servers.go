package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nexoplatform/nexo-bot/internal/repo"
	"github.com/nexoplatform/nexo-bot/internal/utils"
)

// Servers workflow step.
const stepAwaitCommand = "servers:await_command"

// Servers implements the game server management workflow: list, live
// details, power actions, console commands and log viewing. Listing pages
// from the cache; the management panel always re-fetches live state.
type Servers struct {
	*Deps
	Auth *Auth
}

// statusEmoji maps a server panel state to its indicator.
func statusEmoji(status string) string {
	switch strings.ToLower(status) {
	case "online", "running":
		return "🟢"
	case "offline":
		return "🔴"
	case "starting":
		return "🟡"
	case "stopping":
		return "🟠"
	default:
		return "⚪"
	}
}

// HandleServers fetches the server list and shows the first page.
func (sv *Servers) HandleServers(ctx context.Context, msg *tgbotapi.Message) {
	u, ok := sv.Auth.RequireLogin(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return
	}

	servers, err := sv.Gateway.Servers(ctx, u.APIKey)
	if err != nil {
		_ = sv.Msgr.Send(msg.Chat.ID, "❌ Could not load your servers. Check the connection and try again.", nil)
		return
	}
	if len(servers) == 0 {
		_ = sv.Msgr.Send(msg.Chat.ID, "🖥 You have no servers yet. Visit the /store to get one!", nil)
		return
	}

	sv.Caches.Servers.Store(msg.From.ID, servers)
	sv.showServersPage(msg.Chat.ID, msg.From.ID, 0, 0)
}

// showServersPage renders one page of the cached server list.
func (sv *Servers) showServersPage(chatID, userID int64, page, editMessageID int) {
	items, totalPages := sv.Caches.Servers.Page(userID, page, serversPerPage)
	if len(items) == 0 {
		_ = sv.Msgr.Send(chatID, "🖥 No servers cached, run /servers again.", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🖥 *Your servers* (page %d/%d)\n", page+1, totalPages)
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range items {
		fmt.Fprintf(&sb, "\n%s *%s*\n🆔 `%s`\n💾 %d MB | ⚙️ %d%% CPU | 💿 %d MB\n",
			statusEmoji(s.Status), s.Name, s.Identifier, s.Limits.Memory, s.Limits.CPU, s.Limits.Disk)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔧 Manage "+s.Name, "manage_server_"+s.Identifier),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("servers_page_%d", page-1)))
	}
	if page < totalPages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("servers_page_%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh_servers"),
	))

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	text := utils.Clip(sb.String(), telegramTextLimit)
	if editMessageID != 0 {
		_ = sv.Msgr.Edit(chatID, editMessageID, text, &kb)
	} else {
		_ = sv.Msgr.Send(chatID, text, &kb)
	}
}

// showServerManagement renders the live management panel for one server.
// Details and resources are always fetched fresh, never from the cache.
func (sv *Servers) showServerManagement(ctx context.Context, chatID int64, messageID int, apiKey, serverID string) bool {
	s, err := sv.Gateway.ServerDetails(ctx, apiKey, serverID)
	if err != nil {
		return false
	}
	res, err := sv.Gateway.ServerResources(ctx, apiKey, serverID)
	if err != nil {
		return false
	}

	text := fmt.Sprintf(`🔧 *%s*

%s *Status:* %s
🆔 *Identifier:* `+"`%s`"+`

📊 *Usage:*
💾 Memory: %.0f/%d MB
⚙️ CPU: %.1f%% (limit %d%%)
💿 Disk: %.0f/%d MB`,
		s.Name, statusEmoji(s.Status), s.Status, s.Identifier,
		res.MemoryMB(), s.Limits.Memory,
		res.CPUAbsolute, s.Limits.CPU,
		res.DiskMB(), s.Limits.Disk)

	var primary tgbotapi.InlineKeyboardButton
	switch strings.ToLower(s.Status) {
	case "offline":
		primary = tgbotapi.NewInlineKeyboardButtonData("▶️ Start", "power_start_"+serverID)
	case "online", "running":
		primary = tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", "power_stop_"+serverID)
	default:
		primary = tgbotapi.NewInlineKeyboardButtonData("🔄 Restart", "power_restart_"+serverID)
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(primary),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Restart", "power_restart_"+serverID),
			tgbotapi.NewInlineKeyboardButtonData("💀 Kill", "power_kill_"+serverID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 Logs", "show_logs_"+serverID),
			tgbotapi.NewInlineKeyboardButtonData("⌨️ Console", "show_console_"+serverID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to servers", "back_to_servers"),
		),
	)

	if messageID != 0 {
		_ = sv.Msgr.Edit(chatID, messageID, text, &kb)
	} else {
		_ = sv.Msgr.Send(chatID, text, &kb)
	}
	return true
}

// HandleCallback handles server pagination, management, power, logs and
// console buttons.
func (sv *Servers) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	u, err := repo.GetUser(ctx, sv.DB, userID)
	if err != nil || u.APIKey == "" {
		_ = sv.Msgr.AnswerCallback(cb.ID, "Log in first with /login")
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, "servers_page_"):
		page := utils.AtoiDefault(utils.SuffixID(cb.Data), 0)
		sv.showServersPage(chatID, userID, page, cb.Message.MessageID)
		_ = sv.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "manage_server_"):
		serverID := strings.TrimPrefix(cb.Data, "manage_server_")
		if !sv.showServerManagement(ctx, chatID, cb.Message.MessageID, u.APIKey, serverID) {
			_ = sv.Msgr.AnswerCallback(cb.ID, "Could not load server details")
			return
		}
		_ = sv.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "power_"):
		rest := strings.TrimPrefix(cb.Data, "power_")
		parts := strings.SplitN(rest, "_", 2)
		if len(parts) != 2 {
			_ = sv.Msgr.AnswerCallback(cb.ID, "Unknown action")
			return
		}
		action, serverID := parts[0], parts[1]
		if err := sv.Gateway.PowerAction(ctx, u.APIKey, serverID, action); err != nil {
			_ = sv.Msgr.AnswerCallback(cb.ID, "❌ Power action failed")
			return
		}
		if sv.showServerManagement(ctx, chatID, cb.Message.MessageID, u.APIKey, serverID) {
			_ = sv.Msgr.AnswerCallback(cb.ID, "✅ Signal sent: "+action)
		} else {
			_ = sv.Msgr.AnswerCallback(cb.ID, "✅ Signal sent: "+action+", but the panel could not be refreshed")
		}

	case strings.HasPrefix(cb.Data, "show_logs_"):
		serverID := strings.TrimPrefix(cb.Data, "show_logs_")
		lines, err := sv.Gateway.ServerLogs(ctx, u.APIKey, serverID)
		if err != nil {
			_ = sv.Msgr.AnswerCallback(cb.ID, "Could not fetch logs")
			return
		}
		if len(lines) > 10 {
			lines = lines[len(lines)-10:]
		}
		text := "📜 *Latest logs:*\n\n```\n" + strings.Join(lines, "\n") + "\n```"
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "manage_server_"+serverID),
			),
		)
		_ = sv.Msgr.Edit(chatID, cb.Message.MessageID, utils.Clip(text, telegramTextLimit), &kb)
		_ = sv.Msgr.AnswerCallback(cb.ID, "")

	case strings.HasPrefix(cb.Data, "show_console_"):
		serverID := strings.TrimPrefix(cb.Data, "show_console_")
		sv.Tracker.Begin(userID, stepAwaitCommand, map[string]string{"server_id": serverID})
		_ = sv.Msgr.Edit(chatID, cb.Message.MessageID,
			"⌨️ *Console*\n\nEnter the command to run on the server:", nil)
		_ = sv.Msgr.AnswerCallback(cb.ID, "")

	case cb.Data == "back_to_servers":
		if sv.Caches.Servers.Len(userID) == 0 {
			_ = sv.Msgr.AnswerCallback(cb.ID, "No servers cached, run /servers")
			return
		}
		sv.showServersPage(chatID, userID, 0, cb.Message.MessageID)
		_ = sv.Msgr.AnswerCallback(cb.ID, "")

	case cb.Data == "refresh_servers":
		servers, err := sv.Gateway.Servers(ctx, u.APIKey)
		if err != nil {
			_ = sv.Msgr.AnswerCallback(cb.ID, "Could not refresh servers")
			return
		}
		sv.Caches.Servers.Store(userID, servers)
		if len(servers) == 0 {
			_ = sv.Msgr.Edit(chatID, cb.Message.MessageID, "🖥 You have no servers yet. Visit the /store to get one!", nil)
		} else {
			sv.showServersPage(chatID, userID, 0, cb.Message.MessageID)
		}
		_ = sv.Msgr.AnswerCallback(cb.ID, "Servers refreshed")
	}
}

// HandleText consumes console command input. The step ends whether or not
// the command succeeds.
func (sv *Servers) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if step, ok := sv.Tracker.Step(userID); !ok || step != stepAwaitCommand {
		return
	}
	serverID := sv.Tracker.Field(userID, "server_id")
	sv.Tracker.End(userID)

	command := strings.TrimSpace(msg.Text)
	if command == "" || serverID == "" {
		_ = sv.Msgr.Send(msg.Chat.ID, "❌ Nothing to send. Open the console again from /servers.", nil)
		return
	}

	u, err := repo.GetUser(ctx, sv.DB, userID)
	if err != nil || u.APIKey == "" {
		_ = sv.Msgr.Send(msg.Chat.ID, loginRequiredText, nil)
		return
	}

	if err := sv.Gateway.SendCommand(ctx, u.APIKey, serverID, command); err != nil {
		_ = sv.Msgr.Send(msg.Chat.ID, "❌ Could not send the command to the server.", nil)
		return
	}
	_ = sv.Msgr.Send(msg.Chat.ID, fmt.Sprintf("✅ Command sent:\n`%s`", command), nil)
}
