package bot

import (
	"context"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nexoplatform/nexo-bot/internal/conversation"
	"github.com/nexoplatform/nexo-bot/internal/gateway"
	"github.com/nexoplatform/nexo-bot/internal/metrics"
	"github.com/nexoplatform/nexo-bot/internal/sysutil"
)

// Deps carries the shared collaborators every workflow composes: the
// persistent store handle, the upstream gateway, the global conversation
// tracker, the result caches, and the messaging transport.
type Deps struct {
	DB      *gorm.DB
	Gateway *gateway.Client
	Tracker *conversation.Tracker
	Caches  *Caches
	Msgr    Messenger
	Log     zerolog.Logger
	TxLimit int

	// DefaultLang seeds the language column of sessions created on first login.
	DefaultLang string
}

// Options configures a Bot.
type Options struct {
	API               *tgbotapi.BotAPI
	DB                *gorm.DB
	Gateway           *gateway.Client
	Logger            zerolog.Logger
	PollTimeout       int // long-poll seconds
	TransactionsLimit int
	DefaultLanguage   string // BCP 47 tag for new sessions
}

// Bot owns the update loop and routes each inbound event to the feature
// module that handles it.
type Bot struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	deps        *Deps

	auth    *Auth
	account *Account
	store   *Store
	servers *Servers
	support *Support
}

// New constructs a Bot with a fresh conversation tracker and result caches.
func New(o Options) *Bot {
	deps := &Deps{
		DB:          o.DB,
		Gateway:     o.Gateway,
		Tracker:     conversation.NewTracker(),
		Caches:      NewCaches(),
		Msgr:        &apiMessenger{api: o.API},
		Log:         o.Logger,
		TxLimit:     o.TransactionsLimit,
		DefaultLang: o.DefaultLanguage,
	}
	b := &Bot{
		api:         o.API,
		pollTimeout: o.PollTimeout,
		deps:        deps,
	}
	b.auth = &Auth{Deps: deps}
	b.account = &Account{Deps: deps, Auth: b.auth}
	b.store = &Store{Deps: deps, Auth: b.auth}
	b.servers = &Servers{Deps: deps, Auth: b.auth}
	b.support = &Support{Deps: deps, Auth: b.auth}
	return b
}

// Run consumes updates until ctx is cancelled or the update channel closes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.deps.Log.Info().Str("username", b.api.Self.UserName).Msg("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

// handleUpdate is the fault barrier: no single event may take the process
// down. Panics are logged with a stack trace and acknowledged generically.
func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.deps.Log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered from handler panic")
			if upd.CallbackQuery != nil {
				_ = b.deps.Msgr.AnswerCallback(upd.CallbackQuery.ID, "❌ An error occurred, please try again")
			} else if upd.Message != nil {
				_ = b.deps.Msgr.Send(upd.Message.Chat.ID, "❌ An error occurred, please try again.", nil)
			}
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		metrics.CountUpdate("callback")
		b.dispatchCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.dispatchMessage(ctx, upd.Message)
	}
}

// dispatchMessage routes commands first, then free text. Command precedence
// means a pending conversational step never swallows an explicit command:
// /servers typed mid-login hits the login guard, not the password prompt.
func (b *Bot) dispatchMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		metrics.CountUpdate("command")
		b.deps.Log.Info().
			Int64("user_id", msg.From.ID).
			Str("command", msg.Command()).
			Msg("command received")
		b.dispatchCommand(ctx, msg)
		return
	}

	metrics.CountUpdate("message")
	step, ok := b.deps.Tracker.Step(msg.From.ID)
	if !ok {
		b.handleUnknownMessage(msg)
		return
	}
	// Free text belongs to whichever module owns the pending step and must
	// never fall through to the unknown handler.
	switch moduleOf(step) {
	case "auth":
		b.auth.HandleText(ctx, msg)
	case "account":
		b.account.HandleText(ctx, msg)
	case "store":
		b.store.HandleText(ctx, msg)
	case "servers":
		b.servers.HandleText(ctx, msg)
	case "support":
		b.support.HandleText(ctx, msg)
	default:
		b.deps.Log.Warn().Str("step", step).Msg("orphaned conversation step")
		b.deps.Tracker.End(msg.From.ID)
		b.handleUnknownMessage(msg)
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(msg)
	case "help":
		b.handleHelp(msg)
	case "login":
		b.auth.HandleLogin(ctx, msg)
	case "logout":
		b.auth.HandleLogout(ctx, msg)
	case "account":
		b.account.HandleAccount(ctx, msg)
	case "balance":
		b.account.HandleBalance(ctx, msg)
	case "coupon":
		b.account.HandleCoupon(ctx, msg)
	case "referral":
		b.account.HandleReferral(ctx, msg)
	case "store", "buy":
		b.store.HandleStore(ctx, msg)
	case "servers", "server":
		b.servers.HandleServers(ctx, msg)
	case "support", "ticket":
		b.support.HandleSupport(ctx, msg)
	default:
		b.handleUnknownCommand(msg)
	}
}

// dispatchCallback routes button presses to the owning module by prefix.
func (b *Bot) dispatchCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	data := cb.Data
	b.deps.Log.Info().
		Int64("user_id", cb.From.ID).
		Str("action", data).
		Msg("callback received")

	switch {
	case data == "quick_login":
		// Start command shortcut: equivalent to picking email login.
		cb.Data = "login_email"
		b.auth.HandleCallback(ctx, cb)
	case strings.HasPrefix(data, "login_"):
		b.auth.HandleCallback(ctx, cb)
	case data == "show_balance" || data == "show_transactions" || data == "show_referral" ||
		data == "redeem_coupon" || data == "transaction_history":
		b.account.HandleCallback(ctx, cb)
	case strings.HasPrefix(data, "store_page_") || strings.HasPrefix(data, "buy_product_") ||
		data == "refresh_store":
		b.store.HandleCallback(ctx, cb)
	case strings.HasPrefix(data, "servers_page_") || strings.HasPrefix(data, "manage_server_") ||
		strings.HasPrefix(data, "power_") || strings.HasPrefix(data, "show_logs_") ||
		strings.HasPrefix(data, "show_console_") || data == "back_to_servers" ||
		data == "refresh_servers":
		b.servers.HandleCallback(ctx, cb)
	case strings.HasPrefix(data, "tickets_page_") || strings.HasPrefix(data, "view_ticket_") ||
		strings.HasPrefix(data, "priority_") || strings.HasPrefix(data, "reply_ticket_") ||
		strings.HasPrefix(data, "close_ticket_") || strings.HasPrefix(data, "reopen_ticket_") ||
		data == "create_new_ticket" || data == "back_to_tickets" || data == "refresh_tickets":
		b.support.HandleCallback(ctx, cb)
	case data == "show_help":
		_ = b.deps.Msgr.Edit(cb.Message.Chat.ID, cb.Message.MessageID, helpText, nil)
	default:
		_ = b.deps.Msgr.AnswerCallback(cb.ID, "❌ Unknown action")
	}
}

// moduleOf extracts the namespace of a step tag ("auth:await_email" → "auth").
func moduleOf(step string) string {
	if i := strings.Index(step, ":"); i > 0 {
		return step[:i]
	}
	return ""
}

const helpText = `📋 *Available commands*

🔐 Account access:
/login - Log in to the panel
/logout - Log out
/account - Show account details

💰 Wallet:
/balance - Show balance
/coupon - Redeem a top-up coupon

🛒 Store:
/store - Browse products
/buy - Buy a product

🖥 Servers:
/servers - List your servers
/server - Manage a server

🎫 Support:
/support - Show your tickets
/ticket - Open a new ticket

👥 Referral:
/referral - Show your referral link

ℹ️ Other:
/help - Show this list`

const unknownText = `❓ *Unknown command*

Use /help to see the list of available commands.

🔗 Quick commands:
/login - Log in
/account - Account details
/store - Store
/servers - Servers
/support - Support`

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	name := sysutil.FirstNonEmpty(msg.From.UserName, msg.From.FirstName, "there")

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔐 Log in", "quick_login"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Help", "show_help"),
		),
	)

	text := "👋 *Welcome, " + name + "!*\n\n" +
		"This bot manages your Nexo platform account:\n" +
		"• account and wallet\n" +
		"• store purchases\n" +
		"• game server management\n" +
		"• support tickets\n\n" +
		"Use /login to get started or /help for all commands."
	_ = b.deps.Msgr.Send(msg.Chat.ID, text, &kb)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	_ = b.deps.Msgr.Send(msg.Chat.ID, helpText, nil)
}

func (b *Bot) handleUnknownCommand(msg *tgbotapi.Message) {
	_ = b.deps.Msgr.Send(msg.Chat.ID, unknownText, nil)
}

func (b *Bot) handleUnknownMessage(msg *tgbotapi.Message) {
	_ = b.deps.Msgr.Send(msg.Chat.ID, unknownText, nil)
}
