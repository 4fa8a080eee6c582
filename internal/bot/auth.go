package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nexoplatform/nexo-bot/internal/domain"
	"github.com/nexoplatform/nexo-bot/internal/repo"
)

// Auth workflow steps.
const (
	stepAwaitEmail    = "auth:await_email"
	stepAwaitPassword = "auth:await_password"
	stepAwaitAPIKey   = "auth:await_api_key"
)

const loginRequiredText = "🔐 You need to log in first!\n\nUse /login to log in."

// Auth implements the login/logout workflow and the cross-cutting login
// guard used by every other module.
//
// Login state machine: /login presents two method buttons; the email path
// collects email then password, the key path collects an API key; either
// path ends the conversation entry on success or failure. The session row
// is only written after the upstream validates the credential.
type Auth struct {
	*Deps
}

// RequireLogin is the authorization guard checked at the top of every
// guarded handler before any side effect. When the session is missing or
// not logged in it prompts the user to log in and reports false; the
// wrapped logic must not run.
func (a *Auth) RequireLogin(ctx context.Context, chatID, userID int64) (*domain.User, bool) {
	u, err := repo.GetUser(ctx, a.DB, userID)
	if err != nil || !u.LoggedIn || u.APIKey == "" {
		_ = a.Msgr.Send(chatID, loginRequiredText, nil)
		return nil, false
	}
	return u, true
}

// HandleLogin starts the login flow, short-circuiting when the user is
// already logged in.
func (a *Auth) HandleLogin(ctx context.Context, msg *tgbotapi.Message) {
	u, err := repo.GetUser(ctx, a.DB, msg.From.ID)
	if err == nil && u.LoggedIn {
		_ = a.Msgr.Send(msg.Chat.ID, "✅ You are already logged in!\n\nUse /account to see your account details.", nil)
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📧 Log in with email", "login_email"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Log in with API key", "login_api"),
		),
	)
	_ = a.Msgr.Send(msg.Chat.ID, "🔐 *Log in to the Nexo platform*\n\nChoose a login method:", &kb)
}

// HandleLogout clears the credential and resets the logged-in flag.
func (a *Auth) HandleLogout(ctx context.Context, msg *tgbotapi.Message) {
	u, err := repo.GetUser(ctx, a.DB, msg.From.ID)
	if err != nil || !u.LoggedIn {
		_ = a.Msgr.Send(msg.Chat.ID, "❌ You are not logged in!", nil)
		return
	}
	if err := repo.Logout(ctx, a.DB, msg.From.ID); err != nil {
		a.Log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("logout failed")
		_ = a.Msgr.Send(msg.Chat.ID, "❌ Something went wrong logging out. Please try again.", nil)
		return
	}
	_ = a.Msgr.Send(msg.Chat.ID, "✅ Logged out successfully!\n\nUse /login to log in again.", nil)
}

// HandleCallback handles the login method choice buttons.
func (a *Auth) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	switch cb.Data {
	case "login_email":
		a.Tracker.Begin(cb.From.ID, stepAwaitEmail, nil)
		_ = a.Msgr.Edit(cb.Message.Chat.ID, cb.Message.MessageID,
			"📧 *Log in with email*\n\nEnter your email address:", nil)
	case "login_api":
		a.Tracker.Begin(cb.From.ID, stepAwaitAPIKey, nil)
		_ = a.Msgr.Edit(cb.Message.Chat.ID, cb.Message.MessageID,
			"🔑 *Log in with API key*\n\nEnter your API key:\n(you can find it in the panel settings)", nil)
	default:
		_ = a.Msgr.AnswerCallback(cb.ID, "❌ Unknown action")
	}
}

// HandleText consumes free-text input for the pending auth step.
func (a *Auth) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	step, ok := a.Tracker.Step(userID)
	if !ok {
		return
	}
	input := strings.TrimSpace(msg.Text)

	switch step {
	case stepAwaitEmail:
		if input == "" || !strings.Contains(input, "@") {
			_ = a.Msgr.Send(msg.Chat.ID, "❌ That doesn't look like an email address. Try again:", nil)
			return
		}
		a.Tracker.SetField(userID, "email", input)
		a.Tracker.Advance(userID, stepAwaitPassword)
		_ = a.Msgr.Send(msg.Chat.ID, "🔒 Now enter your password:", nil)

	case stepAwaitPassword:
		email := a.Tracker.Field(userID, "email")
		a.Tracker.End(userID)
		a.attemptEmailLogin(ctx, msg.Chat.ID, userID, email, input)

	case stepAwaitAPIKey:
		a.Tracker.End(userID)
		a.attemptKeyLogin(ctx, msg.Chat.ID, userID, input)
	}
}

// attemptEmailLogin exchanges email/password for a credential upstream and
// persists the session on success.
func (a *Auth) attemptEmailLogin(ctx context.Context, chatID, userID int64, email, password string) {
	res, err := a.Gateway.Login(ctx, email, password)
	if err != nil {
		_ = a.Msgr.Send(chatID, "❌ Login failed: could not reach the panel. Please try again later.", nil)
		return
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "invalid credentials"
		}
		_ = a.Msgr.Send(chatID, "❌ Login failed: "+reason, nil)
		return
	}
	key := res.Credential()
	if key == "" {
		_ = a.Msgr.Send(chatID, "❌ The panel did not return a credential. Check your login details.", nil)
		return
	}
	a.finishLogin(ctx, chatID, userID, email, key, "📧 Email: `"+email+"`")
}

// attemptKeyLogin validates an API key by fetching the account profile.
func (a *Auth) attemptKeyLogin(ctx context.Context, chatID, userID int64, apiKey string) {
	res, err := a.Gateway.UserInfo(ctx, apiKey)
	if err != nil {
		_ = a.Msgr.Send(chatID, "❌ Login failed: could not reach the panel. Please try again later.", nil)
		return
	}
	if !res.Success {
		_ = a.Msgr.Send(chatID, "❌ The API key is invalid or has expired.", nil)
		return
	}
	a.finishLogin(ctx, chatID, userID, res.Data.Email, apiKey, "🔑 Logged in with API key")
}

func (a *Auth) finishLogin(ctx context.Context, chatID, userID int64, email, apiKey, detail string) {
	if _, err := a.UpsertLoginSession(ctx, userID, email, apiKey); err != nil {
		a.Log.Error().Err(err).Int64("user_id", userID).Msg("persisting session failed")
		_ = a.Msgr.Send(chatID, "❌ Something went wrong saving your session. Please try again.", nil)
		return
	}
	text := "✅ *Logged in successfully!*\n\n" +
		detail + "\n" +
		"🕐 Login time: " + time.Now().UTC().Format("2006-01-02 15:04") + "\n\n" +
		"Use /account to see your account details."
	_ = a.Msgr.Send(chatID, text, nil)
}

// UpsertLoginSession writes the session row for a validated credential.
func (a *Auth) UpsertLoginSession(ctx context.Context, userID int64, email, apiKey string) (*domain.User, error) {
	if apiKey == "" {
		return nil, errors.New("empty credential")
	}
	return repo.UpsertLogin(ctx, a.DB, userID, email, apiKey, a.DefaultLang)
}
