package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexoplatform/nexo-bot/internal/conversation"
	"github.com/nexoplatform/nexo-bot/internal/domain"
	"github.com/nexoplatform/nexo-bot/internal/gateway"
	"github.com/nexoplatform/nexo-bot/internal/repo"
)

// fakeMessenger records outbound traffic instead of talking to Telegram.
type fakeMessenger struct {
	sent    []outbound
	edits   []outbound
	answers []string
}

type outbound struct {
	chatID int64
	text   string
	kb     *tgbotapi.InlineKeyboardMarkup
}

func (f *fakeMessenger) Send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	f.sent = append(f.sent, outbound{chatID, text, kb})
	return nil
}

func (f *fakeMessenger) Edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	f.edits = append(f.edits, outbound{chatID, text, kb})
	return nil
}

func (f *fakeMessenger) AnswerCallback(callbackID, text string) error {
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) lastSent(t *testing.T) outbound {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

func newBotDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("bot_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.User{}, &domain.LinkedServer{}, &domain.Transaction{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newTestBot wires a Bot against a fake upstream and an in-process messenger.
func newTestBot(t *testing.T, upstream http.Handler) (*Bot, *fakeMessenger, *gorm.DB) {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	db := newBotDB(t)
	msgr := &fakeMessenger{}
	deps := &Deps{
		DB: db,
		Gateway: gateway.New(gateway.Options{
			PanelAPIURL: srv.URL,
			PteroAPIURL: srv.URL,
			Timeout:     2 * time.Second,
			Logger:      zerolog.Nop(),
		}),
		Tracker:     conversation.NewTracker(),
		Caches:      NewCaches(),
		Msgr:        msgr,
		Log:         zerolog.Nop(),
		TxLimit:     10,
		DefaultLang: "de",
	}
	b := &Bot{deps: deps}
	b.auth = &Auth{Deps: deps}
	b.account = &Account{Deps: deps, Auth: b.auth}
	b.store = &Store{Deps: deps, Auth: b.auth}
	b.servers = &Servers{Deps: deps, Auth: b.auth}
	b.support = &Support{Deps: deps, Auth: b.auth}
	return b, msgr, db
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat: &tgbotapi.Chat{ID: userID},
	}
}

func commandMessage(userID int64, command string) *tgbotapi.Message {
	msg := textMessage(userID, "/"+command)
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return msg
}

func callback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: data,
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: 77,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}
}

func loginUser(t *testing.T, db *gorm.DB, userID int64) {
	t.Helper()
	if _, err := repo.UpsertLogin(context.Background(), db, userID, "u@example.com", "test-key", "en"); err != nil {
		t.Fatalf("seed login: %v", err)
	}
}

func countTransactions(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	n, err := repo.CountTransactions(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

// panelMux builds an upstream that answers the given routes with JSON and
// records every path it was asked for.
func panelMux(routes map[string]string) (*http.ServeMux, *[]string) {
	var hits []string
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	return mux, &hits
}

func TestPurchase_InsufficientBalance(t *testing.T) {
	mux, hits := panelMux(map[string]string{
		"/user/balance": `{"success": true, "data": {"balance": 5}}`,
	})
	b, msgr, db := newTestBot(t, mux)
	ctx := context.Background()
	loginUser(t, db, 1)

	b.deps.Caches.Products.Store(1, []gateway.Product{{ID: "10", Name: "Premium Plan", Price: 10}})
	b.deps.Tracker.Begin(1, stepAwaitQuantity, map[string]string{"product_id": "10"})

	b.dispatchMessage(ctx, textMessage(1, "1"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "Insufficient balance") || !strings.Contains(got, "5.00") {
		t.Fatalf("unexpected reply: %q", got)
	}
	for _, h := range *hits {
		if h == "/user/purchase" {
			t.Fatalf("purchase endpoint must not be hit on insufficient balance")
		}
	}
	if n := countTransactions(t, db, 1); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
	if _, ok := b.deps.Tracker.Step(1); ok {
		t.Fatalf("expected conversation to end")
	}
}

func TestPurchase_Success_LinksServerAndRecordsDebit(t *testing.T) {
	mux, _ := panelMux(map[string]string{
		"/user/balance":  `{"success": true, "data": {"balance": 20}}`,
		"/user/purchase": `{"success": true, "data": {"server_id": "srv-9"}}`,
	})
	b, msgr, db := newTestBot(t, mux)
	ctx := context.Background()
	loginUser(t, db, 1)

	b.deps.Caches.Products.Store(1, []gateway.Product{{ID: "3", Name: "Addon Slot", Price: 8}})
	b.deps.Tracker.Begin(1, stepAwaitQuantity, map[string]string{"product_id": "3"})

	b.dispatchMessage(ctx, textMessage(1, "2"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "Purchase complete") || !strings.Contains(got, "16.00") {
		t.Fatalf("unexpected reply: %q", got)
	}

	servers, err := repo.ListLinkedServers(ctx, db, 1)
	if err != nil || len(servers) != 1 {
		t.Fatalf("expected one linked server, got %v (err %v)", servers, err)
	}
	if servers[0].ServerID != "srv-9" {
		t.Fatalf("linked server id = %q", servers[0].ServerID)
	}

	var txs []domain.Transaction
	if err := db.Find(&txs).Error; err != nil || len(txs) != 1 {
		t.Fatalf("expected one transaction, got %v (err %v)", txs, err)
	}
	if txs[0].Type != domain.TxPurchase || txs[0].Amount != -16 {
		t.Fatalf("unexpected transaction: %+v", txs[0])
	}
}

func TestPurchase_InvalidQuantity_Reprompts(t *testing.T) {
	b, msgr, db := newTestBot(t, http.NewServeMux())
	ctx := context.Background()
	loginUser(t, db, 1)

	b.deps.Caches.Products.Store(1, []gateway.Product{{ID: "3", Name: "Addon Slot", Price: 8}})
	b.deps.Tracker.Begin(1, stepAwaitQuantity, map[string]string{"product_id": "3"})

	for _, bad := range []string{"zero", "-1", "0", "1.5"} {
		b.dispatchMessage(ctx, textMessage(1, bad))
		if step, ok := b.deps.Tracker.Step(1); !ok || step != stepAwaitQuantity {
			t.Fatalf("input %q: expected step to stay at quantity, got %q (%v)", bad, step, ok)
		}
	}
	if got := msgr.lastSent(t).text; !strings.Contains(got, "whole number") {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestCoupon_UpstreamDown_NoTransaction(t *testing.T) {
	b, msgr, db := newTestBot(t, http.NewServeMux())
	ctx := context.Background()
	loginUser(t, db, 1)

	// Point the gateway at a dead port.
	b.deps.Gateway = gateway.New(gateway.Options{
		PanelAPIURL: "http://127.0.0.1:1",
		PteroAPIURL: "http://127.0.0.1:1",
		Timeout:     200 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})
	b.deps.Tracker.Begin(1, stepAwaitCoupon, nil)

	b.dispatchMessage(ctx, textMessage(1, "SUMMER-2026"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "could not reach the panel") {
		t.Fatalf("unexpected reply: %q", got)
	}
	if n := countTransactions(t, db, 1); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
}

func TestCoupon_Success_RecordsCredit(t *testing.T) {
	mux, _ := panelMux(map[string]string{
		"/user/redeem-coupon": `{"success": true, "data": {"amount": 25, "new_balance": 30}}`,
	})
	b, msgr, db := newTestBot(t, mux)
	ctx := context.Background()
	loginUser(t, db, 1)
	b.deps.Tracker.Begin(1, stepAwaitCoupon, nil)

	b.dispatchMessage(ctx, textMessage(1, "SUMMER-2026"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "Coupon redeemed") || !strings.Contains(got, "30.00") {
		t.Fatalf("unexpected reply: %q", got)
	}
	var txs []domain.Transaction
	if err := db.Find(&txs).Error; err != nil || len(txs) != 1 {
		t.Fatalf("expected one transaction, got %v (err %v)", txs, err)
	}
	if txs[0].Type != domain.TxCouponRedeem || txs[0].Amount != 25 {
		t.Fatalf("unexpected transaction: %+v", txs[0])
	}

	u, err := repo.GetUser(ctx, db, 1)
	if err != nil || u.Balance != 30 {
		t.Fatalf("expected balance 30, got %+v (err %v)", u, err)
	}
}

func TestCommand_TakesPrecedenceOverPendingStep(t *testing.T) {
	b, msgr, _ := newTestBot(t, http.NewServeMux())
	ctx := context.Background()

	// User is mid-login; an explicit command must not be consumed as the
	// password.
	b.deps.Tracker.Begin(1, stepAwaitPassword, map[string]string{"email": "u@example.com"})

	b.dispatchMessage(ctx, commandMessage(1, "balance"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "/login") {
		t.Fatalf("expected login prompt, got %q", got)
	}
	if step, ok := b.deps.Tracker.Step(1); !ok || step != stepAwaitPassword {
		t.Fatalf("pending step must survive the command, got %q (%v)", step, ok)
	}
}

func TestLoginFlow_EmailPath(t *testing.T) {
	mux, _ := panelMux(map[string]string{
		"/auth/login": `{"success": true, "api_key": "fresh-key"}`,
	})
	b, msgr, db := newTestBot(t, mux)
	ctx := context.Background()

	b.dispatchCallback(ctx, callback(1, "login_email"))
	b.dispatchMessage(ctx, textMessage(1, "not-an-email"))
	if step, _ := b.deps.Tracker.Step(1); step != stepAwaitEmail {
		t.Fatalf("invalid email must not advance, step = %q", step)
	}

	b.dispatchMessage(ctx, textMessage(1, "u@example.com"))
	if step, _ := b.deps.Tracker.Step(1); step != stepAwaitPassword {
		t.Fatalf("expected password step, got %q", step)
	}

	b.dispatchMessage(ctx, textMessage(1, "hunter2"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "Logged in successfully") {
		t.Fatalf("unexpected reply: %q", got)
	}
	u, err := repo.GetUser(ctx, db, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.LoggedIn || u.APIKey != "fresh-key" || u.Email != "u@example.com" {
		t.Fatalf("unexpected session: %+v", u)
	}
	if u.Language != "de" {
		t.Fatalf("expected configured default language on the new session, got %q", u.Language)
	}
	if _, ok := b.deps.Tracker.Step(1); ok {
		t.Fatalf("expected conversation to end after login")
	}
}

func keyboardActions(kb *tgbotapi.InlineKeyboardMarkup) []string {
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func TestTicketDetails_StatusGatesKeyboard(t *testing.T) {
	b, msgr, db := newTestBot(t, http.NewServeMux())
	ctx := context.Background()
	loginUser(t, db, 1)

	b.deps.Caches.Tickets.Store(1, []gateway.Ticket{
		{ID: "5", Subject: "Lag", Status: "open", Priority: "high"},
		{ID: "6", Subject: "Billing", Status: "closed", Priority: "low"},
	})

	b.dispatchCallback(ctx, callback(1, "view_ticket_5"))
	open := keyboardActions(msgr.edits[len(msgr.edits)-1].kb)
	if !containsAll(open, "reply_ticket_5", "close_ticket_5", "back_to_tickets") {
		t.Fatalf("open ticket keyboard = %v", open)
	}
	if containsAll(open, "reopen_ticket_5") {
		t.Fatalf("open ticket must not offer reopen: %v", open)
	}

	b.dispatchCallback(ctx, callback(1, "view_ticket_6"))
	closed := keyboardActions(msgr.edits[len(msgr.edits)-1].kb)
	if !containsAll(closed, "reopen_ticket_6", "back_to_tickets") {
		t.Fatalf("closed ticket keyboard = %v", closed)
	}
	if containsAll(closed, "reply_ticket_6") || containsAll(closed, "close_ticket_6") {
		t.Fatalf("closed ticket must not offer reply/close: %v", closed)
	}
}

func containsAll(haystack []string, needles ...string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestTicketCreation_FullFlow(t *testing.T) {
	mux, _ := panelMux(map[string]string{
		"/user/tickets": `{"success": true, "data": {"id": 44}}`,
	})
	b, msgr, db := newTestBot(t, mux)
	ctx := context.Background()
	loginUser(t, db, 1)

	b.dispatchCallback(ctx, callback(1, "create_new_ticket"))
	b.dispatchMessage(ctx, textMessage(1, "ab"))
	if step, _ := b.deps.Tracker.Step(1); step != stepAwaitSubject {
		t.Fatalf("short subject must not advance, step = %q", step)
	}

	b.dispatchMessage(ctx, textMessage(1, "Server crashes"))
	b.dispatchMessage(ctx, textMessage(1, "It dies every night around 03:00."))

	// Priority keyboard was offered.
	actions := keyboardActions(msgr.lastSent(t).kb)
	if !containsAll(actions, "priority_high", "priority_medium", "priority_low") {
		t.Fatalf("priority keyboard = %v", actions)
	}

	b.dispatchCallback(ctx, callback(1, "priority_medium"))

	last := msgr.edits[len(msgr.edits)-1].text
	if !strings.Contains(last, "Ticket created") || !strings.Contains(last, "#44") {
		t.Fatalf("unexpected confirmation: %q", last)
	}
	var txs []domain.Transaction
	if err := db.Find(&txs).Error; err != nil || len(txs) != 1 {
		t.Fatalf("expected one audit row, got %v (err %v)", txs, err)
	}
	if txs[0].Type != domain.TxTicketCreated || txs[0].Amount != 0 {
		t.Fatalf("unexpected transaction: %+v", txs[0])
	}
	if _, ok := b.deps.Tracker.Step(1); ok {
		t.Fatalf("expected conversation to end after creation")
	}
}

func TestStorePagination_RendersNavButtons(t *testing.T) {
	b, msgr, db := newTestBot(t, http.NewServeMux())
	loginUser(t, db, 1)

	products := make([]gateway.Product, 12)
	for i := range products {
		products[i] = gateway.Product{ID: gateway.FlexID(fmt.Sprintf("%d", i+1)), Name: fmt.Sprintf("Plan %d", i+1), Price: 5}
	}
	b.deps.Caches.Products.Store(1, products)

	b.dispatchCallback(context.Background(), callback(1, "store_page_1"))

	last := msgr.edits[len(msgr.edits)-1]
	if !strings.Contains(last.text, "page 2/3") {
		t.Fatalf("unexpected page header: %q", last.text)
	}
	actions := keyboardActions(last.kb)
	if !containsAll(actions, "store_page_0", "store_page_2", "refresh_store") {
		t.Fatalf("nav actions = %v", actions)
	}
}

func TestConsoleCommand_SentVerbatim(t *testing.T) {
	var gotBody map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/client/servers/abc1/command", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{}`))
	})
	b, msgr, db := newTestBot(t, mux)
	ctx := context.Background()
	loginUser(t, db, 1)

	b.dispatchCallback(ctx, callback(1, "show_console_abc1"))
	b.dispatchMessage(ctx, textMessage(1, "say server restarting in 5"))

	if gotBody["command"] != "say server restarting in 5" {
		t.Fatalf("command body = %v", gotBody)
	}
	if got := msgr.lastSent(t).text; !strings.Contains(got, "Command sent") {
		t.Fatalf("unexpected reply: %q", got)
	}
	if _, ok := b.deps.Tracker.Step(1); ok {
		t.Fatalf("expected console step to end after the command")
	}
}

func TestConsoleCommand_UpstreamFailure_StillEndsStep(t *testing.T) {
	// No routes: the command POST comes back 404 and surfaces as a failure.
	b, msgr, db := newTestBot(t, http.NewServeMux())
	ctx := context.Background()
	loginUser(t, db, 1)

	b.dispatchCallback(ctx, callback(1, "show_console_abc1"))
	if step, _ := b.deps.Tracker.Step(1); step != stepAwaitCommand {
		t.Fatalf("expected console step, got %q", step)
	}

	b.dispatchMessage(ctx, textMessage(1, "say hello"))

	if got := msgr.lastSent(t).text; !strings.Contains(got, "Could not send the command") {
		t.Fatalf("unexpected reply: %q", got)
	}
	if _, ok := b.deps.Tracker.Step(1); ok {
		t.Fatalf("console step must end even when the upstream call fails")
	}
}

func TestPowerAction_RefreshFailure_Reported(t *testing.T) {
	// Power succeeds, but the follow-up details fetch has no route and fails.
	mux := http.NewServeMux()
	mux.HandleFunc("/client/servers/abc1/power", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	b, msgr, db := newTestBot(t, mux)
	loginUser(t, db, 1)

	b.dispatchCallback(context.Background(), callback(1, "power_restart_abc1"))

	if len(msgr.answers) == 0 {
		t.Fatalf("expected a callback answer")
	}
	got := msgr.answers[len(msgr.answers)-1]
	if !strings.Contains(got, "Signal sent") || !strings.Contains(got, "could not be refreshed") {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestServersCommand_RequiresLogin(t *testing.T) {
	b, msgr, _ := newTestBot(t, http.NewServeMux())

	b.dispatchMessage(context.Background(), commandMessage(2, "servers"))

	got := msgr.lastSent(t).text
	if !strings.Contains(got, "/login") {
		t.Fatalf("expected login prompt, got %q", got)
	}
}

func TestUnknownCallback_Answered(t *testing.T) {
	b, msgr, _ := newTestBot(t, http.NewServeMux())

	b.dispatchCallback(context.Background(), callback(1, "definitely_not_a_thing"))

	if len(msgr.answers) == 0 || !strings.Contains(msgr.answers[len(msgr.answers)-1], "Unknown action") {
		t.Fatalf("answers = %v", msgr.answers)
	}
}

func TestCallback_WithoutMessage_Ignored(t *testing.T) {
	b, msgr, _ := newTestBot(t, http.NewServeMux())

	// Callbacks from very old messages arrive without a Message attached;
	// they must be dropped, not dereferenced.
	b.handleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-9",
			Data: "show_balance",
			From: &tgbotapi.User{ID: 1},
		},
	})
	if len(msgr.sent) != 0 || len(msgr.edits) != 0 {
		t.Fatalf("expected no outbound traffic, got sent=%d edits=%d", len(msgr.sent), len(msgr.edits))
	}
}
