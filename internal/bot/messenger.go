// Package bot wires the Telegram transport to the feature modules: the
// update long-poll loop, the command/callback dispatcher, and the five
// workflows (auth, account, store, servers, support) that compose the
// conversation tracker, the result caches, the upstream gateway and the
// persistent store.
package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger is the messaging transport primitive the workflows render
// through: deliver a reply with optional inline controls, edit a previous
// reply in place, or acknowledge a button press with an ephemeral notice.
// Implemented over the Telegram Bot API in production and by a fake in
// tests.
type Messenger interface {
	Send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error
	Edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string) error
}

// apiMessenger implements Messenger over a live bot API connection.
// All outgoing text is Markdown.
type apiMessenger struct {
	api *tgbotapi.BotAPI
}

func (m *apiMessenger) Send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := m.api.Send(msg)
	return err
}

func (m *apiMessenger) Edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeMarkdown
	_, err := m.api.Send(edit)
	return err
}

func (m *apiMessenger) AnswerCallback(callbackID, text string) error {
	_, err := m.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
