// Package bot adapts Telegram updates to the conversation engine and maps
// its replies back to Telegram messages and keyboards.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"groceries-bot/internal/engine"
	"groceries-bot/internal/format"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	engine *engine.Engine
	logger *zap.Logger
}

func New(token string, eng *engine.Engine, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:    api,
		engine: eng,
		logger: logger,
	}, nil
}

func (b *Bot) Start() error {
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			go b.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			go b.handleMessage(update.Message)
		}
	}

	return nil
}

func messageFrom(m *tgbotapi.Message) engine.Message {
	userName := ""
	userID := int64(0)
	if m.From != nil {
		userName = m.From.UserName
		if userName == "" {
			userName = m.From.FirstName
		}
		userID = m.From.ID
	}
	return engine.Message{
		ConversationID:    m.Chat.ID,
		ConversationTitle: m.Chat.Title,
		UserID:            userID,
		UserName:          userName,
		Private:           m.Chat.IsPrivate(),
		Text:              m.Text,
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if len(message.NewChatMembers) > 0 {
		b.greetNewMembers(ctx, message)
		return
	}
	if message.Text == "" {
		return
	}

	msg := messageFrom(message)

	var replies []engine.Reply
	if message.IsCommand() {
		args := strings.Fields(message.CommandArguments())
		replies = b.engine.HandleCommand(ctx, msg, message.Command(), args)
	} else {
		replies = b.engine.HandleText(ctx, msg)
	}

	b.send(message.Chat.ID, 0, replies)
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	// Acknowledge first so the client stops the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}
	if query.Message == nil {
		return
	}

	msg := engine.Message{
		ConversationID:    query.Message.Chat.ID,
		ConversationTitle: query.Message.Chat.Title,
		UserID:            query.From.ID,
		UserName:          query.From.UserName,
		Private:           query.Message.Chat.IsPrivate(),
	}

	replies := b.engine.HandleCallback(ctx, msg, query.Data)
	b.send(query.Message.Chat.ID, query.Message.MessageID, replies)
}

func (b *Bot) greetNewMembers(ctx context.Context, message *tgbotapi.Message) {
	for _, member := range message.NewChatMembers {
		if member.ID != b.api.Self.ID {
			continue
		}
		// The bot itself was added to the chat.
		msg := messageFrom(message)
		replies := b.engine.HandleCommand(ctx, msg, "start", nil)
		b.send(message.Chat.ID, 0, replies)
		return
	}
}

// send delivers the engine's replies. editMessageID is the message an
// Edit-flagged reply rewrites; zero means edits degrade to new messages.
func (b *Bot) send(chatID int64, editMessageID int, replies []engine.Reply) {
	for _, reply := range replies {
		if reply.Edit && editMessageID != 0 {
			b.edit(chatID, editMessageID, reply)
			continue
		}

		msg := tgbotapi.NewMessage(chatID, reply.Text)
		if reply.Markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		msg.ReplyMarkup = replyMarkup(reply)

		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error("Failed to send message",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
		}
	}
}

func (b *Bot) edit(chatID int64, messageID int, reply engine.Reply) {
	var msg tgbotapi.Chattable
	if len(reply.Inline) > 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, reply.Text, inlineMarkup(reply.Inline))
		if reply.Markdown {
			edit.ParseMode = tgbotapi.ModeMarkdown
		}
		msg = edit
	} else {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, reply.Text)
		if reply.Markdown {
			edit.ParseMode = tgbotapi.ModeMarkdown
		}
		msg = edit
	}

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// replyMarkup maps a reply's keyboard request to the Telegram markup type.
func replyMarkup(reply engine.Reply) interface{} {
	switch {
	case reply.ForceReply:
		return tgbotapi.ForceReply{
			ForceReply:            true,
			Selective:             true,
			InputFieldPlaceholder: reply.Placeholder,
		}

	case len(reply.Inline) > 0:
		return inlineMarkup(reply.Inline)

	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, buttons)
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		markup.OneTimeKeyboard = reply.OneTime
		markup.InputFieldPlaceholder = reply.Placeholder
		return markup
	}
	return nil
}

func inlineMarkup(rows [][]format.InlineButton) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
