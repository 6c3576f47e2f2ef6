package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	appmodels "github.com/dreamcatchered/dreamMail/pkg/models"
)

// isAdmin reports whether a user is the configured administrator
func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.config.AdminID
}

// refuseIfBlocked answers a blocked user and reports whether the
// interaction should stop.
func (b *Bot) refuseIfBlocked(ctx context.Context, userID int64, callbackID string) bool {
	blocked, err := b.db.IsUserBlocked(ctx, userID)
	if err != nil {
		b.logger.Error("failed to check blocked user", "error", err, "user_id", userID)
		return false
	}
	if !blocked {
		return false
	}

	if callbackID != "" {
		b.answerCallback(ctx, callbackID, "⛔️ Вы заблокированы", true)
	} else {
		b.sendMessage(ctx, userID, "⛔️ Вы заблокированы администратором.")
	}
	return true
}

// rememberUser upserts the Telegram profile of whoever we talked to
func (b *Bot) rememberUser(ctx context.Context, from *models.User) {
	if from == nil {
		return
	}
	err := b.db.UpsertUser(ctx, &appmodels.User{
		UserID:    from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		b.logger.Error("failed to upsert user", "error", err, "user_id", from.ID)
	}
}

// sendMessage sends an HTML message to a chat
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	return b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
}

// sendMessageWithKeyboard sends a message with inline keyboard
func (b *Bot) sendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	return b.bot.SendMessage(ctx, params)
}

// editMessage edits a message text and keyboard in place
func (b *Bot) editMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *models.InlineKeyboardMarkup) error {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	_, err := b.bot.EditMessageText(ctx, params)
	return err
}

// deleteMessage deletes a message
func (b *Bot) deleteMessage(ctx context.Context, chatID int64, msgID int) error {
	_, err := b.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: msgID,
	})
	return err
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	return err
}
