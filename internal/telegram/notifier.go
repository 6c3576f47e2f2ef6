package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dreamcatchered/dreamMail/internal/formatter"
	"github.com/dreamcatchered/dreamMail/internal/parser"
)

// Notify delivers a freshly ingested message to its owner. HTML mail
// goes out as a document with the preview as caption so the user can
// open the original; plain mail is a regular message.
func (b *Bot) Notify(ctx context.Context, ownerID int64, msg *parser.ParsedMessage) error {
	caption := b.formatter.FormatIncoming(msg.ToAddr, msg.From, msg.Subject, msg.Text)
	keyboard := formatter.ActionLinkKeyboard(b.links.Extract(msg.HTML, msg.Text), nil)

	if len(msg.HTML) > 0 {
		params := &bot.SendDocumentParams{
			ChatID: ownerID,
			Document: &models.InputFileUpload{
				Filename: "message.html",
				Data:     bytes.NewReader(msg.HTML),
			},
			Caption:   caption,
			ParseMode: models.ParseModeHTML,
		}
		if keyboard != nil {
			params.ReplyMarkup = keyboard
		}
		if _, err := b.bot.SendDocument(ctx, params); err != nil {
			return fmt.Errorf("failed to send document notification: %w", err)
		}
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID:    ownerID,
		Text:      caption,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := b.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
