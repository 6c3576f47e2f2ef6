package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/internal/directory"
	"github.com/dreamcatchered/dreamMail/internal/formatter"
	appmodels "github.com/dreamcatchered/dreamMail/pkg/models"
)

const mailPageSize = 10

const startText = "👋 <b>привет!</b>\n\n" +
	"это бот одноразовых почтовых ящиков: создайте адрес на одном из " +
	"наших доменов и письма на него будут приходить прямо сюда.\n\n" +
	"выберите действие:"

// handleStart handles the /start command
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if b.refuseIfBlocked(ctx, msg.From.ID, "") {
		return
	}
	b.rememberUser(ctx, msg.From)

	if _, err := b.sendMessageWithKeyboard(ctx, msg.Chat.ID, startText, formatter.MainMenuKeyboard(b.config.WebAppURL)); err != nil {
		b.logger.Error("failed to send start message", "error", err)
	}
}

// handleUsers handles the admin /users command
func (b *Bot) handleUsers(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !b.isAdmin(msg.From.ID) {
		return
	}

	stats, err := b.db.ListUserStats(ctx)
	if err != nil {
		b.logger.Error("failed to list user stats", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ не удалось получить список пользователей")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 <b>пользователи:</b> %d\n\n", len(stats)))
	for _, s := range stats {
		name := strings.TrimSpace(s.FirstName + " " + s.LastName)
		if s.Username != "" {
			name += " @" + s.Username
		}
		if name == "" {
			name = "(без имени)"
		}
		mark := ""
		if s.IsBlocked {
			mark = " ⛔️"
		}
		sb.WriteString(fmt.Sprintf("<code>%d</code> %s%s\n└ ящиков: %d, писем: %d\n",
			s.UserID, formatter.EscapeHTML(name), mark, s.AliasCount, s.EmailCount))
	}

	if _, err := b.sendMessage(ctx, msg.Chat.ID, sb.String()); err != nil {
		b.logger.Error("failed to send users list", "error", err)
	}
}

// handleBlock handles the admin /block command
func (b *Bot) handleBlock(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !b.isAdmin(msg.From.ID) {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) < 2 {
		b.sendMessage(ctx, msg.Chat.ID, "использование: /block &lt;id&gt; [причина]")
		return
	}
	userID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ неверный id пользователя")
		return
	}
	if userID == b.config.AdminID {
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ нельзя заблокировать администратора")
		return
	}

	reason := strings.Join(fields[2:], " ")
	if err := b.db.BlockUser(ctx, userID, reason); err != nil {
		b.logger.Error("failed to block user", "error", err, "user_id", userID)
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ не удалось заблокировать")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("⛔️ пользователь <code>%d</code> заблокирован", userID))
}

// handleUnblock handles the admin /unblock command
func (b *Bot) handleUnblock(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !b.isAdmin(msg.From.ID) {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) != 2 {
		b.sendMessage(ctx, msg.Chat.ID, "использование: /unblock &lt;id&gt;")
		return
	}
	userID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ неверный id пользователя")
		return
	}

	if err := b.db.UnblockUser(ctx, userID); err != nil {
		b.logger.Error("failed to unblock user", "error", err, "user_id", userID)
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ не удалось разблокировать")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("✅ пользователь <code>%d</code> разблокирован", userID))
}

// handleDeleteUser handles the admin /deluser command: removes the user
// together with their aliases and stored mail.
func (b *Bot) handleDeleteUser(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !b.isAdmin(msg.From.ID) {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) != 2 {
		b.sendMessage(ctx, msg.Chat.ID, "использование: /deluser &lt;id&gt;")
		return
	}
	userID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ неверный id пользователя")
		return
	}
	if userID == b.config.AdminID {
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ нельзя удалить администратора")
		return
	}

	if err := b.db.DeleteUserData(ctx, userID); err != nil {
		b.logger.Error("failed to delete user data", "error", err, "user_id", userID)
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ не удалось удалить пользователя")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("🗑 пользователь <code>%d</code> и его данные удалены", userID))
}

// handleCallback dispatches inline keyboard presses
func (b *Bot) handleCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	userID := cq.From.ID
	if b.refuseIfBlocked(ctx, userID, cq.ID) {
		return
	}

	data, err := formatter.DecodeCallback(cq.Data)
	if err != nil {
		b.logger.Warn("failed to decode callback data", "error", err, "data", cq.Data)
		b.answerCallback(ctx, cq.ID, "", false)
		return
	}

	chatID := userID
	messageID := 0
	if cq.Message.Message != nil {
		chatID = cq.Message.Message.Chat.ID
		messageID = cq.Message.Message.ID
	}

	switch data.Action {
	case appmodels.CallbackMenu:
		b.showMenu(ctx, chatID, messageID)
	case appmodels.CallbackMyAliases:
		b.showAliasList(ctx, userID, chatID, messageID)
	case appmodels.CallbackViewAlias:
		b.showAlias(ctx, userID, chatID, messageID, data.Address)
	case appmodels.CallbackToggleAlias:
		b.toggleAlias(ctx, cq.ID, userID, chatID, messageID, data.Address)
	case appmodels.CallbackAskDelete:
		b.askDeleteAlias(ctx, chatID, messageID, data.Address)
	case appmodels.CallbackConfirmDelete:
		b.deleteAlias(ctx, cq.ID, userID, chatID, messageID, data.Address)
	case appmodels.CallbackListMail:
		b.showMailList(ctx, cq.ID, userID, chatID, messageID, data.Address, data.Page)
	case appmodels.CallbackReadMail:
		b.showMail(ctx, cq.ID, userID, chatID, messageID, data.Address, data.UID)
	case appmodels.CallbackCreateAlias:
		b.showDomains(ctx, chatID, messageID)
	case appmodels.CallbackPickDomain:
		b.askLocalPart(ctx, userID, chatID, messageID, data.Address)
	case appmodels.CallbackNoop:
		// fallthrough to the answer below
	default:
		b.logger.Warn("unknown callback action", "action", data.Action)
	}

	b.answerCallback(ctx, cq.ID, "", false)
}

func (b *Bot) showMenu(ctx context.Context, chatID int64, messageID int) {
	if err := b.editMessage(ctx, chatID, messageID, startText, formatter.MainMenuKeyboard(b.config.WebAppURL)); err != nil {
		b.logger.Error("failed to show menu", "error", err)
	}
}

func (b *Bot) showAliasList(ctx context.Context, userID, chatID int64, messageID int) {
	aliases, err := b.dir.ListForUser(ctx, userID)
	if err != nil {
		b.logger.Error("failed to list aliases", "error", err, "user_id", userID)
		return
	}
	text := fmt.Sprintf("📬 <b>ваши ящики:</b> %d", len(aliases))
	if err := b.editMessage(ctx, chatID, messageID, text, formatter.AliasListKeyboard(aliases)); err != nil {
		b.logger.Error("failed to show alias list", "error", err)
	}
}

func (b *Bot) showAlias(ctx context.Context, userID, chatID int64, messageID int, address string) {
	alias, err := b.ownAlias(ctx, userID, address)
	if err != nil {
		b.logger.Warn("alias view refused", "error", err, "address", address, "user_id", userID)
		return
	}

	state := "🟢 включён"
	if !alias.Active {
		state = "🔴 выключен (письма сохраняются без уведомлений)"
	}
	text := fmt.Sprintf("📮 <code>%s</code>\n\nстатус: %s", formatter.EscapeHTML(alias.Address), state)
	if err := b.editMessage(ctx, chatID, messageID, text, formatter.AliasControlKeyboard(alias.Address, alias.Active)); err != nil {
		b.logger.Error("failed to show alias", "error", err)
	}
}

func (b *Bot) toggleAlias(ctx context.Context, callbackID string, userID, chatID int64, messageID int, address string) {
	active, err := b.dir.Toggle(ctx, userID, address)
	if err != nil {
		b.logger.Warn("failed to toggle alias", "error", err, "address", address, "user_id", userID)
		b.answerCallback(ctx, callbackID, "⚠️ не получилось", false)
		return
	}
	if active {
		b.answerCallback(ctx, callbackID, "✅ уведомления включены", false)
	} else {
		b.answerCallback(ctx, callbackID, "🔕 уведомления выключены", false)
	}
	b.showAlias(ctx, userID, chatID, messageID, address)
}

func (b *Bot) askDeleteAlias(ctx context.Context, chatID int64, messageID int, address string) {
	text := fmt.Sprintf("удалить ящик <code>%s</code>?\n\nвсе его письма тоже будут недоступны.", formatter.EscapeHTML(address))
	if err := b.editMessage(ctx, chatID, messageID, text, formatter.ConfirmDeleteKeyboard(address)); err != nil {
		b.logger.Error("failed to ask delete confirmation", "error", err)
	}
}

func (b *Bot) deleteAlias(ctx context.Context, callbackID string, userID, chatID int64, messageID int, address string) {
	err := b.dir.Remove(ctx, userID, address)
	switch {
	case errors.Is(err, directory.ErrProtected):
		b.answerCallback(ctx, callbackID, "⚠️ этот адрес удалить нельзя", true)
		return
	case errors.Is(err, database.ErrNotFound):
		b.answerCallback(ctx, callbackID, "⚠️ ящик не найден", true)
	case err != nil:
		b.logger.Error("failed to delete alias", "error", err, "address", address, "user_id", userID)
		b.answerCallback(ctx, callbackID, "⚠️ не получилось", true)
		return
	default:
		b.answerCallback(ctx, callbackID, "🗑 ящик удалён", false)
	}
	b.showAliasList(ctx, userID, chatID, messageID)
}

func (b *Bot) showMailList(ctx context.Context, callbackID string, userID, chatID int64, messageID int, address string, page int) {
	if _, err := b.ownAlias(ctx, userID, address); err != nil {
		b.logger.Warn("mail list refused", "error", err, "address", address, "user_id", userID)
		return
	}
	if page < 0 {
		page = 0
	}

	messages, total, err := b.db.ListMessagesForAddress(ctx, address, mailPageSize, page*mailPageSize)
	if err != nil {
		b.logger.Error("failed to list messages", "error", err, "address", address)
		b.answerCallback(ctx, callbackID, "⚠️ не получилось", false)
		return
	}

	text := fmt.Sprintf("📜 письма на <code>%s</code>\nвсего: %d", formatter.EscapeHTML(address), total)
	kb := formatter.MessageListKeyboard(address, page, mailPageSize, total, messages)
	if err := b.editMessage(ctx, chatID, messageID, text, kb); err != nil {
		b.logger.Error("failed to show mail list", "error", err)
	}
}

func (b *Bot) showMail(ctx context.Context, callbackID string, userID, chatID int64, messageID int, address string, uid uint32) {
	if _, err := b.ownAlias(ctx, userID, address); err != nil {
		b.logger.Warn("mail view refused", "error", err, "address", address, "user_id", userID)
		return
	}

	msg, err := b.db.GetMessageByUID(ctx, uid)
	if err != nil {
		b.logger.Warn("failed to load stored message", "error", err, "uid", uid)
		b.answerCallback(ctx, callbackID, "⚠️ письмо не найдено", true)
		return
	}
	if msg.ToAddr != database.Normalize(address) {
		b.logger.Warn("stored message does not match alias", "uid", uid, "address", address)
		return
	}

	caption := b.formatter.FormatStored(msg.FromAddr, msg.Subject, msg.TextBody)
	back := &appmodels.CallbackData{Action: appmodels.CallbackListMail, Address: address}
	keyboard := formatter.ActionLinkKeyboard(b.links.Extract(msg.HTMLBody, msg.TextBody), back)

	// The read view replaces the list message with a fresh one because
	// a document cannot be edited into a text message.
	b.deleteMessage(ctx, chatID, messageID)

	if len(msg.HTMLBody) > 0 {
		params := &bot.SendDocumentParams{
			ChatID: chatID,
			Document: &models.InputFileUpload{
				Filename: "message.html",
				Data:     bytes.NewReader(msg.HTMLBody),
			},
			Caption:   caption,
			ParseMode: models.ParseModeHTML,
		}
		if keyboard != nil {
			params.ReplyMarkup = keyboard
		}
		if _, err := b.bot.SendDocument(ctx, params); err != nil {
			b.logger.Error("failed to send stored message", "error", err, "uid", uid)
		}
		return
	}

	if _, err := b.sendMessageWithKeyboard(ctx, chatID, caption, keyboard); err != nil {
		b.logger.Error("failed to send stored message", "error", err, "uid", uid)
	}
}

func (b *Bot) showDomains(ctx context.Context, chatID int64, messageID int) {
	text := "✨ <b>новый ящик</b>\n\nвыберите домен:"
	if err := b.editMessage(ctx, chatID, messageID, text, formatter.DomainsKeyboard(b.dir.Domains())); err != nil {
		b.logger.Error("failed to show domains", "error", err)
	}
}

func (b *Bot) askLocalPart(ctx context.Context, userID, chatID int64, messageID int, domain string) {
	b.mu.Lock()
	b.pendingDomain[userID] = domain
	b.mu.Unlock()

	text := fmt.Sprintf("введите имя ящика для домена <code>@%s</code>\n\nнапример: <code>shop</code> → <code>shop@%s</code>",
		formatter.EscapeHTML(domain), formatter.EscapeHTML(domain))
	if err := b.editMessage(ctx, chatID, messageID, text, nil); err != nil {
		b.logger.Error("failed to ask local part", "error", err)
	}
}

// finishCreateAlias consumes the local part typed after a domain pick
func (b *Bot) finishCreateAlias(ctx context.Context, msg *models.Message, domain string) {
	local := strings.ToLower(strings.TrimSpace(msg.Text))
	address := local + "@" + domain

	err := b.dir.Register(ctx, msg.From.ID, address, false)
	switch {
	case errors.Is(err, directory.ErrInvalidLocalPart):
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ имя ящика может содержать только буквы, цифры, точки, дефисы и подчёркивания")
		return
	case errors.Is(err, directory.ErrDomainNotAllowed):
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ этот домен недоступен")
		return
	case errors.Is(err, directory.ErrTaken):
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ этот адрес уже занят, попробуйте другой")
		return
	case err != nil:
		b.logger.Error("failed to register alias", "error", err, "address", address, "user_id", msg.From.ID)
		b.sendMessage(ctx, msg.Chat.ID, "⚠️ не получилось создать ящик, попробуйте позже")
		return
	}

	text := fmt.Sprintf("🎉 ящик <code>%s</code> создан!\n\nписьма на этот адрес будут приходить сюда.", formatter.EscapeHTML(address))
	if _, err := b.sendMessageWithKeyboard(ctx, msg.Chat.ID, text, formatter.AliasControlKeyboard(address, true)); err != nil {
		b.logger.Error("failed to confirm alias creation", "error", err)
	}
}

// ownAlias loads an alias and verifies the caller owns it. The admin
// can inspect any alias.
func (b *Bot) ownAlias(ctx context.Context, userID int64, address string) (*appmodels.Alias, error) {
	alias, err := b.db.GetAlias(ctx, address)
	if err != nil {
		return nil, err
	}
	if alias.UserID != userID && !b.isAdmin(userID) {
		return nil, fmt.Errorf("alias %s is not owned by user %d", address, userID)
	}
	return alias, nil
}
