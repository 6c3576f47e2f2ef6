package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/dreamcatchered/dreamMail/internal/parser"
	appmodels "github.com/dreamcatchered/dreamMail/pkg/models"
)

// EncodeCallback encodes callback data to string
func EncodeCallback(data appmodels.CallbackData) string {
	b, _ := json.Marshal(data)
	return string(b)
}

// DecodeCallback decodes callback data from string
func DecodeCallback(data string) (appmodels.CallbackData, error) {
	var cb appmodels.CallbackData
	err := json.Unmarshal([]byte(data), &cb)
	return cb, err
}

func button(text string, data appmodels.CallbackData) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: EncodeCallback(data)}
}

func backButton(text string, data appmodels.CallbackData) []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{button(text, data)}
}

// MainMenuKeyboard is the /start menu. The web-app button appears only
// when a dashboard URL is configured.
func MainMenuKeyboard(webAppURL string) *models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{
		{button("📬 мои ящики", appmodels.CallbackData{Action: appmodels.CallbackMyAliases})},
		{button("✨ создать ящик", appmodels.CallbackData{Action: appmodels.CallbackCreateAlias})},
	}
	if webAppURL != "" {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:   "📱 веб-приложение",
			WebApp: &models.WebAppInfo{URL: webAppURL},
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// AliasListKeyboard lists a user's mailboxes with their state
func AliasListKeyboard(aliases []*appmodels.Alias) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	if len(aliases) == 0 {
		rows = append(rows, []models.InlineKeyboardButton{
			button("у вас нет ящиков 🤷", appmodels.CallbackData{Action: appmodels.CallbackNoop}),
		})
	}
	for _, alias := range aliases {
		icon := "🟢"
		if !alias.Active {
			icon = "🔴"
		}
		rows = append(rows, []models.InlineKeyboardButton{
			button(fmt.Sprintf("%s %s", icon, alias.Address),
				appmodels.CallbackData{Action: appmodels.CallbackViewAlias, Address: alias.Address}),
		})
	}

	rows = append(rows, backButton("🔙 назад", appmodels.CallbackData{Action: appmodels.CallbackMenu}))
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// AliasControlKeyboard is the per-mailbox action menu
func AliasControlKeyboard(address string, active bool) *models.InlineKeyboardMarkup {
	toggleText := "❌ выключить"
	if !active {
		toggleText = "✅ включить"
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("📜 список писем", appmodels.CallbackData{Action: appmodels.CallbackListMail, Address: address})},
		{button(toggleText, appmodels.CallbackData{Action: appmodels.CallbackToggleAlias, Address: address})},
		{button("🗑 удалить", appmodels.CallbackData{Action: appmodels.CallbackAskDelete, Address: address})},
		backButton("🔙 назад", appmodels.CallbackData{Action: appmodels.CallbackMyAliases}),
	}}
}

// ConfirmDeleteKeyboard asks for confirmation before dropping an alias
func ConfirmDeleteKeyboard(address string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("да, удалить", appmodels.CallbackData{Action: appmodels.CallbackConfirmDelete, Address: address})},
		{button("нет, отмена", appmodels.CallbackData{Action: appmodels.CallbackViewAlias, Address: address})},
	}}
}

// DomainsKeyboard offers one button per allowed domain
func DomainsKeyboard(domains []string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for _, d := range domains {
		rows = append(rows, []models.InlineKeyboardButton{
			button("@"+d, appmodels.CallbackData{Action: appmodels.CallbackPickDomain, Address: d}),
		})
	}
	rows = append(rows, backButton("🔙 назад", appmodels.CallbackData{Action: appmodels.CallbackMenu}))
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// MessageListKeyboard is one page of stored mail for an alias
func MessageListKeyboard(address string, page, pageSize, total int, messages []*appmodels.MessageSummary) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, msg := range messages {
		subject := msg.Subject
		if subject == "" {
			subject = "(без темы)"
		}
		if runes := []rune(subject); len(runes) > 20 {
			subject = string(runes[:20]) + "..."
		}
		rows = append(rows, []models.InlineKeyboardButton{
			button(fmt.Sprintf("%s: %s", senderName(msg.FromAddr), subject),
				appmodels.CallbackData{Action: appmodels.CallbackReadMail, Address: address, UID: msg.UID}),
		})
	}

	var nav []models.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, button("⬅️", appmodels.CallbackData{Action: appmodels.CallbackListMail, Address: address, Page: page - 1}))
	}
	if (page+1)*pageSize < total {
		nav = append(nav, button("➡️", appmodels.CallbackData{Action: appmodels.CallbackListMail, Address: address, Page: page + 1}))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, backButton("🔙 назад", appmodels.CallbackData{Action: appmodels.CallbackViewAlias, Address: address}))
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ActionLinkKeyboard turns extracted action links into URL buttons.
// backTo is optional; when set a back button is appended.
func ActionLinkKeyboard(links []parser.ActionLink, backTo *appmodels.CallbackData) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for _, link := range links {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: link.Label, URL: link.URL},
		})
	}
	if backTo != nil {
		rows = append(rows, backButton("🔙 назад", *backTo))
	}
	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// senderName trims "Name <addr>" to the display name for button text
func senderName(from string) string {
	if i := strings.IndexByte(from, '<'); i > 0 {
		from = from[:i]
	}
	name := strings.TrimSpace(from)
	if name == "" {
		return "(неизвестно)"
	}
	return name
}
