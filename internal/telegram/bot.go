package telegram

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dreamcatchered/dreamMail/internal/config"
	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/internal/directory"
	"github.com/dreamcatchered/dreamMail/internal/formatter"
	"github.com/dreamcatchered/dreamMail/internal/parser"
)

// Bot represents the Telegram bot
type Bot struct {
	bot       *bot.Bot
	db        *database.DB
	dir       *directory.Directory
	formatter *formatter.TelegramFormatter
	links     *parser.LinkExtractor
	logger    *slog.Logger
	config    *config.Config

	// Users who picked a domain and owe us a local part.
	mu            sync.Mutex
	pendingDomain map[int64]string
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Config    *config.Config
	DB        *database.DB
	Directory *directory.Directory
	Formatter *formatter.TelegramFormatter
	Links     *parser.LinkExtractor
	Logger    *slog.Logger
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	b := &Bot{
		db:            deps.DB,
		dir:           deps.Directory,
		formatter:     deps.Formatter,
		links:         deps.Links,
		logger:        deps.Logger.With("component", "telegram_bot"),
		config:        deps.Config,
		pendingDomain: make(map[int64]string),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Config.TelegramToken, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.registerHandlers()

	return b, nil
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/users", bot.MatchTypePrefix, b.handleUsers)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/block", bot.MatchTypePrefix, b.handleBlock)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unblock", bot.MatchTypePrefix, b.handleUnblock)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/deluser", bot.MatchTypePrefix, b.handleDeleteUser)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, b.handleCallback)
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// defaultHandler catches plain text messages: the only ones we expect
// are local parts after a domain was picked from the create menu.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	b.mu.Lock()
	domain, waiting := b.pendingDomain[msg.From.ID]
	if waiting {
		delete(b.pendingDomain, msg.From.ID)
	}
	b.mu.Unlock()

	if waiting {
		b.finishCreateAlias(ctx, msg, domain)
		return
	}

	if msg.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", msg.Text)
	}
}
