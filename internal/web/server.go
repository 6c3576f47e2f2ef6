package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/dreamcatchered/dreamMail/internal/config"
	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/internal/directory"
)

// initDataHeader carries the raw Telegram WebApp init data on every call
const initDataHeader = "X-Telegram-Init-Data"

// Server is the WebApp dashboard API
type Server struct {
	app    *fiber.App
	db     *database.DB
	dir    *directory.Directory
	config *config.Config
	logger *slog.Logger
}

// ServerDeps dependencies for creating a server
type ServerDeps struct {
	Config    *config.Config
	DB        *database.DB
	Directory *directory.Directory
	Logger    *slog.Logger
}

// NewServer creates the dashboard API server
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		db:     deps.DB,
		dir:    deps.Directory,
		config: deps.Config,
		logger: deps.Logger.With("component", "web"),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api", s.requireUser)
	api.Post("/auth", s.handleAuth)
	api.Post("/dashboard", s.handleDashboard)
	api.Post("/emails", s.handleEmails)
	api.Post("/email_body", s.handleEmailBody)
	api.Post("/create_alias", s.handleCreateAlias)
	api.Post("/toggle_alias", s.handleToggleAlias)
	api.Post("/delete_alias", s.handleDeleteAlias)
	api.Post("/delete_email", s.handleDeleteEmail)

	admin := api.Group("/admin", s.requireAdmin)
	admin.Post("/users", s.handleAdminUsers)
	admin.Post("/user_details", s.handleAdminUserDetails)
	admin.Post("/block_user", s.handleAdminBlockUser)
	admin.Post("/delete_user", s.handleAdminDeleteUser)
	admin.Post("/user_emails", s.handleAdminUserEmails)
	admin.Post("/unknown_emails", s.handleAdminUnknownEmails)
	admin.Post("/delete_email", s.handleAdminDeleteEmail)
	admin.Post("/add_alias", s.handleAdminAddAlias)
	admin.Post("/toggle_alias", s.handleAdminToggleAlias)
}

// requireUser verifies WebApp init data and rejects blocked users
func (s *Server) requireUser(c *fiber.Ctx) error {
	user, err := VerifyInitData(c.Get(initDataHeader), s.config.TelegramToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	blocked, err := s.db.IsUserBlocked(c.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to check blocked user", "error", err, "user_id", user.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	if blocked {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "blocked"})
	}

	c.Locals("user", user)
	return c.Next()
}

// requireAdmin gates the admin endpoints
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if s.user(c).ID != s.config.AdminID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
	return c.Next()
}

func (s *Server) user(c *fiber.Ctx) *WebAppUser {
	return c.Locals("user").(*WebAppUser)
}

// Listen serves the API until Shutdown is called
func (s *Server) Listen() error {
	s.logger.Info("starting web server", "addr", s.config.WebListenAddr)
	return s.app.Listen(s.config.WebListenAddr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
