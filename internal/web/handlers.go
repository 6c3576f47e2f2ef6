package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/internal/directory"
	appmodels "github.com/dreamcatchered/dreamMail/pkg/models"
)

const webPageSize = 20

type aliasRequest struct {
	Address string `json:"address"`
}

type emailsRequest struct {
	Alias string `json:"alias"`
	Query string `json:"query"`
	Page  int    `json:"page"`
}

type emailRequest struct {
	UID uint32 `json:"uid"`
}

type userRequest struct {
	UserID int64 `json:"user_id"`
	Page   int   `json:"page"`
}

type blockRequest struct {
	UserID  int64  `json:"user_id"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason"`
}

type adminAliasRequest struct {
	UserID  int64  `json:"user_id"`
	Address string `json:"address"`
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request"})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// handleAuth confirms the init data is valid and describes the caller
func (s *Server) handleAuth(c *fiber.Ctx) error {
	user := s.user(c)
	if err := s.db.UpsertUser(c.Context(), &appmodels.User{
		UserID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}); err != nil {
		s.logger.Error("failed to upsert user", "error", err, "user_id", user.ID)
	}

	return c.JSON(fiber.Map{
		"user":     user,
		"is_admin": user.ID == s.config.AdminID,
		"domains":  s.dir.Domains(),
	})
}

// handleDashboard returns the caller's aliases and mail total
func (s *Server) handleDashboard(c *fiber.Ctx) error {
	user := s.user(c)

	aliases, err := s.dir.ListForUser(c.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to list aliases", "error", err, "user_id", user.ID)
		return internalError(c)
	}

	total := 0
	if len(aliases) > 0 {
		_, total, err = s.db.SearchMessagesForAddresses(c.Context(), aliasAddresses(aliases), "", 1, 0)
		if err != nil {
			s.logger.Error("failed to count messages", "error", err, "user_id", user.ID)
			return internalError(c)
		}
	}

	return c.JSON(fiber.Map{
		"aliases":     aliases,
		"email_total": total,
		"domains":     s.dir.Domains(),
	})
}

// handleEmails returns one page of the caller's mail, optionally
// filtered to one alias and a search query.
func (s *Server) handleEmails(c *fiber.Ctx) error {
	user := s.user(c)

	var req emailsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	if req.Page < 0 {
		req.Page = 0
	}

	addresses, err := s.scopeAddresses(c, user, req.Alias)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
	if len(addresses) == 0 {
		return c.JSON(fiber.Map{"emails": []*appmodels.MessageSummary{}, "total": 0, "page": 0})
	}

	emails, total, err := s.db.SearchMessagesForAddresses(c.Context(), addresses, req.Query, webPageSize, req.Page*webPageSize)
	if err != nil {
		s.logger.Error("failed to search messages", "error", err, "user_id", user.ID)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"emails": emails, "total": total, "page": req.Page})
}

// handleEmailBody returns the full body of one stored message
func (s *Server) handleEmailBody(c *fiber.Ctx) error {
	user := s.user(c)

	var req emailRequest
	if err := c.BodyParser(&req); err != nil || req.UID == 0 {
		return badRequest(c)
	}

	msg, errResp := s.loadOwnedMessage(c, user, req.UID)
	if msg == nil {
		return errResp
	}

	return c.JSON(fiber.Map{
		"uid":         msg.UID,
		"to_addr":     msg.ToAddr,
		"from_addr":   msg.FromAddr,
		"subject":     msg.Subject,
		"text":        msg.TextBody,
		"html":        string(msg.HTMLBody),
		"received_at": msg.ReceivedAt,
	})
}

// handleCreateAlias claims a new address for the caller
func (s *Server) handleCreateAlias(c *fiber.Ctx) error {
	user := s.user(c)

	var req aliasRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return badRequest(c)
	}

	err := s.dir.Register(c.Context(), user.ID, req.Address, false)
	switch {
	case errors.Is(err, directory.ErrTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "address taken"})
	case errors.Is(err, directory.ErrDomainNotAllowed), errors.Is(err, directory.ErrInvalidLocalPart):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid address"})
	case err != nil:
		s.logger.Error("failed to register alias", "error", err, "address", req.Address, "user_id", user.ID)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"address": database.Normalize(req.Address), "active": true})
}

// handleToggleAlias flips notifications for a caller's alias
func (s *Server) handleToggleAlias(c *fiber.Ctx) error {
	user := s.user(c)

	var req aliasRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return badRequest(c)
	}

	active, err := s.dir.Toggle(c.Context(), user.ID, req.Address)
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if err != nil {
		s.logger.Error("failed to toggle alias", "error", err, "address", req.Address, "user_id", user.ID)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"address": database.Normalize(req.Address), "active": active})
}

// handleDeleteAlias removes a caller's alias
func (s *Server) handleDeleteAlias(c *fiber.Ctx) error {
	user := s.user(c)

	var req aliasRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return badRequest(c)
	}

	err := s.dir.Remove(c.Context(), user.ID, req.Address)
	switch {
	case errors.Is(err, directory.ErrProtected):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "protected"})
	case errors.Is(err, database.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case err != nil:
		s.logger.Error("failed to delete alias", "error", err, "address", req.Address, "user_id", user.ID)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// handleDeleteEmail removes one of the caller's stored messages
func (s *Server) handleDeleteEmail(c *fiber.Ctx) error {
	user := s.user(c)

	var req emailRequest
	if err := c.BodyParser(&req); err != nil || req.UID == 0 {
		return badRequest(c)
	}

	if msg, errResp := s.loadOwnedMessage(c, user, req.UID); msg == nil {
		return errResp
	}

	deleted, err := s.db.DeleteMessage(c.Context(), req.UID)
	if err != nil {
		s.logger.Error("failed to delete message", "error", err, "uid", req.UID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// handleAdminUsers returns the per-user overview
func (s *Server) handleAdminUsers(c *fiber.Ctx) error {
	stats, err := s.db.ListUserStats(c.Context())
	if err != nil {
		s.logger.Error("failed to list user stats", "error", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"users": stats})
}

// handleAdminUserDetails returns one user together with their aliases
func (s *Server) handleAdminUserDetails(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return badRequest(c)
	}

	user, err := s.db.GetUser(c.Context(), req.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "user_id", req.UserID)
		return internalError(c)
	}

	aliases, err := s.db.AliasesForUser(c.Context(), req.UserID)
	if err != nil {
		s.logger.Error("failed to list aliases", "error", err, "user_id", req.UserID)
		return internalError(c)
	}

	blocked, err := s.db.IsUserBlocked(c.Context(), req.UserID)
	if err != nil {
		s.logger.Error("failed to check blocked user", "error", err, "user_id", req.UserID)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"user": user, "aliases": aliases, "is_blocked": blocked})
}

// handleAdminBlockUser blocks or unblocks a user
func (s *Server) handleAdminBlockUser(c *fiber.Ctx) error {
	var req blockRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return badRequest(c)
	}
	if req.UserID == s.config.AdminID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot block admin"})
	}

	var err error
	if req.Blocked {
		err = s.db.BlockUser(c.Context(), req.UserID, req.Reason)
	} else {
		err = s.db.UnblockUser(c.Context(), req.UserID)
	}
	if err != nil {
		s.logger.Error("failed to change block state", "error", err, "user_id", req.UserID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"user_id": req.UserID, "blocked": req.Blocked})
}

// handleAdminDeleteUser removes a user with all their data
func (s *Server) handleAdminDeleteUser(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return badRequest(c)
	}
	if req.UserID == s.config.AdminID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot delete admin"})
	}

	if err := s.db.DeleteUserData(c.Context(), req.UserID); err != nil {
		s.logger.Error("failed to delete user data", "error", err, "user_id", req.UserID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// handleAdminUserEmails returns one page of another user's mail
func (s *Server) handleAdminUserEmails(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return badRequest(c)
	}
	if req.Page < 0 {
		req.Page = 0
	}

	aliases, err := s.db.AliasesForUser(c.Context(), req.UserID)
	if err != nil {
		s.logger.Error("failed to list aliases", "error", err, "user_id", req.UserID)
		return internalError(c)
	}
	if len(aliases) == 0 {
		return c.JSON(fiber.Map{"emails": []*appmodels.MessageSummary{}, "total": 0, "page": 0})
	}

	emails, total, err := s.db.SearchMessagesForAddresses(c.Context(), aliasAddresses(aliases), "", webPageSize, req.Page*webPageSize)
	if err != nil {
		s.logger.Error("failed to list messages", "error", err, "user_id", req.UserID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"emails": emails, "total": total, "page": req.Page})
}

// handleAdminUnknownEmails returns one page of mail that matched no
// alias. The full body of each row is reachable via email_body since
// the admin ownership check passes for everything.
func (s *Server) handleAdminUnknownEmails(c *fiber.Ctx) error {
	var req emailsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	if req.Page < 0 {
		req.Page = 0
	}

	emails, total, err := s.db.ListUnknownMessages(c.Context(), webPageSize, req.Page*webPageSize)
	if err != nil {
		s.logger.Error("failed to list unknown messages", "error", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"emails": emails, "total": total, "page": req.Page})
}

// handleAdminDeleteEmail removes any stored message
func (s *Server) handleAdminDeleteEmail(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil || req.UID == 0 {
		return badRequest(c)
	}

	deleted, err := s.db.DeleteMessage(c.Context(), req.UID)
	if err != nil {
		s.logger.Error("failed to delete message", "error", err, "uid", req.UID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// handleAdminAddAlias assigns an address to a user, reclaiming it from
// the current owner if needed.
func (s *Server) handleAdminAddAlias(c *fiber.Ctx) error {
	var req adminAliasRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 || req.Address == "" {
		return badRequest(c)
	}

	err := s.dir.Register(c.Context(), req.UserID, req.Address, true)
	switch {
	case errors.Is(err, directory.ErrDomainNotAllowed), errors.Is(err, directory.ErrInvalidLocalPart):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid address"})
	case err != nil:
		s.logger.Error("failed to assign alias", "error", err, "address", req.Address, "user_id", req.UserID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"address": database.Normalize(req.Address), "user_id": req.UserID})
}

// handleAdminToggleAlias flips notifications for any user's alias
func (s *Server) handleAdminToggleAlias(c *fiber.Ctx) error {
	var req adminAliasRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 || req.Address == "" {
		return badRequest(c)
	}

	active, err := s.db.ToggleAliasActive(c.Context(), req.UserID, req.Address)
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if err != nil {
		s.logger.Error("failed to toggle alias", "error", err, "address", req.Address, "user_id", req.UserID)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"address": database.Normalize(req.Address), "active": active})
}

// scopeAddresses resolves which addresses a mail query may touch: one
// owned alias when named, all of the caller's aliases otherwise.
func (s *Server) scopeAddresses(c *fiber.Ctx, user *WebAppUser, alias string) ([]string, error) {
	aliases, err := s.dir.ListForUser(c.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	if alias == "" {
		return aliasAddresses(aliases), nil
	}

	want := database.Normalize(alias)
	for _, a := range aliases {
		if a.Address == want {
			return []string{want}, nil
		}
	}
	return nil, errors.New("alias not owned by caller")
}

// loadOwnedMessage fetches a message and verifies the caller owns the
// alias it was delivered to. The admin may read anything. A nil message
// means the response has already been written.
func (s *Server) loadOwnedMessage(c *fiber.Ctx, user *WebAppUser, uid uint32) (*appmodels.StoredMessage, error) {
	msg, err := s.db.GetMessageByUID(c.Context(), uid)
	if errors.Is(err, database.ErrNotFound) {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if err != nil {
		s.logger.Error("failed to get message", "error", err, "uid", uid)
		return nil, internalError(c)
	}

	if user.ID == s.config.AdminID {
		return msg, nil
	}
	owner, err := s.dir.OwnerOf(c.Context(), msg.ToAddr)
	if err != nil || owner != user.ID {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
	return msg, nil
}

func aliasAddresses(aliases []*appmodels.Alias) []string {
	addresses := make([]string, 0, len(aliases))
	for _, a := range aliases {
		addresses = append(addresses, a.Address)
	}
	return addresses
}
