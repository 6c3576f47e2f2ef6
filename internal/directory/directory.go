package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/pkg/models"
)

var (
	// ErrTaken is returned when the address belongs to another user
	ErrTaken = errors.New("address already taken")
	// ErrDomainNotAllowed is returned for addresses outside the allowed domains
	ErrDomainNotAllowed = errors.New("domain not allowed")
	// ErrInvalidLocalPart is returned for malformed local parts
	ErrInvalidLocalPart = errors.New("invalid local part")
	// ErrProtected is returned when deleting the root mailbox address
	ErrProtected = errors.New("address is protected")
)

// criticalLocalParts must always resolve to the admin, across every
// allowed domain. Enforced at startup, reclaimed if taken.
var criticalLocalParts = []string{
	"admin", "support", "help", "info", "security",
	"abuse", "postmaster", "hostmaster", "webmaster",
	"contact", "sales", "billing", "root", "noreply",
	"system", "bot", "mailer-daemon",
}

// Local part: latin letters, digits, dot, underscore, dash, plus
// Cyrillic for localized aliases created through the web form.
var localPartRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-\x{0400}-\x{04FF}]+$`)

// Directory is the alias directory: it owns registration rules and
// answers address → owner/active lookups for the ingestion pipeline.
type Directory struct {
	db          *database.DB
	adminID     int64
	rootAddress string
	domains     []string
	logger      *slog.Logger
}

// New creates a directory over the given database
func New(db *database.DB, adminID int64, rootAddress string, domains []string, logger *slog.Logger) *Directory {
	return &Directory{
		db:          db,
		adminID:     adminID,
		rootAddress: database.Normalize(rootAddress),
		domains:     domains,
		logger:      logger.With("component", "directory"),
	}
}

// EnsureCriticalAliases makes the root mailbox address and every
// critical local-part on every allowed domain resolve to the admin.
// Existing aliases owned by someone else are reclaimed in place.
func (d *Directory) EnsureCriticalAliases(ctx context.Context) error {
	addresses := []string{d.rootAddress}
	for _, domain := range d.domains {
		for _, local := range criticalLocalParts {
			addresses = append(addresses, local+"@"+domain)
		}
	}

	for _, addr := range addresses {
		alias, err := d.db.GetAlias(ctx, addr)
		switch {
		case errors.Is(err, database.ErrNotFound):
			if err := d.db.UpsertAlias(ctx, d.adminID, addr, true); err != nil {
				return fmt.Errorf("failed to create critical alias %s: %w", addr, err)
			}
		case err != nil:
			return err
		case alias.UserID != d.adminID:
			d.logger.Warn("reclaiming critical alias", "address", addr, "previous_owner", alias.UserID)
			if err := d.db.UpsertAlias(ctx, d.adminID, addr, alias.Active); err != nil {
				return fmt.Errorf("failed to reclaim critical alias %s: %w", addr, err)
			}
		}
	}
	return nil
}

// Register claims an address for a user. With force set (admin
// reclaim) an existing owner is overwritten in place.
func (d *Directory) Register(ctx context.Context, userID int64, address string, force bool) error {
	addr := database.Normalize(address)

	local, domain, ok := splitAddress(addr)
	if !ok || !localPartRegex.MatchString(local) {
		return ErrInvalidLocalPart
	}
	if addr != d.rootAddress && !d.domainAllowed(domain) {
		return ErrDomainNotAllowed
	}

	owner, err := d.db.OwnerOf(ctx, addr)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	if err == nil && owner != userID && !force {
		return ErrTaken
	}

	if err := d.db.UpsertAlias(ctx, userID, addr, true); err != nil {
		return err
	}
	d.logger.Info("alias registered", "address", addr, "user_id", userID, "force", force)
	return nil
}

// Remove deletes a user's alias. The admin cannot delete the root
// mailbox address because everything routes through it.
func (d *Directory) Remove(ctx context.Context, userID int64, address string) error {
	addr := database.Normalize(address)
	if addr == d.rootAddress && userID == d.adminID {
		return ErrProtected
	}

	deleted, err := d.db.DeleteAlias(ctx, userID, addr)
	if err != nil {
		return err
	}
	if !deleted {
		return database.ErrNotFound
	}
	d.logger.Info("alias removed", "address", addr, "user_id", userID)
	return nil
}

// OwnerOf returns the owner of an address, database.ErrNotFound if unclaimed
func (d *Directory) OwnerOf(ctx context.Context, address string) (int64, error) {
	return d.db.OwnerOf(ctx, address)
}

// IsAliasActive reports whether an address should produce notifications
func (d *Directory) IsAliasActive(ctx context.Context, address string) (bool, error) {
	return d.db.IsAliasActive(ctx, address)
}

// Toggle flips the active flag of a user's alias
func (d *Directory) Toggle(ctx context.Context, userID int64, address string) (bool, error) {
	return d.db.ToggleAliasActive(ctx, userID, address)
}

// ListForUser returns a user's aliases
func (d *Directory) ListForUser(ctx context.Context, userID int64) ([]*models.Alias, error) {
	return d.db.AliasesForUser(ctx, userID)
}

// Domains returns the allowed domains
func (d *Directory) Domains() []string {
	return d.domains
}

// RootAddress returns the shared mailbox address
func (d *Directory) RootAddress() string {
	return d.rootAddress
}

func (d *Directory) domainAllowed(domain string) bool {
	for _, allowed := range d.domains {
		if domain == allowed {
			return true
		}
	}
	return false
}

func splitAddress(address string) (local, domain string, ok bool) {
	local, domain, ok = strings.Cut(address, "@")
	if !ok || local == "" || domain == "" {
		return "", "", false
	}
	return local, domain, true
}
