package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/pkg/models"
)

// Directory is the alias directory view the resolver needs.
// OwnerOf returns database.ErrNotFound for unclaimed addresses.
type Directory interface {
	OwnerOf(ctx context.Context, address string) (int64, error)
	IsAliasActive(ctx context.Context, address string) (bool, error)
}

// Resolution is the owner attribution for one message. Active false
// means the message is stored but not delivered.
type Resolution struct {
	OwnerID int64
	Active  bool
}

// Resolver attributes a recipient address to an alias owner
type Resolver struct {
	dir         Directory
	rootAddress string
	adminID     int64
}

// New creates a resolver
func New(dir Directory, rootAddress string, adminID int64) *Resolver {
	return &Resolver{
		dir:         dir,
		rootAddress: strings.ToLower(rootAddress),
		adminID:     adminID,
	}
}

// Resolve applies the attribution rules in order: exact alias match,
// then raw To header containing the root mailbox address (admin mail),
// then the unknown sentinel. Unknown mail is still stored so nothing
// is silently dropped.
func (r *Resolver) Resolve(ctx context.Context, toAddr, toRaw string) (Resolution, error) {
	if toAddr != "" {
		owner, err := r.dir.OwnerOf(ctx, toAddr)
		if err == nil {
			active, err := r.dir.IsAliasActive(ctx, toAddr)
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{OwnerID: owner, Active: active}, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return Resolution{}, err
		}
	}

	if r.rootAddress != "" && strings.Contains(strings.ToLower(toRaw), r.rootAddress) {
		return Resolution{OwnerID: r.adminID, Active: true}, nil
	}

	return Resolution{OwnerID: models.OwnerUnknown, Active: false}, nil
}
