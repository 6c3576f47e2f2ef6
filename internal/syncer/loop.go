package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dreamcatchered/dreamMail/internal/parser"
	"github.com/dreamcatchered/dreamMail/internal/resolver"
	"github.com/dreamcatchered/dreamMail/pkg/models"
)

// Session is one scoped mailbox connection. The loop opens a fresh
// session per cycle and discards it on any error.
type Session interface {
	ListAllUIDs() ([]uint32, error)
	FetchFull(uid uint32) ([]byte, error)
	FetchHeader(uid uint32) ([]byte, error)
	Close() error
}

// OpenSession opens a new mailbox session
type OpenSession func(ctx context.Context) (Session, error)

// Store is the durable message sink
type Store interface {
	InsertMessageIfAbsent(ctx context.Context, msg *models.StoredMessage) (bool, error)
	MaxStoredUID(ctx context.Context) (uint32, error)
}

// Parser decodes raw MIME bytes
type Parser interface {
	Parse(raw []byte) (*parser.ParsedMessage, error)
}

// Resolver attributes a recipient to an alias owner
type Resolver interface {
	Resolve(ctx context.Context, toAddr, toRaw string) (resolver.Resolution, error)
}

// Notifier delivers a new message to its owner, best effort. Failures
// are logged and never retried: the message is already stored.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, msg *parser.ParsedMessage) error
}

// Config tuning for the sync loop
type Config struct {
	PollInterval   time.Duration
	BootstrapLimit int // newest-N cap for the very first run on an empty store
	MaxAttempts    int // failed attempts per UID before it is given up on
}

// Loop ingests the shared mailbox: bootstrap catch-up, then steady
// polling. The watermark is the highest UID fully processed; it is
// recomputed from the store at startup and only ever advances.
type Loop struct {
	open     OpenSession
	store    Store
	parser   Parser
	resolver Resolver
	notifier Notifier
	cfg      Config
	logger   *slog.Logger

	// Owned by the loop goroutine, never shared.
	watermark uint32
	attempts  map[uint32]int
}

// New creates a sync loop
func New(open OpenSession, store Store, p Parser, r Resolver, n Notifier, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		open:     open,
		store:    store,
		parser:   p,
		resolver: r,
		notifier: n,
		cfg:      cfg,
		logger:   logger.With("component", "syncer"),
		attempts: make(map[uint32]int),
	}
}

// Run blocks until ctx is cancelled. Transient failures log and retry
// on the next cycle; nothing here is fatal to the process.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Bootstrap(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.PollInterval):
		}
		l.cycle(ctx, false)
	}
}

// Bootstrap recomputes the watermark from the store and runs the
// catch-up cycle. On an empty store only the newest BootstrapLimit
// messages are ingested so a first run never backfills unbounded.
func (l *Loop) Bootstrap(ctx context.Context) error {
	wm, err := l.store.MaxStoredUID(ctx)
	if err != nil {
		return fmt.Errorf("failed to recompute watermark: %w", err)
	}
	if wm > l.watermark {
		l.watermark = wm
	}

	l.logger.Info("starting mailbox sync", "watermark", l.watermark)
	l.cycle(ctx, true)
	return nil
}

// Watermark returns the highest fully processed UID
func (l *Loop) Watermark() uint32 {
	return l.watermark
}

func (l *Loop) cycle(ctx context.Context, bootstrap bool) {
	log := l.logger.With("trace_id", uuid.NewString()[:8])

	sess, err := l.open(ctx)
	if err != nil {
		log.Error("failed to open mailbox session", "error", err)
		return
	}
	defer sess.Close()

	uids, err := sess.ListAllUIDs()
	if err != nil {
		log.Error("failed to list mailbox uids", "error", err)
		return
	}

	pending := l.selectPending(uids, bootstrap)
	if len(pending) == 0 {
		return
	}
	log.Info("processing new mail", "count", len(pending), "watermark", l.watermark)

	// A failed UID holds the watermark so it is re-offered next cycle.
	// Later UIDs are still processed: the store insert is idempotent
	// and a duplicate insert never re-notifies.
	blocked := false
	for _, uid := range pending {
		if ctx.Err() != nil {
			return
		}

		if l.processUID(ctx, log, sess, uid) {
			delete(l.attempts, uid)
			if !blocked {
				l.advance(uid)
			}
			continue
		}

		// The give-up decision only fires on the branch that advances;
		// while an earlier UID holds the watermark the counter is kept
		// so the decision sticks once the watermark catches up.
		l.attempts[uid]++
		if l.attempts[uid] >= l.cfg.MaxAttempts && !blocked {
			log.Error("giving up on message after repeated failures",
				"uid", uid, "attempts", l.attempts[uid])
			l.storeHeaderStub(ctx, log, sess, uid)
			delete(l.attempts, uid)
			l.advance(uid)
			continue
		}
		blocked = true
	}
}

// selectPending returns the UIDs strictly above the watermark, capped
// to the newest BootstrapLimit on a first run against an empty store.
func (l *Loop) selectPending(uids []uint32, bootstrap bool) []uint32 {
	firstRun := bootstrap && l.watermark == 0

	var pending []uint32
	for _, uid := range uids {
		if uid > l.watermark {
			pending = append(pending, uid)
		}
	}
	if firstRun && len(pending) > l.cfg.BootstrapLimit {
		pending = pending[len(pending)-l.cfg.BootstrapLimit:]
	}
	return pending
}

// processUID runs fetch → parse → resolve → store → notify for one
// message. Returns true when the UID is done and the watermark may
// move past it; delivery failures never count against the message.
func (l *Loop) processUID(ctx context.Context, log *slog.Logger, sess Session, uid uint32) bool {
	raw, err := sess.FetchFull(uid)
	if err != nil {
		log.Warn("failed to fetch message", "uid", uid, "error", err)
		return false
	}

	parsed, err := l.parser.Parse(raw)
	if err != nil {
		// Unparsable mail is stored as a stub so it is never silently
		// dropped; re-fetching the same bytes will not fix it.
		log.Warn("failed to parse message, storing stub", "uid", uid, "error", err)
		parsed = &parser.ParsedMessage{}
	}

	res, err := l.resolver.Resolve(ctx, parsed.ToAddr, parsed.ToRaw)
	if err != nil {
		log.Warn("failed to resolve recipient", "uid", uid, "error", err)
		return false
	}

	stored, err := l.store.InsertMessageIfAbsent(ctx, &models.StoredMessage{
		UID:        uid,
		OwnerID:    res.OwnerID,
		ToAddr:     parsed.ToAddr,
		FromAddr:   parsed.From,
		Subject:    parsed.Subject,
		TextBody:   parsed.Text,
		HTMLBody:   parsed.HTML,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		log.Warn("failed to store message", "uid", uid, "error", err)
		return false
	}

	if !stored {
		log.Debug("message already stored", "uid", uid)
		return true
	}

	switch {
	case res.OwnerID == models.OwnerUnknown:
		log.Info("stored message with unknown recipient", "uid", uid, "to", parsed.ToAddr)
	case !res.Active:
		log.Info("notification suppressed for inactive alias", "uid", uid, "to", parsed.ToAddr)
	default:
		if err := l.notifier.Notify(ctx, res.OwnerID, parsed); err != nil {
			log.Warn("failed to deliver notification", "uid", uid, "owner_id", res.OwnerID, "error", err)
		}
	}
	return true
}

// storeHeaderStub salvages what it can from a message being given up
// on. A header-only fetch often still works when the full body has
// repeatedly failed, and even an empty row keeps the mail visible
// instead of silently skipped. Best effort, no notification.
func (l *Loop) storeHeaderStub(ctx context.Context, log *slog.Logger, sess Session, uid uint32) {
	parsed := &parser.ParsedMessage{}
	raw, err := sess.FetchHeader(uid)
	if err != nil {
		log.Warn("failed to fetch header for given-up message", "uid", uid, "error", err)
	} else if p, err := l.parser.Parse(raw); err == nil {
		parsed = p
	}

	owner := models.OwnerUnknown
	if res, err := l.resolver.Resolve(ctx, parsed.ToAddr, parsed.ToRaw); err == nil {
		owner = res.OwnerID
	}

	_, err = l.store.InsertMessageIfAbsent(ctx, &models.StoredMessage{
		UID:        uid,
		OwnerID:    owner,
		ToAddr:     parsed.ToAddr,
		FromAddr:   parsed.From,
		Subject:    parsed.Subject,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		log.Warn("failed to store stub for given-up message", "uid", uid, "error", err)
	}
}

func (l *Loop) advance(uid uint32) {
	if uid > l.watermark {
		l.watermark = uid
	}
}
