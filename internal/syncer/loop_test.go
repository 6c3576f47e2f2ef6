package syncer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dreamcatchered/dreamMail/internal/parser"
	"github.com/dreamcatchered/dreamMail/internal/resolver"
	"github.com/dreamcatchered/dreamMail/pkg/models"
)

type fakeSession struct {
	uids      []uint32
	raw       map[uint32]string
	fetchErr  map[uint32]error
	header    map[uint32]string
	headerErr map[uint32]error
	closed    bool
}

func (s *fakeSession) ListAllUIDs() ([]uint32, error) { return s.uids, nil }

func (s *fakeSession) FetchFull(uid uint32) ([]byte, error) {
	if err := s.fetchErr[uid]; err != nil {
		return nil, err
	}
	return []byte(s.raw[uid]), nil
}

func (s *fakeSession) FetchHeader(uid uint32) ([]byte, error) {
	if err := s.headerErr[uid]; err != nil {
		return nil, err
	}
	if h, ok := s.header[uid]; ok {
		return []byte(h), nil
	}
	return nil, errors.New("no header")
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeParser treats the raw bytes as the recipient address; "bad"
// simulates an unparsable message.
type fakeParser struct{}

func (fakeParser) Parse(raw []byte) (*parser.ParsedMessage, error) {
	if string(raw) == "bad" {
		return nil, errors.New("broken mime")
	}
	addr := string(raw)
	return &parser.ParsedMessage{ToAddr: addr, ToRaw: addr, Text: "body"}, nil
}

type fakeResolver struct {
	owners map[string]resolver.Resolution
}

func (r *fakeResolver) Resolve(_ context.Context, toAddr, _ string) (resolver.Resolution, error) {
	if res, ok := r.owners[toAddr]; ok {
		return res, nil
	}
	return resolver.Resolution{OwnerID: models.OwnerUnknown, Active: false}, nil
}

type fakeStore struct {
	rows      map[uint32]*models.StoredMessage
	insertErr map[uint32]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uint32]*models.StoredMessage)}
}

func (s *fakeStore) InsertMessageIfAbsent(_ context.Context, msg *models.StoredMessage) (bool, error) {
	if err := s.insertErr[msg.UID]; err != nil {
		return false, err
	}
	if _, ok := s.rows[msg.UID]; ok {
		return false, nil
	}
	s.rows[msg.UID] = msg
	return true, nil
}

func (s *fakeStore) MaxStoredUID(context.Context) (uint32, error) {
	var max uint32
	for uid := range s.rows {
		if uid > max {
			max = uid
		}
	}
	return max, nil
}

type fakeNotifier struct {
	delivered []int64
	err       error
}

func (n *fakeNotifier) Notify(_ context.Context, ownerID int64, _ *parser.ParsedMessage) error {
	n.delivered = append(n.delivered, ownerID)
	return n.err
}

func newTestLoop(sess *fakeSession, store *fakeStore, res *fakeResolver, notif *fakeNotifier) *Loop {
	open := func(context.Context) (Session, error) { return sess, nil }
	cfg := Config{PollInterval: time.Second, BootstrapLimit: 50, MaxAttempts: 3}
	return New(open, store, fakeParser{}, res, notif, cfg, slog.New(slog.DiscardHandler))
}

func TestBootstrapDeliversNewMail(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids: []uint32{99, 100, 101, 102, 103},
		raw: map[uint32]string{
			101: "shop@dmail.example",
			102: "quiet@dmail.example",
			103: "other@dmail.example",
		},
	}
	res := &fakeResolver{owners: map[string]resolver.Resolution{
		"shop@dmail.example":  {OwnerID: 7, Active: true},
		"quiet@dmail.example": {OwnerID: 7, Active: false},
		"other@dmail.example": {OwnerID: 9, Active: true},
	}}
	notif := &fakeNotifier{}

	loop := newTestLoop(sess, store, res, notif)
	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	for _, uid := range []uint32{101, 102, 103} {
		if _, ok := store.rows[uid]; !ok {
			t.Errorf("uid %d not stored", uid)
		}
	}
	if len(notif.delivered) != 2 || notif.delivered[0] != 7 || notif.delivered[1] != 9 {
		t.Errorf("delivered = %v, want the active aliases only (7 then 9)", notif.delivered)
	}
	if loop.Watermark() != 103 {
		t.Errorf("watermark = %d, want 103", loop.Watermark())
	}
	if !sess.closed {
		t.Error("session not closed after cycle")
	}
}

func TestBootstrapCapsFirstRun(t *testing.T) {
	sess := &fakeSession{raw: make(map[uint32]string)}
	for uid := uint32(1); uid <= 60; uid++ {
		sess.uids = append(sess.uids, uid)
		sess.raw[uid] = "shop@dmail.example"
	}
	store := newFakeStore()
	res := &fakeResolver{owners: map[string]resolver.Resolution{
		"shop@dmail.example": {OwnerID: 7, Active: true},
	}}
	notif := &fakeNotifier{}

	loop := newTestLoop(sess, store, res, notif)
	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if len(store.rows) != 50 {
		t.Errorf("stored %d messages, want newest 50 only", len(store.rows))
	}
	if _, ok := store.rows[11]; !ok {
		t.Error("uid 11 missing, want the newest 50 (11..60)")
	}
	if _, ok := store.rows[10]; ok {
		t.Error("uid 10 stored, want old backlog skipped on first run")
	}
	if loop.Watermark() != 60 {
		t.Errorf("watermark = %d, want 60", loop.Watermark())
	}
}

func TestFetchFailureHoldsWatermark(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids: []uint32{101, 102},
		raw: map[uint32]string{
			102: "shop@dmail.example",
		},
		fetchErr: map[uint32]error{101: errors.New("server hiccup")},
	}
	res := &fakeResolver{owners: map[string]resolver.Resolution{
		"shop@dmail.example": {OwnerID: 7, Active: true},
	}}
	notif := &fakeNotifier{}

	loop := newTestLoop(sess, store, res, notif)
	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	// 102 is processed (stored, delivered) but the watermark stays put
	// so 101 is re-offered next cycle.
	if _, ok := store.rows[102]; !ok {
		t.Error("uid 102 not stored, later mail must not wait for a failing uid")
	}
	if loop.Watermark() != 100 {
		t.Errorf("watermark = %d, want held at 100", loop.Watermark())
	}

	// The failure clears, the next cycle re-processes 101 and the
	// duplicate 102 without notifying twice.
	delete(sess.fetchErr, 101)
	sess.raw[101] = "shop@dmail.example"
	loop.cycle(context.Background(), false)

	if loop.Watermark() != 102 {
		t.Errorf("watermark = %d after recovery, want 102", loop.Watermark())
	}
	if len(notif.delivered) != 2 {
		t.Errorf("delivered %d notifications, want 2 (no duplicate for 102)", len(notif.delivered))
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids:     []uint32{101},
		raw:      map[uint32]string{},
		fetchErr: map[uint32]error{101: errors.New("permanent failure")},
		header:   map[uint32]string{101: "shop@dmail.example"},
	}
	res := &fakeResolver{owners: map[string]resolver.Resolution{
		"shop@dmail.example": {OwnerID: 7, Active: true},
	}}
	notif := &fakeNotifier{}
	loop := newTestLoop(sess, store, res, notif)

	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	loop.cycle(context.Background(), false)
	if loop.Watermark() != 100 {
		t.Errorf("watermark = %d after 2 attempts, want still 100", loop.Watermark())
	}

	loop.cycle(context.Background(), false)
	if loop.Watermark() != 101 {
		t.Errorf("watermark = %d after giving up, want 101", loop.Watermark())
	}
	if len(notif.delivered) != 0 {
		t.Errorf("delivered = %v, want nothing for a quarantined uid", notif.delivered)
	}

	// Giving up salvages a header-only stub so the mail stays visible.
	row, ok := store.rows[101]
	if !ok {
		t.Fatal("no stub stored for the given-up uid")
	}
	if row.OwnerID != 7 || row.ToAddr != "shop@dmail.example" {
		t.Errorf("stub = %+v, want it attributed from the salvaged header", row)
	}
	if row.TextBody != "" {
		t.Errorf("stub body = %q, want empty (only the header was fetched)", row.TextBody)
	}
}

func TestGiveUpStubSurvivesHeaderFailure(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids:      []uint32{101},
		raw:       map[uint32]string{},
		fetchErr:  map[uint32]error{101: errors.New("permanent failure")},
		headerErr: map[uint32]error{101: errors.New("still failing")},
	}
	notif := &fakeNotifier{}
	loop := newTestLoop(sess, store, &fakeResolver{}, notif)

	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	loop.cycle(context.Background(), false)
	loop.cycle(context.Background(), false)

	row, ok := store.rows[101]
	if !ok {
		t.Fatal("no stub stored when the header fetch also fails")
	}
	if row.OwnerID != models.OwnerUnknown {
		t.Errorf("stub owner = %d, want the unknown sentinel", row.OwnerID)
	}
	if loop.Watermark() != 101 {
		t.Errorf("watermark = %d, want 101", loop.Watermark())
	}
}

func TestGiveUpDecisionSticksWhileBlocked(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids: []uint32{101, 102},
		raw:  map[uint32]string{},
		fetchErr: map[uint32]error{
			101: errors.New("transient failure"),
			102: errors.New("permanent failure"),
		},
	}
	notif := &fakeNotifier{}
	loop := newTestLoop(sess, store, &fakeResolver{}, notif)

	// 102 already burned attempts in earlier runs.
	loop.attempts[102] = 2

	// 102 reaches the limit while 101 holds the watermark: no advance
	// yet, but the counter must not reset.
	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if loop.Watermark() != 100 {
		t.Errorf("watermark = %d while 101 is still blocking, want 100", loop.Watermark())
	}
	if loop.attempts[102] < 3 {
		t.Errorf("attempts[102] = %d, want the give-up progress kept", loop.attempts[102])
	}

	// 101 recovers; the very next cycle must finish 102 too instead of
	// granting it another full round of attempts.
	delete(sess.fetchErr, 101)
	sess.raw[101] = "whoever@dmail.example"
	loop.cycle(context.Background(), false)

	if loop.Watermark() != 102 {
		t.Errorf("watermark = %d after recovery, want 102 given up immediately", loop.Watermark())
	}
}

func TestUnparsableMailStoredAsStub(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids: []uint32{101},
		raw:  map[uint32]string{101: "bad"},
	}
	notif := &fakeNotifier{}
	loop := newTestLoop(sess, store, &fakeResolver{}, notif)

	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	row, ok := store.rows[101]
	if !ok {
		t.Fatal("uid 101 not stored, unparsable mail must not be dropped")
	}
	if row.OwnerID != models.OwnerUnknown {
		t.Errorf("stub owner = %d, want the unknown sentinel", row.OwnerID)
	}
	if loop.Watermark() != 101 {
		t.Errorf("watermark = %d, want 101 (re-fetching cannot fix a parse failure)", loop.Watermark())
	}
	if len(notif.delivered) != 0 {
		t.Errorf("delivered = %v, want no notification for a stub", notif.delivered)
	}
}

func TestNotifyFailureDoesNotBlockWatermark(t *testing.T) {
	store := newFakeStore()
	store.rows[100] = &models.StoredMessage{UID: 100}

	sess := &fakeSession{
		uids: []uint32{101},
		raw:  map[uint32]string{101: "shop@dmail.example"},
	}
	res := &fakeResolver{owners: map[string]resolver.Resolution{
		"shop@dmail.example": {OwnerID: 7, Active: true},
	}}
	notif := &fakeNotifier{err: errors.New("telegram down")}

	loop := newTestLoop(sess, store, res, notif)
	if err := loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if loop.Watermark() != 101 {
		t.Errorf("watermark = %d, want 101 (the message is stored)", loop.Watermark())
	}
}
