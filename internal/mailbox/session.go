package mailbox

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ErrNotFound is returned when a UID is no longer present in the mailbox
var ErrNotFound = fmt.Errorf("message not found")

// Config connection settings for the shared mailbox
type Config struct {
	Server      string // host:port
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Session is a scoped IMAP connection with INBOX selected. On any
// protocol error the caller discards the session and opens a fresh one;
// a session is never reused across errors.
type Session struct {
	client *client.Client
	logger *slog.Logger
}

// Open dials the server over TLS, logs in and selects INBOX
func Open(cfg Config, logger *slog.Logger) (*Session, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if _, err := imapClient.Select("INBOX", true); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	return &Session{
		client: imapClient,
		logger: logger.With("component", "mailbox"),
	}, nil
}

// ListAllUIDs returns every UID in the mailbox in ascending order.
// UIDs are used instead of sequence numbers because they are stable
// across sessions, which the sync watermark depends on.
func (s *Session) ListAllUIDs() ([]uint32, error) {
	uids, err := s.client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// FetchFull returns the raw RFC822 bytes of one message
func (s *Session) FetchFull(uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{}
	return s.fetchSection(uid, section)
}

// FetchHeader returns only the raw header bytes of one message. Peek
// keeps the fetch from flagging the message as seen.
func (s *Session) FetchHeader(uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	return s.fetchSection(uid, section)
}

func (s *Session) fetchSection(uid uint32, section *imap.BodySectionName) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			s.logger.Warn("failed to read message body", "uid", uid, "error", err)
			continue
		}
		raw = data
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch uid %d: %w", uid, err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw, nil
}

// Close logs out. Safe to call once per session.
func (s *Session) Close() error {
	return s.client.Logout()
}
