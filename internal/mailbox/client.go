// Package mailbox adapts an IMAP mailbox to the thread reader ports consumed
// by the pipeline and follow-up modules.
package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	followupports "mailpilot_backend/internal/followup/ports"
	pipelineports "mailpilot_backend/internal/pipeline/ports"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"
)

const inboxFolder = "INBOX"

// Client reads email threads over IMAP. A thread is identified by the
// Message-ID of its root message; replies are grouped via their References
// header. Connections are opened per call: the IMAP dialer is not safe for
// concurrent use and the scheduler fans out across users.
type Client struct {
	cfg config.MailboxConfig
	log *logger.Logger

	// dial is a seam so tests can substitute a fake mailbox.
	dial func() (dialer, error)
}

// dialer is the slice of the IMAP connection the client uses.
type dialer interface {
	SelectFolder(folder string) error
	GetUIDs(search string) ([]int, error)
	GetEmails(uids ...int) (map[int]*imap.Email, error)
	GetOverviews(uids ...int) (map[int]*imap.Email, error)
	Close() error
}

// NewClient creates the IMAP mailbox adapter.
func NewClient(cfg config.MailboxConfig, log *logger.Logger) *Client {
	c := &Client{cfg: cfg, log: log}
	c.dial = func() (dialer, error) {
		return imap.New(cfg.GetIMAPUsername(), cfg.GetIMAPPassword(), cfg.GetIMAPHost(), cfg.GetIMAPPort())
	}
	return c
}

// GetThread fetches the root message and all replies referencing it, sorted
// oldest first.
func (c *Client) GetThread(ctx context.Context, threadID string) (pipelineports.Thread, error) {
	if !c.cfg.IsMailboxEnabled() {
		return pipelineports.Thread{}, apperr.Internal("mailbox is not configured")
	}
	if err := ctx.Err(); err != nil {
		return pipelineports.Thread{}, err
	}

	im, err := c.dial()
	if err != nil {
		return pipelineports.Thread{}, apperr.External("imap connect failed", err)
	}
	defer im.Close()

	if err := im.SelectFolder(inboxFolder); err != nil {
		return pipelineports.Thread{}, apperr.External("imap select folder failed", err)
	}

	rootUIDs, err := im.GetUIDs(fmt.Sprintf("HEADER Message-ID %q", threadID))
	if err != nil {
		return pipelineports.Thread{}, apperr.External("imap search failed", err)
	}
	replyUIDs, err := im.GetUIDs(fmt.Sprintf("HEADER References %q", threadID))
	if err != nil {
		return pipelineports.Thread{}, apperr.External("imap search failed", err)
	}

	uids := dedupeUIDs(append(rootUIDs, replyUIDs...))
	if len(uids) == 0 {
		return pipelineports.Thread{}, apperr.NotFound("thread not found")
	}

	emails, err := im.GetEmails(uids...)
	if err != nil {
		return pipelineports.Thread{}, apperr.External("imap fetch failed", err)
	}

	messages := make([]pipelineports.Message, 0, len(emails))
	var subject string
	for _, email := range emails {
		if email == nil {
			continue
		}
		if subject == "" || email.MessageID == threadID {
			subject = email.Subject
		}
		messages = append(messages, pipelineports.Message{
			From: formatAddresses(email.From),
			To:   formatAddresses(email.To),
			Body: email.Text,
			Date: email.Sent,
		})
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].Date.Before(messages[j].Date) })

	return pipelineports.Thread{
		ID:       threadID,
		Subject:  subject,
		Messages: messages,
	}, nil
}

// ListRecentThreads returns summaries of threads with activity since the
// given time, newest first, capped at limit. Messages are grouped into
// threads by normalized subject when reference headers are absent.
func (c *Client) ListRecentThreads(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]followupports.ThreadSummary, error) {
	if !c.cfg.IsMailboxEnabled() {
		return nil, apperr.Internal("mailbox is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	im, err := c.dial()
	if err != nil {
		return nil, apperr.External("imap connect failed", err)
	}
	defer im.Close()

	if err := im.SelectFolder(inboxFolder); err != nil {
		return nil, apperr.External("imap select folder failed", err)
	}

	uids, err := im.GetUIDs("SINCE " + since.Format("2-Jan-2006"))
	if err != nil {
		return nil, apperr.External("imap search failed", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	overviews, err := im.GetOverviews(uids...)
	if err != nil {
		return nil, apperr.External("imap fetch overviews failed", err)
	}

	// Group by normalized subject; the oldest message in a group anchors
	// the thread id.
	groups := make(map[string][]*imap.Email)
	for _, email := range overviews {
		if email == nil || email.MessageID == "" {
			continue
		}
		key := normalizeSubject(email.Subject)
		groups[key] = append(groups[key], email)
	}

	summaries := make([]followupports.ThreadSummary, 0, len(groups))
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].Sent.Before(group[j].Sent) })
		root := group[0]
		last := group[len(group)-1]
		summaries = append(summaries, followupports.ThreadSummary{
			ID:            root.MessageID,
			Subject:       root.Subject,
			LastMessageAt: last.Sent,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt) })

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}

	return summaries, nil
}

// GetThreadForFollowup adapts GetThread to the follow-up module's port.
func (c *Client) GetThreadForFollowup(ctx context.Context, threadID string) (followupports.Thread, error) {
	thread, err := c.GetThread(ctx, threadID)
	if err != nil {
		return followupports.Thread{}, err
	}

	messages := make([]followupports.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, followupports.Message{
			From: m.From,
			To:   m.To,
			Body: m.Body,
			Date: m.Date,
		})
	}

	return followupports.Thread{
		ID:       thread.ID,
		Subject:  thread.Subject,
		Messages: messages,
	}, nil
}

// FollowupReader adapts the client to the follow-up module's MailboxReader
// port, whose thread types differ from the pipeline's.
type FollowupReader struct {
	c *Client
}

// NewFollowupReader wraps the client for the follow-up module.
func NewFollowupReader(c *Client) *FollowupReader {
	return &FollowupReader{c: c}
}

func (r *FollowupReader) GetThread(ctx context.Context, threadID string) (followupports.Thread, error) {
	return r.c.GetThreadForFollowup(ctx, threadID)
}

func (r *FollowupReader) ListRecentThreads(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]followupports.ThreadSummary, error) {
	return r.c.ListRecentThreads(ctx, userID, since, limit)
}

var (
	_ pipelineports.ThreadReader  = (*Client)(nil)
	_ followupports.MailboxReader = (*FollowupReader)(nil)
)

func dedupeUIDs(uids []int) []int {
	seen := make(map[int]struct{}, len(uids))
	out := uids[:0]
	for _, uid := range uids {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}

// formatAddresses renders an address map as "Name <addr>" entries.
func formatAddresses(addrs imap.EmailAddresses) string {
	parts := make([]string, 0, len(addrs))
	for addr, name := range addrs {
		if name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", name, addr))
		} else {
			parts = append(parts, addr)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func normalizeSubject(subject string) string {
	s := strings.TrimSpace(strings.ToLower(subject))
	for {
		trimmed := s
		for _, prefix := range []string{"re:", "sv:", "fwd:", "vs:"} {
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
