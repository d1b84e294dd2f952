// Package notify delivers follower notifications by email. The store
// hands it the per-follower message aggregation after each commit;
// delivery failures are logged, never propagated back into the commit.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"udb/internal/domain"
	"udb/internal/store"
)

// Config carries the smtp-* and notification-* options. An empty
// Server disables delivery.
type Config struct {
	Server        string // host:port
	Username      string
	Password      string
	From          string
	CatchAllEmail string
	HeaderName    string // product name used in the subject line
}

type Mailer struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ store.Notifier = (*Mailer)(nil)

func New(cfg Config) *Mailer {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "UDB"
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

func (m *Mailer) Notify(ctx context.Context, notifications []store.Notification) {
	if m.cfg.Server == "" {
		if len(notifications) > 0 {
			log.Debug("smtp server not configured, dropping notifications", "count", len(notifications))
		}
		return
	}
	for _, n := range notifications {
		if err := ctx.Err(); err != nil {
			log.Warn("notification delivery interrupted", "error", err)
			return
		}
		if n.User == nil || n.User.Email == "" || len(n.Messages) == 0 {
			continue
		}
		if err := m.deliver(n); err != nil {
			log.Warn("failed to send notification",
				"to", n.User.Email, "messages", len(n.Messages), "error", err)
		}
	}
}

func (m *Mailer) deliver(n store.Notification) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		host, _, _ := strings.Cut(m.cfg.Server, ":")
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}
	to := []string{n.User.Email}
	if m.cfg.CatchAllEmail != "" {
		to = append(to, m.cfg.CatchAllEmail)
	}
	msg := m.compose(n)
	return m.send(m.cfg.Server, auth, m.cfg.From, to, msg)
}

func (m *Mailer) compose(n store.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.User.Email)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", m.cfg.HeaderName, subject(n.Messages))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	for _, msg := range n.Messages {
		fmt.Fprintf(&b, "%s %s #%d by %s\r\n", msg.Type, msg.ModelName, msg.ModelID, authorName(msg))
		if msg.Body != "" {
			fmt.Fprintf(&b, "  %s\r\n", msg.Body)
		}
		cs := msg.ChangeSet()
		fields := make([]string, 0, len(cs))
		for field := range cs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(&b, "  %s: %v -> %v\r\n", field, cs[field][0], cs[field][1])
		}
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

func subject(msgs []*domain.Message) string {
	first := msgs[0]
	s := fmt.Sprintf("%s #%d changed", first.ModelName, first.ModelID)
	if extra := len(msgs) - 1; extra > 0 {
		s += fmt.Sprintf(" (+%d more)", extra)
	}
	return s
}

func authorName(msg *domain.Message) string {
	if msg.Author != nil {
		return msg.Author.DisplayName()
	}
	return "system"
}
