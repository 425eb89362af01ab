package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/i18n"
)

// Mailer sends a digest of critical and error notifications over SMTP.
// SMTP settings come from the operator settings document; an empty host
// disables mailing entirely.
type Mailer struct {
	Settings *config.SettingsStore
	Logger   *zap.Logger

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer constructs a Mailer.
func NewMailer(settings *config.SettingsStore, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{Settings: settings, Logger: logger, send: smtp.SendMail}
}

// SendDigest mails the error-and-worse subset of the notifications.
// Nothing urgent or no SMTP configuration means no mail and no error.
func (m *Mailer) SendDigest(items []Notification, password string) error {
	cfg := m.Settings.Get()
	if cfg.SMTPHost == "" || cfg.SMTPTo == "" {
		return nil
	}
	urgent := make([]Notification, 0, len(items))
	for _, n := range items {
		if n.Severity == SeverityError || n.Severity == SeverityCritical {
			urgent = append(urgent, n)
		}
	}
	if len(urgent) == 0 {
		return nil
	}

	lang := i18n.Lang(cfg.Language)
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", cfg.SMTPFrom)
	fmt.Fprintf(&body, "To: %s\r\n", cfg.SMTPTo)
	fmt.Fprintf(&body, "Subject: %s\r\n", i18n.T(lang, "mail.subject", len(urgent)))
	body.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	for _, n := range urgent {
		fmt.Fprintf(&body, "[%s] %s\r\n", strings.ToUpper(string(n.Severity)), n.Message)
	}

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, password, cfg.SMTPHost)
	}
	addr := cfg.SMTPHost + ":" + cfg.SMTPPort
	recipients := strings.Split(cfg.SMTPTo, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}
	if err := m.send(addr, auth, cfg.SMTPFrom, recipients, []byte(body.String())); err != nil {
		return fmt.Errorf("sending notification digest: %w", err)
	}
	m.Logger.Info("notification digest sent",
		zap.Int("notifications", len(urgent)),
		zap.String("to", cfg.SMTPTo),
	)
	return nil
}
