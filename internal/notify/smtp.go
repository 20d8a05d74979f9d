package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"cexio-trade-bot-go/internal/config"

	"go.uber.org/zap"
)

// SMTPNotifier emails the configured admin addresses.
type SMTPNotifier struct {
	cfg    *config.SMTP
	logger *zap.Logger

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg *config.SMTP, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:    cfg,
		logger: logger.Named("notify-smtp"),
		send:   smtp.SendMail,
	}
}

// Notify sends the notification as a plain-text email.
func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	if len(n.cfg.To) == 0 {
		return fmt.Errorf("smtp notifier has no recipients configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.cfg.From, strings.Join(n.cfg.To, ", "), subject, body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, n.cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send notification mail: %w", err)
	}

	n.logger.Debug("Notification mail sent", zap.String("subject", subject), zap.Strings("to", n.cfg.To))
	return nil
}
