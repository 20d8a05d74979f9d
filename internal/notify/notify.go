package notify

import (
	"context"
	"fmt"

	"cexio-trade-bot-go/internal/config"

	"go.uber.org/zap"
)

// Notifier delivers fire-and-forget alerts about trades and errors.
// Delivery failure is never fatal to a trading run; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NewNotifier builds the backend selected in the configuration.
func NewNotifier(cfg *config.Notify, logger *zap.Logger) (Notifier, error) {
	switch cfg.Backend {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "smtp":
		return NewSMTPNotifier(&cfg.SMTP, logger), nil
	case "kafka":
		return NewKafkaNotifier(&cfg.Kafka, logger), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}

// LogNotifier writes notifications to the application log. It is the
// default backend and the fallback when nothing else is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(ctx context.Context, subject, body string) error {
	n.logger.Info("Notification", zap.String("subject", subject), zap.String("body", body))
	return nil
}
