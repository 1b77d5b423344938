package notify

import (
	"context"
	"log/slog"

	"github.com/iliyamo/slot-booking/internal/model"
)

// Sender hands a message to the delivery channel.
type Sender interface {
	Send(ctx context.Context, msg model.MailMessage) error
}

// LogSender writes messages to the log instead of delivering them.  It is
// used when no broker is configured.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg model.MailMessage) error {
	s.Log.InfoContext(ctx, "mail",
		"type", msg.Type, "to", msg.To, "subject", msg.Subject, "ics", msg.ICS != "")
	return nil
}
