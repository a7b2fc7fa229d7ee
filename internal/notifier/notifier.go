// Package notifier sends the rendered digest to the workshop staff.
package notifier

import (
	"context"

	"go.uber.org/zap"

	"quizdigest/internal/digest"
	"quizdigest/pkg/logger"
	"quizdigest/pkg/metrics"
	"quizdigest/pkg/util"
)

// Recipients are fixed in code.
var (
	DefaultSender     = "cetltech@calstatela.edu"
	DefaultRecipients = []string{"international@calstatela.edu", "jhenlin2@calstatela.edu"}
)

type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer is a transactional email API.
type Mailer interface {
	Send(ctx context.Context, msg Message) (int, error)
}

type Notifier struct {
	mailer Mailer
	from   string
	to     []string
	logger *zap.Logger
}

func New(mailer Mailer, from string, to []string, logger *zap.Logger) *Notifier {
	return &Notifier{
		mailer: mailer,
		from:   from,
		to:     to,
		logger: logger,
	}
}

// Send delivers d and returns the API status code. Failures are logged here
// and also returned so the caller can report them.
func (n *Notifier) Send(ctx context.Context, d digest.Digest) (int, error) {
	log := logger.WithTrace(ctx, n.logger)

	status, err := n.mailer.Send(ctx, Message{
		From:    n.from,
		To:      n.to,
		Subject: d.Subject,
		HTML:    d.HTML,
	})
	if err != nil {
		metrics.IncrementDigestSent("failed")
		log.Error("Failed to send digest email",
			zap.String("subject", d.Subject),
			zap.Int("status_code", status),
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		return status, err
	}

	metrics.IncrementDigestSent("success")
	log.Info("Email sent",
		zap.String("subject", d.Subject),
		zap.Strings("to", n.to),
		zap.Int("status_code", status),
	)
	return status, nil
}
