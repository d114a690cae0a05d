// Package notify posts summary digests to a Slack incoming webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// DefaultTimeout bounds a single webhook request.
const DefaultTimeout = 10 * time.Second

// ErrNoWebhook is returned when no webhook URL is configured.
var ErrNoWebhook = errors.New("slack webhook url is not configured")

// Options configures a Notifier.
type Options struct {
	WebhookURL string
	Channel    string
	Username   string
	// Top is the number of changes listed per direction. Zero uses report.DefaultDigestTop.
	Top int
	// HTTPClient sends the request. Nil uses a client with DefaultTimeout.
	HTTPClient *http.Client
}

// Notifier sends digests to Slack.
type Notifier struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Notifier. It fails when opts has no webhook URL.
func New(opts Options, logger *slog.Logger) (*Notifier, error) {
	if opts.WebhookURL == "" {
		return nil, ErrNoWebhook
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{opts: opts, logger: logger}, nil
}

// Message builds the webhook payload for sum.
func (n *Notifier) Message(sum *summary.Summary) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text:     report.Digest(sum, n.opts.Top),
		Channel:  n.opts.Channel,
		Username: n.opts.Username,
	}
}

// Send posts the digest of sum.
func (n *Notifier) Send(ctx context.Context, sum *summary.Summary) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, n.opts.WebhookURL, n.opts.HTTPClient, n.Message(sum))
	if err != nil {
		return fmt.Errorf("post slack digest: %w", err)
	}

	n.logger.InfoContext(ctx, "posted summary digest",
		"reference", sum.Reference.String(),
		"weeks", len(sum.Comparisons),
		"channel", n.opts.Channel)

	return nil
}
