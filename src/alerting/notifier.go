package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"

	"ledgerguard/src/model"
)

type Config struct {
	WebhookURL       string        `envconfig:"ALERT_WEBHOOK_URL" default:""`
	MaxAlertsPerHour int           `envconfig:"ALERT_MAX_PER_HOUR" default:"10"`
	RequestTimeout   time.Duration `envconfig:"ALERT_REQUEST_TIMEOUT" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Notifier pushes critical classified errors to an operator webhook.
// Sends are rate-limited by a sliding one-hour window so a flapping store
// cannot flood the channel. With no webhook configured the notifier only
// logs.
type Notifier struct {
	client     *resty.Client
	webhookURL string
	maxPerHour int

	mu    sync.Mutex
	sends []time.Time
	now   func() time.Time
}

func NewNotifier(cfg Config) *Notifier {
	client := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json")

	maxPerHour := cfg.MaxAlertsPerHour
	if maxPerHour <= 0 {
		maxPerHour = 10
	}

	return &Notifier{
		client:     client,
		webhookURL: cfg.WebhookURL,
		maxPerHour: maxPerHour,
		now:        time.Now,
	}
}

type alertPayload struct {
	Category       string    `json:"category"`
	Severity       string    `json:"severity"`
	RecoveryAction string    `json:"recovery_action"`
	Operation      string    `json:"operation,omitempty"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NotifyCritical delivers one alert, subject to the hourly window.
// Fire-and-forget: delivery failures are logged, never returned, so the
// error path of the executor cannot stall on a slow webhook.
func (n *Notifier) NotifyCritical(ctx context.Context, dbErr *model.DatabaseError) {
	if dbErr == nil {
		return
	}

	if !n.allow() {
		logger.WithFields(map[string]interface{}{
			"category": dbErr.Category,
			"max":      n.maxPerHour,
		}).Warn("Alert suppressed, hourly window exhausted")
		return
	}

	logger.WithFields(map[string]interface{}{
		"category": dbErr.Category,
		"severity": dbErr.Severity,
	}).Error("Critical database error")

	if n.webhookURL == "" {
		return
	}

	payload := alertPayload{
		Category:       dbErr.Category,
		Severity:       dbErr.Severity,
		RecoveryAction: dbErr.RecoveryAction,
		Operation:      dbErr.Operation,
		Message:        dbErr.Message,
		OccurredAt:     dbErr.OccurredAt,
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.webhookURL)
	if err != nil {
		logger.WithError(err).Error("Failed to deliver critical error alert")
		return
	}
	if resp.IsError() {
		logger.WithField("status", resp.StatusCode()).
			Error("Alert webhook responded with error status")
	}
}

// allow records a send attempt against the sliding window and reports
// whether it fits.
func (n *Notifier) allow() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	cutoff := now.Add(-time.Hour)

	kept := n.sends[:0]
	for _, ts := range n.sends {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	n.sends = kept

	if len(n.sends) >= n.maxPerHour {
		return false
	}
	n.sends = append(n.sends, now)
	return true
}
