package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/config"
	"github.com/sells-group/harvest-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertHarvestStalled AlertType = "harvest_stalled"
	AlertFailureRate    AlertType = "failure_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates successive snapshots of a running harvest against
// configured thresholds and sends alerts via webhook when they are
// breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate compares the current snapshot against thresholds and the
// previous observation. prev is nil on the first check of a run.
func (a *Alerter) Evaluate(prev, cur *model.Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Failure rate over finished identifiers. Skipped until enough have
	// finished for the rate to mean anything.
	finished := cur.Done + cur.Failed
	rate := FailureRate(cur)
	if finished >= 5 && rate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Harvest failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
				rate*100, a.cfg.FailureRateThreshold*100,
				cur.Failed, finished,
			),
			Details: map[string]any{
				"harvest_id":   cur.HarvestID,
				"failure_rate": rate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       cur.Failed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	// Stall: identifiers still outstanding but none finished since the
	// previous check.
	outstanding := cur.Pending + cur.InProgress
	if prev != nil && outstanding > 0 && finished == prev.Done+prev.Failed {
		alerts = append(alerts, Alert{
			Type:     AlertHarvestStalled,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Harvest made no progress since the last check (%d identifiers outstanding)",
				outstanding,
			),
			Details: map[string]any{
				"harvest_id":  cur.HarvestID,
				"outstanding": outstanding,
				"done":        cur.Done,
				"failed":      cur.Failed,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
