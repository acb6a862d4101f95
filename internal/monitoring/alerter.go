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

	"github.com/hunterpro/hunter-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertAbortRate     AlertType = "abort_rate"
	AlertPoolExhausted AlertType = "credential_pool_exhausted"
	AlertLeadDrought   AlertType = "lead_drought"
	AlertCostOverrun   AlertType = "cost_overrun"
)

// minRunsForRateAlert keeps a single aborted pass from tripping the rate alert.
const minRunsForRateAlert = 3

const defaultWebhookTimeout = 10 * time.Second

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and posts
// breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.ActiveCredentials == 0 || snap.NoCredentials > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertPoolExhausted,
			Severity: "critical",
			Message: fmt.Sprintf(
				"search credential pool is empty (%d pass(es) aborted for no credentials in last %dh)",
				snap.NoCredentials, snap.LookbackHours,
			),
			Details: map[string]any{
				"active_credentials":  snap.ActiveCredentials,
				"runs_no_credentials": snap.NoCredentials,
			},
			Timestamp: now,
		})
	}

	if a.cfg.AbortRateThreshold > 0 && snap.RunsTotal >= minRunsForRateAlert && snap.AbortRate > a.cfg.AbortRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertAbortRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Hunt abort rate %.1f%% exceeds threshold %.1f%% (%d aborted / %d in last %dh)",
				snap.AbortRate*100, a.cfg.AbortRateThreshold*100,
				snap.RunsAborted, snap.RunsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"abort_rate": snap.AbortRate,
				"threshold":  a.cfg.AbortRateThreshold,
				"aborted":    snap.RunsAborted,
				"total":      snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	if a.cfg.DroughtRuns > 0 && snap.DroughtStreak >= a.cfg.DroughtRuns {
		alerts = append(alerts, Alert{
			Type:     AlertLeadDrought,
			Severity: "medium",
			Message: fmt.Sprintf(
				"last %d completed hunts created no new leads",
				snap.DroughtStreak,
			),
			Details: map[string]any{
				"streak":         snap.DroughtStreak,
				"queries_issued": snap.QueriesIssued,
				"leads_found":    snap.LeadsFound,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.CostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Search cost $%.2f exceeds threshold $%.2f in last %dh",
				snap.CostUSD, a.cfg.CostThresholdUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"cost_usd":      snap.CostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"credits_used":  snap.CreditsUsed,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL and logs each one.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	for _, alert := range alerts {
		zap.L().Warn("monitoring: alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
	}
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
		sent++
	}
	return sent
}

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
