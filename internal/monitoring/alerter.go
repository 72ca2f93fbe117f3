// Package monitoring raises pipeline failure alerts and summarizes run
// health.
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

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStepFailure   AlertType = "step_failure"
	AlertFailureStreak AlertType = "failure_streak"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type       AlertType      `json:"type"`
	Severity   string         `json:"severity"`
	RunID      string         `json:"run_id,omitempty"`
	Step       string         `json:"step,omitempty"`
	ExitStatus int            `json:"exit_status,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// StepFailure builds the alert for a step that exited non-zero.
func StepFailure(runID, step string, exitStatus int, message string) Alert {
	return Alert{
		Type:       AlertStepFailure,
		Severity:   "high",
		RunID:      runID,
		Step:       step,
		ExitStatus: exitStatus,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
}

// Line is the alert log text: "PIPELINE FAILED | step=<name> | <message>".
func (a Alert) Line() string {
	if a.Type == AlertStepFailure {
		return fmt.Sprintf("PIPELINE FAILED | step=%s | %s", a.Step, a.Message)
	}
	return fmt.Sprintf("PIPELINE UNHEALTHY | %s", a.Message)
}

// Alerter appends alerts to the alert log and, when configured, posts them
// to a webhook.
type Alerter struct {
	cfg       config.AlertsConfig
	client    *http.Client
	retry     resilience.RetryConfig
	file      *zap.Logger
	closeFile func() error
}

// NewAlerter opens the alert log for appending.
func NewAlerter(cfg config.AlertsConfig) (*Alerter, error) {
	if cfg.LogFile == "" {
		return nil, eris.New("monitoring: alert log file is not configured")
	}
	file, closeFn, err := config.NewFileLogger(cfg.LogFile)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: open alert log")
	}
	return &Alerter{
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Second},
		retry:     resilience.DefaultRetryConfig(),
		file:      file,
		closeFile: closeFn,
	}, nil
}

// Raise records the alert in the alert log, echoes it to the global logger
// and delivers it to the webhook. Only webhook failures are returned; the
// log line is always written first.
func (a *Alerter) Raise(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	line := alert.Line()
	a.file.Error(line)
	zap.L().Error("ALERT: " + line)

	if a.cfg.WebhookURL == "" {
		return nil
	}
	retry := a.retry
	retry.OnRetry = resilience.RetryLogger("monitoring", a.cfg.WebhookURL)
	if err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		return a.sendWebhook(ctx, alert)
	}); err != nil {
		return err
	}
	zap.L().Info("monitoring: alert sent",
		zap.String("type", string(alert.Type)),
		zap.String("step", alert.Step),
	)
	return nil
}

// Evaluate checks a health snapshot against the failure streak threshold.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	return Evaluate(a.cfg, snap)
}

// Evaluate returns the alerts a snapshot breaches under cfg.
func Evaluate(cfg config.AlertsConfig, snap *MetricsSnapshot) []Alert {
	if cfg.FailureStreak <= 0 || snap.FailureStreak < cfg.FailureStreak {
		return nil
	}
	alert := Alert{
		Type:     AlertFailureStreak,
		Severity: "high",
		Message: fmt.Sprintf("%d consecutive failed runs (threshold %d)",
			snap.FailureStreak, cfg.FailureStreak),
		Details: map[string]any{
			"failure_streak": snap.FailureStreak,
			"threshold":      cfg.FailureStreak,
		},
		Timestamp: time.Now().UTC(),
	}
	if snap.LastFailure != nil {
		alert.RunID = snap.LastFailure.ID
		alert.Step = snap.LastFailure.FailedStep
	}
	return []Alert{alert}
}

// Close flushes and closes the alert log.
func (a *Alerter) Close() error {
	_ = a.file.Sync()
	return a.closeFile()
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
		statusErr := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}
	return nil
}
