package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/metrics"
	"github.com/sells-group/covenant-monitor/internal/model"
)

// Payload is the JSON body posted for each new alert.
type Payload struct {
	Event      string             `json:"event"`
	AlertID    string             `json:"alert_id"`
	CovenantID string             `json:"covenant_id"`
	UserID     string             `json:"user_id"`
	AlertType  model.AlertType    `json:"alert_type"`
	Message    string             `json:"message"`
	Details    model.AlertDetails `json:"details"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Notifier delivers newly created alerts to a webhook. Delivery failures are
// logged and never returned to the caller.
type Notifier struct {
	url    string
	client *http.Client
}

// NewNotifier creates a Notifier. An empty url disables delivery.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify sends one webhook per created transition. Returns the number of
// alerts successfully sent.
func (n *Notifier) Notify(ctx context.Context, transitions []Transition) int {
	if !n.Enabled() {
		return 0
	}

	sent := 0
	for _, tr := range transitions {
		if tr.Kind != TransitionCreated || tr.Alert == nil {
			continue
		}
		err := n.send(ctx, tr.Alert)
		metrics.RecordWebhookDelivery(err == nil)
		if err != nil {
			zap.L().Error("alert: failed to send webhook",
				zap.String("alert_id", tr.Alert.ID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("alert: webhook sent",
			zap.String("alert_id", tr.Alert.ID),
			zap.String("type", string(tr.Alert.Type)),
		)
		sent++
	}
	return sent
}

func (n *Notifier) send(ctx context.Context, a *model.Alert) error {
	payload, err := json.Marshal(Payload{
		Event:      "alert.created",
		AlertID:    a.ID,
		CovenantID: a.CovenantID,
		UserID:     a.UserID,
		AlertType:  a.Type,
		Message:    a.Message,
		Details:    a.Details,
		Timestamp:  a.CreatedAt,
	})
	if err != nil {
		return eris.Wrap(err, "alert: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alert: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
