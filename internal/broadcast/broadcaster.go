package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"reliefnet/internal/metrics"
	"reliefnet/internal/models"
)

// Envelope is the tagged wire message pushed to subscribers.
type Envelope struct {
	Type string       `json:"type"`
	Data models.Alert `json:"data"`
}

const envelopeTypeAlert = "ALERT"

// DeliveryReport summarizes one fan-out pass. Partial delivery is the
// expected steady state, not an error.
type DeliveryReport struct {
	Delivered int // queued on an open session's buffer
	Dropped   int // open session, buffer full; alert skipped for it
	Failed    int // session already closed at send time
}

// Broadcaster fans alerts out to every session in a registry snapshot.
// Delivery per session is a single non-blocking attempt: a slow or dead
// subscriber never delays the rest, and there are no retries or acks.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Publish serializes alert once and attempts delivery of the identical
// payload to every session in the current snapshot. Sessions found closed
// are unregistered as best-effort cleanup. Sessions registering after the
// snapshot do not receive this alert.
func (b *Broadcaster) Publish(alert models.Alert) (DeliveryReport, error) {
	payload, err := json.Marshal(Envelope{Type: envelopeTypeAlert, Data: alert})
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("error marshaling alert %d: %w", alert.ID, err)
	}

	var report DeliveryReport
	for _, s := range b.registry.Snapshot() {
		switch err := s.TrySend(payload); err {
		case nil:
			report.Delivered++
			metrics.AlertDeliveries.WithLabelValues("delivered").Inc()
		case ErrBufferFull:
			report.Dropped++
			metrics.AlertDeliveries.WithLabelValues("dropped").Inc()
			slog.Warn("alert dropped for slow subscriber", "alert_id", alert.ID, "session_id", s.ID())
		case ErrSessionClosed:
			report.Failed++
			metrics.AlertDeliveries.WithLabelValues("failed").Inc()
			b.registry.Unregister(s)
			slog.Debug("alert skipped for closed session", "alert_id", alert.ID, "session_id", s.ID())
		}
	}

	metrics.AlertsPublished.Inc()
	slog.Info("alert published",
		"alert_id", alert.ID,
		"disaster_type", alert.DisasterType,
		"delivered", report.Delivered,
		"dropped", report.Dropped,
		"failed", report.Failed)

	return report, nil
}

// SubscriberCount reports current registry membership.
func (b *Broadcaster) SubscriberCount() int {
	return b.registry.Len()
}
