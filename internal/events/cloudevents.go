package events

import (
	"context"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

const ceSource = "copy-pasta/order-server"

// CloudEventsSink forwards events to an external dashboard collaborator as
// CloudEvents over HTTP. Used by the Cloud Function deployment, where there
// is no in-process websocket hub to broadcast on.
type CloudEventsSink struct {
	client  cloudevents.Client
	target  string
	timeout time.Duration
}

func NewCloudEventsSink(target string) (*CloudEventsSink, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, err
	}
	return &CloudEventsSink{client: client, target: target, timeout: 5 * time.Second}, nil
}

// Publish implements Publisher. Undelivered events are logged and dropped.
func (s *CloudEventsSink) Publish(event string, payload any) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(ceSource)
	e.SetType("com.copypasta." + event)
	if err := e.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		slog.Warn("Failed to encode cloud event.", "event", event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = cloudevents.ContextWithTarget(ctx, s.target)

	if result := s.client.Send(ctx, e); cloudevents.IsUndelivered(result) {
		slog.Warn("Dashboard sink did not accept event.", "event", event, "error", result)
	}
}
