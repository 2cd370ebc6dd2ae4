// Package events broadcasts progress notifications to dashboard observers.
// Publishing is fire-and-forget telemetry: a failed or absent observer must
// never fail the operation that emitted the event.
package events

// Named events published to the dashboard.
const (
	EventOrderStatus      = "order_status"
	EventOrderProcessed   = "order_processed"
	EventOrderError       = "order_error"
	EventClientConnected  = "client_connected"
	EventModelChanged     = "model_changed"
	EventTrackingImported = "tracking_numbers_imported"
	EventExportReset      = "export_reset"
	EventSummarySent      = "summary_sent"
)

// Publisher delivers one named event with a JSON-marshalable payload.
type Publisher interface {
	Publish(event string, payload any)
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(event string, payload any) {
	for _, p := range m {
		p.Publish(event, payload)
	}
}

// Noop discards everything; used when no observer is configured.
type Noop struct{}

func (Noop) Publish(string, any) {}
