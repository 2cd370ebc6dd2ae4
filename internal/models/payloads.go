package models

// These structs define the JSON payloads exchanged with the clipboard client
// and the dashboard over the HTTP API.

// OrderSubmission is the intake request sent by the clipboard client.
type OrderSubmission struct {
	PGPMessage    string `json:"pgp_message"`
	ScreenshotB64 string `json:"screenshot_b64"`
	Timestamp     int64  `json:"timestamp"`
}

// OrderResult is the intake response.
type OrderResult struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

// OrderSummary is one row of the dashboard order listing.
type OrderSummary struct {
	ID           string        `json:"id"`
	Timestamp    int64         `json:"timestamp"`
	ProcessedAt  string        `json:"processed_at"`
	Status       string        `json:"status"`
	CustomerData *CustomerData `json:"customer_data"`
}

// TrackingImportRequest carries the operator's newline-delimited blob of
// "<name tokens...> <trackingNumber>" lines.
type TrackingImportRequest struct {
	TrackingBlob string `json:"tracking_blob"`
}

// TrackingImportResult reports how many lines imported and which failed.
type TrackingImportResult struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	StoredCount int      `json:"stored_count"`
	Errors      []string `json:"errors"`
}

// ModelRequest selects the completion model used for subsequent extractions.
type ModelRequest struct {
	Model string `json:"model"`
}

// PingRequest is the client connection probe.
type PingRequest struct {
	ClientID string `json:"client_id"`
	Platform string `json:"platform"`
}
