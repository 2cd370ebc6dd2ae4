package models

import "time"

// Order status values. A failed intake never reaches a stored row, so there
// is no failure status.
const (
	StatusReceived  = "received"
	StatusProcessed = "processed"
)

// Order is the main record for one processed order submission in Firestore.
// CustomerData holds the extraction result as a JSON string (see CustomerData
// type); keeping it as opaque text lets readers tolerate and skip malformed
// rows instead of failing a whole query.
type Order struct {
	ID             string    `firestore:"-" json:"id"`
	PGPMessage     string    `firestore:"pgpMessage" json:"pgp_message,omitempty"`
	PGPDecrypted   string    `firestore:"pgpDecrypted" json:"-"`
	ScreenshotPath string    `firestore:"screenshotPath" json:"screenshot_path,omitempty"`
	Timestamp      int64     `firestore:"timestamp" json:"timestamp"`
	ProcessedAt    time.Time `firestore:"processedAt,serverTimestamp" json:"processed_at"`
	Status         string    `firestore:"status" json:"status"`
	ModelUsed      string    `firestore:"modelUsed" json:"model_used,omitempty"`
	CustomerData   string    `firestore:"customerData" json:"-"`
	Exported       bool      `firestore:"exported" json:"exported"`
}

// ParsedAddress is the structured shipping address extracted from the
// decrypted message. Address2 may be empty.
type ParsedAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// EnhancedOrderData is the best-effort order metadata extracted from the
// screenshot. Any field may be empty; extraction failure degrades to the
// zero value.
type EnhancedOrderData struct {
	Status     string `json:"status"`
	PaidOn     string `json:"paid_on"`
	Customer   string `json:"customer"`
	Listing    string `json:"listing"`
	Quantity   string `json:"quantity"`
	Shipping   string `json:"shipping"`
	OrderTotal string `json:"order_total"`
}

// IsEmpty reports whether no field carries a value.
func (e EnhancedOrderData) IsEmpty() bool {
	return e == EnhancedOrderData{}
}

// CustomerData is the JSON document stored in Order.CustomerData.
type CustomerData struct {
	ParsedAddress     ParsedAddress     `json:"parsed_address"`
	EnhancedOrderData EnhancedOrderData `json:"enhanced_order_data"`
	LastUpdated       string            `json:"last_updated,omitempty"`
	MergedFrom        string            `json:"merged_from,omitempty"`
}

// TrackingNumber is one imported carrier tracking number. Consumed at most
// once by the CSV exporter, oldest unused first.
type TrackingNumber struct {
	ID             string    `firestore:"-" json:"id"`
	Name           string    `firestore:"name" json:"name"`
	TrackingNumber string    `firestore:"trackingNumber" json:"tracking_number"`
	CreatedAt      time.Time `firestore:"createdAt,serverTimestamp" json:"created_at"`
	LinkedOrderID  string    `firestore:"linkedOrderId" json:"linked_order_id,omitempty"`
	IsUsed         bool      `firestore:"isUsed" json:"is_used"`
}

// ActionLogEntry is one append-only audit-trail record.
type ActionLogEntry struct {
	Action     string    `firestore:"action" json:"action"`
	Timestamp  time.Time `firestore:"timestamp,serverTimestamp" json:"timestamp"`
	StatusCode int       `firestore:"statusCode" json:"status_code"`
	Message    string    `firestore:"message" json:"message"`
}
