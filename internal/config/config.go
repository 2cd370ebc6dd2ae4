package config

import (
	"fmt"
	"os"
)

// ReturnAddress is one warehouse "From" block for shipping labels.
type ReturnAddress struct {
	Name     string
	Address1 string
	Address2 string
	City     string
	State    string
	Zip      string
}

// ServiceSpec is one carrier/service mapping for shipping labels.
// MaxDimensions is "LxWxH" in inches, MaxWeight like "1lbs"; either may be
// empty, in which case the label columns stay empty.
type ServiceSpec struct {
	Carrier       string
	Service       string
	MaxDimensions string
	MaxWeight     string
	PackageType   string
}

// ReturnAddresses are the configured warehouses, selectable via WAREHOUSE.
var ReturnAddresses = map[string]ReturnAddress{
	"warehouse1": {
		Name:     "WKApp Fulfillment Center 1",
		Address1: "123 Main St",
		Address2: "Suite 100",
		City:     "Portland",
		State:    "OR",
		Zip:      "97201",
	},
	"warehouse2": {
		Name:     "WKApp Fulfillment Center 2",
		Address1: "456 Oak Ave",
		City:     "Seattle",
		State:    "WA",
		Zip:      "98101",
	},
	"warehouse3": {
		Name:     "WKApp Fulfillment Center 3",
		Address1: "789 Pine St",
		Address2: "Floor 2",
		City:     "San Francisco",
		State:    "CA",
		Zip:      "94102",
	},
}

// ServiceSpecs are the configured carrier services, selectable via SERVICE_SPEC.
var ServiceSpecs = map[string]ServiceSpec{
	"usps_priority": {
		Carrier:     "USPS",
		Service:     "Priority",
		PackageType: "flatrateenvelope",
	},
	"usps_express": {
		Carrier:     "USPS",
		Service:     "Express",
		PackageType: "flatrateenvelope",
	},
}

// DefaultModel is the completion model used until an operator switches it.
const DefaultModel = "gemini-1.5-flash"

// Config holds all environment-driven settings for the server.
type Config struct {
	ProjectID           string
	VertexAIRegion      string
	ScreenshotBucket    string
	OrdersCollection    string
	ActionLogCollection string
	TrackingCollection  string

	PGPPrivateKeyPath string
	PGPPassphrase     string

	Port              string
	EventSinkURL      string
	SummaryServiceURL string

	Warehouse ReturnAddress
	Service   ServiceSpec
}

// Load reads and validates the server configuration from the environment.
func Load() (*Config, error) {
	projectID := GetEnv("GOOGLE_CLOUD_PROJECT_ID", GetEnv("GCP_PROJECT", ""))
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID environment variable must be set")
	}
	screenshotBucket := GetEnv("SCREENSHOT_BUCKET", "")
	if screenshotBucket == "" {
		return nil, fmt.Errorf("SCREENSHOT_BUCKET must be set")
	}
	keyPath := GetEnv("PGP_PRIVATE_KEY_FILE", "")
	if keyPath == "" {
		return nil, fmt.Errorf("PGP_PRIVATE_KEY_FILE must be set")
	}

	warehouse, ok := ReturnAddresses[GetEnv("WAREHOUSE", "warehouse1")]
	if !ok {
		return nil, fmt.Errorf("unknown WAREHOUSE %q", os.Getenv("WAREHOUSE"))
	}
	service, ok := ServiceSpecs[GetEnv("SERVICE_SPEC", "usps_priority")]
	if !ok {
		return nil, fmt.Errorf("unknown SERVICE_SPEC %q", os.Getenv("SERVICE_SPEC"))
	}

	return &Config{
		ProjectID:           projectID,
		VertexAIRegion:      GetEnv("VERTEX_AI_REGION", "us-central1"),
		ScreenshotBucket:    screenshotBucket,
		OrdersCollection:    GetEnv("ORDERS_COLLECTION", "orders"),
		ActionLogCollection: GetEnv("ACTION_LOG_COLLECTION", "action_log"),
		TrackingCollection:  GetEnv("TRACKING_COLLECTION", "tracking_numbers"),
		PGPPrivateKeyPath:   keyPath,
		PGPPassphrase:       GetEnv("PGP_PASSPHRASE", ""),
		Port:                GetEnv("PORT", "6969"),
		EventSinkURL:        GetEnv("EVENT_SINK_URL", ""),
		SummaryServiceURL:   GetEnv("SUMMARY_SERVICE_URL", ""),
		Warehouse:           warehouse,
		Service:             service,
	}, nil
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
