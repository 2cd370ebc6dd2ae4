// Package store is the durable record of orders, the audit log, and the
// tracking-number inventory.
package store

import (
	"context"
	"time"

	"github.com/captnocap/copy-pasta/internal/models"
)

// OrderRecord is the slice of an order the duplicate scan and the CSV
// exporter read: the ID, the raw customer-data JSON, and when it was
// processed. CustomerData stays raw text here so callers can skip malformed
// rows individually.
type OrderRecord struct {
	ID           string
	CustomerData string
	ProcessedAt  time.Time
}

// Store is the persistence surface consumed by the services. Writes that the
// design pairs with an audit-log entry take the entry and commit both in one
// transaction.
type Store interface {
	// InsertOrder writes a new order row and its log entry atomically.
	InsertOrder(ctx context.Context, order *models.Order, entry *models.ActionLogEntry) error
	// GetCustomerData returns the raw customer-data JSON for one order.
	GetCustomerData(ctx context.Context, orderID string) (string, error)
	// UpdateCustomerData overwrites an order's customer data and appends the
	// log entry atomically. Fails if the order no longer exists.
	UpdateCustomerData(ctx context.Context, orderID string, data string, entry *models.ActionLogEntry) error

	// ListRecentProcessed returns processed orders with customer data inside
	// the window, most recent first.
	ListRecentProcessed(ctx context.Context, window time.Duration) ([]OrderRecord, error)
	// ListExportable returns processed, not-yet-exported orders with customer
	// data, most recent first.
	ListExportable(ctx context.Context) ([]OrderRecord, error)
	// FinalizeExport marks orders exported and tracking numbers used, and
	// appends the log entry, all in one transaction.
	FinalizeExport(ctx context.Context, orderIDs, trackingIDs []string, entry *models.ActionLogEntry) error
	// ResetExports flips every exported order back to exportable and logs the
	// reset. Returns how many orders were reset.
	ResetExports(ctx context.Context) (int, error)

	ListOrders(ctx context.Context, limit int) ([]*models.Order, error)
	ListActionLog(ctx context.Context, limit int) ([]*models.ActionLogEntry, error)
	AppendLog(ctx context.Context, entry *models.ActionLogEntry) error

	InsertTracking(ctx context.Context, tn *models.TrackingNumber) error
	ListUnusedTracking(ctx context.Context) ([]*models.TrackingNumber, error)
	ListTrackingNumbers(ctx context.Context) ([]*models.TrackingNumber, error)
}
