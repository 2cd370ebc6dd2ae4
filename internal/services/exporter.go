package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/captnocap/copy-pasta/internal/config"
	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/store"
)

// csvHeader is the fixed 26-column shipping-label schema expected by the
// label provider. Column order matters.
var csvHeader = []string{
	"Carrier", "Service", "Length", "Width", "Height", "Weight(Lbs)", "Weight(Oz)",
	"Package Type", "From Name", "From Address1", "From Address2", "From City",
	"From State/Province", "From Zip/Postal Code", "From Country", "From Phone Number",
	"To Name", "To Address1", "To Address2", "To City", "To State/Province",
	"To Zip/Postal Code", "To Country", "To Phone Number", "Email", "Tracking Number",
}

// Exporter assembles shipping-label CSV batches from stored orders.
type Exporter struct {
	store     store.Store
	warehouse config.ReturnAddress
	service   config.ServiceSpec
}

// ExportSummary reports one export batch's counts.
type ExportSummary struct {
	OrderCount       int `json:"order_count"`
	TrackingAssigned int `json:"tracking_assigned"`
}

func NewExporter(s store.Store, warehouse config.ReturnAddress, service config.ServiceSpec) *Exporter {
	return &Exporter{store: s, warehouse: warehouse, service: service}
}

// Export builds the CSV for every processed, not-yet-exported order, assigns
// tracking numbers, and atomically marks the batch exported. Orders whose
// stored customer data fails to parse are dropped from the CSV but still
// count as selected and get marked exported with the batch. Returns a
// header-only CSV when nothing qualifies.
func (e *Exporter) Export(ctx context.Context) ([]byte, *ExportSummary, error) {
	records, err := e.store.ListExportable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select exportable orders: %w", err)
	}

	pool, err := e.trackingPool(ctx)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	orderIDs := make([]string, 0, len(records))
	var usedTrackingIDs []string

	for _, rec := range records {
		orderIDs = append(orderIDs, rec.ID)

		var cd models.CustomerData
		if err := json.Unmarshal([]byte(rec.CustomerData), &cd); err != nil {
			slog.Warn("Skipping order with malformed customer data.", "orderId", rec.ID, "error", err)
			continue
		}

		trackingNumber := ""
		name := strings.ToLower(strings.TrimSpace(cd.ParsedAddress.Name))
		if tn, ok := pool[name]; ok {
			trackingNumber = tn.TrackingNumber
			usedTrackingIDs = append(usedTrackingIDs, tn.ID)
			// One number per export run; never reuse across two orders.
			delete(pool, name)
		}

		row := e.labelRow(cd.ParsedAddress, emailContent(rec.ID, cd.EnhancedOrderData), trackingNumber)
		if err := w.Write(row); err != nil {
			return nil, nil, fmt.Errorf("failed to write CSV row for %s: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	entry := &models.ActionLogEntry{
		Action:     "Shipping CSV export generated",
		StatusCode: 200,
		Message: fmt.Sprintf("Exported %d orders to shipping CSV, assigned %d tracking numbers",
			len(orderIDs), len(usedTrackingIDs)),
	}
	if err := e.store.FinalizeExport(ctx, orderIDs, usedTrackingIDs, entry); err != nil {
		return nil, nil, err
	}

	return buf.Bytes(), &ExportSummary{
		OrderCount:       len(orderIDs),
		TrackingAssigned: len(usedTrackingIDs),
	}, nil
}

// trackingPool maps normalized customer name to the oldest unused tracking
// number for that name. Built once per export run.
func (e *Exporter) trackingPool(ctx context.Context) (map[string]*models.TrackingNumber, error) {
	unused, err := e.store.ListUnusedTracking(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking numbers: %w", err)
	}
	pool := make(map[string]*models.TrackingNumber, len(unused))
	for _, tn := range unused {
		name := strings.ToLower(strings.TrimSpace(tn.Name))
		if _, exists := pool[name]; !exists {
			pool[name] = tn
		}
	}
	return pool, nil
}

// emailContent builds the Email column: "{quantity}x {listing}" plus the
// order total when an item line exists, falling back to "Order: <id>".
func emailContent(orderID string, data models.EnhancedOrderData) string {
	var item string
	switch {
	case data.Quantity != "" && data.Listing != "":
		item = fmt.Sprintf("%sx %s", data.Quantity, data.Listing)
	case data.Listing != "":
		item = fmt.Sprintf("1x %s", data.Listing)
	}
	if item == "" {
		return fmt.Sprintf("Order: %s", orderID)
	}
	parts := []string{item}
	if data.OrderTotal != "" {
		parts = append(parts, fmt.Sprintf("Total: %s", data.OrderTotal))
	}
	return strings.Join(parts, " | ")
}

func (e *Exporter) labelRow(to models.ParsedAddress, email, trackingNumber string) []string {
	length, width, height := splitDimensions(e.service.MaxDimensions)
	return []string{
		e.service.Carrier,
		e.service.Service,
		length,
		width,
		height,
		strings.TrimSpace(strings.ReplaceAll(e.service.MaxWeight, "lbs", "")),
		"", // Weight(Oz)
		e.service.PackageType,
		e.warehouse.Name,
		e.warehouse.Address1,
		e.warehouse.Address2,
		e.warehouse.City,
		e.warehouse.State,
		e.warehouse.Zip,
		"US",
		"", // From Phone Number
		to.Name,
		to.Address1,
		to.Address2,
		to.City,
		to.State,
		to.Zip,
		"US",
		"", // To Phone Number
		email,
		trackingNumber,
	}
}

// splitDimensions breaks an "LxWxH" spec into its columns; missing parts stay
// empty.
func splitDimensions(dims string) (length, width, height string) {
	if !strings.Contains(dims, "x") {
		return "", "", ""
	}
	parts := strings.Split(dims, "x")
	if len(parts) > 0 {
		length = parts[0]
	}
	if len(parts) > 1 {
		width = parts[1]
	}
	if len(parts) > 2 {
		height = parts[2]
	}
	return length, width, height
}
