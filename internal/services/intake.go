package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/captnocap/copy-pasta/internal/events"
	"github.com/captnocap/copy-pasta/internal/gcp"
	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/pgp"
	"github.com/captnocap/copy-pasta/internal/store"
)

// Intake runs one order submission through the pipeline:
// received -> screenshot_saved -> decrypted -> address_parsed ->
// vision_extracted (optional) -> duplicate_check -> persisted.
// Any fatal stage failure is terminal: it is audit-logged and reported to the
// caller, and no order row is written.
type Intake struct {
	decryptor   pgp.Decryptor
	extractor   Extractor
	screenshots gcp.ScreenshotStore
	store       store.Store
	publisher   events.Publisher
	models      *ModelHolder
	clock       func() time.Time
}

func NewIntake(decryptor pgp.Decryptor, extractor Extractor, screenshots gcp.ScreenshotStore, s store.Store, publisher events.Publisher, models *ModelHolder) *Intake {
	return &Intake{
		decryptor:   decryptor,
		extractor:   extractor,
		screenshots: screenshots,
		store:       s,
		publisher:   publisher,
		models:      models,
		clock:       time.Now,
	}
}

// Process handles one submission end to end and returns the caller-facing
// outcome. The returned error carries one of the sentinel categories from
// errors.go.
func (f *Intake) Process(ctx context.Context, sub *models.OrderSubmission) (*models.OrderResult, error) {
	now := f.clock()
	orderID := fmt.Sprintf("ORD-%d", now.Unix())
	logCtx := slog.With("orderId", orderID)

	screenshot, err := f.validate(sub)
	if err != nil {
		return nil, f.fail(ctx, logCtx, orderID, err)
	}

	f.publishStatus(orderID, "received", "Order received, processing...")

	f.publishStatus(orderID, "screenshot_saved", "Saving screenshot...")
	screenshotPath, err := f.screenshots.Save(ctx, orderID, screenshot)
	if err != nil {
		return nil, f.fail(ctx, logCtx, orderID, fmt.Errorf("screenshot save failed: %w", err))
	}

	f.publishStatus(orderID, "decrypted", "Decrypting PGP message...")
	plaintext, err := f.decryptor.Decrypt(sub.PGPMessage)
	if err != nil {
		return nil, f.fail(ctx, logCtx, orderID, fmt.Errorf("%w: %v", ErrDecryption, err))
	}

	// The active model is read exactly once per submission; an operator
	// switch during this intake applies to the next one.
	modelName := f.models.Get()

	f.publishStatus(orderID, "address_parsed", "Parsing shipping address...")
	addr, err := f.extractor.ParseAddress(ctx, plaintext, modelName)
	if err != nil {
		return nil, f.fail(ctx, logCtx, orderID, fmt.Errorf("address parsing failed: %w", err))
	}

	f.publishStatus(orderID, "vision_extracted", "Extracting order data from screenshot...")
	enhanced, err := f.extractor.ExtractOrderData(ctx, screenshot, modelName)
	if err != nil {
		// Enrichment only. The address is the deliverable; continue with an
		// empty enhancement.
		logCtx.Warn("Vision extraction failed, continuing without enhancement.", "error", err)
		enhanced = models.EnhancedOrderData{}
	}

	f.publishStatus(orderID, "duplicate_check", "Checking for duplicate orders...")
	// Two near-simultaneous submissions for the same address can both pass
	// this check and insert two rows; accepted at this volume.
	recent, err := f.store.ListRecentProcessed(ctx, DuplicateWindow)
	if err != nil {
		return nil, f.fail(ctx, logCtx, orderID, fmt.Errorf("%w: duplicate scan: %v", ErrPersistence, err))
	}
	duplicateID := FindDuplicate(recent, *addr)

	finalID := orderID
	if duplicateID != "" {
		f.publishStatus(orderID, "persisted", fmt.Sprintf("Merging with existing order %s...", duplicateID))
		if err := f.merge(ctx, duplicateID, orderID, enhanced, now); err != nil {
			return nil, f.fail(ctx, logCtx, orderID, err)
		}
		finalID = duplicateID
		logCtx.Info("Order merged into existing order.", "existingOrderId", duplicateID)
	} else {
		f.publishStatus(orderID, "persisted", "Storing new order...")
		if err := f.insert(ctx, orderID, sub, plaintext, screenshotPath, modelName, now, addr, enhanced); err != nil {
			return nil, f.fail(ctx, logCtx, orderID, err)
		}
		logCtx.Info("New order processed and stored.", "model", modelName)
	}

	f.publisher.Publish(events.EventOrderProcessed, map[string]any{
		"order_id":            finalID,
		"original_order_id":   orderID,
		"timestamp":           now.Format(time.RFC3339),
		"parsed_address":      addr,
		"enhanced_order_data": enhanced,
		"model_used":          modelName,
		"was_duplicate":       duplicateID != "",
	})

	return &models.OrderResult{
		Status:  "success",
		OrderID: orderID,
		Message: "Order processed successfully",
	}, nil
}

func (f *Intake) validate(sub *models.OrderSubmission) ([]byte, error) {
	if sub == nil || sub.PGPMessage == "" {
		return nil, fmt.Errorf("%w: missing pgp_message", ErrValidation)
	}
	if sub.ScreenshotB64 == "" {
		return nil, fmt.Errorf("%w: missing screenshot_b64", ErrValidation)
	}
	screenshot, err := base64.StdEncoding.DecodeString(sub.ScreenshotB64)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot_b64 is not valid base64: %v", ErrValidation, err)
	}
	return screenshot, nil
}

func (f *Intake) insert(ctx context.Context, orderID string, sub *models.OrderSubmission, plaintext, screenshotPath, modelName string, now time.Time, addr *models.ParsedAddress, enhanced models.EnhancedOrderData) error {
	data, err := json.Marshal(models.CustomerData{
		ParsedAddress:     *addr,
		EnhancedOrderData: enhanced,
	})
	if err != nil {
		return fmt.Errorf("%w: encode customer data: %v", ErrPersistence, err)
	}

	timestamp := sub.Timestamp
	if timestamp == 0 {
		timestamp = now.Unix()
	}
	order := &models.Order{
		ID:             orderID,
		PGPMessage:     sub.PGPMessage,
		PGPDecrypted:   plaintext,
		ScreenshotPath: screenshotPath,
		Timestamp:      timestamp,
		Status:         models.StatusProcessed,
		ModelUsed:      modelName,
		CustomerData:   string(data),
	}
	entry := &models.ActionLogEntry{
		Action:     fmt.Sprintf("Order %s processed", orderID),
		StatusCode: 200,
		Message:    "New order processed and stored",
	}
	if err := f.store.InsertOrder(ctx, order, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (f *Intake) merge(ctx context.Context, existingID, newOrderID string, enhanced models.EnhancedOrderData, now time.Time) error {
	raw, err := f.store.GetCustomerData(ctx, existingID)
	if err != nil {
		return fmt.Errorf("%w: load existing order %s: %v", ErrPersistence, existingID, err)
	}
	var cd models.CustomerData
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &cd); err != nil {
			return fmt.Errorf("%w: existing order %s has malformed customer data: %v", ErrPersistence, existingID, err)
		}
	}

	cd.EnhancedOrderData = MergeEnhanced(cd.EnhancedOrderData, enhanced)
	cd.LastUpdated = now.Format(time.RFC3339)
	cd.MergedFrom = newOrderID

	data, err := json.Marshal(cd)
	if err != nil {
		return fmt.Errorf("%w: encode merged customer data: %v", ErrPersistence, err)
	}
	entry := &models.ActionLogEntry{
		Action:     fmt.Sprintf("Order %s processed", existingID),
		StatusCode: 200,
		Message:    fmt.Sprintf("Order merged with existing %s", existingID),
	}
	if err := f.store.UpdateCustomerData(ctx, existingID, string(data), entry); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// fail logs the terminal failure to the audit trail, notifies observers, and
// returns the error for the caller's structured error response.
func (f *Intake) fail(ctx context.Context, logCtx *slog.Logger, orderID string, cause error) error {
	logCtx.Error("Intake failed.", "error", cause)

	entry := &models.ActionLogEntry{
		Action:     fmt.Sprintf("Order %s failed", orderID),
		StatusCode: 500,
		Message:    cause.Error(),
	}
	if err := f.store.AppendLog(ctx, entry); err != nil {
		logCtx.Error("Failed to write failure audit entry.", "error", err)
	}

	f.publisher.Publish(events.EventOrderError, map[string]any{
		"order_id":  orderID,
		"error":     cause.Error(),
		"timestamp": f.clock().Format(time.RFC3339),
	})
	return cause
}

func (f *Intake) publishStatus(orderID, step, message string) {
	f.publisher.Publish(events.EventOrderStatus, map[string]any{
		"order_id": orderID,
		"step":     step,
		"message":  message,
	})
}
