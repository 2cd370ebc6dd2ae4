package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captnocap/copy-pasta/internal/events"
	"github.com/captnocap/copy-pasta/internal/models"
)

var testAddress = models.ParsedAddress{
	Name: "Jane Doe", Address1: "123 Main St", City: "Portland", State: "OR", Zip: "97201",
}

func validSubmission() *models.OrderSubmission {
	return &models.OrderSubmission{
		PGPMessage:    "-----BEGIN PGP MESSAGE-----\n...\n-----END PGP MESSAGE-----",
		ScreenshotB64: base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		Timestamp:     1700000000,
	}
}

type intakeHarness struct {
	intake     *Intake
	store      *fakeStore
	extractor  *fakeExtractor
	decryptor  *fakeDecryptor
	publisher  *capturePublisher
	screenshot *fakeScreenshots
}

func newIntakeHarness() *intakeHarness {
	h := &intakeHarness{
		store:      newFakeStore(),
		decryptor:  &fakeDecryptor{plaintext: "Jane Doe\n123 Main St\nPortland, OR 97201"},
		publisher:  &capturePublisher{},
		screenshot: newFakeScreenshots(),
		extractor: &fakeExtractor{
			addr:     &testAddress,
			enhanced: models.EnhancedOrderData{Listing: "Widget", Quantity: "2", OrderTotal: "$20"},
		},
	}
	h.intake = NewIntake(h.decryptor, h.extractor, h.screenshot, h.store, h.publisher, NewModelHolder("gemini-1.5-flash"))
	return h
}

// setClock pins intake time so order IDs are deterministic per submission.
func (h *intakeHarness) setClock(t time.Time) {
	h.intake.clock = func() time.Time { return t }
}

func TestIntakeInsertsNewOrder(t *testing.T) {
	h := newIntakeHarness()
	h.setClock(time.Unix(1700000100, 0))

	result, err := h.intake.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "ORD-1700000100", result.OrderID)

	order, ok := h.store.orders["ORD-1700000100"]
	require.True(t, ok, "order row should exist")
	assert.Equal(t, models.StatusProcessed, order.Status)
	assert.Equal(t, "gemini-1.5-flash", order.ModelUsed)
	assert.Equal(t, "gs://test-bucket/screenshots/ORD-1700000100.png", order.ScreenshotPath)
	assert.False(t, order.Exported)

	var cd models.CustomerData
	require.NoError(t, json.Unmarshal([]byte(order.CustomerData), &cd))
	assert.Equal(t, testAddress, cd.ParsedAddress)
	assert.Equal(t, "Widget", cd.EnhancedOrderData.Listing)

	processed := h.publisher.named(events.EventOrderProcessed)
	require.Len(t, processed, 1)
	payload := processed[0].payload.(map[string]any)
	assert.Equal(t, false, payload["was_duplicate"])
}

func TestIntakeMergesDuplicateAddress(t *testing.T) {
	h := newIntakeHarness()

	h.setClock(time.Unix(1700000100, 0))
	_, err := h.intake.Process(context.Background(), validSubmission())
	require.NoError(t, err)

	// Same address, later submission with complementary data.
	h.extractor.enhanced = models.EnhancedOrderData{Listing: "", OrderTotal: "$25", Shipping: "Priority"}
	h.setClock(time.Unix(1700000200, 0))
	result, err := h.intake.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)

	require.Len(t, h.store.orders, 1, "duplicate submissions must merge, never duplicate")

	order := h.store.orders["ORD-1700000100"]
	var cd models.CustomerData
	require.NoError(t, json.Unmarshal([]byte(order.CustomerData), &cd))
	assert.Equal(t, "Widget", cd.EnhancedOrderData.Listing, "empty incoming value must not clobber")
	assert.Equal(t, "$25", cd.EnhancedOrderData.OrderTotal, "non-empty incoming value wins")
	assert.Equal(t, "Priority", cd.EnhancedOrderData.Shipping)
	assert.Equal(t, "ORD-1700000200", cd.MergedFrom)
	assert.NotEmpty(t, cd.LastUpdated)

	processed := h.publisher.named(events.EventOrderProcessed)
	require.Len(t, processed, 2)
	payload := processed[1].payload.(map[string]any)
	assert.Equal(t, true, payload["was_duplicate"])
	assert.Equal(t, "ORD-1700000100", payload["order_id"])
	assert.Equal(t, "ORD-1700000200", payload["original_order_id"])
}

func TestIntakeOutsideWindowInsertsNewOrder(t *testing.T) {
	h := newIntakeHarness()

	// Seed an order processed 31 days ago with the same address.
	cd, _ := json.Marshal(models.CustomerData{ParsedAddress: testAddress})
	h.store.orders["ORD-1"] = &models.Order{
		ID:           "ORD-1",
		Status:       models.StatusProcessed,
		CustomerData: string(cd),
		ProcessedAt:  time.Now().Add(-31 * 24 * time.Hour),
	}

	h.setClock(time.Unix(1700000300, 0))
	_, err := h.intake.Process(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Len(t, h.store.orders, 2, "orders outside the 30-day window never merge")
}

func TestIntakeVisionFailureIsNonFatal(t *testing.T) {
	h := newIntakeHarness()
	h.extractor.visionErr = context.DeadlineExceeded
	h.setClock(time.Unix(1700000400, 0))

	result, err := h.intake.Process(context.Background(), validSubmission())
	require.NoError(t, err, "vision failure must never block persistence")
	assert.Equal(t, "success", result.Status)

	order := h.store.orders["ORD-1700000400"]
	require.NotNil(t, order)
	var cd models.CustomerData
	require.NoError(t, json.Unmarshal([]byte(order.CustomerData), &cd))
	assert.True(t, cd.EnhancedOrderData.IsEmpty(), "failed enrichment degrades to empty data")
}

func TestIntakeDecryptFailureAbortsWithoutRow(t *testing.T) {
	h := newIntakeHarness()
	h.decryptor.err = assert.AnError
	h.setClock(time.Unix(1700000500, 0))

	_, err := h.intake.Process(context.Background(), validSubmission())
	require.ErrorIs(t, err, ErrDecryption)

	assert.Empty(t, h.store.orders, "no partial order may be persisted")
	require.Len(t, h.store.logs, 1)
	assert.Equal(t, 500, h.store.logs[0].StatusCode)
	assert.Equal(t, "Order ORD-1700000500 failed", h.store.logs[0].Action)
	assert.Len(t, h.publisher.named(events.EventOrderError), 1)
}

func TestIntakeAddressFailureAbortsWithoutRow(t *testing.T) {
	h := newIntakeHarness()
	h.extractor.addrErr = assert.AnError
	h.setClock(time.Unix(1700000600, 0))

	_, err := h.intake.Process(context.Background(), validSubmission())
	require.Error(t, err)
	assert.Empty(t, h.store.orders)
	assert.Len(t, h.publisher.named(events.EventOrderError), 1)
}

func TestIntakeValidation(t *testing.T) {
	tests := []struct {
		name string
		sub  *models.OrderSubmission
	}{
		{"missing pgp message", &models.OrderSubmission{ScreenshotB64: "aGk="}},
		{"missing screenshot", &models.OrderSubmission{PGPMessage: "msg"}},
		{"bad base64", &models.OrderSubmission{PGPMessage: "msg", ScreenshotB64: "%%%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newIntakeHarness()
			_, err := h.intake.Process(context.Background(), tt.sub)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, h.store.orders)
		})
	}
}

func TestIntakePublishesProgressSteps(t *testing.T) {
	h := newIntakeHarness()
	h.setClock(time.Unix(1700000700, 0))

	_, err := h.intake.Process(context.Background(), validSubmission())
	require.NoError(t, err)

	var steps []string
	for _, e := range h.publisher.named(events.EventOrderStatus) {
		steps = append(steps, e.payload.(map[string]any)["step"].(string))
	}
	assert.Equal(t, []string{
		"received", "screenshot_saved", "decrypted", "address_parsed",
		"vision_extracted", "duplicate_check", "persisted",
	}, steps)
}
