package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/store"
)

func record(id, customerData string, age time.Duration) store.OrderRecord {
	return store.OrderRecord{
		ID:           id,
		CustomerData: customerData,
		ProcessedAt:  time.Now().Add(-age),
	}
}

func addressJSON(name, address1, address2, city, state, zip string) string {
	return `{"parsed_address":{"name":"` + name + `","address1":"` + address1 +
		`","address2":"` + address2 + `","city":"` + city + `","state":"` + state +
		`","zip":"` + zip + `"},"enhanced_order_data":{}}`
}

func TestFindDuplicate(t *testing.T) {
	candidate := models.ParsedAddress{
		Name: "Jane Doe", Address1: "123 Main St", City: "Portland", State: "or", Zip: "97201",
	}

	tests := []struct {
		name    string
		records []store.OrderRecord
		want    string
	}{
		{
			name: "exact match after normalization",
			records: []store.OrderRecord{
				record("ORD-1", addressJSON("JANE DOE", "123 main st", "", "portland", "OR", "97201"), time.Hour),
			},
			want: "ORD-1",
		},
		{
			name: "differing zip never matches",
			records: []store.OrderRecord{
				record("ORD-1", addressJSON("Jane Doe", "123 Main St", "", "Portland", "OR", "97202"), time.Hour),
			},
			want: "",
		},
		{
			name: "differing address2 never matches",
			records: []store.OrderRecord{
				record("ORD-1", addressJSON("Jane Doe", "123 Main St", "Apt 4", "Portland", "OR", "97201"), time.Hour),
			},
			want: "",
		},
		{
			name: "malformed rows are skipped",
			records: []store.OrderRecord{
				record("ORD-1", `{not json`, time.Hour),
				record("ORD-2", addressJSON("Jane Doe", "123 Main St", "", "Portland", "OR", "97201"), 2*time.Hour),
			},
			want: "ORD-2",
		},
		{
			name: "first match wins in scan order",
			records: []store.OrderRecord{
				record("ORD-newer", addressJSON("Jane Doe", "123 Main St", "", "Portland", "OR", "97201"), time.Hour),
				record("ORD-older", addressJSON("Jane Doe", "123 Main St", "", "Portland", "OR", "97201"), 48*time.Hour),
			},
			want: "ORD-newer",
		},
		{
			name:    "no records",
			records: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindDuplicate(tt.records, candidate))
		})
	}
}

func TestNormalizeAddressTrimsWhitespace(t *testing.T) {
	a := models.ParsedAddress{Name: "  Jane Doe ", Address1: "123 Main St", City: "Portland", State: " or ", Zip: " 97201 "}
	b := models.ParsedAddress{Name: "jane doe", Address1: "123 MAIN ST", City: "PORTLAND", State: "OR", Zip: "97201"}
	assert.Equal(t, normalizeAddress(a), normalizeAddress(b))
}

func TestMergeEnhancedEmptyNeverClobbers(t *testing.T) {
	existing := models.EnhancedOrderData{Listing: "Widget", OrderTotal: "$10"}
	incoming := models.EnhancedOrderData{Listing: "", OrderTotal: "$20"}

	merged := MergeEnhanced(existing, incoming)
	assert.Equal(t, "Widget", merged.Listing)
	assert.Equal(t, "$20", merged.OrderTotal)
}

func TestMergeEnhancedWhitespaceTreatedAsEmpty(t *testing.T) {
	existing := models.EnhancedOrderData{Customer: "jane@example.com"}
	incoming := models.EnhancedOrderData{Customer: "   "}

	merged := MergeEnhanced(existing, incoming)
	assert.Equal(t, "jane@example.com", merged.Customer)
}

func TestMergeEnhancedIdempotent(t *testing.T) {
	existing := models.EnhancedOrderData{Status: "Paid", Listing: "Widget", Quantity: "2"}
	incoming := models.EnhancedOrderData{Status: "Shipped", OrderTotal: "$15"}

	once := MergeEnhanced(existing, incoming)
	twice := MergeEnhanced(once, incoming)
	assert.Equal(t, once, twice)
}
