package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/store"
)

// DuplicateWindow bounds how far back the duplicate scan looks.
const DuplicateWindow = 30 * 24 * time.Hour

// addressKey is the normalized identity of a shipping destination. Two orders
// with equal keys within the window are the same logical order.
type addressKey struct {
	name     string
	address1 string
	address2 string
	city     string
	state    string
	zip      string
}

func normalizeAddress(a models.ParsedAddress) addressKey {
	return addressKey{
		name:     strings.ToLower(strings.TrimSpace(a.Name)),
		address1: strings.ToLower(strings.TrimSpace(a.Address1)),
		address2: strings.ToLower(strings.TrimSpace(a.Address2)),
		city:     strings.ToLower(strings.TrimSpace(a.City)),
		state:    strings.ToUpper(strings.TrimSpace(a.State)),
		zip:      strings.TrimSpace(a.Zip),
	}
}

// FindDuplicate scans recent processed orders (expected most-recent-first)
// for one shipping to the same normalized address and returns its ID, or ""
// when none matches. Rows with malformed customer data are skipped. The scan
// is linear; volume is a few hundred orders per window.
func FindDuplicate(records []store.OrderRecord, candidate models.ParsedAddress) string {
	key := normalizeAddress(candidate)
	for _, rec := range records {
		var cd models.CustomerData
		if err := json.Unmarshal([]byte(rec.CustomerData), &cd); err != nil {
			continue
		}
		if normalizeAddress(cd.ParsedAddress) == key {
			return rec.ID
		}
	}
	return ""
}

// MergeEnhanced overlays non-empty incoming fields onto existing data.
// Empty or whitespace-only incoming values never overwrite existing ones, so
// re-merging the same data is idempotent.
func MergeEnhanced(existing, incoming models.EnhancedOrderData) models.EnhancedOrderData {
	merged := existing
	overlay := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	overlay(&merged.Status, incoming.Status)
	overlay(&merged.PaidOn, incoming.PaidOn)
	overlay(&merged.Customer, incoming.Customer)
	overlay(&merged.Listing, incoming.Listing)
	overlay(&merged.Quantity, incoming.Quantity)
	overlay(&merged.Shipping, incoming.Shipping)
	overlay(&merged.OrderTotal, incoming.OrderTotal)
	return merged
}
