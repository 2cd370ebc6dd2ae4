package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/store"
)

// TrackingImporter parses operator-pasted tracking blobs and stores the
// numbers for the exporter to consume.
type TrackingImporter struct {
	store store.Store
}

func NewTrackingImporter(s store.Store) *TrackingImporter {
	return &TrackingImporter{store: s}
}

// parseTrackingLine splits one blob line: the last whitespace-delimited token
// is the tracking number, everything before it joins as the customer name.
func parseTrackingLine(line string) (name, trackingNumber string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", "", false
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1], true
}

// Import stores every well-formed line of the blob. Bad lines are reported in
// the result's Errors and do not abort the batch.
func (t *TrackingImporter) Import(ctx context.Context, blob string) (*models.TrackingImportResult, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, fmt.Errorf("%w: no tracking data provided", ErrValidation)
	}

	result := &models.TrackingImportResult{Errors: []string{}}
	for i, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, number, ok := parseTrackingLine(line)
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Line %d: Invalid format - expected 'Name Tracking'", i+1))
			continue
		}
		tn := &models.TrackingNumber{Name: name, TrackingNumber: number}
		if err := t.store.InsertTracking(ctx, tn); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Line %d: Database error - %v", i+1, err))
			continue
		}
		result.StoredCount++
	}

	statusCode := 200
	result.Status = "success"
	if result.StoredCount == 0 {
		statusCode = 400
		result.Status = "warning"
	}
	result.Message = fmt.Sprintf("Stored %d tracking numbers", result.StoredCount)

	entry := &models.ActionLogEntry{
		Action:     "Tracking numbers imported",
		StatusCode: statusCode,
		Message:    fmt.Sprintf("Stored %d tracking numbers, %d errors", result.StoredCount, len(result.Errors)),
	}
	if err := t.store.AppendLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log tracking import: %w", err)
	}
	return result, nil
}
