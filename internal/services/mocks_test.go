package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/store"
)

// fakeStore is an in-memory store.Store used across the service tests.
type fakeStore struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	logs     []*models.ActionLogEntry
	tracking []*models.TrackingNumber
	seq      int

	insertErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]*models.Order{}}
}

func (s *fakeStore) InsertOrder(ctx context.Context, order *models.Order, entry *models.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	stored := *order
	if stored.ProcessedAt.IsZero() {
		stored.ProcessedAt = time.Now()
	}
	s.orders[order.ID] = &stored
	s.appendLogLocked(entry)
	return nil
}

func (s *fakeStore) GetCustomerData(ctx context.Context, orderID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return "", fmt.Errorf("order %s not found", orderID)
	}
	return order.CustomerData, nil
}

func (s *fakeStore) UpdateCustomerData(ctx context.Context, orderID string, data string, entry *models.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	order.CustomerData = data
	s.appendLogLocked(entry)
	return nil
}

func (s *fakeStore) ListRecentProcessed(ctx context.Context, window time.Duration) ([]store.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var records []store.OrderRecord
	for _, order := range s.orders {
		if order.Status != models.StatusProcessed || order.CustomerData == "" {
			continue
		}
		if !order.ProcessedAt.After(cutoff) {
			continue
		}
		records = append(records, store.OrderRecord{
			ID:           order.ID,
			CustomerData: order.CustomerData,
			ProcessedAt:  order.ProcessedAt,
		})
	}
	sortRecordsDesc(records)
	return records, nil
}

func (s *fakeStore) ListExportable(ctx context.Context) ([]store.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []store.OrderRecord
	for _, order := range s.orders {
		if order.Status != models.StatusProcessed || order.CustomerData == "" || order.Exported {
			continue
		}
		records = append(records, store.OrderRecord{
			ID:           order.ID,
			CustomerData: order.CustomerData,
			ProcessedAt:  order.ProcessedAt,
		})
	}
	sortRecordsDesc(records)
	return records, nil
}

func (s *fakeStore) FinalizeExport(ctx context.Context, orderIDs, trackingIDs []string, entry *models.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range orderIDs {
		order, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("order %s not found", id)
		}
		order.Exported = true
	}
	for _, id := range trackingIDs {
		found := false
		for _, tn := range s.tracking {
			if tn.ID == id {
				tn.IsUsed = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("tracking number %s not found", id)
		}
	}
	s.appendLogLocked(entry)
	return nil
}

func (s *fakeStore) ResetExports(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, order := range s.orders {
		if order.Exported {
			order.Exported = false
			count++
		}
	}
	s.appendLogLocked(&models.ActionLogEntry{
		Action:     "Export state reset",
		StatusCode: 200,
		Message:    fmt.Sprintf("Reset %d orders to not exported", count),
	})
	return count, nil
}

func (s *fakeStore) ListOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []*models.Order
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ProcessedAt.After(orders[j].ProcessedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *fakeStore) ListActionLog(ctx context.Context, limit int) ([]*models.ActionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]*models.ActionLogEntry, len(s.logs))
	copy(entries, s.logs)
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *fakeStore) AppendLog(ctx context.Context, entry *models.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLogLocked(entry)
	return nil
}

func (s *fakeStore) appendLogLocked(entry *models.ActionLogEntry) {
	stored := *entry
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	s.logs = append(s.logs, &stored)
}

func (s *fakeStore) InsertTracking(ctx context.Context, tn *models.TrackingNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	stored := *tn
	stored.ID = fmt.Sprintf("tn-%d", s.seq)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Unix(int64(s.seq), 0)
	}
	s.tracking = append(s.tracking, &stored)
	return nil
}

func (s *fakeStore) ListUnusedTracking(ctx context.Context) ([]*models.TrackingNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unused []*models.TrackingNumber
	for _, tn := range s.tracking {
		if !tn.IsUsed {
			unused = append(unused, tn)
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		return unused[i].CreatedAt.Before(unused[j].CreatedAt)
	})
	return unused, nil
}

func (s *fakeStore) ListTrackingNumbers(ctx context.Context) ([]*models.TrackingNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	numbers := make([]*models.TrackingNumber, len(s.tracking))
	copy(numbers, s.tracking)
	return numbers, nil
}

func sortRecordsDesc(records []store.OrderRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
}

// fakeDecryptor returns canned plaintext or a canned error.
type fakeDecryptor struct {
	plaintext string
	err       error
}

func (d *fakeDecryptor) Decrypt(string) (string, error) {
	return d.plaintext, d.err
}

// fakeExtractor returns canned extraction results.
type fakeExtractor struct {
	addr       *models.ParsedAddress
	addrErr    error
	enhanced   models.EnhancedOrderData
	visionErr  error
	seenModels []string
}

func (e *fakeExtractor) ParseAddress(ctx context.Context, text, model string) (*models.ParsedAddress, error) {
	e.seenModels = append(e.seenModels, model)
	if e.addrErr != nil {
		return nil, e.addrErr
	}
	addr := *e.addr
	return &addr, nil
}

func (e *fakeExtractor) ExtractOrderData(ctx context.Context, png []byte, model string) (models.EnhancedOrderData, error) {
	if e.visionErr != nil {
		return models.EnhancedOrderData{}, e.visionErr
	}
	return e.enhanced, nil
}

// fakeScreenshots records saves without touching real storage.
type fakeScreenshots struct {
	err   error
	saved map[string][]byte
}

func newFakeScreenshots() *fakeScreenshots {
	return &fakeScreenshots{saved: map[string][]byte{}}
}

func (s *fakeScreenshots) Save(ctx context.Context, orderID string, png []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved[orderID] = png
	return "gs://test-bucket/screenshots/" + orderID + ".png", nil
}

// capturePublisher records every event for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	name    string
	payload any
}

func (p *capturePublisher) Publish(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{name: event, payload: payload})
}

func (p *capturePublisher) named(event string) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []capturedEvent
	for _, e := range p.events {
		if e.name == event {
			matched = append(matched, e)
		}
	}
	return matched
}
