package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/captnocap/copy-pasta/internal/models"
)

// FirestoreStore implements Store on three collections: orders (doc ID is the
// order ID), action_log, and tracking_numbers (auto IDs).
type FirestoreStore struct {
	client    *firestore.Client
	ordersCol string
	logCol    string
	trackCol  string
}

func NewFirestoreStore(client *firestore.Client, ordersCol, logCol, trackCol string) *FirestoreStore {
	return &FirestoreStore{
		client:    client,
		ordersCol: ordersCol,
		logCol:    logCol,
		trackCol:  trackCol,
	}
}

func (s *FirestoreStore) orders() *firestore.CollectionRef {
	return s.client.Collection(s.ordersCol)
}

func (s *FirestoreStore) actionLog() *firestore.CollectionRef {
	return s.client.Collection(s.logCol)
}

func (s *FirestoreStore) tracking() *firestore.CollectionRef {
	return s.client.Collection(s.trackCol)
}

func (s *FirestoreStore) InsertOrder(ctx context.Context, order *models.Order, entry *models.ActionLogEntry) error {
	orderRef := s.orders().Doc(order.ID)
	logRef := s.actionLog().NewDoc()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(orderRef, order); err != nil {
			return err
		}
		return tx.Create(logRef, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	return nil
}

func (s *FirestoreStore) GetCustomerData(ctx context.Context, orderID string) (string, error) {
	snap, err := s.orders().Doc(orderID).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	var order models.Order
	if err := snap.DataTo(&order); err != nil {
		return "", fmt.Errorf("failed to decode order %s: %w", orderID, err)
	}
	return order.CustomerData, nil
}

func (s *FirestoreStore) UpdateCustomerData(ctx context.Context, orderID string, data string, entry *models.ActionLogEntry) error {
	orderRef := s.orders().Doc(orderID)
	logRef := s.actionLog().NewDoc()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "customerData", Value: data},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}); err != nil {
			return err
		}
		return tx.Create(logRef, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	return nil
}

func (s *FirestoreStore) ListRecentProcessed(ctx context.Context, window time.Duration) ([]OrderRecord, error) {
	cutoff := time.Now().Add(-window)
	query := s.orders().
		Where("status", "==", models.StatusProcessed).
		Where("processedAt", ">", cutoff).
		OrderBy("processedAt", firestore.Desc)
	return s.collectRecords(ctx, query)
}

func (s *FirestoreStore) ListExportable(ctx context.Context) ([]OrderRecord, error) {
	query := s.orders().
		Where("status", "==", models.StatusProcessed).
		Where("exported", "==", false).
		OrderBy("processedAt", firestore.Desc)
	return s.collectRecords(ctx, query)
}

// collectRecords materializes a query into OrderRecords, dropping rows
// without customer data.
func (s *FirestoreStore) collectRecords(ctx context.Context, query firestore.Query) ([]OrderRecord, error) {
	var records []OrderRecord
	it := query.Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate orders: %w", err)
		}
		var order models.Order
		if err := snap.DataTo(&order); err != nil {
			return nil, fmt.Errorf("failed to decode order %s: %w", snap.Ref.ID, err)
		}
		if order.CustomerData == "" {
			continue
		}
		records = append(records, OrderRecord{
			ID:           snap.Ref.ID,
			CustomerData: order.CustomerData,
			ProcessedAt:  order.ProcessedAt,
		})
	}
	return records, nil
}

func (s *FirestoreStore) FinalizeExport(ctx context.Context, orderIDs, trackingIDs []string, entry *models.ActionLogEntry) error {
	logRef := s.actionLog().NewDoc()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, id := range orderIDs {
			if err := tx.Update(s.orders().Doc(id), []firestore.Update{
				{Path: "exported", Value: true},
			}); err != nil {
				return err
			}
		}
		for _, id := range trackingIDs {
			if err := tx.Update(s.tracking().Doc(id), []firestore.Update{
				{Path: "isUsed", Value: true},
			}); err != nil {
				return err
			}
		}
		return tx.Create(logRef, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to finalize export: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ResetExports(ctx context.Context) (int, error) {
	snaps, err := s.orders().Where("exported", "==", true).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query exported orders: %w", err)
	}

	logRef := s.actionLog().NewDoc()
	entry := &models.ActionLogEntry{
		Action:     "Export state reset",
		StatusCode: 200,
		Message:    fmt.Sprintf("Reset %d orders to not exported", len(snaps)),
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, snap := range snaps {
			if err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "exported", Value: false},
			}); err != nil {
				return err
			}
		}
		return tx.Create(logRef, entry)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset export state: %w", err)
	}
	return len(snaps), nil
}

func (s *FirestoreStore) ListOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	it := s.orders().OrderBy("processedAt", firestore.Desc).Limit(limit).Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate orders: %w", err)
		}
		var order models.Order
		if err := snap.DataTo(&order); err != nil {
			return nil, fmt.Errorf("failed to decode order %s: %w", snap.Ref.ID, err)
		}
		order.ID = snap.Ref.ID
		orders = append(orders, &order)
	}
	return orders, nil
}

func (s *FirestoreStore) ListActionLog(ctx context.Context, limit int) ([]*models.ActionLogEntry, error) {
	var entries []*models.ActionLogEntry
	it := s.actionLog().OrderBy("timestamp", firestore.Desc).Limit(limit).Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate action log: %w", err)
		}
		var entry models.ActionLogEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode log entry %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (s *FirestoreStore) AppendLog(ctx context.Context, entry *models.ActionLogEntry) error {
	if _, _, err := s.actionLog().Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to append action log: %w", err)
	}
	return nil
}

func (s *FirestoreStore) InsertTracking(ctx context.Context, tn *models.TrackingNumber) error {
	if _, _, err := s.tracking().Add(ctx, tn); err != nil {
		return fmt.Errorf("failed to insert tracking number: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListUnusedTracking(ctx context.Context) ([]*models.TrackingNumber, error) {
	query := s.tracking().Where("isUsed", "==", false).OrderBy("createdAt", firestore.Asc)
	return s.collectTracking(ctx, query)
}

func (s *FirestoreStore) ListTrackingNumbers(ctx context.Context) ([]*models.TrackingNumber, error) {
	query := s.tracking().OrderBy("createdAt", firestore.Desc)
	return s.collectTracking(ctx, query)
}

func (s *FirestoreStore) collectTracking(ctx context.Context, query firestore.Query) ([]*models.TrackingNumber, error) {
	var numbers []*models.TrackingNumber
	it := query.Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate tracking numbers: %w", err)
		}
		var tn models.TrackingNumber
		if err := snap.DataTo(&tn); err != nil {
			return nil, fmt.Errorf("failed to decode tracking number %s: %w", snap.Ref.ID, err)
		}
		tn.ID = snap.Ref.ID
		numbers = append(numbers, &tn)
	}
	return numbers, nil
}
