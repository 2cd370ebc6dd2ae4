package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ScreenshotStore saves an order's screenshot blob and returns the path
// recorded on the Order row.
type ScreenshotStore interface {
	Save(ctx context.Context, orderID string, png []byte) (string, error)
}

// GCSScreenshotStore writes screenshots to a Cloud Storage bucket, one PNG
// object per order.
type GCSScreenshotStore struct {
	client *storage.Client
	bucket string
}

func NewGCSScreenshotStore(client *storage.Client, bucket string) *GCSScreenshotStore {
	return &GCSScreenshotStore{client: client, bucket: bucket}
}

// Save writes the screenshot only if the object doesn't already exist. An
// order ID is minted once per submission, so an existing object means a
// replayed request; reusing it keeps the save idempotent.
func (s *GCSScreenshotStore) Save(ctx context.Context, orderID string, png []byte) (string, error) {
	objectName := fmt.Sprintf("screenshots/%s.png", orderID)
	bucket := s.client.Bucket(s.bucket)

	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "image/png"

	if _, err := io.Copy(writer, bytes.NewReader(png)); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Screenshot object already exists, reusing.", "object", objectName)
			return s.gsPath(objectName), nil
		}
		return "", fmt.Errorf("failed to write screenshot to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Screenshot object already exists, reusing.", "object", objectName)
			return s.gsPath(objectName), nil
		}
		return "", fmt.Errorf("failed to finalize screenshot write: %w", err)
	}
	return s.gsPath(objectName), nil
}

func (s *GCSScreenshotStore) gsPath(objectName string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName)
}
