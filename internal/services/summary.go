package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/store"
)

const summaryTimeout = 30 * time.Second

// SummarySender relays a manual daily-summary request to the external
// summary-bot collaborator.
type SummarySender struct {
	url    string
	client *http.Client
	store  store.Store
}

func NewSummarySender(url string, s store.Store) *SummarySender {
	return &SummarySender{
		url:    url,
		client: &http.Client{Timeout: summaryTimeout},
		store:  s,
	}
}

// Send posts to the summary service and audit-logs the outcome. A non-2xx
// response or transport error is returned to the caller; there is no retry.
func (s *SummarySender) Send(ctx context.Context) error {
	if s.url == "" {
		return fmt.Errorf("no summary service configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err = fmt.Errorf("summary service returned %s", resp.Status)
		}
	}

	if err != nil {
		s.appendLog(ctx, "Manual daily summary failed", 500, err.Error())
		return err
	}
	s.appendLog(ctx, "Manual daily summary sent", 200, "Summary sent via summary bot")
	return nil
}

func (s *SummarySender) appendLog(ctx context.Context, action string, code int, message string) {
	entry := &models.ActionLogEntry{Action: action, StatusCode: code, Message: message}
	// Summary logging is best-effort; the caller already gets the outcome.
	_ = s.store.AppendLog(ctx, entry)
}
