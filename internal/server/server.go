// Package server wires the HTTP API consumed by the clipboard client, the
// dashboard, and operators.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/captnocap/copy-pasta/internal/events"
	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/services"
	"github.com/captnocap/copy-pasta/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	intake    *services.Intake
	exporter  *services.Exporter
	tracking  *services.TrackingImporter
	summary   *services.SummarySender
	store     store.Store
	models    *services.ModelHolder
	hub       *events.Hub
	publisher events.Publisher
	startedAt time.Time
}

func New(intake *services.Intake, exporter *services.Exporter, tracking *services.TrackingImporter, summary *services.SummarySender, s store.Store, modelHolder *services.ModelHolder, hub *events.Hub, publisher events.Publisher) *Server {
	return &Server{
		intake:    intake,
		exporter:  exporter,
		tracking:  tracking,
		summary:   summary,
		store:     s,
		models:    modelHolder,
		hub:       hub,
		publisher: publisher,
		startedAt: time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/order", s.handleOrder)
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/logs", s.handleListLogs)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ping", s.handlePing)
	mux.HandleFunc("GET /api/model", s.handleGetModel)
	mux.HandleFunc("POST /api/model", s.handleSetModel)
	mux.HandleFunc("GET /api/export-csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/reset-exports", s.handleResetExports)
	mux.HandleFunc("POST /api/tracking-numbers", s.handleImportTracking)
	mux.HandleFunc("GET /api/tracking-numbers", s.handleListTracking)
	mux.HandleFunc("POST /api/send-summary", s.handleSendSummary)
	mux.Handle("GET /ws", s.hub)
	return mux
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var sub models.OrderSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, models.OrderResult{
			Status: "error", Message: "could not parse JSON body",
		})
		return
	}

	result, err := s.intake.Process(r.Context(), &sub)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, models.OrderResult{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context(), 100)
	if err != nil {
		slog.Error("Failed to list orders.", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	summaries := make([]models.OrderSummary, 0, len(orders))
	for _, order := range orders {
		summary := models.OrderSummary{
			ID:          order.ID,
			Timestamp:   order.Timestamp,
			ProcessedAt: order.ProcessedAt.Format(time.RFC3339),
			Status:      order.Status,
		}
		if order.CustomerData != "" {
			var cd models.CustomerData
			if err := json.Unmarshal([]byte(order.CustomerData), &cd); err == nil {
				summary.CustomerData = &cd
			}
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListActionLog(r.Context(), 50)
	if err != nil {
		slog.Error("Failed to list action log.", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"server":    "copy-pasta order processing server",
		"version":   "1.0.0",
		"uptime":    int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var ping models.PingRequest
	_ = json.NewDecoder(r.Body).Decode(&ping)
	if ping.ClientID == "" {
		ping.ClientID = "unknown"
	}
	if ping.Platform == "" {
		ping.Platform = "unknown"
	}

	entry := &models.ActionLogEntry{
		Action:     "Client ping received",
		StatusCode: 200,
		Message:    fmt.Sprintf("Client %s from %s", ping.ClientID, r.RemoteAddr),
	}
	if err := s.store.AppendLog(r.Context(), entry); err != nil {
		slog.Warn("Failed to log client ping.", "error", err)
	}

	s.publisher.Publish(events.EventClientConnected, map[string]any{
		"client_id":       ping.ClientID,
		"client_platform": ping.Platform,
		"timestamp":       time.Now().Format(time.RFC3339),
		"ip_address":      r.RemoteAddr,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "pong",
		"server":    "copy-pasta order processing server",
		"timestamp": time.Now().Format(time.RFC3339),
		"message":   fmt.Sprintf("Hello %s! Connection verified.", ping.ClientID),
	})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"current_model": s.models.Get(),
		"default_model": s.models.Default(),
	})
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req models.ModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	model := s.models.Set(req.Model)
	s.publisher.Publish(events.EventModelChanged, map[string]any{
		"new_model": model,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"model":   model,
		"message": fmt.Sprintf("Model changed to %s", model),
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	payload, summary, err := s.exporter.Export(r.Context())
	if err != nil {
		slog.Error("CSV export failed.", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("CSV export failed: %v", err),
		})
		return
	}
	slog.Info("Shipping CSV exported.", "orders", summary.OrderCount, "trackingAssigned", summary.TrackingAssigned)

	filename := fmt.Sprintf("shipping_labels_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Write(payload)
}

func (s *Server) handleResetExports(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.ResetExports(r.Context())
	if err != nil {
		slog.Error("Export reset failed.", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("Reset failed: %v", err),
		})
		return
	}

	s.publisher.Publish(events.EventExportReset, map[string]any{
		"message":   fmt.Sprintf("Export state reset - %d orders available for export", count),
		"timestamp": time.Now().Format(time.RFC3339),
		"count":     count,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     "Export state reset successfully",
		"reset_count": count,
	})
}

func (s *Server) handleImportTracking(w http.ResponseWriter, r *http.Request) {
	var req models.TrackingImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	result, err := s.tracking.Import(r.Context(), req.TrackingBlob)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"status": "error", "message": err.Error()})
		return
	}

	s.publisher.Publish(events.EventTrackingImported, map[string]any{
		"message":   fmt.Sprintf("Imported %d tracking numbers", result.StoredCount),
		"timestamp": time.Now().Format(time.RFC3339),
		"count":     result.StoredCount,
		"errors":    result.Errors,
	})

	status := http.StatusOK
	if result.StoredCount == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (s *Server) handleListTracking(w http.ResponseWriter, r *http.Request) {
	numbers, err := s.store.ListTrackingNumbers(r.Context())
	if err != nil {
		slog.Error("Failed to list tracking numbers.", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("Failed to fetch tracking numbers: %v", err),
		})
		return
	}
	if numbers == nil {
		numbers = []*models.TrackingNumber{}
	}
	writeJSON(w, http.StatusOK, numbers)
}

func (s *Server) handleSendSummary(w http.ResponseWriter, r *http.Request) {
	if err := s.summary.Send(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("Failed to send summary: %v", err),
		})
		return
	}

	s.publisher.Publish(events.EventSummarySent, map[string]any{
		"message":   "Daily summary sent successfully!",
		"timestamp": time.Now().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Daily summary sent successfully!",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
