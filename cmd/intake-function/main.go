package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/captnocap/copy-pasta/internal/config"
	"github.com/captnocap/copy-pasta/internal/events"
	"github.com/captnocap/copy-pasta/internal/gcp"
	"github.com/captnocap/copy-pasta/internal/models"
	"github.com/captnocap/copy-pasta/internal/pgp"
	"github.com/captnocap/copy-pasta/internal/services"
	"github.com/captnocap/copy-pasta/internal/store"
)

// Stateless deployment of the intake endpoint alone. Progress events go to
// the CloudEvents sink (there is no in-process dashboard hub here).

var (
	intakeInstance *services.Intake
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the HTTP function with the framework.
	// "HandleOrderIntake" is the entry point name we'll see in GCP.
	functions.HTTP("HandleOrderIntake", handleOrderIntake)
}

// main is required by the Go Functions Framework.
func main() {}

func newIntake(ctx context.Context) (*services.Intake, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
	if err != nil {
		return nil, err
	}
	decryptor, err := pgp.NewKeyringDecryptor(cfg.PGPPrivateKeyPath, cfg.PGPPassphrase)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.EventSinkURL != "" {
		sink, err := events.NewCloudEventsSink(cfg.EventSinkURL)
		if err != nil {
			return nil, err
		}
		publisher = sink
	}

	st := store.NewFirestoreStore(firestoreClient, cfg.OrdersCollection, cfg.ActionLogCollection, cfg.TrackingCollection)
	return services.NewIntake(
		decryptor,
		services.NewVertexExtractor(vertexClient),
		gcp.NewGCSScreenshotStore(storageClient, cfg.ScreenshotBucket),
		st,
		publisher,
		services.NewModelHolder(config.DefaultModel),
	), nil
}

func handleOrderIntake(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		intakeInstance, initErr = newIntake(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var sub models.OrderSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	result, err := intakeInstance.Process(r.Context(), &sub)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(models.OrderResult{Status: "error", Message: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
