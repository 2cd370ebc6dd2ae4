package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/captnocap/copy-pasta/internal/config"
	"github.com/captnocap/copy-pasta/internal/events"
	"github.com/captnocap/copy-pasta/internal/gcp"
	"github.com/captnocap/copy-pasta/internal/pgp"
	"github.com/captnocap/copy-pasta/internal/server"
	"github.com/captnocap/copy-pasta/internal/services"
	"github.com/captnocap/copy-pasta/internal/store"
)

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("Server exited with error.", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return err
	}
	defer storageClient.Close()

	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
	if err != nil {
		return err
	}
	defer vertexClient.Close()

	decryptor, err := pgp.NewKeyringDecryptor(cfg.PGPPrivateKeyPath, cfg.PGPPassphrase)
	if err != nil {
		return err
	}

	st := store.NewFirestoreStore(firestoreClient, cfg.OrdersCollection, cfg.ActionLogCollection, cfg.TrackingCollection)

	hub := events.NewHub()
	var publisher events.Publisher = hub
	if cfg.EventSinkURL != "" {
		sink, err := events.NewCloudEventsSink(cfg.EventSinkURL)
		if err != nil {
			return err
		}
		publisher = events.Multi{hub, sink}
	}

	modelHolder := services.NewModelHolder(config.DefaultModel)
	intake := services.NewIntake(
		decryptor,
		services.NewVertexExtractor(vertexClient),
		gcp.NewGCSScreenshotStore(storageClient, cfg.ScreenshotBucket),
		st,
		publisher,
		modelHolder,
	)
	exporter := services.NewExporter(st, cfg.Warehouse, cfg.Service)
	tracking := services.NewTrackingImporter(st)
	summary := services.NewSummarySender(cfg.SummaryServiceURL, st)

	srv := server.New(intake, exporter, tracking, summary, st, modelHolder, hub, publisher)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Order processing server starting.", "port", cfg.Port, "project", cfg.ProjectID)

	hubDone := make(chan struct{})
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hub.Run(hubDone)
		return nil
	})
	eg.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		close(hubDone)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
