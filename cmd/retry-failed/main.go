package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"

	"github.com/mcalverley/studypipeline/internal/models"
	"github.com/mcalverley/studypipeline/internal/services"
)

var (
	retryInstance *services.RetryFunction
	once          sync.Once
	initErr       error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	_ = godotenv.Load()

	functions.HTTP("RetryFailedSections", handleRetryFailed)
}

// main is required by the Go Functions Framework.
func main() {}

// handleRetryFailed re-queues FAILED sections of one file. The owner id is
// injected by the fronting gateway after token verification.
func handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		retryInstance, initErr = services.NewRetry(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: retry service initialization failed", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, models.RetryResponse{Success: false, Error: "failed to initialize service"})
		return
	}

	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, models.RetryResponse{Success: false, Error: "authentication required"})
		return
	}
	ownerID := r.Header.Get("X-Owner-Id")
	if ownerID == "" {
		writeJSON(w, http.StatusUnauthorized, models.RetryResponse{Success: false, Error: "owner identity missing"})
		return
	}

	var req models.RetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeJSON(w, http.StatusBadRequest, models.RetryResponse{Success: false, Error: "could not parse JSON request"})
		return
	}

	count, err := retryInstance.Process(r.Context(), ownerID, req.FileID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, models.RetryResponse{Success: false, Error: err.Error()})
			return
		}
		slog.Error("Retry processing failed", "error", err, "fileId", req.FileID)
		writeJSON(w, http.StatusInternalServerError, models.RetryResponse{Success: false, Error: "processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, models.RetryResponse{
		Success: true,
		Data: &models.RetryData{
			RetriedCount: count,
			Message:      fmt.Sprintf("%d section(s) re-queued for analysis", count),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
