package main

import (
	"context"
	"encoding/json"
	"errors"
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
	visionInstance *services.VisionService
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	_ = godotenv.Load()

	functions.HTTP("BatchVision", handleBatchVision)
}

// main is required by the Go Functions Framework.
func main() {}

// handleBatchVision is the HTTP handler for synchronous batch page
// extraction. Token verification is delegated to the fronting gateway; the
// function only refuses anonymous calls.
func handleBatchVision(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		visionInstance, initErr = services.NewVertexVisionService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: vision service initialization failed", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, models.BatchVisionResponse{Success: false, Error: "failed to initialize service"})
		return
	}

	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, models.BatchVisionResponse{Success: false, Error: "authentication required"})
		return
	}

	var req models.BatchVisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeJSON(w, http.StatusBadRequest, models.BatchVisionResponse{Success: false, Error: "could not parse JSON request"})
		return
	}

	data, err := visionInstance.Process(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, models.BatchVisionResponse{Success: false, Error: err.Error()})
			return
		}
		slog.Error("Vision batch processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.BatchVisionResponse{Success: false, Error: "processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, models.BatchVisionResponse{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
