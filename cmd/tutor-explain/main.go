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
	tutorInstance *services.TutorFunction
	once          sync.Once
	initErr       error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	_ = godotenv.Load()

	functions.HTTP("TutorExplain", handleTutorExplain)
}

// main is required by the Go Functions Framework.
func main() {}

// handleTutorExplain reviews a student's answer to one question. A valid
// model response missing the required fields yields available=false;
// malformed output is a processing failure.
func handleTutorExplain(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		tutorInstance, initErr = services.NewTutor(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: tutor service initialization failed", "error", initErr)
		writeJSON(w, http.StatusInternalServerError, models.TutorResponseEnvelope{Success: false, Error: "failed to initialize service"})
		return
	}

	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, models.TutorResponseEnvelope{Success: false, Error: "authentication required"})
		return
	}

	var req models.TutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeJSON(w, http.StatusBadRequest, models.TutorResponseEnvelope{Success: false, Error: "could not parse JSON request"})
		return
	}

	resp, err := tutorInstance.Process(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, models.TutorResponseEnvelope{Success: false, Error: err.Error()})
			return
		}
		slog.Error("Tutor processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.TutorResponseEnvelope{Success: false, Error: "processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, models.TutorResponseEnvelope{
		Success:   true,
		Available: resp != nil,
		Data:      resp,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
