package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/mcalverley/studypipeline/internal/models"
	"github.com/mcalverley/studypipeline/internal/services"
)

var (
	analyzerInstance *services.AnalyzerFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	_ = godotenv.Load()

	// Register the CloudEvent function fired on Section document creation.
	functions.CloudEvent("AnalyzeSection", analyzeSection)
}

// main is required by the Go Functions Framework.
func main() {}

// firestoreEvent is the document-created payload. Only the resource name and
// the aiStatus field matter; the authoritative read happens in the claim.
type firestoreEvent struct {
	Value struct {
		Name   string `json:"name"`
		Fields struct {
			AIStatus struct {
				StringValue string `json:"stringValue"`
			} `json:"aiStatus"`
		} `json:"fields"`
	} `json:"value"`
}

// analyzeSection is the Cloud Function entry point for the section-created
// event.
func analyzeSection(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		analyzerInstance, initErr = services.NewAnalyzer(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event firestoreEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Documents created already past PENDING (e.g. imports) are not work.
	if status := event.Value.Fields.AIStatus.StringValue; status != models.AIStatusPending {
		slog.Info("Ignoring section not pending analysis.", "aiStatus", status)
		return nil
	}

	ownerID, sectionID, ok := parseSectionResource(event.Value.Name)
	if !ok {
		slog.Warn("Ignoring event with unrecognized document path.", "name", event.Value.Name)
		return nil
	}

	return analyzerInstance.Process(ctx, ownerID, sectionID)
}

// parseSectionResource extracts the owner and section ids from a Firestore
// resource name like
// projects/p/databases/(default)/documents/users/{uid}/sections/{sid}.
func parseSectionResource(name string) (ownerID, sectionID string, ok bool) {
	const marker = "/documents/"
	i := strings.Index(name, marker)
	if i < 0 {
		return "", "", false
	}
	parts := strings.Split(name[i+len(marker):], "/")
	if len(parts) != 4 || parts[0] != "users" || parts[2] != "sections" {
		return "", "", false
	}
	return parts[1], parts[3], true
}
