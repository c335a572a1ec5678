package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/mcalverley/studypipeline/internal/gcp"
	"github.com/mcalverley/studypipeline/internal/models"
)

// RetryConfig holds configuration for the retry-failed service.
type RetryConfig struct {
	ProjectID string
}

// RetryFunction re-enters FAILED sections into the pipeline. Because
// analysis is driven by a create trigger, re-queueing means deleting the
// section document and recreating it rather than mutating in place.
type RetryFunction struct {
	firestoreClient *firestore.Client
	config          RetryConfig
}

// NewRetry creates a new RetryFunction instance.
func NewRetry(ctx context.Context) (*RetryFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &RetryFunction{
		firestoreClient: firestoreClient,
		config:          RetryConfig{ProjectID: projectID},
	}, nil
}

// Process finds every section of the file with a failed analysis or failed
// question generation and re-queues each one. Individual section errors are
// logged and skipped; the batch always reports how many were re-queued.
func (f *RetryFunction) Process(ctx context.Context, ownerID, fileID string) (int, error) {
	if fileID == "" {
		return 0, fmt.Errorf("%w: fileId is required", ErrInvalidArgument)
	}
	logCtx := slog.With("ownerId", ownerID, "fileId", fileID)

	col := gcp.Sections(f.firestoreClient, ownerID)
	failedAnalysis, err := col.
		Where("fileId", "==", fileID).
		Where("aiStatus", "==", models.AIStatusFailed).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query failed sections: %w", err)
	}
	failedQuestions, err := col.
		Where("fileId", "==", fileID).
		Where("questionsStatus", "==", models.QuestionsStatusFailed).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query failed question sections: %w", err)
	}

	// The two queries overlap when a full analysis failure also failed
	// question generation; dedupe by document id.
	byID := make(map[string]*firestore.DocumentSnapshot)
	for _, snap := range append(failedAnalysis, failedQuestions...) {
		byID[snap.Ref.ID] = snap
	}

	retried := 0
	for id, snap := range byID {
		var section models.Section
		if err := snap.DataTo(&section); err != nil {
			logCtx.Error("Skipping undecodable section", "sectionId", id, "error", err)
			continue
		}
		if err := f.requeueSection(ctx, ownerID, snap.Ref, &section); err != nil {
			logCtx.Error("Failed to re-queue section", "sectionId", id, "error", err)
			continue
		}
		retried++
	}

	if retried > 0 {
		// Pull the file back into PROCESSING so READY converges again once
		// the recreated sections finish.
		updates := []firestore.Update{
			{Path: "status", Value: models.FileStatusProcessing},
			{Path: "processingPhase", Value: models.PhaseAnalyzing},
			{Path: "errorMessage", Value: ""},
		}
		if _, err := gcp.Files(f.firestoreClient, ownerID).Doc(fileID).Update(ctx, updates); err != nil {
			logCtx.Error("Failed to reset file status for retry", "error", err)
		}
	}

	logCtx.Info("Retry complete.", "retriedCount", retried, "candidates", len(byID))
	return retried, nil
}

// requeueSection deletes the section's questions and the section itself,
// then recreates the section under a fresh id so the create trigger fires.
func (f *RetryFunction) requeueSection(ctx context.Context, ownerID string, ref *firestore.DocumentRef, section *models.Section) error {
	questionSnaps, err := gcp.Questions(f.firestoreClient, ownerID).
		Where("sectionId", "==", ref.ID).
		Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to list questions: %w", err)
	}

	writes := make([]gcp.BatchWrite, 0, len(questionSnaps)+1)
	for _, snap := range questionSnaps {
		writes = append(writes, gcp.BatchWrite{Ref: snap.Ref})
	}
	writes = append(writes, gcp.BatchWrite{Ref: ref})
	if err := gcp.CommitInShards(ctx, f.firestoreClient, writes); err != nil {
		return fmt.Errorf("failed to delete stale documents: %w", err)
	}

	fresh := RebuildForRetry(*section)
	newRef := gcp.Sections(f.firestoreClient, ownerID).Doc(uuid.NewString())
	if _, err := newRef.Set(ctx, fresh); err != nil {
		return fmt.Errorf("failed to recreate section: %w", err)
	}
	return nil
}

// RebuildForRetry returns a pristine copy of the section ready to re-enter
// the pipeline. A questions-only failure (analysis already succeeded) keeps
// the analyzed fields; a full analysis failure discards blueprint data too.
func RebuildForRetry(s models.Section) models.Section {
	questionsOnly := s.AIStatus == models.AIStatusAnalyzed

	s.AIStatus = models.AIStatusPending
	s.QuestionsStatus = models.QuestionsStatusPending
	s.QuestionsCount = 0
	s.ErrorMessage = ""
	s.CreatedAt = time.Now()
	s.AnalysisStartedAt = time.Time{}

	if !questionsOnly {
		s.TopicTags = []string{}
		s.Blueprint = nil
	}
	return s
}
