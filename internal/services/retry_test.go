package services

import (
	"testing"
	"time"

	"github.com/mcalverley/studypipeline/internal/models"
)

func TestRebuildForRetryQuestionsOnlyFailure(t *testing.T) {
	bp := &models.Blueprint{Summary: "Cardiac conduction.", Difficulty: 4}
	s := models.Section{
		FileID:          "file-1",
		Title:           "Cardiac Conduction",
		AIStatus:        models.AIStatusAnalyzed,
		QuestionsStatus: models.QuestionsStatusFailed,
		QuestionsCount:  3,
		ErrorMessage:    "question generation failed",
		TopicTags:       []string{"Cardiology"},
		Blueprint:       bp,
		CreatedAt:       time.Now().Add(-time.Hour),
	}

	fresh := RebuildForRetry(s)

	if fresh.AIStatus != models.AIStatusPending || fresh.QuestionsStatus != models.QuestionsStatusPending {
		t.Fatalf("statuses not reset: %s / %s", fresh.AIStatus, fresh.QuestionsStatus)
	}
	if fresh.QuestionsCount != 0 || fresh.ErrorMessage != "" {
		t.Fatalf("counters not reset: %+v", fresh)
	}
	if fresh.Blueprint == nil || len(fresh.TopicTags) != 1 {
		t.Fatal("questions-only retry must keep analyzed fields")
	}
	if !fresh.CreatedAt.After(s.CreatedAt) {
		t.Fatal("expected a fresh CreatedAt")
	}
}

func TestRebuildForRetryFullAnalysisFailure(t *testing.T) {
	s := models.Section{
		FileID:       "file-1",
		AIStatus:     models.AIStatusFailed,
		ErrorMessage: "model refused",
		TopicTags:    []string{"stale"},
		Blueprint:    &models.Blueprint{Summary: "stale"},
	}

	fresh := RebuildForRetry(s)

	if fresh.Blueprint != nil {
		t.Fatal("full analysis retry must discard the blueprint")
	}
	if len(fresh.TopicTags) != 0 {
		t.Fatalf("full analysis retry must clear topic tags, got %v", fresh.TopicTags)
	}
	if fresh.AIStatus != models.AIStatusPending {
		t.Fatalf("expected PENDING, got %s", fresh.AIStatus)
	}
}

func TestRebuildForRetryKeepsIdentity(t *testing.T) {
	s := models.Section{
		FileID:   "file-9",
		CourseID: "course-2",
		Title:    "Renal Physiology",
		AIStatus: models.AIStatusFailed,
	}
	fresh := RebuildForRetry(s)
	if fresh.FileID != "file-9" || fresh.CourseID != "course-2" || fresh.Title != "Renal Physiology" {
		t.Fatalf("identity fields changed: %+v", fresh)
	}
}
