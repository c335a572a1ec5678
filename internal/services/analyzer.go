package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcalverley/studypipeline/internal/gcp"
	"github.com/mcalverley/studypipeline/internal/models"
	"github.com/mcalverley/studypipeline/internal/normalize"
)

// DefaultQuestionTarget is the number of questions generated per section.
const DefaultQuestionTarget = 8

// AnalyzerConfig holds configuration for the section-analyzer service.
type AnalyzerConfig struct {
	ProjectID      string
	VertexAIRegion string
	ContentBucket  string
	QuestionTarget int
}

// AnalyzerFunction drives one Section through blueprint analysis and
// question generation.
type AnalyzerFunction struct {
	firestoreClient *firestore.Client
	storageClient   *storage.Client
	vertexClient    *gcp.VertexClient
	config          AnalyzerConfig
}

// NewAnalyzer creates a new AnalyzerFunction instance.
func NewAnalyzer(ctx context.Context) (*AnalyzerFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := AnalyzerConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ContentBucket:  gcp.GetEnv("CONTENT_BUCKET", ""),
		QuestionTarget: DefaultQuestionTarget,
	}
	if config.ContentBucket == "" {
		return nil, fmt.Errorf("CONTENT_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, gcp.VertexConfig{
		ProjectID: config.ProjectID,
		Region:    config.VertexAIRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	return &AnalyzerFunction{
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		vertexClient:    vertexClient,
		config:          config,
	}, nil
}

// Process analyzes one newly created Section. Failures are recorded on the
// document and end with a sibling-completion check; only infrastructure
// errors before the claim propagate to the trigger for redelivery.
func (f *AnalyzerFunction) Process(ctx context.Context, ownerID, sectionID string) error {
	logCtx := slog.With("ownerId", ownerID, "sectionId", sectionID)

	ref := gcp.Sections(f.firestoreClient, ownerID).Doc(sectionID)
	section, err := f.claimSection(ctx, ref)
	if errors.Is(err, ErrClaimLost) {
		logCtx.Info("Section already claimed or finished, exiting cleanly.")
		return nil
	}
	if err != nil {
		logCtx.Error("Failed to claim section", "error", err)
		return err
	}
	logCtx = logCtx.With("fileId", section.FileID)
	logCtx.Info("Claimed section for analysis.")

	if section.CourseID == "" {
		// Missing required metadata is fatal for the whole file.
		f.failFile(ctx, logCtx, ownerID, section.FileID, "File is missing its course assignment.")
		f.failSection(ctx, logCtx, ref, fmt.Errorf("section %s has no courseId", sectionID))
		f.checkSiblings(ctx, logCtx, ownerID, section.FileID)
		return nil
	}

	text, file, err := f.fetchInputs(ctx, ownerID, section)
	if err != nil {
		f.failSection(ctx, logCtx, ref, err)
		f.checkSiblings(ctx, logCtx, ownerID, section.FileID)
		return nil
	}

	bp, err := f.generateBlueprint(ctx, section, text)
	if err != nil {
		logCtx.Error("Blueprint generation failed", "error", err)
		f.failSection(ctx, logCtx, ref, err)
		f.checkSiblings(ctx, logCtx, ownerID, section.FileID)
		return nil
	}

	title := normalize.DeriveTitle(section.Title, bp)
	updates := []firestore.Update{
		{Path: "aiStatus", Value: models.AIStatusAnalyzed},
		{Path: "questionsStatus", Value: models.QuestionsStatusPending},
		{Path: "blueprint", Value: bp},
		{Path: "title", Value: title},
		{Path: "difficulty", Value: bp.Difficulty},
		{Path: "topicTags", Value: bp.TopicTags},
		{Path: "errorMessage", Value: ""},
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		logCtx.Error("Failed to persist blueprint", "error", err)
		f.failSection(ctx, logCtx, ref, err)
		f.checkSiblings(ctx, logCtx, ownerID, section.FileID)
		return nil
	}
	logCtx.Info("Blueprint analysis complete.", "title", title, "difficulty", bp.Difficulty)

	f.advancePhase(ctx, ownerID, section.FileID, file)

	// Question generation continues inline; its failure is a partial
	// success that keeps the blueprint.
	f.generateQuestions(ctx, logCtx, ref, ownerID, sectionID, section, bp, text)

	f.checkSiblings(ctx, logCtx, ownerID, section.FileID)
	return nil
}

// claimSection grants analysis rights to exactly one invocation: a
// transaction re-checks PENDING and atomically moves to PROCESSING. Losers
// observe ErrClaimLost and must not write anything further.
func (f *AnalyzerFunction) claimSection(ctx context.Context, ref *firestore.DocumentRef) (*models.Section, error) {
	var section models.Section
	err := f.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return fmt.Errorf("failed to read section document: %w", err)
		}
		if err := snap.DataTo(&section); err != nil {
			return fmt.Errorf("failed to decode section document: %w", err)
		}
		if !SectionClaimable(section.AIStatus) {
			return ErrClaimLost
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "aiStatus", Value: models.AIStatusProcessing},
			{Path: "analysisStartedAt", Value: time.Now()},
		})
	})
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// fetchInputs loads the section text blob and the parent File in parallel.
func (f *AnalyzerFunction) fetchInputs(ctx context.Context, ownerID string, section *models.Section) (string, *models.File, error) {
	var text string
	var file models.File

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		text, err = gcp.ReadObject(gctx, f.storageClient, f.config.ContentBucket, section.TextBlobPath)
		return err
	})
	eg.Go(func() error {
		snap, err := gcp.Files(f.firestoreClient, ownerID).Doc(section.FileID).Get(gctx)
		if err != nil {
			return fmt.Errorf("failed to read parent file: %w", err)
		}
		return snap.DataTo(&file)
	})
	if err := eg.Wait(); err != nil {
		return "", nil, err
	}
	return text, &file, nil
}

func (f *AnalyzerFunction) generateBlueprint(ctx context.Context, section *models.Section, text string) (*models.Blueprint, error) {
	prompt := genai.Text(gcp.BlueprintUserPrompt + text)
	content, err := f.vertexClient.GenerateJSON(ctx, f.vertexClient.BlueprintModel, prompt)
	if err != nil {
		return nil, fmt.Errorf("blueprint call failed: %w", err)
	}

	raw, err := normalize.Object(content)
	if err != nil {
		return nil, fmt.Errorf("blueprint response failed shape validation: %w", err)
	}
	bp := normalize.Blueprint(raw)
	if bp == nil {
		return nil, fmt.Errorf("blueprint response carried no usable content")
	}
	return bp, nil
}

// generateQuestions runs the second AI stage and records its own terminal
// questionsStatus. It never fails the section's analysis outcome.
func (f *AnalyzerFunction) generateQuestions(ctx context.Context, logCtx *slog.Logger, ref *firestore.DocumentRef, ownerID, sectionID string, section *models.Section, bp *models.Blueprint, text string) {
	if _, err := ref.Update(ctx, []firestore.Update{
		{Path: "questionsStatus", Value: models.QuestionsStatusGenerating},
	}); err != nil {
		logCtx.Error("Failed to mark question generation as started", "error", err)
		f.failQuestions(ctx, logCtx, ref, err)
		return
	}

	target := f.config.QuestionTarget
	if target <= 0 {
		target = DefaultQuestionTarget
	}
	easy, medium, hard := SplitCounts(target, bp.Difficulty)

	bpJSON, err := json.Marshal(bp)
	if err != nil {
		f.failQuestions(ctx, logCtx, ref, fmt.Errorf("failed to encode blueprint: %w", err))
		return
	}

	prompt := genai.Text(fmt.Sprintf(gcp.QuestionUserPrompt, target, easy, medium, hard, string(bpJSON)) + text)
	content, err := f.vertexClient.GenerateJSON(ctx, f.vertexClient.QuestionModel, prompt)
	if err != nil {
		f.failQuestions(ctx, logCtx, ref, fmt.Errorf("question call failed: %w", err))
		return
	}

	items, err := normalize.Array(content)
	if err != nil {
		f.failQuestions(ctx, logCtx, ref, fmt.Errorf("question response failed shape validation: %w", err))
		return
	}

	fallbackQuery := ""
	if len(bp.TopicTags) > 0 {
		fallbackQuery = bp.TopicTags[0]
	}

	questions := f.buildQuestions(items, ownerID, sectionID, section, bp, fallbackQuery)
	if len(questions) == 0 {
		f.failQuestions(ctx, logCtx, ref, fmt.Errorf("no usable questions in model response (%d raw items)", len(items)))
		return
	}

	col := gcp.Questions(f.firestoreClient, ownerID)
	writes := make([]gcp.BatchWrite, 0, len(questions))
	for _, q := range questions {
		writes = append(writes, gcp.BatchWrite{Ref: col.Doc(uuid.NewString()), Data: q})
	}
	if err := gcp.CommitInShards(ctx, f.firestoreClient, writes); err != nil {
		f.failQuestions(ctx, logCtx, ref, fmt.Errorf("failed to save questions: %w", err))
		return
	}

	if _, err := ref.Update(ctx, []firestore.Update{
		{Path: "questionsStatus", Value: models.QuestionsStatusCompleted},
		{Path: "questionsCount", Value: len(questions)},
	}); err != nil {
		logCtx.Error("Failed to record question completion", "error", err)
		return
	}
	logCtx.Info("Question generation complete.", "questionsCount", len(questions), "discarded", len(items)-len(questions))
}

// buildQuestions normalizes each raw item, discarding invalid ones. Items
// arriving without tags inherit the blueprint's topic tags; the section
// document was decoded before analysis and carries none yet.
func (f *AnalyzerFunction) buildQuestions(items []any, ownerID, sectionID string, section *models.Section, bp *models.Blueprint, fallbackQuery string) []models.Question {
	now := time.Now()
	var out []models.Question
	for _, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		q := normalize.Question(raw, fallbackQuery)
		if q == nil {
			continue
		}
		q.SectionID = sectionID
		q.CourseID = section.CourseID
		q.OwnerID = ownerID
		q.SourceRef = fmt.Sprintf("%s#s%d", section.FileID, section.OrderIndex)
		q.CreatedAt = now
		if len(q.TopicTags) == 0 {
			q.TopicTags = bp.TopicTags
		}
		out = append(out, *q)
	}
	return out
}

// checkSiblings queries all sections of the file and promotes the File to
// READY once every sibling's analysis is terminal. The check is convergent
// and order-independent: whichever section finishes last flips the file.
func (f *AnalyzerFunction) checkSiblings(ctx context.Context, logCtx *slog.Logger, ownerID, fileID string) {
	snaps, err := gcp.Sections(f.firestoreClient, ownerID).
		Where("fileId", "==", fileID).
		Documents(ctx).GetAll()
	if err != nil {
		logCtx.Error("Sibling-completion query failed", "error", err)
		return
	}

	statuses := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var s models.Section
		if err := snap.DataTo(&s); err != nil {
			logCtx.Error("Failed to decode sibling section", "error", err, "siblingId", snap.Ref.ID)
			return
		}
		statuses = append(statuses, s.AIStatus)
	}
	if !AllAnalysisTerminal(statuses) {
		return
	}

	fileRef := gcp.Files(f.firestoreClient, ownerID).Doc(fileID)
	snap, err := fileRef.Get(ctx)
	if err != nil {
		logCtx.Error("Failed to read file for completion", "error", err)
		return
	}
	var file models.File
	if err := snap.DataTo(&file); err != nil {
		logCtx.Error("Failed to decode file for completion", "error", err)
		return
	}
	if file.Status == models.FileStatusFailed || file.Status == models.FileStatusReady {
		return
	}

	updates := []firestore.Update{
		{Path: "status", Value: models.FileStatusReady},
		{Path: "processingPhase", Value: ""},
		{Path: "processedAt", Value: time.Now()},
	}
	if _, err := fileRef.Update(ctx, updates); err != nil {
		logCtx.Error("Failed to mark file READY", "error", err)
		return
	}
	logCtx.Info("All sections terminal, file is READY.", "sectionCount", len(statuses))
}

// SectionClaimable reports whether a section is still eligible for the
// analysis claim. Only PENDING sections qualify; any other status means a
// concurrent invocation already won or the section already finished, and the
// caller must observe ErrClaimLost without writing anything.
func SectionClaimable(aiStatus string) bool {
	return aiStatus == models.AIStatusPending
}

// AllAnalysisTerminal reports whether every section finished analysis one
// way or the other. An empty set is not terminal: a file with no sections
// yet must never flip to READY.
func AllAnalysisTerminal(aiStatuses []string) bool {
	if len(aiStatuses) == 0 {
		return false
	}
	for _, s := range aiStatuses {
		if s != models.AIStatusAnalyzed && s != models.AIStatusFailed {
			return false
		}
	}
	return true
}

// SplitCounts allocates a question target across easy/medium/hard from the
// section difficulty (1-5). Easy and hard take their floored shares; the
// remainder goes to medium.
func SplitCounts(target, difficulty int) (easy, medium, hard int) {
	if target < 1 {
		target = 1
	}
	difficulty = clampDifficulty(difficulty)
	easy = target * (6 - difficulty) / 10
	hard = target * (1 + difficulty) / 10
	medium = target - easy - hard
	return easy, medium, hard
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}

// advancePhase moves the file's phase marker once analysis starts bearing
// questions. Best effort: the phase is informational.
func (f *AnalyzerFunction) advancePhase(ctx context.Context, ownerID, fileID string, file *models.File) {
	if file.Status != models.FileStatusProcessing || file.ProcessingPhase == models.PhaseGeneratingQuestions {
		return
	}
	_, _ = gcp.Files(f.firestoreClient, ownerID).Doc(fileID).Update(ctx, []firestore.Update{
		{Path: "processingPhase", Value: models.PhaseGeneratingQuestions},
	})
}

// failSection records a terminal analysis failure with a truncated message.
func (f *AnalyzerFunction) failSection(ctx context.Context, logCtx *slog.Logger, ref *firestore.DocumentRef, cause error) {
	updates := []firestore.Update{
		{Path: "aiStatus", Value: models.AIStatusFailed},
		{Path: "questionsStatus", Value: models.QuestionsStatusFailed},
		{Path: "errorMessage", Value: storedError(cause)},
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to mark section FAILED", "updateError", err, "cause", cause)
	}
}

// failQuestions records a question-stage failure; the blueprint survives.
func (f *AnalyzerFunction) failQuestions(ctx context.Context, logCtx *slog.Logger, ref *firestore.DocumentRef, cause error) {
	logCtx.Error("Question generation failed", "error", cause)
	updates := []firestore.Update{
		{Path: "questionsStatus", Value: models.QuestionsStatusFailed},
		{Path: "errorMessage", Value: storedError(cause)},
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to mark question generation FAILED", "updateError", err, "cause", cause)
	}
}

// failFile marks the parent file FAILED with a user-safe message.
func (f *AnalyzerFunction) failFile(ctx context.Context, logCtx *slog.Logger, ownerID, fileID, userMessage string) {
	updates := []firestore.Update{
		{Path: "status", Value: models.FileStatusFailed},
		{Path: "processingPhase", Value: ""},
		{Path: "errorMessage", Value: userMessage},
	}
	if _, err := gcp.Files(f.firestoreClient, ownerID).Doc(fileID).Update(ctx, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to mark file FAILED", "updateError", err)
	}
}
