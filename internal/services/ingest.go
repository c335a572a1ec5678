package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcalverley/studypipeline/internal/extract"
	"github.com/mcalverley/studypipeline/internal/filter"
	"github.com/mcalverley/studypipeline/internal/gcp"
	"github.com/mcalverley/studypipeline/internal/models"
)

// IngestConfig holds configuration for the file-ingest service.
type IngestConfig struct {
	ProjectID     string
	ContentBucket string
	UploadLimit   int
}

// IngestFunction drives a File from upload through section creation.
type IngestFunction struct {
	firestoreClient *firestore.Client
	storageClient   *storage.Client
	config          IngestConfig
}

// GCSEvent is the payload of a storage object-finalized event.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// uploadPathRe matches exactly users/{ownerId}/uploads/{fileId}.{ext}.
// Anything else in the bucket is ignored.
var uploadPathRe = regexp.MustCompile(`^users/([^/]+)/uploads/([^/.]+)\.([A-Za-z0-9]+)$`)

// NewIngest creates a new IngestFunction instance.
func NewIngest(ctx context.Context) (*IngestFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := IngestConfig{
		ProjectID:     projectID,
		ContentBucket: gcp.GetEnv("CONTENT_BUCKET", ""),
		UploadLimit:   8,
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

	f := &IngestFunction{
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		config:          config,
	}
	slog.Info("Ingest logic initialized.", "contentBucket", config.ContentBucket)
	return f, nil
}

// Process handles one uploaded file: claim the File document, extract
// sections, filter them, upload section blobs and commit Section documents.
func (f *IngestFunction) Process(ctx context.Context, e GCSEvent) error {
	m := uploadPathRe.FindStringSubmatch(e.Name)
	if m == nil {
		slog.Info("Ignoring object outside the uploads layout.", "gcsObject", e.Name)
		return nil
	}
	ownerID, fileID := m[1], m[2]
	logCtx := slog.With("ownerId", ownerID, "fileId", fileID, "gcsObject", e.Name)

	extractor, err := extract.ForContentType(e.ContentType)
	if errors.Is(err, extract.ErrUnsupportedType) {
		logCtx.Info("Unsupported content type, nothing to do.", "contentType", e.ContentType)
		return nil
	}
	if err != nil {
		return err
	}

	fileRef := gcp.Files(f.firestoreClient, ownerID).Doc(fileID)
	file, err := f.claimFile(ctx, fileRef)
	if errors.Is(err, ErrClaimLost) {
		logCtx.Info("File already claimed or finished, exiting cleanly.")
		return nil
	}
	if err != nil {
		logCtx.Error("Failed to claim file", "error", err)
		return err
	}
	logCtx.Info("Claimed file for extraction.")

	// Everything after the claim must resolve to READY-bound progress or a
	// FAILED status with a cleared phase.
	if file.CourseID == "" {
		return f.fail(ctx, logCtx, fileRef, "File is missing its course assignment.",
			fmt.Errorf("file %s has no courseId", fileID))
	}

	tempDir, err := os.MkdirTemp("", "file-ingest-*")
	if err != nil {
		return f.fail(ctx, logCtx, fileRef, "Internal error preparing the document.", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source."+m[3])
	if err := gcp.DownloadObject(ctx, f.storageClient, e.Bucket, e.Name, sourcePath); err != nil {
		return f.fail(ctx, logCtx, fileRef, "Could not read the uploaded document.", err)
	}

	rawSections, err := extractor.Extract(ctx, sourcePath)
	if err != nil {
		return f.fail(ctx, logCtx, fileRef, "The document could not be processed. It may be corrupt or empty.", err)
	}

	kept := f.filterSections(logCtx, rawSections)
	if len(kept) == 0 {
		return f.fail(ctx, logCtx, fileRef, "No study content was found in this document.",
			fmt.Errorf("all %d extracted sections were filtered out", len(rawSections)))
	}

	if err := f.uploadSectionBlobs(ctx, logCtx, ownerID, fileID, kept); err != nil {
		return f.fail(ctx, logCtx, fileRef, "Could not store the extracted sections.", err)
	}

	// The count and phase go onto the File before any Section document
	// exists: committing sections fires the analyzer, whose sibling check may
	// flip the file READY at any point afterwards, and a terminal status must
	// never be overwritten with a stale phase.
	if _, err := fileRef.Update(ctx, analysisHandoffUpdates(len(kept))); err != nil {
		return f.fail(ctx, logCtx, fileRef, "Internal error updating the document status.", err)
	}

	if err := f.commitSections(ctx, ownerID, fileID, file.CourseID, kept); err != nil {
		var partial *gcp.PartialWriteError
		if errors.As(err, &partial) {
			// Partially created sections are tolerated downstream; record the
			// failure but leave the committed sections to be analyzed.
			logCtx.Error("Section commit was partial", "committed", partial.Committed, "total", partial.Total, "error", err)
		}
		return f.fail(ctx, logCtx, fileRef, "Could not save the extracted sections.", err)
	}

	logCtx.Info("Extraction complete, sections handed to analysis.", "sectionCount", len(kept))
	return nil
}

// analysisHandoffUpdates is the File update that hands the file to the
// analysis stage. It must be committed before the Section documents are.
func analysisHandoffUpdates(sectionCount int) []firestore.Update {
	return []firestore.Update{
		{Path: "sectionCount", Value: sectionCount},
		{Path: "processingPhase", Value: models.PhaseAnalyzing},
	}
}

// claimFile grants extraction rights to exactly one invocation via a
// compare-and-swap on the status field. READY or PROCESSING files lose the
// claim, which defends against at-least-once event delivery.
func (f *IngestFunction) claimFile(ctx context.Context, ref *firestore.DocumentRef) (*models.File, error) {
	var file models.File
	err := f.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return fmt.Errorf("failed to read file document: %w", err)
		}
		if err := snap.DataTo(&file); err != nil {
			return fmt.Errorf("failed to decode file document: %w", err)
		}
		if !FileClaimable(file.Status) {
			return ErrClaimLost
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.FileStatusProcessing},
			{Path: "processingPhase", Value: models.PhaseExtracting},
		})
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// FileClaimable reports whether a file is still eligible for the extraction
// claim. Only PENDING files qualify; the transaction turns every other
// status into ErrClaimLost so replays never double-process.
func FileClaimable(status string) bool {
	return status == models.FileStatusPending
}

// filterSections drops non-instructional sections, logging each drop with
// its index, title and score for audit.
func (f *IngestFunction) filterSections(logCtx *slog.Logger, sections []extract.RawSection) []extract.RawSection {
	kept := make([]extract.RawSection, 0, len(sections))
	for i, s := range sections {
		decision := filter.Evaluate(s.Title, s.Text)
		if !decision.Include {
			logCtx.Info("Dropping non-instructional section.",
				"index", i,
				"title", s.Title,
				"reason", decision.Reason,
				"score", decision.Score,
			)
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// uploadSectionBlobs writes every kept section's text to its deterministic
// blob path, all uploads running concurrently.
func (f *IngestFunction) uploadSectionBlobs(ctx context.Context, logCtx *slog.Logger, ownerID, fileID string, sections []extract.RawSection) error {
	logCtx.Info("Starting concurrent upload of section blobs.", "count", len(sections))
	bucket := f.storageClient.Bucket(f.config.ContentBucket)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.config.UploadLimit)
	for i, s := range sections {
		eg.Go(func() error {
			objectName := SectionBlobPath(ownerID, fileID, i)
			if err := gcp.SaveWithRetry(gctx, bucket, objectName, s.Text); err != nil {
				return fmt.Errorf("section %d: %w", i, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// commitSections writes all Section documents in a single sharded commit.
func (f *IngestFunction) commitSections(ctx context.Context, ownerID, fileID, courseID string, sections []extract.RawSection) error {
	col := gcp.Sections(f.firestoreClient, ownerID)
	now := time.Now()

	writes := make([]gcp.BatchWrite, 0, len(sections))
	for i, s := range sections {
		doc := models.Section{
			FileID:          fileID,
			CourseID:        courseID,
			OwnerID:         ownerID,
			Title:           s.Title,
			ContentRef:      s.ContentRef(),
			TextBlobPath:    SectionBlobPath(ownerID, fileID, i),
			EstMinutes:      s.EstMinutes,
			AIStatus:        models.AIStatusPending,
			QuestionsStatus: models.QuestionsStatusPending,
			OrderIndex:      i,
			CreatedAt:       now,
		}
		writes = append(writes, gcp.BatchWrite{
			Ref:  col.Doc(uuid.NewString()),
			Data: doc,
		})
	}
	return gcp.CommitInShards(ctx, f.firestoreClient, writes)
}

// fail stamps the File FAILED with a user-safe message and clears the phase
// so it never points at a stale stage. Full detail goes to logs only.
func (f *IngestFunction) fail(ctx context.Context, logCtx *slog.Logger, ref *firestore.DocumentRef, userMessage string, cause error) error {
	logCtx.Error("File processing failed", "error", cause, "userMessage", userMessage)
	updates := []firestore.Update{
		{Path: "status", Value: models.FileStatusFailed},
		{Path: "processingPhase", Value: ""},
		{Path: "errorMessage", Value: userMessage},
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to update file status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", userMessage, cause)
}
