package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/mcalverley/studypipeline/internal/fanout"
	"github.com/mcalverley/studypipeline/internal/gcp"
	"github.com/mcalverley/studypipeline/internal/models"
	"github.com/mcalverley/studypipeline/internal/normalize"
)

// Batch limits. Oversize batches and oversize pages are input-validation
// errors, rejected before any model call.
const (
	MaxBatchPages   = 30
	MaxImageChars   = 8_000_000
	defaultPageMime = "image/png"
)

// PageExtractor is the per-page unit of work the vision batch fans out over.
type PageExtractor interface {
	ExtractPage(ctx context.Context, image string) (*models.VisionPage, error)
}

// VisionService runs bounded-concurrency page extraction over a batch of
// scanned images and aggregates the per-page outcomes.
type VisionService struct {
	extractor PageExtractor
	modelName string
}

// NewVisionService wires the service to a page extractor.
func NewVisionService(extractor PageExtractor, modelName string) *VisionService {
	return &VisionService{extractor: extractor, modelName: modelName}
}

// NewVertexVisionService builds the production service on the Vertex vision
// tier, reading configuration from the environment.
func NewVertexVisionService(ctx context.Context) (*VisionService, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	vertexClient, err := gcp.NewVertexClient(ctx, gcp.VertexConfig{
		ProjectID: projectID,
		Region:    gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	return NewVisionService(&vertexPageExtractor{client: vertexClient}, vertexClient.VisionModelName), nil
}

// Process validates the batch, fans out page extraction with at most K in
// flight, and aggregates results in page order. A page failure never cancels
// its siblings; only malformed top-level input rejects the whole batch.
func (s *VisionService) Process(ctx context.Context, req models.BatchVisionRequest) (*models.BatchVisionData, error) {
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	start := time.Now()
	results := fanout.Run(ctx, req.Images, req.Concurrency, func(ctx context.Context, i int, image string) (*models.VisionPage, error) {
		return s.extractor.ExtractPage(ctx, image)
	})

	data := &models.BatchVisionData{
		Results:  []models.PageRecord{},
		Pages:    []models.VisionPage{},
		Failures: []models.PageFailure{},
	}
	for _, r := range results {
		ms := r.Elapsed.Milliseconds()
		if r.Err != nil {
			data.Failures = append(data.Failures, models.PageFailure{
				Page:  r.Index,
				Error: r.Err.Error(),
				Ms:    ms,
			})
			continue
		}
		page := *r.Value
		page.Page = r.Index
		page.Ms = ms
		for j := range page.Records {
			page.Records[j].Page = r.Index
		}
		data.Pages = append(data.Pages, page)
		data.Results = append(data.Results, page.Records...)
	}

	data.Meta = models.BatchVisionMeta{
		Model:          s.modelName,
		TotalMs:        time.Since(start).Milliseconds(),
		PagesTotal:     len(req.Images),
		PagesSucceeded: len(data.Pages),
		PagesFailed:    len(data.Failures),
	}
	slog.Info("Vision batch complete.",
		"pagesTotal", data.Meta.PagesTotal,
		"pagesSucceeded", data.Meta.PagesSucceeded,
		"pagesFailed", data.Meta.PagesFailed,
		"totalMs", data.Meta.TotalMs,
	)
	return data, nil
}

// validateBatch rejects malformed top-level input with specific messages.
func validateBatch(req models.BatchVisionRequest) error {
	if len(req.Images) == 0 {
		return fmt.Errorf("%w: images must be a non-empty array", ErrInvalidArgument)
	}
	if len(req.Images) > MaxBatchPages {
		return fmt.Errorf("%w: batch of %d pages exceeds the limit of %d", ErrInvalidArgument, len(req.Images), MaxBatchPages)
	}
	for i, image := range req.Images {
		if len(image) > MaxImageChars {
			return fmt.Errorf("%w: page %d payload exceeds %d characters", ErrInvalidArgument, i, MaxImageChars)
		}
		if _, _, err := decodeImage(image); err != nil {
			return fmt.Errorf("%w: page %d: %v", ErrInvalidArgument, i, err)
		}
	}
	return nil
}

// decodeImage accepts a raw base64 string or a data URL and returns the
// decoded bytes plus MIME type.
func decodeImage(image string) ([]byte, string, error) {
	mime := defaultPageMime
	payload := image

	if strings.HasPrefix(image, "data:") {
		header, rest, ok := strings.Cut(image, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		payload = rest
		meta := strings.TrimPrefix(header, "data:")
		meta = strings.TrimSuffix(meta, ";base64")
		if meta != "" {
			mime = meta
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image data")
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	return data, mime, nil
}

// vertexPageExtractor is the production PageExtractor backed by the vision
// model tier.
type vertexPageExtractor struct {
	client *gcp.VertexClient
}

func (e *vertexPageExtractor) ExtractPage(ctx context.Context, image string) (*models.VisionPage, error) {
	data, mime, err := decodeImage(image)
	if err != nil {
		return nil, err
	}

	content, err := e.client.GenerateJSON(ctx, e.client.VisionModel,
		genai.Blob{MIMEType: mime, Data: data},
		genai.Text(gcp.VisionUserPrompt),
	)
	if err != nil {
		return nil, err
	}

	raw, err := normalize.Object(content)
	if err != nil {
		return nil, fmt.Errorf("page response failed shape validation: %w", err)
	}
	page := normalize.VisionPage(raw)
	if page == nil {
		return nil, fmt.Errorf("page response carried no content")
	}
	return page, nil
}
