package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/mcalverley/studypipeline/internal/gcp"
	"github.com/mcalverley/studypipeline/internal/models"
	"github.com/mcalverley/studypipeline/internal/normalize"
)

// TutorFunction produces an answer review for a question the student got
// wrong (or wants explained), on the fast model tier.
type TutorFunction struct {
	vertexClient *gcp.VertexClient
}

// NewTutor creates a new TutorFunction instance.
func NewTutor(ctx context.Context) (*TutorFunction, error) {
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
	return &TutorFunction{vertexClient: vertexClient}, nil
}

// Process asks the model for a tutoring explanation and normalizes it. A nil
// result means no tutoring is available for this question, not an error.
func (f *TutorFunction) Process(ctx context.Context, req models.TutorRequest) (*models.TutorResponse, error) {
	if strings.TrimSpace(req.Stem) == "" {
		return nil, fmt.Errorf("%w: stem is required", ErrInvalidArgument)
	}
	if len(req.Options) < 2 {
		return nil, fmt.Errorf("%w: at least two options are required", ErrInvalidArgument)
	}
	if req.ChosenIndex < 0 || req.ChosenIndex >= len(req.Options) {
		return nil, fmt.Errorf("%w: chosenIndex out of range", ErrInvalidArgument)
	}

	var options strings.Builder
	for i, opt := range req.Options {
		fmt.Fprintf(&options, "%d. %s\n", i, opt)
	}

	prompt := genai.Text(fmt.Sprintf(gcp.TutorUserPrompt, req.ChosenIndex, req.Stem, options.String()))
	content, err := f.vertexClient.GenerateJSON(ctx, f.vertexClient.TutorModel, prompt)
	if err != nil {
		return nil, fmt.Errorf("tutor call failed: %w", err)
	}

	return parseTutorResponse(content)
}

// parseTutorResponse separates malformed model output, which is a unit
// failure, from syntactically valid output lacking the required fields, which
// means no tutoring is available (nil response, nil error).
func parseTutorResponse(content string) (*models.TutorResponse, error) {
	raw, err := normalize.Object(content)
	if err != nil {
		return nil, fmt.Errorf("tutor response failed shape validation: %w", err)
	}
	return normalize.Tutor(raw), nil
}
