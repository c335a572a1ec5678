package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// --- Blueprint Model Prompts ---
const BlueprintSystemPrompt = "You are a medical education content analyst. Your task is to read a section of study material and produce a structured teaching blueprint as a single valid JSON object. Accuracy and faithfulness to the source text are of utmost importance."
const BlueprintUserPrompt = `Analyze the study section below and return ONE JSON object with exactly these keys:

- "title": a short descriptive title for the section.
- "summary": 2-4 sentences summarizing the section.
- "objectives": array of learning objectives a student should master.
- "key_concepts": array of the central concepts covered.
- "high_yield_points": array of the facts most likely to be examined.
- "common_traps": array of misconceptions or commonly confused points.
- "terms": array of {"term": string, "definition": string} objects.
- "topic_tags": array of 1-5 short topic labels.
- "difficulty": integer 1-5 rating how demanding the material is.

Base every item strictly on the provided text. Do not invent content that is
not supported by the section. Return ONLY the JSON object, with no preamble
and no markdown fences.

Section text:
`

// --- Question Model Prompts ---
const QuestionSystemPrompt = "You are a medical education question writer. Your task is to generate board-style multiple choice questions from a teaching blueprint and its source text. You must output your response as a valid JSON array."
const QuestionUserPrompt = `Generate exactly %d multiple choice questions from the blueprint and source
text below: %d easy, %d medium, %d hard.

Each question must be a JSON object with exactly these keys:

- "stem": the question text, self-contained and unambiguous.
- "options": array of 3-5 answer choices.
- "correct_index": zero-based index of the correct option.
- "explanation": object with "correct_why" (why the answer is right),
  "why_others_wrong" (array, one entry per option, in option order) and
  "key_takeaway" (one sentence).
- "citations": array of up to 3 {"source", "title", "url"} objects pointing
  at authoritative references for the tested fact.
- "topic_tags": array of short topic labels.
- "difficulty": integer 1-5.

Return ONLY a JSON array of these objects, with no preamble and no markdown
fences.

Blueprint:
%s

Source text:
`

// --- Vision Model Prompts ---
const VisionSystemPrompt = "You are a document vision extractor. Your task is to read one scanned page image and transcribe its content into a single valid JSON object. Preserve as much information as possible."
const VisionUserPrompt = `Extract the content of this page image and return ONE JSON object with
exactly these keys:

- "text": the full transcribed text of the page, in reading order.
- "headings": array of the headings visible on the page.
- "records": array of {"kind": string, "text": string} objects, one per
  distinct content item, where "kind" is one of "definition", "fact",
  "table_row", "figure_caption" or "other".

Transcribe faithfully. Describe figures instead of skipping them. Return
ONLY the JSON object, with no preamble and no markdown fences.`

// --- Tutor Model Prompts ---
const TutorSystemPrompt = "You are a patient medical tutor reviewing a student's answer to a multiple choice question. You must output your response as a valid JSON object."
const TutorUserPrompt = `The student answered the question below and chose option %d.

Return ONE JSON object with exactly these keys:

- "correct_answer": the text of the correct option.
- "why_correct": a clear explanation of why that option is correct.
- "why_yours_wrong": why the student's choice is wrong (empty string if the
  student was right).
- "hint": a short memory aid for next time.

Return ONLY the JSON object, with no preamble and no markdown fences.

Question:
%s

Options:
%s`

// Model tiers: a fast tier for structural text tasks and a vision-capable
// tier for page extraction.
const (
	DefaultFastModel   = "gemini-1.5-flash"
	DefaultVisionModel = "gemini-1.5-pro"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
)

// Phrases indicating the model refused instead of answering. A refusal is a
// unit failure, never silently accepted output.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// VertexConfig configures the shared Vertex AI client.
type VertexConfig struct {
	ProjectID      string
	Region         string
	FastModel      string
	VisionModel    string
	MaxAttempts    int
	InitialBackoff time.Duration
}

// VertexClient holds all pre-configured generative models for the pipeline.
type VertexClient struct {
	BlueprintModel *genai.GenerativeModel
	QuestionModel  *genai.GenerativeModel
	TutorModel     *genai.GenerativeModel
	VisionModel    *genai.GenerativeModel

	VisionModelName string

	baseClient     *genai.Client
	maxAttempts    int
	initialBackoff time.Duration
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if cfg.FastModel == "" {
		cfg.FastModel = DefaultFastModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	blueprintModel := jsonModel(baseClient, cfg.FastModel, BlueprintSystemPrompt)
	questionModel := jsonModel(baseClient, cfg.FastModel, QuestionSystemPrompt)
	tutorModel := jsonModel(baseClient, cfg.FastModel, TutorSystemPrompt)
	visionModel := jsonModel(baseClient, cfg.VisionModel, VisionSystemPrompt)

	return &VertexClient{
		BlueprintModel:  blueprintModel,
		QuestionModel:   questionModel,
		TutorModel:      tutorModel,
		VisionModel:     visionModel,
		VisionModelName: cfg.VisionModel,
		baseClient:      baseClient,
		maxAttempts:     cfg.MaxAttempts,
		initialBackoff:  cfg.InitialBackoff,
	}, nil
}

// jsonModel configures a model for deterministic structured output.
func jsonModel(client *genai.Client, name, systemPrompt string) *genai.GenerativeModel {
	m := client.GenerativeModel(name)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return m
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// GenerateJSON calls the given model with bounded retry and returns the raw
// JSON text of the response, with markdown fences stripped. Empty responses
// and refusals are errors.
func (c *VertexClient) GenerateJSON(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	backoff := c.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := model.GenerateContent(ctx, parts...)
		if err == nil {
			content := StripFences(ExtractText(resp))
			if content == "" {
				err = fmt.Errorf("model returned an empty response")
			} else if IsRefusal(content) {
				err = fmt.Errorf("model response indicates refusal")
			} else {
				return content, nil
			}
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		slog.Warn(
			"Model call failed, will retry.",
			"attempt", attempt,
			"maxAttempts", c.maxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("model call failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// ExtractText concatenates the text parts of the first candidate.
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// StripFences removes markdown code fences the model sometimes wraps its
// JSON in despite the response MIME type.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsRefusal reports whether the model declined to answer.
func IsRefusal(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
