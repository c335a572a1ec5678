package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mcalverley/studypipeline/internal/models"
)

// stubExtractor returns a canned page per image, failing for images that
// start with "fail".
type stubExtractor struct{}

func (stubExtractor) ExtractPage(ctx context.Context, image string) (*models.VisionPage, error) {
	decoded, _, err := decodeImage(image)
	if err != nil {
		return nil, err
	}
	text := string(decoded)
	if strings.HasPrefix(text, "fail") {
		return nil, errors.New("extraction failed")
	}
	return &models.VisionPage{
		Text:    text,
		Records: []models.PageRecord{{Kind: "paragraph", Text: text}},
	}, nil
}

func encodePage(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

func TestVisionProcessAggregatesInPageOrder(t *testing.T) {
	svc := NewVisionService(stubExtractor{}, "test-model")
	req := models.BatchVisionRequest{
		Images:      []string{encodePage("page zero"), encodePage("page one"), encodePage("page two")},
		Concurrency: 3,
	}

	data, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(data.Pages) != 3 || len(data.Failures) != 0 {
		t.Fatalf("expected 3 pages and no failures, got %d/%d", len(data.Pages), len(data.Failures))
	}
	for i, p := range data.Pages {
		if p.Page != i {
			t.Fatalf("page %d carries index %d", i, p.Page)
		}
		if want := fmt.Sprintf("page %s", []string{"zero", "one", "two"}[i]); p.Text != want {
			t.Fatalf("page %d: expected %q, got %q", i, want, p.Text)
		}
	}
	for _, rec := range data.Results {
		if rec.Page < 0 || rec.Page > 2 {
			t.Fatalf("record stamped with bad page: %+v", rec)
		}
	}
}

func TestVisionProcessPartialFailure(t *testing.T) {
	svc := NewVisionService(stubExtractor{}, "test-model")
	req := models.BatchVisionRequest{
		Images: []string{encodePage("ok"), encodePage("fail me"), encodePage("also ok")},
	}

	data, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("a page failure must not fail the batch: %v", err)
	}
	if data.Meta.PagesSucceeded+data.Meta.PagesFailed != data.Meta.PagesTotal {
		t.Fatalf("meta does not add up: %+v", data.Meta)
	}
	if data.Meta.PagesSucceeded != 2 || data.Meta.PagesFailed != 1 {
		t.Fatalf("unexpected meta: %+v", data.Meta)
	}
	if len(data.Failures) != 1 || data.Failures[0].Page != 1 {
		t.Fatalf("unexpected failures: %+v", data.Failures)
	}
	if data.Meta.Model != "test-model" {
		t.Fatalf("unexpected model: %q", data.Meta.Model)
	}
}

func TestVisionProcessRejectsBadInput(t *testing.T) {
	svc := NewVisionService(stubExtractor{}, "test-model")

	tests := []struct {
		name string
		req  models.BatchVisionRequest
	}{
		{"empty batch", models.BatchVisionRequest{}},
		{"too many pages", models.BatchVisionRequest{Images: make([]string, MaxBatchPages+1)}},
		{"invalid base64", models.BatchVisionRequest{Images: []string{"not-base64!!!"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "too many pages" {
				for i := range tt.req.Images {
					tt.req.Images[i] = encodePage("x")
				}
			}
			_, err := svc.Process(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestDecodeImage(t *testing.T) {
	raw := encodePage("hello")

	data, mime, err := decodeImage(raw)
	if err != nil || string(data) != "hello" || mime != defaultPageMime {
		t.Fatalf("raw base64: data=%q mime=%q err=%v", data, mime, err)
	}

	data, mime, err = decodeImage("data:image/jpeg;base64," + raw)
	if err != nil || string(data) != "hello" || mime != "image/jpeg" {
		t.Fatalf("data URL: data=%q mime=%q err=%v", data, mime, err)
	}

	if _, _, err := decodeImage("data:image/png;base64"); err == nil {
		t.Fatal("expected error for data URL without payload")
	}
	if _, _, err := decodeImage(encodePage("")); err == nil {
		t.Fatal("expected error for empty image data")
	}
}
