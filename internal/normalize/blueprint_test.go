package normalize

import (
	"strings"
	"testing"

	"github.com/mcalverley/studypipeline/internal/models"
)

func TestBlueprintSnakeAndCamelKeys(t *testing.T) {
	snake := map[string]any{
		"summary":           "The nephron regulates sodium balance.",
		"key_concepts":      []any{"Nephron", "Sodium handling"},
		"high_yield_points": []any{"Loop diuretics act on the thick ascending limb."},
		"topic_tags":        []any{"Renal"},
		"difficulty":        float64(4),
	}
	camel := map[string]any{
		"summary":         "The nephron regulates sodium balance.",
		"keyConcepts":     []any{"Nephron", "Sodium handling"},
		"highYieldPoints": []any{"Loop diuretics act on the thick ascending limb."},
		"topicTags":       []any{"Renal"},
		"difficultyLevel": float64(4),
	}

	for name, raw := range map[string]map[string]any{"snake": snake, "camel": camel} {
		bp := Blueprint(raw)
		if bp == nil {
			t.Fatalf("%s: expected a blueprint", name)
		}
		if len(bp.KeyConcepts) != 2 || len(bp.HighYieldPoints) != 1 || len(bp.TopicTags) != 1 {
			t.Fatalf("%s: lists not mapped: %+v", name, bp)
		}
		if bp.Difficulty != 4 {
			t.Fatalf("%s: expected difficulty 4, got %d", name, bp.Difficulty)
		}
	}
}

func TestBlueprintNilWhenEmpty(t *testing.T) {
	if bp := Blueprint(nil); bp != nil {
		t.Fatalf("expected nil for nil input, got %+v", bp)
	}
	raw := map[string]any{"title": "Chapter 7", "difficulty": float64(2)}
	if bp := Blueprint(raw); bp != nil {
		t.Fatalf("expected nil for content-free blueprint, got %+v", bp)
	}
}

func TestBlueprintClampsDifficulty(t *testing.T) {
	raw := map[string]any{
		"summary":    "Cardiac conduction basics.",
		"difficulty": float64(99),
	}
	bp := Blueprint(raw)
	if bp == nil {
		t.Fatal("expected a blueprint")
	}
	if bp.Difficulty != 5 {
		t.Fatalf("expected difficulty clamped to 5, got %d", bp.Difficulty)
	}
}

func TestBlueprintDefaultDifficulty(t *testing.T) {
	bp := Blueprint(map[string]any{"summary": "Basics of acid-base physiology."})
	if bp == nil {
		t.Fatal("expected a blueprint")
	}
	if bp.Difficulty != defaultDifficulty {
		t.Fatalf("expected default difficulty %d, got %d", defaultDifficulty, bp.Difficulty)
	}
}

func TestBlueprintDropsIncompleteTerms(t *testing.T) {
	raw := map[string]any{
		"summary": "Pharmacokinetics overview.",
		"terms": []any{
			map[string]any{"term": "Half-life", "definition": "Time for concentration to halve."},
			map[string]any{"term": "Clearance"},
			map[string]any{"definition": "Orphan definition."},
		},
	}
	bp := Blueprint(raw)
	if bp == nil {
		t.Fatal("expected a blueprint")
	}
	if len(bp.Terms) != 1 || bp.Terms[0].Term != "Half-life" {
		t.Fatalf("expected only the complete term, got %+v", bp.Terms)
	}
}

func TestIsGenericTitle(t *testing.T) {
	tests := []struct {
		title   string
		generic bool
	}{
		{"", true},
		{"Section 3", true},
		{"Chapter 12.", true},
		{"Pages 11-20", true},
		{"Untitled", true},
		{"Introduction", true},
		{"Slide 4", true},
		{"Cardiac Physiology", false},
		{"Introduction to Pharmacology", false},
		{"Section of the Aorta", false},
	}
	for _, tt := range tests {
		if got := IsGenericTitle(tt.title); got != tt.generic {
			t.Errorf("IsGenericTitle(%q) = %v, want %v", tt.title, got, tt.generic)
		}
	}
}

func TestDeriveTitlePrefersTopicTags(t *testing.T) {
	bp := &models.Blueprint{
		TopicTags:   []string{"Nephrology", "Diuretics"},
		KeyConcepts: []string{"Loop of Henle"},
	}
	got := DeriveTitle("Section 5", bp)
	if got != "Nephrology - Diuretics" {
		t.Fatalf("expected combined topic tags, got %q", got)
	}
}

func TestDeriveTitleKeepsRealTitle(t *testing.T) {
	bp := &models.Blueprint{TopicTags: []string{"Nephrology"}}
	got := DeriveTitle("Renal Tubular Acidosis", bp)
	if got != "Renal Tubular Acidosis" {
		t.Fatalf("expected original title kept, got %q", got)
	}
}

func TestDeriveTitleFallsThroughCandidateLists(t *testing.T) {
	bp := &models.Blueprint{
		Terms:      []models.Term{{Term: "Frank-Starling law", Definition: "d"}},
		Objectives: []string{"Describe preload and afterload"},
	}
	got := DeriveTitle("", bp)
	if got != "Frank-Starling law - Describe preload and afterload" {
		t.Fatalf("unexpected derived title: %q", got)
	}
}

func TestDeriveTitleSkipsDuplicateCandidate(t *testing.T) {
	bp := &models.Blueprint{
		TopicTags:   []string{"Cardiology"},
		KeyConcepts: []string{"cardiology", "Heart failure"},
	}
	got := DeriveTitle("Untitled", bp)
	if got != "Cardiology - Heart failure" {
		t.Fatalf("expected duplicate candidate skipped, got %q", got)
	}
}

func TestDeriveTitleNoCandidates(t *testing.T) {
	bp := &models.Blueprint{TopicTags: []string{"Section 2"}}
	got := DeriveTitle("Chapter 1", bp)
	if !strings.EqualFold(got, "Chapter 1") {
		t.Fatalf("expected generic title kept when no candidates, got %q", got)
	}
}
