package services

import (
	"testing"

	"github.com/mcalverley/studypipeline/internal/models"
)

func TestSplitCounts(t *testing.T) {
	tests := []struct {
		target, difficulty int
		easy, medium, hard int
	}{
		{10, 1, 5, 3, 2},
		{10, 3, 3, 3, 4},
		{10, 5, 1, 3, 6},
		{8, 3, 2, 3, 3},
		{8, 1, 4, 3, 1},
		{1, 5, 0, 1, 0},
		{1, 1, 0, 1, 0},
		// Out-of-range difficulty clamps before the split.
		{10, 0, 5, 3, 2},
		{10, 9, 1, 3, 6},
		// Non-positive target is lifted to one question.
		{0, 3, 0, 1, 0},
	}
	for _, tt := range tests {
		easy, medium, hard := SplitCounts(tt.target, tt.difficulty)
		if easy != tt.easy || medium != tt.medium || hard != tt.hard {
			t.Errorf("SplitCounts(%d, %d) = (%d, %d, %d), want (%d, %d, %d)",
				tt.target, tt.difficulty, easy, medium, hard, tt.easy, tt.medium, tt.hard)
		}
	}
}

func TestSplitCountsAlwaysSumsToTarget(t *testing.T) {
	for target := 1; target <= 20; target++ {
		for difficulty := 1; difficulty <= 5; difficulty++ {
			easy, medium, hard := SplitCounts(target, difficulty)
			if easy+medium+hard != target {
				t.Fatalf("SplitCounts(%d, %d) sums to %d", target, difficulty, easy+medium+hard)
			}
			if easy < 0 || medium < 0 || hard < 0 {
				t.Fatalf("SplitCounts(%d, %d) produced a negative count", target, difficulty)
			}
		}
	}
}

func TestSectionClaimableOnlyWhenPending(t *testing.T) {
	// Firing the trigger twice concurrently must yield exactly one winner:
	// the transaction re-reads the status, and every non-PENDING value loses.
	tests := []struct {
		aiStatus  string
		claimable bool
	}{
		{models.AIStatusPending, true},
		{models.AIStatusProcessing, false},
		{models.AIStatusAnalyzed, false},
		{models.AIStatusFailed, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := SectionClaimable(tt.aiStatus); got != tt.claimable {
			t.Errorf("SectionClaimable(%q) = %v, want %v", tt.aiStatus, got, tt.claimable)
		}
	}
}

func TestBuildQuestionsInheritsBlueprintTags(t *testing.T) {
	section := &models.Section{FileID: "file-1", CourseID: "course-1", OrderIndex: 2}
	bp := &models.Blueprint{TopicTags: []string{"Cardiology"}}
	items := []any{
		map[string]any{
			"stem":          "Which vessel supplies the SA node in most people?",
			"options":       []any{"Right coronary artery", "Left anterior descending", "Circumflex artery"},
			"correct_index": float64(0),
		},
		map[string]any{
			"stem":          "Tagged item",
			"options":       []any{"A", "B"},
			"correct_index": float64(0),
			"topic_tags":    []any{"Anatomy"},
		},
		"not an object",
	}

	var f AnalyzerFunction
	questions := f.buildQuestions(items, "owner-1", "section-1", section, bp, "cardiology")
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if len(questions[0].TopicTags) != 1 || questions[0].TopicTags[0] != "Cardiology" {
		t.Fatalf("untagged question should inherit blueprint tags, got %v", questions[0].TopicTags)
	}
	if questions[1].TopicTags[0] != "Anatomy" {
		t.Fatalf("model-provided tags must win, got %v", questions[1].TopicTags)
	}
	if questions[0].SourceRef != "file-1#s2" {
		t.Fatalf("unexpected sourceRef %q", questions[0].SourceRef)
	}
}

func TestAllAnalysisTerminal(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     bool
	}{
		{"empty set is not terminal", nil, false},
		{"all analyzed", []string{models.AIStatusAnalyzed, models.AIStatusAnalyzed}, true},
		{"mixed terminal", []string{models.AIStatusAnalyzed, models.AIStatusFailed}, true},
		{"all failed", []string{models.AIStatusFailed}, true},
		{"one still pending", []string{models.AIStatusAnalyzed, models.AIStatusPending}, false},
		{"one still processing", []string{models.AIStatusFailed, models.AIStatusProcessing}, false},
	}
	for _, tt := range tests {
		if got := AllAnalysisTerminal(tt.statuses); got != tt.want {
			t.Errorf("%s: AllAnalysisTerminal(%v) = %v, want %v", tt.name, tt.statuses, got, tt.want)
		}
	}
}
