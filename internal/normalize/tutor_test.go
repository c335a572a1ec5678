package normalize

import "testing"

func TestTutorRequiresAnswerAndExplanation(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"nil", nil},
		{"empty", map[string]any{}},
		{"answer only", map[string]any{"correct_answer": "B"}},
		{"explanation only", map[string]any{"why_correct": "Because of first-pass metabolism."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := Tutor(tt.raw); resp != nil {
				t.Fatalf("expected nil, got %+v", resp)
			}
		})
	}
}

func TestTutorCamelCaseKeys(t *testing.T) {
	raw := map[string]any{
		"correctAnswer": "Propranolol",
		"whyCorrect":    "Non-selective beta blockade reduces portal pressure.",
		"whyYoursWrong": "Metoprolol is beta-1 selective.",
		"hint":          "Think about beta-2 receptors in splanchnic vessels.",
	}
	resp := Tutor(raw)
	if resp == nil {
		t.Fatal("expected a tutor response")
	}
	if resp.CorrectAnswer != "Propranolol" || resp.WhyYoursWrong == "" || resp.Hint == "" {
		t.Fatalf("fields not mapped: %+v", resp)
	}
}

func TestTutorSanitizesFields(t *testing.T) {
	raw := map[string]any{
		"correct_answer": "<b>Atropine</b>",
		"why_correct":    "Blocks <i>muscarinic</i> receptors.",
	}
	resp := Tutor(raw)
	if resp == nil {
		t.Fatal("expected a tutor response")
	}
	if resp.CorrectAnswer != "Atropine" || resp.WhyCorrect != "Blocks muscarinic receptors." {
		t.Fatalf("markup survived: %+v", resp)
	}
}
