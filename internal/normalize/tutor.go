package normalize

import (
	"github.com/mcalverley/studypipeline/internal/models"
)

const maxTutorField = 800

// Tutor normalizes a raw tutoring response. Both the correct answer and its
// explanation are required; without them the result is nil, which callers
// must treat as "no tutoring available", not as an error.
func Tutor(raw map[string]any) *models.TutorResponse {
	if raw == nil {
		return nil
	}

	correct := SanitizeText(getStr(raw, "correct_answer", "correctAnswer"), maxTutorField)
	whyCorrect := SanitizeText(getStr(raw, "why_correct", "whyCorrect"), maxTutorField)
	if correct == "" || whyCorrect == "" {
		return nil
	}

	return &models.TutorResponse{
		CorrectAnswer: correct,
		WhyCorrect:    whyCorrect,
		WhyYoursWrong: SanitizeText(getStr(raw, "why_yours_wrong", "whyYoursWrong"), maxTutorField),
		Hint:          SanitizeText(getStr(raw, "hint"), maxTutorField),
	}
}
