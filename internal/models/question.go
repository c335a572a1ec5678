package models

import "time"

// Evidence-quality ratings derived from citation count and source diversity.
const (
	EvidenceLow      = "LOW"
	EvidenceModerate = "MODERATE"
	EvidenceHigh     = "HIGH"
)

// Citation points at supporting material for a question.
type Citation struct {
	Source string `firestore:"source" json:"source"`
	Title  string `firestore:"title" json:"title"`
	URL    string `firestore:"url" json:"url"`
}

// CitationMeta summarizes the citations attached to a question.
type CitationMeta struct {
	Count           int    `firestore:"count" json:"count"`
	EvidenceQuality string `firestore:"evidenceQuality" json:"evidenceQuality"`
}

// Explanation carries the per-question tutoring text. WhyOthersWrong always
// has exactly one entry per option so index-based lookups are safe.
type Explanation struct {
	CorrectWhy     string   `firestore:"correctWhy" json:"correctWhy"`
	WhyOthersWrong []string `firestore:"whyOthersWrong" json:"whyOthersWrong"`
	KeyTakeaway    string   `firestore:"keyTakeaway" json:"keyTakeaway"`
}

// QuestionStats accumulates answer telemetry. The pipeline only ever writes
// the zero value; the serving layer increments it.
type QuestionStats struct {
	TimesAnswered int     `firestore:"timesAnswered" json:"timesAnswered"`
	TimesCorrect  int     `firestore:"timesCorrect" json:"timesCorrect"`
	AvgTimeSec    float64 `firestore:"avgTimeSec" json:"avgTimeSec"`
}

// Question is one generated practice item. Questions are deleted and
// recreated wholesale when their section is retried.
type Question struct {
	SectionID    string        `firestore:"sectionId"`
	CourseID     string        `firestore:"courseId"`
	OwnerID      string        `firestore:"ownerId"`
	Stem         string        `firestore:"stem"`
	Options      []string      `firestore:"options"`
	CorrectIndex int           `firestore:"correctIndex"`
	Explanation  Explanation   `firestore:"explanation"`
	Citations    []Citation    `firestore:"citations"`
	CitationMeta CitationMeta  `firestore:"citationMeta"`
	TopicTags    []string      `firestore:"topicTags"`
	Difficulty   int           `firestore:"difficulty"`
	SourceRef    string        `firestore:"sourceRef"`
	Stats        QuestionStats `firestore:"stats"`
	CreatedAt    time.Time     `firestore:"createdAt"`
}

// TutorResponse is the normalized answer-review payload. A nil TutorResponse
// means no tutoring is available for the request, which is not an error.
type TutorResponse struct {
	CorrectAnswer string `json:"correctAnswer"`
	WhyCorrect    string `json:"whyCorrect"`
	WhyYoursWrong string `json:"whyYoursWrong,omitempty"`
	Hint          string `json:"hint,omitempty"`
}
