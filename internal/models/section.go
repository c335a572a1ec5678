package models

import "time"

// Analysis status per Section. ANALYZED and FAILED are terminal.
const (
	AIStatusPending    = "PENDING"
	AIStatusProcessing = "PROCESSING"
	AIStatusAnalyzed   = "ANALYZED"
	AIStatusFailed     = "FAILED"
)

// Question generation status per Section, evolving independently of AIStatus.
// COMPLETED and FAILED are terminal.
const (
	QuestionsStatusPending    = "PENDING"
	QuestionsStatusGenerating = "GENERATING"
	QuestionsStatusCompleted  = "COMPLETED"
	QuestionsStatusFailed     = "FAILED"
)

// ContentRef unit types. The type is inferred from the extractor output: page
// ranges for PDFs, slide ranges for presentations, word offsets otherwise.
const (
	RefTypePage  = "page"
	RefTypeSlide = "slide"
	RefTypeWord  = "word"
)

// ContentRef locates a section inside its source document.
type ContentRef struct {
	Type       string `firestore:"type" json:"type"`
	StartIndex int    `firestore:"startIndex" json:"startIndex"`
	EndIndex   int    `firestore:"endIndex" json:"endIndex"`
}

// Term is a single term/definition pair inside a Blueprint.
type Term struct {
	Term       string `firestore:"term" json:"term"`
	Definition string `firestore:"definition" json:"definition"`
}

// Blueprint is the structured teaching summary produced by the first AI pass
// over a section's text.
type Blueprint struct {
	Title           string   `firestore:"title" json:"title"`
	Summary         string   `firestore:"summary" json:"summary"`
	Objectives      []string `firestore:"objectives" json:"objectives"`
	KeyConcepts     []string `firestore:"keyConcepts" json:"keyConcepts"`
	HighYieldPoints []string `firestore:"highYieldPoints" json:"highYieldPoints"`
	CommonTraps     []string `firestore:"commonTraps" json:"commonTraps"`
	Terms           []Term   `firestore:"terms" json:"terms"`
	TopicTags       []string `firestore:"topicTags" json:"topicTags"`
	Difficulty      int      `firestore:"difficulty" json:"difficulty"`
}

// Section is one bounded chunk of a File and the unit of AI analysis.
type Section struct {
	FileID            string     `firestore:"fileId"`
	CourseID          string     `firestore:"courseId"`
	OwnerID           string     `firestore:"ownerId"`
	Title             string     `firestore:"title"`
	ContentRef        ContentRef `firestore:"contentRef"`
	TextBlobPath      string     `firestore:"textBlobPath"`
	EstMinutes        int        `firestore:"estMinutes"`
	Difficulty        int        `firestore:"difficulty"`
	TopicTags         []string   `firestore:"topicTags"`
	AIStatus          string     `firestore:"aiStatus"`
	QuestionsStatus   string     `firestore:"questionsStatus"`
	QuestionsCount    int        `firestore:"questionsCount"`
	Blueprint         *Blueprint `firestore:"blueprint,omitempty"`
	OrderIndex        int        `firestore:"orderIndex"`
	ErrorMessage      string     `firestore:"errorMessage,omitempty"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	AnalysisStartedAt time.Time  `firestore:"analysisStartedAt,omitempty"`
}
