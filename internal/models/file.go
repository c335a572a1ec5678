package models

import "time"

// File status lifecycle. READY and FAILED are terminal; a FAILED file is
// retried by re-uploading, not by the pipeline.
const (
	FileStatusPending    = "PENDING"
	FileStatusProcessing = "PROCESSING"
	FileStatusReady      = "READY"
	FileStatusFailed     = "FAILED"
)

// Processing phases a File moves through while PROCESSING. The phase field
// is cleared ("") whenever the file reaches a terminal status.
const (
	PhaseExtracting          = "EXTRACTING"
	PhaseAnalyzing           = "ANALYZING"
	PhaseGeneratingQuestions = "GENERATING_QUESTIONS"
)

// File is the master record for one uploaded document. It is created by the
// upload flow with status PENDING and mutated only by the pipeline afterwards.
type File struct {
	OwnerID         string    `firestore:"ownerId,omitempty"`
	CourseID        string    `firestore:"courseId,omitempty"`
	Name            string    `firestore:"name,omitempty"`
	ContentType     string    `firestore:"contentType,omitempty"`
	Status          string    `firestore:"status,omitempty"`
	ProcessingPhase string    `firestore:"processingPhase"`
	SectionCount    int       `firestore:"sectionCount,omitempty"`
	ErrorMessage    string    `firestore:"errorMessage,omitempty"`
	CreatedAt       time.Time `firestore:"createdAt,omitempty"`
	ProcessedAt     time.Time `firestore:"processedAt,omitempty"`
}
