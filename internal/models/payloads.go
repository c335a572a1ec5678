package models

// These structs define the JSON payloads of the HTTP functions.

// BatchVisionRequest is the input of the batch-vision function. Images are
// base64 strings or data URLs, one per page.
type BatchVisionRequest struct {
	Images      []string `json:"images"`
	Concurrency int      `json:"concurrency,omitempty"`
}

// PageRecord is one structured item extracted from a page.
type PageRecord struct {
	Page int    `json:"page"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// VisionPage is the per-page extraction result.
type VisionPage struct {
	Page     int          `json:"page"`
	Text     string       `json:"text"`
	Headings []string     `json:"headings,omitempty"`
	Records  []PageRecord `json:"records,omitempty"`
	Ms       int64        `json:"ms"`
}

// PageFailure records a single page that could not be extracted.
type PageFailure struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
	Ms    int64  `json:"ms"`
}

// BatchVisionMeta summarizes a whole batch. PagesSucceeded+PagesFailed is
// always PagesTotal.
type BatchVisionMeta struct {
	Model          string `json:"model"`
	TotalMs        int64  `json:"totalMs"`
	PagesTotal     int    `json:"pagesTotal"`
	PagesSucceeded int    `json:"pagesSucceeded"`
	PagesFailed    int    `json:"pagesFailed"`
}

// BatchVisionData is returned synchronously to the caller and never stored.
type BatchVisionData struct {
	Results  []PageRecord    `json:"results"`
	Pages    []VisionPage    `json:"pages"`
	Failures []PageFailure   `json:"failures"`
	Meta     BatchVisionMeta `json:"meta"`
}

// BatchVisionResponse is the envelope of the batch-vision function.
type BatchVisionResponse struct {
	Success bool             `json:"success"`
	Data    *BatchVisionData `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// RetryRequest is the input of the retry-failed function.
type RetryRequest struct {
	FileID string `json:"fileId"`
}

// RetryData reports how many sections were re-queued.
type RetryData struct {
	RetriedCount int    `json:"retriedCount"`
	Message      string `json:"message"`
}

// RetryResponse is the envelope of the retry-failed function.
type RetryResponse struct {
	Success bool       `json:"success"`
	Data    *RetryData `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// TutorRequest is the input of the tutor-explain function.
type TutorRequest struct {
	SectionID   string   `json:"sectionId"`
	Stem        string   `json:"stem"`
	Options     []string `json:"options"`
	ChosenIndex int      `json:"chosenIndex"`
}

// TutorResponseEnvelope wraps the normalized tutor payload. Available is
// false when the model output could not be normalized.
type TutorResponseEnvelope struct {
	Success   bool           `json:"success"`
	Available bool           `json:"available"`
	Data      *TutorResponse `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}
