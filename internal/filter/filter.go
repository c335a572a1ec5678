// Package filter gates sections before they reach the AI stages, dropping
// front matter, copyright pages and other non-instructional content.
package filter

import (
	"fmt"
	"strings"
)

const (
	// Markers are only scanned in a prefix of the text; front matter
	// announces itself early.
	prefixWindow = 600
	minTextLen   = 120

	scoreThreshold = 1.2
)

var frontMatterMarkers = []string{
	"table of contents",
	"preface",
	"foreword",
	"acknowledgment",
	"acknowledgement",
	"about the author",
	"about the editors",
	"list of contributors",
	"dedication",
	"index of",
	"this page intentionally",
}

var metadataMarkers = []string{
	"all rights reserved",
	"copyright",
	"isbn",
	"published by",
	"printed in",
	"library of congress",
	"no part of this publication",
	"trademark",
	"first edition",
	"second edition",
	"third edition",
}

var instructionalMarkers = []string{
	"patient",
	"diagnosis",
	"treatment",
	"clinical",
	"syndrome",
	"symptom",
	"disease",
	"therapy",
	"mechanism",
	"pathway",
	"receptor",
	"dose",
	"management",
	"physiology",
	"anatomy",
}

// Decision is the filter verdict for one section. Reason and Score exist for
// audit logging of dropped sections.
type Decision struct {
	Include bool
	Reason  string
	Score   float64
}

// Evaluate scores a section for non-instructional likelihood. Rules apply in
// order: minimum length, front-matter density, metadata dominance, then a
// combined weighted score.
func Evaluate(title, text string) Decision {
	if len(text) < minTextLen {
		return Decision{Include: false, Reason: fmt.Sprintf("text too short (%d chars)", len(text))}
	}

	window := strings.ToLower(title + "\n" + prefix(text, prefixWindow))
	front := countHits(window, frontMatterMarkers)
	meta := countHits(window, metadataMarkers)
	instructional := countHits(window, instructionalMarkers)

	score := 0.5*float64(front) + 0.4*float64(meta) - 0.3*float64(instructional)

	if front >= 2 {
		return Decision{Include: false, Reason: fmt.Sprintf("front-matter markers (%d hits)", front), Score: score}
	}
	if meta >= 2 && instructional == 0 {
		return Decision{Include: false, Reason: fmt.Sprintf("document metadata (%d hits, no instructional content)", meta), Score: score}
	}
	if score >= scoreThreshold {
		return Decision{Include: false, Reason: fmt.Sprintf("combined score %.1f above threshold", score), Score: score}
	}
	return Decision{Include: true, Reason: "instructional content", Score: score}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func countHits(window string, markers []string) int {
	hits := 0
	for _, m := range markers {
		if strings.Contains(window, m) {
			hits++
		}
	}
	return hits
}
