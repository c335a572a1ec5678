package normalize

import (
	"net/url"
	"testing"

	"github.com/mcalverley/studypipeline/internal/models"
)

func TestCitationsFallbackIsNeverEmpty(t *testing.T) {
	citations, meta := Citations(nil, "beta blockers")
	if len(citations) != 3 {
		t.Fatalf("expected exactly 3 fallback citations, got %d", len(citations))
	}
	seenSources := map[string]bool{}
	for _, c := range citations {
		if seenSources[c.Source] {
			t.Fatalf("duplicate fallback source %q", c.Source)
		}
		seenSources[c.Source] = true
		u, err := url.Parse(c.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			t.Fatalf("fallback citation URL %q is not valid", c.URL)
		}
	}
	if meta.EvidenceQuality != models.EvidenceLow {
		t.Fatalf("fallback quality should be LOW, got %s", meta.EvidenceQuality)
	}
}

func TestCitationsFallbackEscapesQuery(t *testing.T) {
	citations, _ := Citations([]any{}, "heart failure & EF <40%")
	for _, c := range citations {
		if _, err := url.ParseRequestURI(c.URL); err != nil {
			t.Fatalf("URL %q not parseable: %v", c.URL, err)
		}
	}
}

func TestCitationsDeduplicates(t *testing.T) {
	raw := []any{
		map[string]any{"source": "PubMed", "title": "Beta Blockers in HF", "url": "https://pubmed.ncbi.nlm.nih.gov/123"},
		map[string]any{"source": "pubmed", "title": "beta blockers  in HF", "url": "https://pubmed.ncbi.nlm.nih.gov/456"},
		map[string]any{"source": "UpToDate", "title": "Heart Failure", "url": "https://www.uptodate.com/hf"},
	}
	citations, meta := Citations(raw, "hf")
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations after dedup, got %d", len(citations))
	}
	if meta.Count != 2 || meta.EvidenceQuality != models.EvidenceModerate {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestCitationsKeepsAtMostThree(t *testing.T) {
	var raw []any
	for _, s := range []string{"A", "B", "C", "D", "E"} {
		raw = append(raw, map[string]any{"source": s, "title": "Topic " + s, "url": "https://example.org/" + s})
	}
	citations, meta := Citations(raw, "")
	if len(citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(citations))
	}
	if meta.EvidenceQuality != models.EvidenceHigh {
		t.Fatalf("3 citations from 3 sources should rate HIGH, got %s", meta.EvidenceQuality)
	}
}

func TestCitationsDropsInvalidURLs(t *testing.T) {
	raw := []any{
		map[string]any{"source": "Somewhere", "title": "No URL"},
		map[string]any{"source": "Elsewhere", "title": "Bad scheme", "url": "javascript:alert(1)"},
	}
	citations, _ := Citations(raw, "renal physiology")
	// Both dropped, so the deterministic fallback kicks in.
	if len(citations) != 3 {
		t.Fatalf("expected fallback of 3, got %d", len(citations))
	}
	for _, c := range citations {
		if c.Source != "PubMed" && c.Source != "NCBI Bookshelf" && c.Source != "OpenStax" {
			t.Fatalf("unexpected fallback source %q", c.Source)
		}
	}
}
