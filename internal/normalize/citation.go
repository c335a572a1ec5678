package normalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mcalverley/studypipeline/internal/models"
)

// Citation limits: accept up to MaxCitationsIn raw entries, keep at most
// MaxCitationsOut after dedup.
const (
	MaxCitationsIn  = 8
	MaxCitationsOut = 3

	maxCitationField = 200
)

// trustedSource backs the deterministic citation fallback: one citation per
// source, pointing at that source's search page.
type trustedSource struct {
	name      string
	searchURL string
}

var trustedSources = []trustedSource{
	{name: "PubMed", searchURL: "https://pubmed.ncbi.nlm.nih.gov/?term="},
	{name: "NCBI Bookshelf", searchURL: "https://www.ncbi.nlm.nih.gov/books/?term="},
	{name: "OpenStax", searchURL: "https://openstax.org/search?q="},
}

// Citations normalizes raw citation entries: sanitize, deduplicate by
// (source, normalized title) with canonical URL as tiebreak, cap at three,
// and rate evidence quality from count and source diversity. When nothing
// survives, a deterministic fallback of exactly three search-URL citations
// is generated from the query — citations are never empty.
func Citations(raw []any, fallbackQuery string) ([]models.Citation, models.CitationMeta) {
	if len(raw) > MaxCitationsIn {
		raw = raw[:MaxCitationsIn]
	}

	seen := make(map[string]bool)
	sources := make(map[string]bool)
	var out []models.Citation

	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := models.Citation{
			Source: SanitizeText(getStr(m, "source", "publisher"), maxCitationField),
			Title:  SanitizeText(getStr(m, "title", "name"), maxCitationField),
			URL:    strings.TrimSpace(getStr(m, "url", "link", "href")),
		}
		if !validURL(c.URL) {
			continue
		}
		if c.Source == "" && c.Title == "" {
			continue
		}

		key := dedupKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, c)
		sources[strings.ToLower(c.Source)] = true
		if len(out) == MaxCitationsOut {
			break
		}
	}

	if len(out) == 0 {
		return fallbackCitations(fallbackQuery)
	}

	return out, models.CitationMeta{
		Count:           len(out),
		EvidenceQuality: evidenceQuality(len(out), len(sources)),
	}
}

// fallbackCitations builds one search citation per trusted source. Fallbacks
// are rated LOW regardless of their nominal diversity.
func fallbackCitations(query string) ([]models.Citation, models.CitationMeta) {
	query = SanitizeText(query, maxCitationField)
	if query == "" {
		query = "medical education"
	}

	out := make([]models.Citation, 0, len(trustedSources))
	for _, src := range trustedSources {
		out = append(out, models.Citation{
			Source: src.name,
			Title:  fmt.Sprintf("%s search: %s", src.name, query),
			URL:    src.searchURL + url.QueryEscape(query),
		})
	}
	return out, models.CitationMeta{Count: len(out), EvidenceQuality: models.EvidenceLow}
}

func evidenceQuality(count, distinctSources int) string {
	switch {
	case count >= 3 && distinctSources >= 2:
		return models.EvidenceHigh
	case count >= 2:
		return models.EvidenceModerate
	default:
		return models.EvidenceLow
	}
}

// dedupKey prefers (source, normalized title); when both are empty the
// canonical URL identifies the citation.
func dedupKey(c models.Citation) string {
	title := normalizeTitle(c.Title)
	source := strings.ToLower(strings.TrimSpace(c.Source))
	if source != "" || title != "" {
		return source + "|" + title
	}
	return "url|" + canonicalURL(c.URL)
}

func normalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	return strings.Join(strings.Fields(title), " ")
}

func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
