package normalize

import (
	"regexp"
	"strings"

	"github.com/mcalverley/studypipeline/internal/models"
)

// Field length and count caps for blueprint content.
const (
	maxTitleLen   = 120
	maxSummaryLen = 1500
	maxListItems  = 12
	maxItemLen    = 300
	maxTopicTags  = 5
	maxTerms      = 20
)

const defaultDifficulty = 3

// genericTitleRe matches placeholder titles like "Section 3", "Pages 11-20"
// or "Untitled" that carry no information about the content.
var genericTitleRe = regexp.MustCompile(`(?i)^\s*(section|chapter|part|unit|page|pages|slide|slides|lecture|module|untitled|introduction)\b[\s\d.,:;\-–—]*$`)

// Blueprint maps a raw blueprint object into the canonical schema. It
// returns nil when the object carries no usable teaching content at all.
func Blueprint(raw map[string]any) *models.Blueprint {
	if raw == nil {
		return nil
	}

	bp := &models.Blueprint{
		Title:           SanitizeText(getStr(raw, "title"), maxTitleLen),
		Summary:         SanitizeText(getStr(raw, "summary"), maxSummaryLen),
		Objectives:      strList(getList(raw, "objectives", "learning_objectives", "learningObjectives"), maxListItems, maxItemLen),
		KeyConcepts:     strList(getList(raw, "key_concepts", "keyConcepts"), maxListItems, maxItemLen),
		HighYieldPoints: strList(getList(raw, "high_yield_points", "highYieldPoints"), maxListItems, maxItemLen),
		CommonTraps:     strList(getList(raw, "common_traps", "commonTraps"), maxListItems, maxItemLen),
		Terms:           terms(getList(raw, "terms", "key_terms", "keyTerms")),
		TopicTags:       strList(getList(raw, "topic_tags", "topicTags", "tags"), maxTopicTags, maxItemLen),
		Difficulty:      defaultDifficulty,
	}
	if d, ok := getNum(raw, "difficulty", "difficulty_level", "difficultyLevel"); ok {
		bp.Difficulty = clampInt(int(d), 1, 5)
	}

	if bp.Summary == "" && len(bp.Objectives) == 0 && len(bp.KeyConcepts) == 0 &&
		len(bp.HighYieldPoints) == 0 && len(bp.Terms) == 0 {
		return nil
	}
	return bp
}

func terms(items []any) []models.Term {
	var out []models.Term
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t := models.Term{
			Term:       SanitizeText(getStr(m, "term", "name", "word"), maxItemLen),
			Definition: SanitizeText(getStr(m, "definition", "meaning"), maxItemLen),
		}
		if t.Term == "" || t.Definition == "" {
			continue
		}
		out = append(out, t)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// DeriveTitle replaces empty or generic titles with one built from blueprint
// content, trying topic tags, key concepts, terms, objectives and high-yield
// points in that order. A second distinct candidate, when available, is
// appended with " - ".
func DeriveTitle(rawTitle string, bp *models.Blueprint) string {
	rawTitle = SanitizeText(rawTitle, maxTitleLen)
	if !IsGenericTitle(rawTitle) {
		return rawTitle
	}
	if bp == nil {
		return rawTitle
	}

	var candidates []string
	candidates = append(candidates, bp.TopicTags...)
	candidates = append(candidates, bp.KeyConcepts...)
	for _, t := range bp.Terms {
		candidates = append(candidates, t.Term)
	}
	candidates = append(candidates, bp.Objectives...)
	candidates = append(candidates, bp.HighYieldPoints...)

	var picked []string
	for _, c := range candidates {
		c = Truncate(strings.TrimSpace(c), maxTitleLen/2)
		if IsGenericTitle(c) {
			continue
		}
		if len(picked) > 0 && strings.EqualFold(picked[0], c) {
			continue
		}
		picked = append(picked, c)
		if len(picked) == 2 {
			break
		}
	}

	switch len(picked) {
	case 0:
		return rawTitle
	case 1:
		return picked[0]
	default:
		return picked[0] + " - " + picked[1]
	}
}

// IsGenericTitle reports whether a title is empty or a placeholder.
func IsGenericTitle(title string) bool {
	title = strings.TrimSpace(title)
	return title == "" || genericTitleRe.MatchString(title)
}
