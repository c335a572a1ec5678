package normalize

import (
	"github.com/mcalverley/studypipeline/internal/models"
)

// Question shape limits.
const (
	MaxOptions = 8

	maxStemLen        = 600
	maxOptionLen      = 300
	maxExplanationLen = 800
)

// WhyWrongFiller pads per-option explanations the model omitted so that
// index-based lookups always land on something sensible.
const WhyWrongFiller = "This option is not the best answer for this question."

// Question maps one raw question object into the canonical schema. A missing
// stem, options array or correct index makes the item invalid; the caller
// discards nil results. FallbackQuery seeds citation fallbacks when the item
// arrives with none.
func Question(raw map[string]any, fallbackQuery string) *models.Question {
	if raw == nil {
		return nil
	}

	stem := SanitizeText(getStr(raw, "stem", "question", "question_text", "questionText"), maxStemLen)
	if stem == "" {
		return nil
	}

	rawOptions := getList(raw, "options", "choices", "answers")
	if rawOptions == nil {
		return nil
	}

	// Sanitize options while remembering where each survivor came from, so
	// the correct index can be remapped after drops. An index still counting
	// raw positions would mark the wrong option correct.
	options := make([]string, 0, len(rawOptions))
	newIndex := make([]int, len(rawOptions))
	for i, item := range rawOptions {
		newIndex[i] = -1
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = SanitizeText(s, maxOptionLen)
		if s == "" {
			continue
		}
		if len(options) == MaxOptions {
			break
		}
		newIndex[i] = len(options)
		options = append(options, s)
	}
	if len(options) < 2 {
		return nil
	}

	ci, ok := getNum(raw, "correct_index", "correctIndex", "correct_answer_index", "correctAnswerIndex")
	if !ok {
		return nil
	}
	correctIndex := newIndex[clampInt(int(ci), 0, len(rawOptions)-1)]
	if correctIndex < 0 {
		// The marked answer itself was dropped; there is no safe remapping.
		return nil
	}

	if fallbackQuery == "" {
		fallbackQuery = stem
	}

	q := &models.Question{
		Stem:         stem,
		Options:      options,
		CorrectIndex: correctIndex,
		Explanation:  explanation(getObj(raw, "explanation"), len(options)),
		TopicTags:    strList(getList(raw, "topic_tags", "topicTags", "tags"), maxTopicTags, maxItemLen),
		Difficulty:   defaultDifficulty,
	}
	q.Citations, q.CitationMeta = Citations(getList(raw, "citations", "references"), fallbackQuery)
	if d, ok := getNum(raw, "difficulty", "difficulty_level", "difficultyLevel"); ok {
		q.Difficulty = clampInt(int(d), 1, 5)
	}
	return q
}

// explanation normalizes the explanation block, forcing WhyOthersWrong to
// exactly optionCount entries.
func explanation(raw map[string]any, optionCount int) models.Explanation {
	e := models.Explanation{}
	if raw != nil {
		e.CorrectWhy = SanitizeText(getStr(raw, "correct_why", "correctWhy", "why_correct", "whyCorrect"), maxExplanationLen)
		e.KeyTakeaway = SanitizeText(getStr(raw, "key_takeaway", "keyTakeaway", "takeaway"), maxExplanationLen)
		e.WhyOthersWrong = strList(getList(raw, "why_others_wrong", "whyOthersWrong"), MaxOptions, maxExplanationLen)
	}

	if len(e.WhyOthersWrong) > optionCount {
		e.WhyOthersWrong = e.WhyOthersWrong[:optionCount]
	}
	for len(e.WhyOthersWrong) < optionCount {
		e.WhyOthersWrong = append(e.WhyOthersWrong, WhyWrongFiller)
	}
	return e
}
