package normalize

import (
	"github.com/mcalverley/studypipeline/internal/models"
)

const (
	maxPageTextLen = 20000
	maxPageRecords = 100
	maxRecordLen   = 1000
	maxHeadings    = 20
)

// VisionPage maps one raw page-extraction object into the canonical per-page
// shape. The page number is stamped by the caller, which knows the batch
// position. An object with neither text nor records is nil (a unit failure).
func VisionPage(raw map[string]any) *models.VisionPage {
	if raw == nil {
		return nil
	}

	page := &models.VisionPage{
		Text:     SanitizeText(getStr(raw, "text", "content", "page_text", "pageText"), maxPageTextLen),
		Headings: strList(getList(raw, "headings", "headers"), maxHeadings, maxItemLen),
	}

	for _, item := range getList(raw, "records", "items") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		r := models.PageRecord{
			Kind: SanitizeText(getStr(m, "kind", "type"), 40),
			Text: SanitizeText(getStr(m, "text", "content"), maxRecordLen),
		}
		if r.Text == "" {
			continue
		}
		if r.Kind == "" {
			r.Kind = "other"
		}
		page.Records = append(page.Records, r)
		if len(page.Records) == maxPageRecords {
			break
		}
	}

	if page.Text == "" && len(page.Records) == 0 {
		return nil
	}
	return page
}
