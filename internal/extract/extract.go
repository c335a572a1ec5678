// Package extract turns a downloaded document into bounded-size raw sections
// ready for AI analysis. Extraction itself is delegated to docconv; PDFs get
// a pdfcpu preflight pass first so corrupt uploads fail with a clear error.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mcalverley/studypipeline/internal/models"
)

// ErrUnsupportedType marks a content type no extractor handles. The pipeline
// treats it as a no-op, not a failure.
var ErrUnsupportedType = errors.New("unsupported content type")

// Supported declared content types.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// Chunking bounds. Reading speed of 200 words per minute drives the
// estMinutes field.
const (
	maxSectionWords = 1200
	wordsPerMinute  = 200
)

// Span is a half-open location range within the source document.
type Span struct {
	Start int
	End   int
}

// RawSection is the loosely-typed extractor output. Exactly one of Pages,
// Slides or Words is set; which one determines the contentRef type.
type RawSection struct {
	Text       string
	Title      string
	Pages      *Span
	Slides     *Span
	Words      *Span
	EstMinutes int
}

// ContentRef infers the canonical content reference from whichever span the
// extractor populated.
func (s RawSection) ContentRef() models.ContentRef {
	switch {
	case s.Pages != nil:
		return models.ContentRef{Type: models.RefTypePage, StartIndex: s.Pages.Start, EndIndex: s.Pages.End}
	case s.Slides != nil:
		return models.ContentRef{Type: models.RefTypeSlide, StartIndex: s.Slides.Start, EndIndex: s.Slides.End}
	case s.Words != nil:
		return models.ContentRef{Type: models.RefTypeWord, StartIndex: s.Words.Start, EndIndex: s.Words.End}
	default:
		return models.ContentRef{Type: models.RefTypeWord}
	}
}

// Extractor produces raw sections from a downloaded file.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]RawSection, error)
}

// ForContentType selects the extractor for a declared content type.
func ForContentType(contentType string) (Extractor, error) {
	// Strip any charset or boundary parameters.
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	switch contentType {
	case MimePDF:
		return &PDFExtractor{}, nil
	case MimeDOCX:
		return &DocxExtractor{}, nil
	case MimePPTX:
		return &PptxExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

// PDFExtractor preflights the PDF with pdfcpu, then extracts text via
// docconv and chunks it with page spans distributed across the page count.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]RawSection, error) {
	optimized := filepath.Join(filepath.Dir(path), "optimized.pdf")
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, optimized, cfg); err != nil {
		return nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	text, err := convert(optimized, MimePDF)
	if err != nil {
		return nil, err
	}

	chunks := chunkWords(text, maxSectionWords)
	sections := make([]RawSection, len(chunks))
	for i, c := range chunks {
		sections[i] = RawSection{
			Text:       c.text,
			Title:      c.title,
			Pages:      pageSpan(i, len(chunks), pageCount),
			EstMinutes: estMinutes(c.wordCount),
		}
	}
	return sections, nil
}

// DocxExtractor chunks word-processing text by word offsets.
type DocxExtractor struct{}

func (e *DocxExtractor) Extract(ctx context.Context, path string) ([]RawSection, error) {
	text, err := convert(path, MimeDOCX)
	if err != nil {
		return nil, err
	}

	chunks := chunkWords(text, maxSectionWords)
	sections := make([]RawSection, len(chunks))
	offset := 0
	for i, c := range chunks {
		sections[i] = RawSection{
			Text:       c.text,
			Title:      c.title,
			Words:      &Span{Start: offset, End: offset + c.wordCount},
			EstMinutes: estMinutes(c.wordCount),
		}
		offset += c.wordCount
	}
	return sections, nil
}

// PptxExtractor chunks presentation text by slide ranges. docconv separates
// slides with form feeds; each chunk covers the slides its text came from.
type PptxExtractor struct{}

func (e *PptxExtractor) Extract(ctx context.Context, path string) ([]RawSection, error) {
	text, err := convert(path, MimePPTX)
	if err != nil {
		return nil, err
	}

	slides := splitSlides(text)
	var sections []RawSection
	start := 0
	var buf []string
	words := 0
	flush := func(end int) {
		if len(buf) == 0 {
			return
		}
		body := strings.Join(buf, "\n\n")
		sections = append(sections, RawSection{
			Text:       body,
			Title:      firstHeadingLine(body),
			Slides:     &Span{Start: start + 1, End: end + 1},
			EstMinutes: estMinutes(words),
		})
		buf = nil
		words = 0
	}
	for i, slide := range slides {
		if words > 0 && words+countWords(slide) > maxSectionWords {
			flush(i - 1)
			start = i
		}
		buf = append(buf, slide)
		words += countWords(slide)
	}
	flush(len(slides) - 1)
	return sections, nil
}

func convert(path, mimeType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, mimeType, false)
	if err != nil {
		return "", fmt.Errorf("text extraction failed for %s: %w", mimeType, err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return "", fmt.Errorf("extracted no text from document")
	}
	return res.Body, nil
}

type chunk struct {
	text      string
	title     string
	wordCount int
}

// chunkWords splits text into chunks of at most maxWords words, breaking on
// paragraph boundaries where possible.
func chunkWords(text string, maxWords int) []chunk {
	paragraphs := splitParagraphs(text)
	var chunks []chunk
	var buf []string
	words := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		body := strings.Join(buf, "\n\n")
		chunks = append(chunks, chunk{text: body, title: firstHeadingLine(body), wordCount: words})
		buf = nil
		words = 0
	}

	for _, p := range paragraphs {
		pw := countWords(p)
		if pw > maxWords {
			// A single oversize paragraph is split mid-paragraph.
			flush()
			fields := strings.Fields(p)
			for start := 0; start < len(fields); start += maxWords {
				end := start + maxWords
				if end > len(fields) {
					end = len(fields)
				}
				body := strings.Join(fields[start:end], " ")
				chunks = append(chunks, chunk{text: body, title: firstHeadingLine(body), wordCount: end - start})
			}
			continue
		}
		if words > 0 && words+pw > maxWords {
			flush()
		}
		buf = append(buf, p)
		words += pw
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSlides(text string) []string {
	var out []string
	for _, s := range strings.Split(text, "\f") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return out
}

// firstHeadingLine returns the first short line of the text as a provisional
// title; the normalizer derives a better one from the blueprint later.
func firstHeadingLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if countWords(line) <= 12 {
			return line
		}
		break
	}
	return ""
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func estMinutes(words int) int {
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// pageSpan distributes chunk i of n across pageCount pages proportionally.
func pageSpan(i, n, pageCount int) *Span {
	if pageCount < 1 {
		pageCount = 1
	}
	start := i*pageCount/n + 1
	end := (i + 1) * pageCount / n
	if end < start {
		end = start
	}
	return &Span{Start: start, End: end}
}
