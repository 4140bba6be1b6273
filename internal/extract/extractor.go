// Package extract implements the Metadata Extractor (§4.5): it wraps the
// external NER recognizer and regex-based date/email extraction, applies
// the Entity Validator, and produces a DocumentMetadata per document.
package extract

import (
	"context"
	"regexp"

	"github.com/tarunchinta/epsteinai/internal/entity"
	"github.com/tarunchinta/epsteinai/internal/model"
	"github.com/tarunchinta/epsteinai/internal/ner"
	"github.com/tarunchinta/epsteinai/internal/normalize"
)

// maxNERChars bounds the text slice fed to NER to cap latency on
// pathological documents. Documents longer than this still produce
// metadata for their prefix; this is documented behavior, not a quality
// goal.
const maxNERChars = 100_000

var (
	dateISO      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	dateSlash    = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	dateDash     = regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`)
	dateMonthDay = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:,)?\s+\d{4}\b`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Extractor produces DocumentMetadata for a Document.
type Extractor struct {
	recognizer ner.Recognizer
}

// New returns an Extractor that uses recognizer for typed entity spans.
func New(recognizer ner.Recognizer) *Extractor {
	return &Extractor{recognizer: recognizer}
}

// Extract builds the DocumentMetadata for doc. Entity candidates from NER
// are validated but NOT yet consolidated; callers run consolidation
// across the whole corpus before persisting canonical names.
func (e *Extractor) Extract(ctx context.Context, doc model.Document) (*model.DocumentMetadata, error) {
	meta := model.NewDocumentMetadata(doc.ID)

	nerSlice := doc.RawText
	if len(nerSlice) > maxNERChars {
		nerSlice = nerSlice[:maxNERChars]
	}

	spans, err := e.recognizer.Extract(ctx, nerSlice)
	if err != nil {
		return nil, err
	}

	for _, span := range spans {
		if !entity.Validate(span.Text, span.Type) {
			continue
		}
		if set := meta.SetFor(span.Type); set != nil {
			set[span.Text] = struct{}{}
		}
	}

	for _, d := range extractDates(doc.RawText) {
		meta.Dates[d] = struct{}{}
	}
	for _, em := range extractEmails(doc.RawText) {
		meta.Emails[em] = struct{}{}
	}

	meta.WordCount = countWords(doc.RawText)

	return meta, nil
}

// extractDates returns every date-like substring matching one of the
// closed set of patterns in §4.5, deduplicated, in the surface form
// found — no normalization is promised (see §6's date-format note).
func extractDates(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(matches []string) {
		for _, m := range matches {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				out = append(out, m)
			}
		}
	}
	add(dateISO.FindAllString(text, -1))
	add(dateSlash.FindAllString(text, -1))
	add(dateDash.FindAllString(text, -1))
	add(dateMonthDay.FindAllString(text, -1))
	return out
}

// extractEmails returns every email-like substring, deduplicated.
func extractEmails(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range emailPattern.FindAllString(text, -1) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// countWords returns the number of tokens that are not pure punctuation,
// using the same tokenizer view as the BM25 engine.
func countWords(text string) int {
	return len(normalize.Tokenize(text))
}
