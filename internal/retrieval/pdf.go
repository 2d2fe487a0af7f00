package retrieval

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/semaphore"

	"deepresearch/internal/logging"
)

// pdfExtractor extracts plain text from PDF bodies on a bounded worker
// pool. PDF parsing is CPU-heavy and occasionally pathological, so the
// semaphore keeps concurrent extractions from starving the rest of the
// engine.
type pdfExtractor struct {
	sem *semaphore.Weighted
}

func newPDFExtractor(workers int) *pdfExtractor {
	if workers < 1 {
		workers = 1
	}
	return &pdfExtractor{sem: semaphore.NewWeighted(int64(workers))}
}

// extract returns the PDF's text, or "" on any parse failure.
func (e *pdfExtractor) extract(ctx context.Context, pageURL string, body []byte) string {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return ""
	}
	defer e.sem.Release(1)

	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			logging.Retriever("pdf extraction panicked for %s: %v", pageURL, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		logging.Retriever("pdf open failed for %s: %v", pageURL, err)
		return ""
	}

	var sb strings.Builder
	for page := 1; page <= reader.NumPage(); page++ {
		p := reader.Page(page)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}
