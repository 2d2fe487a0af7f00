// Package retrieval fetches web page content for summarization. The engine
// contract is deliberately forgiving: a fetch that fails for any reason
// yields an empty string, and the caller falls back to the search snippet.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"deepresearch/internal/config"
	"deepresearch/internal/logging"
)

// Retriever fetches the readable text of a URL.
type Retriever interface {
	// Fetch returns extracted page text, truncated to the configured cap.
	// Returns "" when the URL cannot or should not be fetched.
	Fetch(ctx context.Context, pageURL string) string
}

// HTTPRetriever fetches pages over HTTP(S) and extracts text from HTML,
// plain text, and (optionally) PDF responses.
type HTTPRetriever struct {
	client          *http.Client
	maxContentChars int
	userAgent       string
	pdf             *pdfExtractor
}

// maxBodyBytes caps how much of a response is read before extraction.
const maxBodyBytes = 4 << 20

// NewHTTPRetriever builds a retriever from the retrieval configuration.
func NewHTTPRetriever(cfg *config.Config) (*HTTPRetriever, error) {
	timeout, err := cfg.RetrievalTimeout()
	if err != nil {
		return nil, err
	}
	r := &HTTPRetriever{
		client:          &http.Client{Timeout: timeout},
		maxContentChars: cfg.Retrieval.MaxContentChars,
		userAgent:       cfg.Retrieval.UserAgent,
	}
	if cfg.Retrieval.EnablePDF {
		r.pdf = newPDFExtractor(cfg.Retrieval.PDFWorkers)
	}
	return r, nil
}

// Fetch implements Retriever.
func (r *HTTPRetriever) Fetch(ctx context.Context, pageURL string) string {
	if err := checkFetchable(pageURL); err != nil {
		logging.RetrieverDebug("skipping %s: %v", pageURL, err)
		return ""
	}
	return r.fetchUnchecked(ctx, pageURL)
}

// fetchUnchecked performs the fetch after the address guard has passed.
func (r *HTTPRetriever) fetchUnchecked(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		logging.Retriever("fetch failed for %s: %v", pageURL, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Retriever("fetch of %s returned http %d", pageURL, resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		logging.Retriever("read failed for %s: %v", pageURL, err)
		return ""
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case strings.Contains(contentType, "application/pdf"),
		strings.HasSuffix(strings.ToLower(strippedPath(pageURL)), ".pdf"):
		if r.pdf == nil {
			logging.RetrieverDebug("pdf extraction disabled, skipping %s", pageURL)
			return ""
		}
		text = r.pdf.extract(ctx, pageURL, body)
	case strings.Contains(contentType, "text/html"), contentType == "":
		text = extractHTMLText(body)
	case strings.HasPrefix(contentType, "text/"):
		text = string(body)
	default:
		logging.RetrieverDebug("unsupported content type %q for %s", contentType, pageURL)
		return ""
	}

	text = strings.TrimSpace(text)
	if r.maxContentChars > 0 && len(text) > r.maxContentChars {
		text = text[:r.maxContentChars]
	}
	logging.RetrieverDebug("fetched %s (%d chars)", pageURL, len(text))
	return text
}

// checkFetchable rejects non-HTTP schemes and literal private/loopback
// addresses before any request goes out.
func checkFetchable(pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("unparseable url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("loopback host")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("non-public address %s", host)
		}
	}
	return nil
}

func strippedPath(pageURL string) string {
	if u, err := url.Parse(pageURL); err == nil {
		return u.Path
	}
	return pageURL
}

// extractHTMLText renders the visible text of an HTML document, skipping
// script/style/nav chrome. Block elements become line breaks so the
// summarizer sees paragraph structure.
func extractHTMLText(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	skip := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"header": true, "footer": true, "nav": true, "aside": true,
	}
	block := map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "tr": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"article": true, "section": true, "blockquote": true, "pre": true,
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	// Collapse runs of blank lines left by nested block elements.
	lines := strings.Split(sb.String(), "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

// static check
var _ Retriever = (*HTTPRetriever)(nil)

// SnippetOnly is a Retriever that never fetches; used in snippets-only
// mode and in tests.
type SnippetOnly struct{}

// Fetch always returns "".
func (SnippetOnly) Fetch(ctx context.Context, pageURL string) string { return "" }
