package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/models"
)

// maxFetchBytes caps how much of a remote page we will read.
const maxFetchBytes = 10 << 20

// Extractor turns an episode source (raw text, URL, PDF, YouTube video)
// into plain text ready for chunking. Failures here are fatal for the run:
// without source content there is nothing to script.
type Extractor struct {
	client *http.Client
}

func New() *Extractor {
	return &Extractor{client: &http.Client{Timeout: 30 * time.Second}}
}

func (e *Extractor) Extract(ctx context.Context, ep *models.Episode) (string, error) {
	var (
		text string
		err  error
	)
	switch ep.SourceType {
	case models.SourceText:
		text, err = e.fromText(ep.SourceContent)
	case models.SourceURL:
		text, err = e.FromURL(ctx, ep.SourceURL)
	case models.SourcePDF:
		text, err = e.fromPDF(ep.SourceContent)
	case models.SourceYouTube:
		text, err = e.FromYouTube(ctx, ep.SourceURL)
	default:
		err = fmt.Errorf("unsupported source type: %s", ep.SourceType)
	}
	if err != nil {
		return "", fault.Fatal(fault.KindExtraction, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fault.Fatalf(fault.KindExtraction, "no text could be extracted from source")
	}
	return text, nil
}

func (e *Extractor) fromText(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("source content is empty")
	}
	return content, nil
}

// FromURL fetches a page and pulls out the main article text. Readability
// does the heavy lifting; a bare goquery paragraph walk covers pages it
// cannot parse.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("source url is empty")
	}

	html, err := e.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("article p, main p, p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("no readable content found at %s", rawURL)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	// Some publishers block the default Go user agent outright.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(body), nil
}

// fromPDF decodes a base64-encoded PDF and concatenates the text of every
// page. Pages that fail to extract are skipped rather than failing the
// whole document.
func (e *Extractor) fromPDF(encoded string) (string, error) {
	if encoded == "" {
		return "", fmt.Errorf("source content is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode pdf content: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return sb.String(), nil
}
