package importer

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/scholar/internal/models"
)

type ArxivConfig struct {
	BaseURL   string
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

// Arxiv imports paper metadata from arXiv abstract pages. Imported papers are
// metadata-only: the abstract stands in for the full text until a PDF is
// uploaded.
type Arxiv struct {
	config  ArxivConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewArxivWithConfig(config ArxivConfig) *Arxiv {
	if config.BaseURL == "" {
		config.BaseURL = "https://arxiv.org"
	}
	if config.RateLimit == 0 {
		// arXiv asks crawlers to stay well under 1 request per 3 seconds.
		config.RateLimit = 0.3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Arxiv{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

var arxivIDPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)

// Fetch downloads and parses the abstract page for an arXiv id like
// "1706.03762".
func (a *Arxiv) Fetch(ctx context.Context, arxivID string) (*models.Enrichment, error) {
	arxivID = strings.TrimSpace(arxivID)
	if !arxivIDPattern.MatchString(arxivID) {
		return nil, fmt.Errorf("invalid arXiv id: %q", arxivID)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/abs/%s", a.config.BaseURL, arxivID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d for %s", resp.StatusCode, arxivID)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %v", err)
	}

	meta := ParseAbstractPage(doc)
	if meta.Title == "" {
		return nil, fmt.Errorf("no title found on abstract page for %s", arxivID)
	}
	meta.ArxivID = arxivID
	return &meta, nil
}

// ParseAbstractPage pulls title, authors, and abstract out of an arXiv
// abstract page document.
func ParseAbstractPage(doc *goquery.Document) models.Enrichment {
	var meta models.Enrichment

	title := doc.Find("h1.title").First().Text()
	meta.Title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(title), "Title:"))

	var authors []string
	doc.Find("div.authors a").Each(func(_ int, sel *goquery.Selection) {
		if name := strings.TrimSpace(sel.Text()); name != "" {
			authors = append(authors, name)
		}
	})
	meta.Authors = strings.Join(authors, ", ")

	abstract := doc.Find("blockquote.abstract").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))
	meta.Abstract = strings.Join(strings.Fields(abstract), " ")

	return meta
}
