package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xhad/scholar/internal/models"
)

const searchEndpoint = "https://api.semanticscholar.org/graph/v1/paper/search"

type SemanticScholarConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// SemanticScholar looks up paper metadata by title. Lookups are best effort:
// a miss or an API failure returns nil metadata, never an error the caller
// should fail ingestion on.
type SemanticScholar struct {
	config  SemanticScholarConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewSemanticScholarWithConfig(config SemanticScholarConfig) *SemanticScholar {
	if config.BaseURL == "" {
		config.BaseURL = searchEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSec == 0 {
		// The public API allows roughly 1 request per second unauthenticated.
		config.RequestsPerSec = 1
	}

	return &SemanticScholar{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1),
	}
}

type searchAuthor struct {
	Name string `json:"name"`
}

type searchPaper struct {
	Title       string         `json:"title"`
	Abstract    string         `json:"abstract"`
	Year        int            `json:"year"`
	Citation    int            `json:"citationCount"`
	Venue       string         `json:"venue"`
	Authors     []searchAuthor `json:"authors"`
	ExternalIDs struct {
		DOI   string `json:"DOI"`
		ArXiv string `json:"ArXiv"`
	} `json:"externalIds"`
}

type searchResponse struct {
	Data []searchPaper `json:"data"`
}

// SearchByTitle returns metadata for the closest title match, or nil when the
// title is too short to search, nothing matches, or the API is unavailable.
func (s *SemanticScholar) SearchByTitle(ctx context.Context, title string) (*models.Enrichment, error) {
	title = strings.TrimSpace(title)
	if len(title) < 10 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", title)
	params.Set("limit", "1")
	params.Set("fields", "title,authors,abstract,year,citationCount,venue,externalIds")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("x-api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if len(body.Data) == 0 {
		return nil, nil
	}

	paper := body.Data[0]
	return &models.Enrichment{
		Title:         paper.Title,
		Authors:       formatAuthors(authorNames(paper.Authors)),
		Abstract:      paper.Abstract,
		Year:          paper.Year,
		CitationCount: paper.Citation,
		Venue:         paper.Venue,
		DOI:           paper.ExternalIDs.DOI,
		ArxivID:       paper.ExternalIDs.ArXiv,
	}, nil
}

func authorNames(authors []searchAuthor) []string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// formatAuthors joins the first five names, appending "et al." when the list
// is longer.
func formatAuthors(names []string) string {
	if len(names) <= 5 {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:5], ", ") + " et al."
}
