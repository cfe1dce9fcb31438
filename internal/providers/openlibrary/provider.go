package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mediatrack/searchservice/internal/domain"
)

const (
	defaultEndpoint  = "https://openlibrary.org/search.json"
	coverURLTemplate = "https://covers.openlibrary.org/b/id/%d-M.jpg"
	defaultUserAgent = "media-search/1.0"
	defaultPageSize  = 20
	maxPayloadBytes  = 4 * 1024 * 1024
)

type Config struct {
	Endpoint  string
	UserAgent string
	PageSize  int
	Client    *http.Client
}

// Provider searches the book catalog. The catalog paginates by offset, so the
// requested page is converted to offset = (page-1)*pageSize. Books carry no
// rating field; Rating stays absent rather than defaulting to zero.
type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
	pageSize  int
}

type searchResponse struct {
	Docs []apiDoc `json:"docs"`
}

type apiDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	FirstPublishYear *int     `json:"first_publish_year"`
	CoverID          int64    `json:"cover_i"`
	AuthorNames      []string `json:"author_name"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Provider{
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
		pageSize:  pageSize,
	}
}

func (p *Provider) Name() string {
	return "openlibrary"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Open Library",
		Kind:    "books",
		Enabled: true,
	}
}

func (p *Provider) Search(ctx context.Context, query string, page int) ([]domain.SearchResult, error) {
	if page <= 0 {
		page = 1
	}

	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := uri.Query()
	params.Set("q", strings.TrimSpace(query))
	params.Set("limit", strconv.Itoa(p.pageSize))
	params.Set("offset", strconv.Itoa((page-1)*p.pageSize))
	params.Set("fields", "key,title,first_publish_year,cover_i,author_name")
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("openlibrary HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("openlibrary payload: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		result, ok := toResult(doc)
		if !ok {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func toResult(doc apiDoc) (domain.SearchResult, bool) {
	title := strings.TrimSpace(doc.Title)
	nativeID := strings.TrimPrefix(strings.TrimSpace(doc.Key), "/works/")
	if title == "" || nativeID == "" {
		return domain.SearchResult{}, false
	}

	posterURL := ""
	if doc.CoverID > 0 {
		posterURL = fmt.Sprintf(coverURLTemplate, doc.CoverID)
	}

	description := ""
	if len(doc.AuthorNames) > 0 {
		description = "by " + strings.Join(doc.AuthorNames, ", ")
	}

	var year *int
	if doc.FirstPublishYear != nil && *doc.FirstPublishYear > 0 {
		value := *doc.FirstPublishYear
		year = &value
	}

	return domain.SearchResult{
		ID:            "openlibrary-" + nativeID,
		Title:         title,
		MediaCategory: domain.MediaCategoryBook,
		Year:          year,
		PosterURL:     posterURL,
		Description:   description,
		Provider:      "openlibrary",
	}, true
}
