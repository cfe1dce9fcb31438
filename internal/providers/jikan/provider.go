package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mediatrack/searchservice/internal/domain"
)

const (
	defaultBaseURL   = "https://api.jikan.moe/v4"
	defaultUserAgent = "media-search/1.0"
	maxPayloadBytes  = 4 * 1024 * 1024

	// minRequestInterval paces sub-requests to stay under the catalog's
	// per-second rate limit. This provider is the only one that needs pacing.
	minRequestInterval = 100 * time.Millisecond
)

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Provider searches the animation/comic catalog. One search issues two
// concurrent sub-requests (anime and manga) on the same query and page; each
// sub-request is error-isolated so the other's results still come through.
type Provider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

type listResponse struct {
	Data []apiEntry `json:"data"`
}

type apiEntry struct {
	MalID    int64    `json:"mal_id"`
	Title    string   `json:"title"`
	Synopsis string   `json:"synopsis"`
	Score    *float64 `json:"score"`
	Images   struct {
		JPG struct {
			ImageURL string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Aired struct {
		From string `json:"from"`
	} `json:"aired"`
	Published struct {
		From string `json:"from"`
	} `json:"published"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Every(minRequestInterval), 1),
	}
}

func (p *Provider) Name() string {
	return "jikan"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Jikan (MyAnimeList)",
		Kind:    "animation/comics",
		Enabled: true,
	}
}

func (p *Provider) Search(ctx context.Context, query string, page int) ([]domain.SearchResult, error) {
	if page <= 0 {
		page = 1
	}

	kinds := []struct {
		path     string
		category domain.MediaCategory
	}{
		{path: "anime", category: domain.MediaCategoryAnimation},
		{path: "manga", category: domain.MediaCategoryComic},
	}

	lists := make([][]domain.SearchResult, len(kinds))
	errs := make([]error, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(index int, path string, category domain.MediaCategory) {
			defer wg.Done()
			lists[index], errs[index] = p.searchKind(ctx, path, category, query, page)
		}(i, kind.path, kind.category)
	}
	wg.Wait()

	// Concatenate whichever sub-requests succeeded; fail only when both did.
	combined := make([]domain.SearchResult, 0, len(lists[0])+len(lists[1]))
	succeeded := false
	for i := range lists {
		if errs[i] != nil {
			continue
		}
		succeeded = true
		combined = append(combined, lists[i]...)
	}
	if !succeeded {
		return nil, errors.Join(errs...)
	}
	return combined, nil
}

func (p *Provider) searchKind(ctx context.Context, path string, category domain.MediaCategory, query string, page int) ([]domain.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":    {strings.TrimSpace(query)},
		"page": {strconv.Itoa(page)},
		"sfw":  {"true"},
	}
	reqURL := p.baseURL + "/" + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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
		return nil, fmt.Errorf("jikan %s HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}

	var parsed listResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("jikan %s payload: %w", path, err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Data))
	for _, entry := range parsed.Data {
		result, ok := toResult(entry, path, category)
		if !ok {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func toResult(entry apiEntry, path string, category domain.MediaCategory) (domain.SearchResult, bool) {
	title := strings.TrimSpace(entry.Title)
	if title == "" || entry.MalID == 0 {
		return domain.SearchResult{}, false
	}

	// Anime and manga identifiers live in separate namespaces, so the kind is
	// part of the native id.
	id := fmt.Sprintf("jikan-%s-%d", path, entry.MalID)

	from := entry.Aired.From
	if from == "" {
		from = entry.Published.From
	}

	return domain.SearchResult{
		ID:            id,
		Title:         title,
		MediaCategory: category,
		Year:          yearFromDate(from),
		PosterURL:     strings.TrimSpace(entry.Images.JPG.ImageURL),
		Description:   strings.TrimSpace(entry.Synopsis),
		Rating:        entry.Score,
		Provider:      "jikan",
	}, true
}

func yearFromDate(date string) *int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}
