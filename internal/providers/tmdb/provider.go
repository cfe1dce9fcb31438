package tmdb

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
	defaultBaseURL   = "https://api.themoviedb.org/3"
	posterBaseURL    = "https://image.tmdb.org/t/p/w300"
	defaultUserAgent = "media-search/1.0"
	maxPayloadBytes  = 2 * 1024 * 1024
)

type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Provider searches the film/TV catalog. One request per search; movie and tv
// entries map to film/series, everything else (people, collections) is
// dropped.
type Provider struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	userAgent string
}

type multiSearchResponse struct {
	Results []apiItem `json:"results"`
}

type apiItem struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	Overview     string   `json:"overview"`
	PosterPath   string   `json:"poster_path"`
	VoteAverage  *float64 `json:"vote_average"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	MediaType    string   `json:"media_type"`
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
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return "tmdb"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "The Movie Database",
		Kind:    "film/tv",
		Enabled: p.apiKey != "",
	}
}

func (p *Provider) Search(ctx context.Context, query string, page int) ([]domain.SearchResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("tmdb api key is not configured")
	}
	if page <= 0 {
		page = 1
	}

	params := url.Values{
		"api_key":       {p.apiKey},
		"query":         {strings.TrimSpace(query)},
		"page":          {strconv.Itoa(page)},
		"include_adult": {"false"},
	}
	reqURL := p.baseURL + "/search/multi?" + params.Encode()

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
		return nil, fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}

	var parsed multiSearchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("tmdb payload: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		result, ok := toResult(item)
		if !ok {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func toResult(item apiItem) (domain.SearchResult, bool) {
	var category domain.MediaCategory
	switch item.MediaType {
	case "movie":
		category = domain.MediaCategoryFilm
	case "tv":
		category = domain.MediaCategorySeries
	default:
		return domain.SearchResult{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = strings.TrimSpace(item.Name)
	}
	if title == "" || item.ID == 0 {
		return domain.SearchResult{}, false
	}

	posterURL := ""
	if item.PosterPath != "" {
		posterURL = posterBaseURL + item.PosterPath
	}

	return domain.SearchResult{
		ID:            "tmdb-" + strconv.Itoa(item.ID),
		Title:         title,
		MediaCategory: category,
		Year:          yearFromDates(item.ReleaseDate, item.FirstAirDate),
		PosterURL:     posterURL,
		Description:   strings.TrimSpace(item.Overview),
		Rating:        item.VoteAverage,
		Provider:      "tmdb",
	}, true
}

// yearFromDates takes the first populated date and parses its leading
// YYYY component; unparseable dates yield an absent year.
func yearFromDates(dates ...string) *int {
	for _, date := range dates {
		date = strings.TrimSpace(date)
		if len(date) < 4 {
			continue
		}
		year, err := strconv.Atoi(date[:4])
		if err != nil || year <= 0 {
			continue
		}
		return &year
	}
	return nil
}
