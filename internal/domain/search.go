package domain

import (
	"strings"
	"time"
)

// MediaCategory classifies a normalized result regardless of which catalog
// produced it.
type MediaCategory string

const (
	MediaCategoryFilm      MediaCategory = "film"
	MediaCategorySeries    MediaCategory = "series"
	MediaCategoryBook      MediaCategory = "book"
	MediaCategoryAnimation MediaCategory = "animation"
	MediaCategoryComic     MediaCategory = "comic"
)

// ParseMediaCategory maps a raw value to a known category. An empty input is
// valid and means "no category restriction".
func ParseMediaCategory(raw string) (MediaCategory, bool) {
	value := MediaCategory(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return "", true
	case MediaCategoryFilm, MediaCategorySeries, MediaCategoryBook, MediaCategoryAnimation, MediaCategoryComic:
		return value, true
	default:
		return "", false
	}
}

type SearchSortKey string

const (
	SearchSortByRelevance  SearchSortKey = "relevance"
	SearchSortByRating     SearchSortKey = "rating"
	SearchSortByYear       SearchSortKey = "year"
	SearchSortByTitle      SearchSortKey = "title"
	SearchSortByPopularity SearchSortKey = "popularity"
)

type SearchSortOrder string

const (
	SearchSortOrderAsc  SearchSortOrder = "asc"
	SearchSortOrderDesc SearchSortOrder = "desc"
)

// ParseSortKey accepts the known sort keys; an empty input selects relevance.
func ParseSortKey(raw string) (SearchSortKey, bool) {
	value := SearchSortKey(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return SearchSortByRelevance, true
	case SearchSortByRelevance, SearchSortByRating, SearchSortByYear, SearchSortByTitle, SearchSortByPopularity:
		return value, true
	default:
		return "", false
	}
}

// ParseSortOrder accepts asc/desc; an empty input selects desc.
func ParseSortOrder(raw string) (SearchSortOrder, bool) {
	value := SearchSortOrder(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return SearchSortOrderDesc, true
	case SearchSortOrderAsc, SearchSortOrderDesc:
		return value, true
	default:
		return "", false
	}
}

// SearchFilters narrows the merged result set after all providers returned.
// Range bounds are taken as given: swapped bounds select a narrower (possibly
// empty) window rather than being rejected. Genres are accepted but not yet
// applied; no provider supplies a comparable genre taxonomy.
type SearchFilters struct {
	Genres     []string `json:"genres,omitempty"`
	YearFrom   *int     `json:"yearFrom,omitempty"`
	YearTo     *int     `json:"yearTo,omitempty"`
	RatingFrom *float64 `json:"ratingFrom,omitempty"`
	RatingTo   *float64 `json:"ratingTo,omitempty"`
}

// SearchRequest is the normalized, pre-validated query handed to the
// aggregation pipeline. The HTTP layer rejects malformed input before the
// pipeline sees it.
type SearchRequest struct {
	Query     string
	Page      int
	MediaType MediaCategory
	Filters   SearchFilters
	SortKey   SearchSortKey
	SortOrder SearchSortOrder
	NoCache   bool
}

// SearchResult is the common shape every provider adapter produces. Optional
// fields stay nil/empty when the source catalog did not supply them; absent
// and zero are distinct values and are never conflated at the parse boundary.
type SearchResult struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	MediaCategory MediaCategory `json:"mediaCategory"`
	Year          *int          `json:"year,omitempty"`
	PosterURL     string        `json:"posterUrl,omitempty"`
	Description   string        `json:"description,omitempty"`
	Rating        *float64      `json:"rating,omitempty"`
	Provider      string        `json:"sourceProvider"`
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Kind                string     `json:"kind"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// SearchResponse carries the full filtered and ranked result list. Slicing a
// page window out of Results is the presentation layer's concern so that page
// size never couples to the ranking contract.
type SearchResponse struct {
	Query     string           `json:"query"`
	Results   []SearchResult   `json:"results"`
	Providers []ProviderStatus `json:"providers"`
	ElapsedMS int64            `json:"elapsedMs"`
	Total     int              `json:"total"`
	Page      int              `json:"page"`
}
