package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediatrack/searchservice/internal/domain"
	"mediatrack/searchservice/internal/history"
	"mediatrack/searchservice/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type HistoryService interface {
	Enabled() bool
	Record(query string, total int)
	Suggest(ctx context.Context, prefix string, limit int) ([]history.Suggestion, error)
}

type Server struct {
	search  SearchService
	history HistoryService
	logger  *slog.Logger
}

const (
	maxQueryLength = 500
	maxPage        = 100

	// pageSize is the fixed page window cut out of the full ranked list. The
	// aggregation pipeline ranks everything; pagination is purely presentation.
	pageSize = 20
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithHistory(recorder HistoryService) ServerOption {
	return func(s *Server) {
		s.history = recorder
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search/providers", s.handleProviders)
	mux.HandleFunc("/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/search/suggest", s.handleSearchSuggest)
	mux.HandleFunc("/search/image", s.handleImageProxy)
	mux.HandleFunc("/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "media-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// searchPayload is the HTTP response envelope. Results hold only the requested
// page window; total and totalPages describe the full ranked list.
type searchPayload struct {
	Query      string                  `json:"query"`
	Results    []domain.SearchResult   `json:"results"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	TotalPages int                     `json:"totalPages"`
	Providers  []domain.ProviderStatus `json:"providers"`
	ElapsedMS  int64                   `json:"elapsedMs"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}

	page, err := parseBoundedInt(r, "page", 1, 1, maxPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "page must be an integer between 1 and 100")
		return
	}

	mediaType, ok := domain.ParseMediaCategory(r.URL.Query().Get("mediaType"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown mediaType")
		return
	}
	sortKey, ok := domain.ParseSortKey(r.URL.Query().Get("sortBy"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown sortBy")
		return
	}
	sortOrder, ok := domain.ParseSortOrder(r.URL.Query().Get("sortOrder"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown sortOrder")
		return
	}

	filters, err := parseSearchFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	noCache := parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache"))

	response, err := s.search.Search(r.Context(), domain.SearchRequest{
		Query:     query,
		Page:      page,
		MediaType: mediaType,
		Filters:   filters,
		SortKey:   sortKey,
		SortOrder: sortOrder,
		NoCache:   noCache,
	})
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, search.ErrInvalidQuery), errors.Is(err, search.ErrInvalidPage):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, search.ErrNoProviders):
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		}
		return
	}

	if s.history != nil {
		s.history.Record(query, response.Total)
	}

	failed := 0
	for _, providerStatus := range response.Providers {
		if !providerStatus.OK {
			failed++
		}
	}
	s.logger.Info("search completed",
		slog.String("query", truncate(query, 80)),
		slog.Int("total", response.Total),
		slog.Int64("elapsedMs", response.ElapsedMS),
		slog.Int("failedProviders", failed),
	)

	writeJSON(w, http.StatusOK, buildSearchPayload(response, page))
}

func buildSearchPayload(response domain.SearchResponse, page int) searchPayload {
	total := len(response.Results)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	window := response.Results[start:end]
	if window == nil {
		window = []domain.SearchResult{}
	}

	return searchPayload{
		Query:      response.Query,
		Results:    window,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		Providers:  response.Providers,
		ElapsedMS:  response.ElapsedMS,
	}
}

func (s *Server) handleSearchSuggest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/suggest" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil || !s.history.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}

	limit, err := parseBoundedInt(r, "limit", 10, 1, 25)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer between 1 and 25")
		return
	}

	items, err := s.history.Suggest(r.Context(), query, limit)
	if err != nil {
		s.logger.Warn("suggest failed", slog.String("query", truncate(query, 60)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	if items == nil {
		items = []history.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.search.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.ProviderDiagnostics(),
	})
}

func parseSearchFilters(r *http.Request) (domain.SearchFilters, error) {
	q := r.URL.Query()
	var filters domain.SearchFilters

	filters.Genres = parseCSV(q.Get("genres"))

	var err error
	if filters.YearFrom, err = parseOptionalIntPtr(q.Get("yearFrom")); err != nil {
		return filters, errors.New("invalid yearFrom")
	}
	if filters.YearTo, err = parseOptionalIntPtr(q.Get("yearTo")); err != nil {
		return filters, errors.New("invalid yearTo")
	}
	if filters.RatingFrom, err = parseOptionalFloatPtr(q.Get("ratingFrom")); err != nil {
		return filters, errors.New("invalid ratingFrom")
	}
	if filters.RatingTo, err = parseOptionalFloatPtr(q.Get("ratingTo")); err != nil {
		return filters, errors.New("invalid ratingTo")
	}
	return filters, nil
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func parseBoundedInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < min || parsed > max {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseOptionalIntPtr(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalFloatPtr(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
