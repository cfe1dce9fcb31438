package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediatrack/searchservice/internal/domain"
)

// maxConcurrentProviders bounds parallel catalog queries. All providers are
// queried for every search, so this only matters if the registry grows.
const maxConcurrentProviders = 8

type preparedSearch struct {
	query    string
	request  domain.SearchRequest
	selected []Provider
}

// Search runs the full aggregation pipeline: fan the query out to every
// provider, merge whatever arrived in time, filter, rank. Provider failures
// and timeouts degrade coverage but never fail the request; the worst case is
// a successful empty response.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	if s.cacheDisabled || request.NoCache {
		return s.executeSearch(ctx, prepared), nil
	}

	startedAt := time.Now()
	cacheKey := buildSearchCacheKey(prepared.request)

	if cached, ok, needsRefresh := s.cacheLookup(cacheKey, startedAt); ok {
		// Track popularity even on cache hits, so the warmer keeps hot queries fresh.
		s.markPopular(cacheKey, prepared.request, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(cacheKey, prepared)
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	response := s.executeSearch(ctx, prepared)
	s.cacheStore(cacheKey, response, time.Now())
	s.markPopular(cacheKey, prepared.request, time.Now())
	return response, nil
}

func (s *Service) searchNoCache(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	response := s.executeSearch(ctx, prepared)
	s.cacheStore(buildSearchCacheKey(prepared.request), response, time.Now())
	return response, nil
}

func (s *Service) refreshCacheAsync(cacheKey string, prepared preparedSearch) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		response := s.executeSearch(ctx, prepared)
		s.cacheStore(cacheKey, response, time.Now())
	}()
}

func (s *Service) prepareSearch(request domain.SearchRequest) (preparedSearch, error) {
	query := strings.TrimSpace(request.Query)
	if query == "" {
		return preparedSearch{}, ErrInvalidQuery
	}
	if request.Page < 0 {
		return preparedSearch{}, ErrInvalidPage
	}
	if request.Page == 0 {
		request.Page = 1
	}
	request.Query = query

	selected, err := s.selectedProviders()
	if err != nil {
		return preparedSearch{}, err
	}

	return preparedSearch{
		query:    query,
		request:  request,
		selected: selected,
	}, nil
}

type providerOutcome struct {
	items []domain.SearchResult
	err   error
}

func (s *Service) executeSearch(ctx context.Context, prepared preparedSearch) domain.SearchResponse {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	statuses := make([]domain.ProviderStatus, len(prepared.selected))
	lists := make([][]domain.SearchResult, len(prepared.selected))

	sem := semaphore.NewWeighted(maxConcurrentProviders)
	var wg sync.WaitGroup
	for i, provider := range prepared.selected {
		wg.Add(1)
		go func(index int, current Provider) {
			defer wg.Done()
			statuses[index], lists[index] = s.queryProvider(runCtx, sem, current, prepared)
		}(i, provider)
	}

	// Wait for every provider outcome; the deadline on runCtx substitutes an
	// empty list for any adapter that does not finish in time, so this wait
	// cannot extend past the global timeout.
	wg.Wait()

	merged := make([]domain.SearchResult, 0, totalLen(lists))
	seen := make(map[string]struct{}, totalLen(lists))
	for _, list := range lists {
		for _, item := range list {
			// A catalog occasionally repeats an entry across its own pages;
			// identical ids would break response-level id uniqueness.
			if _, exists := seen[item.ID]; exists {
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, item)
		}
	}

	results := Process(merged, prepared.request)

	failed := 0
	for _, status := range statuses {
		if !status.OK {
			failed++
		}
	}
	slog.Info("search aggregated",
		slog.String("query", prepared.query),
		slog.Int("merged", len(merged)),
		slog.Int("results", len(results)),
		slog.Int("providers", len(statuses)),
		slog.Int("failed", failed),
		slog.Int64("elapsedMs", time.Since(startedAt).Milliseconds()),
	)

	return domain.SearchResponse{
		Query:     prepared.query,
		Results:   results,
		Providers: statuses,
		ElapsedMS: time.Since(startedAt).Milliseconds(),
		Total:     len(results),
		Page:      prepared.request.Page,
	}
}

// queryProvider races one adapter call against the shared deadline. An
// adapter still running when the deadline fires is abandoned: its eventual
// result is discarded and it contributes an empty list to this request.
func (s *Service) queryProvider(ctx context.Context, sem *semaphore.Weighted, provider Provider, prepared preparedSearch) (domain.ProviderStatus, []domain.SearchResult) {
	name := strings.ToLower(strings.TrimSpace(provider.Name()))
	status := domain.ProviderStatus{Name: name}

	if err := sem.Acquire(ctx, 1); err != nil {
		status.Error = "cancelled before start"
		return status, nil
	}
	defer sem.Release(1)

	now := time.Now()
	if blocked, until, lastErr := s.isProviderBlocked(name, now); blocked {
		status.Error = "provider temporarily unhealthy until " + until.UTC().Format(time.RFC3339) + ": " + lastErr
		return status, nil
	}

	outcomeCh := make(chan providerOutcome, 1)
	startedAt := time.Now()
	go func() {
		items, err := provider.Search(ctx, prepared.query, prepared.request.Page)
		outcomeCh <- providerOutcome{items: items, err: err}
	}()

	var outcome providerOutcome
	select {
	case outcome = <-outcomeCh:
	case <-ctx.Done():
		outcome = providerOutcome{err: ctx.Err()}
	}
	elapsed := time.Since(startedAt)
	s.recordProviderResult(name, prepared.query, outcome.err, elapsed, time.Now())

	if outcome.err != nil {
		slog.Warn("provider search failed",
			slog.String("provider", name),
			slog.String("query", prepared.query),
			slog.Int64("elapsedMs", elapsed.Milliseconds()),
			slog.String("error", outcome.err.Error()),
		)
		status.Error = outcome.err.Error()
		return status, nil
	}

	status.OK = true
	status.Count = len(outcome.items)
	return status, outcome.items
}

func totalLen(lists [][]domain.SearchResult) int {
	total := 0
	for _, list := range lists {
		total += len(list)
	}
	return total
}
