package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediatrack/searchservice/internal/domain"
	"mediatrack/searchservice/internal/metrics"
)

const (
	defaultCacheTTL            = 30 * time.Minute
	defaultStaleTTL            = 90 * time.Minute
	defaultWarmInterval        = 5 * time.Minute
	defaultWarmTopQueries      = 12
	defaultCacheMaxEntries     = 400
	defaultPopularMaxEntries   = 200
	maxConcurrentWarmRefreshes = 3
)

type searchWarmerConfig struct {
	cacheTTL          time.Duration
	staleTTL          time.Duration
	warmInterval      time.Duration
	warmTopQueries    int
	cacheMaxEntries   int
	popularMaxEntries int
}

type cachedSearchResponse struct {
	response    domain.SearchResponse
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshOnce sync.Once // one refresh per stale period
}

type popularQuery struct {
	request  domain.SearchRequest
	hits     int
	lastSeen time.Time
	lastWarm time.Time
}

type warmSpec struct {
	request domain.SearchRequest
}

func defaultSearchWarmerConfig() searchWarmerConfig {
	return searchWarmerConfig{
		cacheTTL:          defaultCacheTTL,
		staleTTL:          defaultStaleTTL,
		warmInterval:      defaultWarmInterval,
		warmTopQueries:    defaultWarmTopQueries,
		cacheMaxEntries:   defaultCacheMaxEntries,
		popularMaxEntries: defaultPopularMaxEntries,
	}
}

func (s *Service) runWarmer(ctx context.Context) {
	ticker := time.NewTicker(s.warmerCfg.warmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

func (s *Service) runWarmCycle(ctx context.Context) {
	now := time.Now()
	specs := s.collectWarmSpecs(now)
	if len(specs) == 0 {
		return
	}

	// Bounded parallelism keeps a warm cycle from hammering the catalogs.
	sem := semaphore.NewWeighted(maxConcurrentWarmRefreshes)
	var wg sync.WaitGroup

	for _, spec := range specs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		go func(spec warmSpec) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, s.timeout+2*time.Second)
			defer cancel()
			_, _ = s.searchNoCache(refreshCtx, spec.request)
		}(spec)
	}

	wg.Wait()
}

func (s *Service) collectWarmSpecs(now time.Time) []warmSpec {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if len(s.popular) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.popular))
	for key := range s.popular {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		left := s.popular[keys[i]]
		right := s.popular[keys[j]]
		if left.hits != right.hits {
			return left.hits > right.hits
		}
		return left.lastSeen.After(right.lastSeen)
	})

	limit := s.warmerCfg.warmTopQueries
	if limit <= 0 {
		limit = defaultWarmTopQueries
	}
	if len(keys) < limit {
		limit = len(keys)
	}

	specs := make([]warmSpec, 0, limit)
	for _, key := range keys[:limit] {
		pop := s.popular[key]
		if pop == nil {
			continue
		}
		if !pop.lastWarm.IsZero() && now.Sub(pop.lastWarm) < s.warmerCfg.warmInterval/2 {
			continue
		}
		if cacheEntry, ok := s.cache[key]; ok && now.Before(cacheEntry.expiresAt) {
			continue
		}
		pop.lastWarm = now
		specs = append(specs, warmSpec{request: pop.request})
	}
	return specs
}

func (s *Service) cacheLookup(key string, now time.Time) (domain.SearchResponse, bool, bool) {
	// Redis first, so replicas share warm entries.
	if s.redisCache != nil {
		resp, found, err := s.redisCache.Get(context.Background(), key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			// Keep a local copy so the warmer can reason about freshness
			// without re-querying Redis.
			s.cacheStoreMemoryOnly(key, resp, now)
			return resp, true, false
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.SearchResponse{}, false, false
	}

	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneSearchResponse(entry.response), true, false
	}

	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		// Serve stale, refresh once per stale period even if several
		// requests land inside the window.
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
		})
		return cloneSearchResponse(entry.response), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	delete(s.popular, key)
	return domain.SearchResponse{}, false, false
}

func (s *Service) cacheStore(key string, response domain.SearchResponse, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	if s.redisCache != nil {
		_ = s.redisCache.Set(context.Background(), key, response, cacheTTL)
	}

	s.cacheStoreMemoryOnly(key, response, now)
}

func (s *Service) cacheStoreMemoryOnly(key string, response domain.SearchResponse, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedSearchResponse{
		response:   cloneSearchResponse(response),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) markPopular(key string, request domain.SearchRequest, now time.Time) {
	// Warm only first-page requests; deeper pages are cheap once page one is warm.
	if request.Page > 1 {
		return
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pop, ok := s.popular[key]
	if !ok {
		s.popular[key] = &popularQuery{
			request:  cloneSearchRequest(request),
			hits:     1,
			lastSeen: now,
		}
	} else {
		pop.hits++
		pop.lastSeen = now
		pop.request = cloneSearchRequest(request)
	}

	limit := s.warmerCfg.popularMaxEntries
	if limit <= 0 {
		limit = defaultPopularMaxEntries
	}
	if len(s.popular) <= limit {
		return
	}

	// Drop least popular + oldest query.
	type pair struct {
		key   string
		value *popularQuery
	}
	items := make([]pair, 0, len(s.popular))
	for popKey, value := range s.popular {
		items = append(items, pair{key: popKey, value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		left := items[i].value
		right := items[j].value
		if left.hits != right.hits {
			return left.hits < right.hits
		}
		return left.lastSeen.Before(right.lastSeen)
	})
	for i := 0; i < len(items)-limit; i++ {
		delete(s.popular, items[i].key)
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.warmerCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}

	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedSearchResponse
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-maxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

func cloneSearchRequest(request domain.SearchRequest) domain.SearchRequest {
	cloned := request
	cloned.Filters = cloneSearchFilters(request.Filters)
	return cloned
}

func cloneSearchFilters(filters domain.SearchFilters) domain.SearchFilters {
	cloned := domain.SearchFilters{
		Genres: append([]string(nil), filters.Genres...),
	}
	if filters.YearFrom != nil {
		value := *filters.YearFrom
		cloned.YearFrom = &value
	}
	if filters.YearTo != nil {
		value := *filters.YearTo
		cloned.YearTo = &value
	}
	if filters.RatingFrom != nil {
		value := *filters.RatingFrom
		cloned.RatingFrom = &value
	}
	if filters.RatingTo != nil {
		value := *filters.RatingTo
		cloned.RatingTo = &value
	}
	return cloned
}

func cloneSearchResponse(response domain.SearchResponse) domain.SearchResponse {
	cloned := response
	if response.Results != nil {
		cloned.Results = make([]domain.SearchResult, len(response.Results))
		for i, item := range response.Results {
			copied := item
			if item.Year != nil {
				value := *item.Year
				copied.Year = &value
			}
			if item.Rating != nil {
				value := *item.Rating
				copied.Rating = &value
			}
			cloned.Results[i] = copied
		}
	}
	if response.Providers != nil {
		cloned.Providers = append([]domain.ProviderStatus(nil), response.Providers...)
	}
	return cloned
}

func buildSearchCacheKey(request domain.SearchRequest) string {
	return strings.Join([]string{
		"q=" + strings.ToLower(strings.TrimSpace(request.Query)),
		"p=" + strconv.Itoa(request.Page),
		"mt=" + string(request.MediaType),
		"sb=" + string(request.SortKey),
		"so=" + string(request.SortOrder),
		"f=" + filtersKey(request.Filters),
	}, "|")
}

func filtersKey(filters domain.SearchFilters) string {
	genres := make([]string, 0, len(filters.Genres))
	seen := make(map[string]struct{}, len(filters.Genres))
	for _, raw := range filters.Genres {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		genres = append(genres, value)
	}
	sort.Strings(genres)

	return strings.Join([]string{
		"g=" + strings.Join(genres, ","),
		"yf=" + intPtrKey(filters.YearFrom),
		"yt=" + intPtrKey(filters.YearTo),
		"rf=" + floatPtrKey(filters.RatingFrom),
		"rt=" + floatPtrKey(filters.RatingTo),
	}, ";")
}

func intPtrKey(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func floatPtrKey(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
