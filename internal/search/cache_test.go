package search

import (
	"testing"
	"time"

	"mediatrack/searchservice/internal/domain"
)

func TestBuildSearchCacheKeyNormalizesQueryAndGenres(t *testing.T) {
	first := buildSearchCacheKey(domain.SearchRequest{
		Query: "  Dune ",
		Page:  1,
		Filters: domain.SearchFilters{
			Genres: []string{"Sci-Fi", "drama", "sci-fi"},
		},
	})
	second := buildSearchCacheKey(domain.SearchRequest{
		Query: "dune",
		Page:  1,
		Filters: domain.SearchFilters{
			Genres: []string{"drama", "sci-fi"},
		},
	})
	if first != second {
		t.Fatalf("expected normalized keys to match:\n%s\n%s", first, second)
	}
}

func TestBuildSearchCacheKeyDistinguishesRequests(t *testing.T) {
	base := domain.SearchRequest{Query: "dune", Page: 1}

	variants := []domain.SearchRequest{
		{Query: "dune", Page: 2},
		{Query: "dune", Page: 1, MediaType: domain.MediaCategoryBook},
		{Query: "dune", Page: 1, SortKey: domain.SearchSortByYear},
		{Query: "dune", Page: 1, SortOrder: domain.SearchSortOrderAsc},
		{Query: "dune", Page: 1, Filters: domain.SearchFilters{YearFrom: intPtr(2000)}},
		{Query: "dune", Page: 1, Filters: domain.SearchFilters{RatingTo: floatPtr(8)}},
	}

	baseKey := buildSearchCacheKey(base)
	for _, variant := range variants {
		if key := buildSearchCacheKey(variant); key == baseKey {
			t.Fatalf("expected distinct key for %#v", variant)
		}
	}
}

func TestCacheStoreAndLookup(t *testing.T) {
	service := NewService([]Provider{&fakeProvider{name: "films"}}, time.Second)
	now := time.Now()

	stored := domain.SearchResponse{
		Query: "dune",
		Results: []domain.SearchResult{
			result("films-1", "Dune", domain.MediaCategoryFilm, "films"),
		},
		Total: 1,
		Page:  1,
	}
	service.cacheStore("key", stored, now)

	cached, ok, needsRefresh := service.cacheLookup("key", now.Add(time.Minute))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if needsRefresh {
		t.Fatalf("fresh entry should not request a refresh")
	}
	if cached.Total != 1 || cached.Results[0].ID != "films-1" {
		t.Fatalf("unexpected cached response: %#v", cached)
	}
}

func TestCacheLookupMissAfterStaleWindow(t *testing.T) {
	service := NewService([]Provider{&fakeProvider{name: "films"}}, time.Second)
	now := time.Now()

	service.cacheStore("key", domain.SearchResponse{Query: "dune"}, now)

	past := now.Add(service.warmerCfg.staleTTL + time.Minute)
	if _, ok, _ := service.cacheLookup("key", past); ok {
		t.Fatalf("expected miss after stale window")
	}
}

func TestCacheLookupStaleRequestsSingleRefresh(t *testing.T) {
	service := NewService([]Provider{&fakeProvider{name: "films"}}, time.Second)
	now := time.Now()

	service.cacheStore("key", domain.SearchResponse{Query: "dune"}, now)

	staleAt := now.Add(service.warmerCfg.cacheTTL + time.Minute)
	_, ok, first := service.cacheLookup("key", staleAt)
	if !ok || !first {
		t.Fatalf("expected stale hit with refresh request, got ok=%v refresh=%v", ok, first)
	}
	_, ok, second := service.cacheLookup("key", staleAt)
	if !ok || second {
		t.Fatalf("expected stale hit without second refresh, got ok=%v refresh=%v", ok, second)
	}
}

func TestCloneSearchResponseDeepCopiesPointers(t *testing.T) {
	year := 2021
	rating := 8.1
	original := domain.SearchResponse{
		Results: []domain.SearchResult{
			{ID: "a", Title: "Dune", Year: &year, Rating: &rating},
		},
	}

	cloned := cloneSearchResponse(original)
	*cloned.Results[0].Year = 1999
	*cloned.Results[0].Rating = 1.0

	if year != 2021 || rating != 8.1 {
		t.Fatalf("clone shares pointers with the original")
	}
}

func TestMarkPopularIgnoresDeepPages(t *testing.T) {
	service := NewService([]Provider{&fakeProvider{name: "films"}}, time.Second)
	now := time.Now()

	service.markPopular("deep", domain.SearchRequest{Query: "dune", Page: 3}, now)
	service.markPopular("front", domain.SearchRequest{Query: "dune", Page: 1}, now)

	service.cacheMu.Lock()
	defer service.cacheMu.Unlock()
	if _, ok := service.popular["deep"]; ok {
		t.Fatalf("page 3 request should not be tracked for warming")
	}
	if _, ok := service.popular["front"]; !ok {
		t.Fatalf("page 1 request should be tracked for warming")
	}
}

func TestCollectWarmSpecsPrefersHotQueries(t *testing.T) {
	service := NewService([]Provider{&fakeProvider{name: "films"}}, time.Second)
	service.warmerCfg.warmTopQueries = 1
	now := time.Now()

	service.markPopular("cold", domain.SearchRequest{Query: "cold", Page: 1}, now)
	for i := 0; i < 5; i++ {
		service.markPopular("hot", domain.SearchRequest{Query: "hot", Page: 1}, now)
	}

	specs := service.collectWarmSpecs(now)
	if len(specs) != 1 {
		t.Fatalf("expected 1 warm spec, got %d", len(specs))
	}
	if specs[0].request.Query != "hot" {
		t.Fatalf("expected hottest query selected, got %q", specs[0].request.Query)
	}
}
