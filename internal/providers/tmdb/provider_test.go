package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediatrack/searchservice/internal/domain"
)

func TestToResultMapsMediaTypes(t *testing.T) {
	rating := 7.8
	movie, ok := toResult(apiItem{
		ID:          603,
		Title:       "The Matrix",
		MediaType:   "movie",
		ReleaseDate: "1999-03-31",
		VoteAverage: &rating,
		PosterPath:  "/matrix.jpg",
	})
	if !ok {
		t.Fatal("expected valid movie result")
	}
	if movie.ID != "tmdb-603" {
		t.Fatalf("unexpected id: %q", movie.ID)
	}
	if movie.MediaCategory != domain.MediaCategoryFilm {
		t.Fatalf("unexpected category: %q", movie.MediaCategory)
	}
	if movie.Year == nil || *movie.Year != 1999 {
		t.Fatalf("unexpected year: %v", movie.Year)
	}
	if movie.PosterURL != "https://image.tmdb.org/t/p/w300/matrix.jpg" {
		t.Fatalf("unexpected poster: %q", movie.PosterURL)
	}
	if movie.Rating == nil || *movie.Rating != 7.8 {
		t.Fatalf("unexpected rating: %v", movie.Rating)
	}

	tv, ok := toResult(apiItem{ID: 1396, Name: "Breaking Bad", MediaType: "tv", FirstAirDate: "2008-01-20"})
	if !ok {
		t.Fatal("expected valid tv result")
	}
	if tv.MediaCategory != domain.MediaCategorySeries {
		t.Fatalf("unexpected category: %q", tv.MediaCategory)
	}
	if tv.Title != "Breaking Bad" {
		t.Fatalf("expected name fallback for tv title, got %q", tv.Title)
	}
}

func TestToResultDropsNonVideoEntries(t *testing.T) {
	if _, ok := toResult(apiItem{ID: 1, Name: "Keanu Reeves", MediaType: "person"}); ok {
		t.Fatal("expected person entry dropped")
	}
}

func TestToResultAbsentDateAndRating(t *testing.T) {
	item, ok := toResult(apiItem{ID: 42, Title: "Untitled Project", MediaType: "movie"})
	if !ok {
		t.Fatal("expected valid result")
	}
	if item.Year != nil {
		t.Fatalf("expected absent year, got %v", *item.Year)
	}
	if item.Rating != nil {
		t.Fatalf("expected absent rating, got %v", *item.Rating)
	}
}

func TestYearFromDates(t *testing.T) {
	if year := yearFromDates("", "2008-01-20"); year == nil || *year != 2008 {
		t.Fatalf("expected fallback date used, got %v", year)
	}
	if year := yearFromDates("bad", "also-bad"); year != nil {
		t.Fatalf("expected nil for unparseable dates, got %v", *year)
	}
}

func TestSearchSendsExpectedQuery(t *testing.T) {
	var gotPath, gotQuery, gotPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotPage = r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"id":603,"title":"The Matrix","media_type":"movie","release_date":"1999-03-31","vote_average":7.8},
			{"id":1,"name":"Keanu Reeves","media_type":"person"}
		]}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "test-key", BaseURL: server.URL, Client: server.Client()})
	items, err := provider.Search(context.Background(), "matrix", 2)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}

	if gotPath != "/search/multi" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotQuery != "matrix" || gotPage != "2" {
		t.Fatalf("unexpected params: query=%q page=%q", gotQuery, gotPage)
	}
	if len(items) != 1 {
		t.Fatalf("expected person entry filtered out, got %d items", len(items))
	}
	if items[0].Provider != "tmdb" {
		t.Fatalf("unexpected provider tag: %q", items[0].Provider)
	}
}

func TestSearchUpstreamErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewProvider(Config{APIKey: "bad-key", BaseURL: server.URL, Client: server.Client()})
	if _, err := provider.Search(context.Background(), "matrix", 1); err == nil {
		t.Fatal("expected error for upstream 401")
	}
}

func TestSearchWithoutAPIKey(t *testing.T) {
	provider := NewProvider(Config{})
	if _, err := provider.Search(context.Background(), "matrix", 1); err == nil {
		t.Fatal("expected error without api key")
	}
}
