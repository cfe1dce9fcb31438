package search

import (
	"testing"

	"mediatrack/searchservice/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func ranked(id, title string, category domain.MediaCategory, year *int, rating *float64) domain.SearchResult {
	return domain.SearchResult{
		ID:            id,
		Title:         title,
		MediaCategory: category,
		Year:          year,
		Rating:        rating,
		Provider:      "test",
	}
}

func ids(items []domain.SearchResult) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func equalIDs(left, right []string) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

func TestFilterMediaType(t *testing.T) {
	input := []domain.SearchResult{
		ranked("a", "Dune", domain.MediaCategoryFilm, nil, nil),
		ranked("b", "Dune", domain.MediaCategoryBook, nil, nil),
		ranked("c", "Dune", domain.MediaCategorySeries, nil, nil),
	}

	out := Process(input, domain.SearchRequest{Query: "dune", MediaType: domain.MediaCategoryBook})
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("expected only book result, got %v", ids(out))
	}
}

func TestFilterYearRangeAbsentPasses(t *testing.T) {
	input := []domain.SearchResult{
		ranked("old", "Dune", domain.MediaCategoryFilm, intPtr(1984), nil),
		ranked("new", "Dune", domain.MediaCategoryFilm, intPtr(2021), nil),
		ranked("unknown", "Dune", domain.MediaCategoryFilm, nil, nil),
	}

	out := Process(input, domain.SearchRequest{
		Query:   "dune",
		Filters: domain.SearchFilters{YearFrom: intPtr(2000)},
	})

	got := make(map[string]bool, len(out))
	for _, item := range out {
		got[item.ID] = true
	}
	if got["old"] {
		t.Fatalf("expected 1984 result excluded, got %v", ids(out))
	}
	if !got["new"] || !got["unknown"] {
		t.Fatalf("expected in-range and unknown-year results kept, got %v", ids(out))
	}
}

func TestFilterRatingRangeAbsentPasses(t *testing.T) {
	input := []domain.SearchResult{
		ranked("low", "Dune", domain.MediaCategoryFilm, nil, floatPtr(3.1)),
		ranked("high", "Dune", domain.MediaCategoryFilm, nil, floatPtr(8.2)),
		ranked("unrated", "Dune", domain.MediaCategoryBook, nil, nil),
	}

	out := Process(input, domain.SearchRequest{
		Query:   "dune",
		Filters: domain.SearchFilters{RatingFrom: floatPtr(7.0)},
	})

	got := make(map[string]bool, len(out))
	for _, item := range out {
		got[item.ID] = true
	}
	if got["low"] {
		t.Fatalf("expected low-rated result excluded, got %v", ids(out))
	}
	if !got["high"] || !got["unrated"] {
		t.Fatalf("expected high-rated and unrated results kept, got %v", ids(out))
	}
}

func TestFilterSwappedBoundsSelectEmptyWindow(t *testing.T) {
	input := []domain.SearchResult{
		ranked("a", "Dune", domain.MediaCategoryFilm, intPtr(2021), nil),
	}

	out := Process(input, domain.SearchRequest{
		Query:   "dune",
		Filters: domain.SearchFilters{YearFrom: intPtr(2022), YearTo: intPtr(2020)},
	})
	if len(out) != 0 {
		t.Fatalf("expected empty window for swapped bounds, got %v", ids(out))
	}
}

func TestFilterYearWindowNarrowingIsMonotone(t *testing.T) {
	input := []domain.SearchResult{
		ranked("y1950", "Dune", domain.MediaCategoryFilm, intPtr(1950), nil),
		ranked("y1970", "Dune", domain.MediaCategoryFilm, intPtr(1970), nil),
		ranked("y1980", "Dune", domain.MediaCategoryFilm, intPtr(1980), nil),
		ranked("y1982", "Dune", domain.MediaCategoryFilm, intPtr(1982), nil),
		ranked("y1990", "Dune", domain.MediaCategoryFilm, intPtr(1990), nil),
		ranked("y2010", "Dune", domain.MediaCategoryFilm, intPtr(2010), nil),
		ranked("unknown", "Dune", domain.MediaCategoryFilm, nil, nil),
	}

	// Each window is strictly inside the previous one.
	windows := []domain.SearchFilters{
		{},
		{YearFrom: intPtr(1940), YearTo: intPtr(2020)},
		{YearFrom: intPtr(1960), YearTo: intPtr(2000)},
		{YearFrom: intPtr(1975), YearTo: intPtr(1995)},
		{YearFrom: intPtr(1980), YearTo: intPtr(1985)},
	}

	counts := make([]int, len(windows))
	for i, filters := range windows {
		counts[i] = len(Process(input, domain.SearchRequest{Query: "dune", Filters: filters}))
	}
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[i-1] {
			t.Fatalf("narrowing the year window grew the result count: %v", counts)
		}
	}
	// Widening back out (the same windows in reverse) never shrinks it.
	for i := len(counts) - 2; i >= 0; i-- {
		if counts[i] < counts[i+1] {
			t.Fatalf("widening the year window shrank the result count: %v", counts)
		}
	}
}

func TestFilterRatingWindowNarrowingIsMonotone(t *testing.T) {
	input := []domain.SearchResult{
		ranked("r2", "Dune", domain.MediaCategoryFilm, nil, floatPtr(2.0)),
		ranked("r45", "Dune", domain.MediaCategoryFilm, nil, floatPtr(4.5)),
		ranked("r6", "Dune", domain.MediaCategoryFilm, nil, floatPtr(6.0)),
		ranked("r75", "Dune", domain.MediaCategoryFilm, nil, floatPtr(7.5)),
		ranked("r9", "Dune", domain.MediaCategoryFilm, nil, floatPtr(9.0)),
		ranked("unrated", "Dune", domain.MediaCategoryBook, nil, nil),
	}

	windows := []domain.SearchFilters{
		{},
		{RatingFrom: floatPtr(0), RatingTo: floatPtr(10)},
		{RatingFrom: floatPtr(3), RatingTo: floatPtr(9)},
		{RatingFrom: floatPtr(5), RatingTo: floatPtr(8)},
		{RatingFrom: floatPtr(6.5), RatingTo: floatPtr(7)},
	}

	counts := make([]int, len(windows))
	for i, filters := range windows {
		counts[i] = len(Process(input, domain.SearchRequest{Query: "dune", Filters: filters}))
	}
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[i-1] {
			t.Fatalf("narrowing the rating window grew the result count: %v", counts)
		}
	}
	for i := len(counts) - 2; i >= 0; i-- {
		if counts[i] < counts[i+1] {
			t.Fatalf("widening the rating window shrank the result count: %v", counts)
		}
	}
}

func TestFilterGenresNotApplied(t *testing.T) {
	input := []domain.SearchResult{
		ranked("a", "Dune", domain.MediaCategoryFilm, nil, nil),
		ranked("b", "Dune Messiah", domain.MediaCategoryBook, nil, nil),
	}

	out := Process(input, domain.SearchRequest{
		Query:   "dune",
		Filters: domain.SearchFilters{Genres: []string{"horror", "romance"}},
	})
	if len(out) != 2 {
		t.Fatalf("expected genre filter to pass everything through, got %v", ids(out))
	}
}

// ---------------------------------------------------------------------------
// Sorting
// ---------------------------------------------------------------------------

func TestSortRelevanceMatchesFirstThenRating(t *testing.T) {
	input := []domain.SearchResult{
		ranked("nomatch-high", "Arrakis Chronicles", domain.MediaCategoryFilm, nil, floatPtr(9.9)),
		ranked("match-low", "Dune Club", domain.MediaCategoryFilm, nil, floatPtr(2.0)),
		ranked("match-high", "Dune", domain.MediaCategoryFilm, nil, floatPtr(8.0)),
	}

	out := Process(input, domain.SearchRequest{Query: "dune"})
	want := []string{"match-high", "match-low", "nomatch-high"}
	if !equalIDs(ids(out), want) {
		t.Fatalf("expected %v, got %v", want, ids(out))
	}
}

func TestSortRelevanceOrdersAcrossProviders(t *testing.T) {
	// A merged list from two catalogs: both title matches sort by rating
	// regardless of which provider supplied them, the non-match goes last even
	// with the best rating.
	input := []domain.SearchResult{
		{ID: "openlibrary-OL1W", Title: "Dune Messiah", MediaCategory: domain.MediaCategoryBook, Rating: floatPtr(7.0), Provider: "openlibrary"},
		{ID: "tmdb-999", Title: "Spice World", MediaCategory: domain.MediaCategoryFilm, Rating: floatPtr(9.9), Provider: "tmdb"},
		{ID: "tmdb-438631", Title: "Dune", MediaCategory: domain.MediaCategoryFilm, Rating: floatPtr(8.4), Provider: "tmdb"},
	}

	out := Process(input, domain.SearchRequest{Query: "dune"})
	want := []string{"tmdb-438631", "openlibrary-OL1W", "tmdb-999"}
	if !equalIDs(ids(out), want) {
		t.Fatalf("expected %v, got %v", want, ids(out))
	}
}

func TestSortRelevanceCaseInsensitiveMatch(t *testing.T) {
	input := []domain.SearchResult{
		ranked("upper", "DUNE: PART TWO", domain.MediaCategoryFilm, nil, floatPtr(5.0)),
		ranked("none", "Spice World", domain.MediaCategoryFilm, nil, floatPtr(9.0)),
	}

	out := Process(input, domain.SearchRequest{Query: "dune"})
	if out[0].ID != "upper" {
		t.Fatalf("expected case-insensitive title match ranked first, got %v", ids(out))
	}
}

func TestSortYearDescAndAsc(t *testing.T) {
	input := []domain.SearchResult{
		ranked("y1984", "Dune", domain.MediaCategoryFilm, intPtr(1984), nil),
		ranked("y2021", "Dune", domain.MediaCategoryFilm, intPtr(2021), nil),
		ranked("y2000", "Dune", domain.MediaCategoryFilm, intPtr(2000), nil),
	}

	desc := Process(input, domain.SearchRequest{
		Query:     "dune",
		SortKey:   domain.SearchSortByYear,
		SortOrder: domain.SearchSortOrderDesc,
	})
	if !equalIDs(ids(desc), []string{"y2021", "y2000", "y1984"}) {
		t.Fatalf("unexpected desc order: %v", ids(desc))
	}

	asc := Process(input, domain.SearchRequest{
		Query:     "dune",
		SortKey:   domain.SearchSortByYear,
		SortOrder: domain.SearchSortOrderAsc,
	})
	if !equalIDs(ids(asc), []string{"y1984", "y2000", "y2021"}) {
		t.Fatalf("unexpected asc order: %v", ids(asc))
	}
}

func TestSortRatingAbsentSortsAsZero(t *testing.T) {
	input := []domain.SearchResult{
		ranked("rated", "Dune", domain.MediaCategoryFilm, nil, floatPtr(7.5)),
		ranked("unrated", "Dune", domain.MediaCategoryBook, nil, nil),
	}

	out := Process(input, domain.SearchRequest{
		Query:     "dune",
		SortKey:   domain.SearchSortByRating,
		SortOrder: domain.SearchSortOrderDesc,
	})
	if out[0].ID != "rated" || out[1].ID != "unrated" {
		t.Fatalf("expected unrated last in desc order, got %v", ids(out))
	}
	// The absent rating is only treated as zero while comparing; the field
	// itself stays nil.
	if out[1].Rating != nil {
		t.Fatalf("expected absent rating to stay nil, got %v", *out[1].Rating)
	}
}

func TestSortPopularityAliasesRating(t *testing.T) {
	input := []domain.SearchResult{
		ranked("low", "Dune", domain.MediaCategoryFilm, nil, floatPtr(2.0)),
		ranked("high", "Dune", domain.MediaCategoryFilm, nil, floatPtr(9.0)),
	}

	byRating := Process(input, domain.SearchRequest{Query: "dune", SortKey: domain.SearchSortByRating})
	byPopularity := Process(input, domain.SearchRequest{Query: "dune", SortKey: domain.SearchSortByPopularity})
	if !equalIDs(ids(byRating), ids(byPopularity)) {
		t.Fatalf("expected popularity to order like rating: %v vs %v", ids(byRating), ids(byPopularity))
	}
}

func TestSortTitleAsc(t *testing.T) {
	input := []domain.SearchResult{
		ranked("c", "Children of Dune", domain.MediaCategoryBook, nil, nil),
		ranked("a", "Arrakis", domain.MediaCategoryBook, nil, nil),
		ranked("b", "Blade of Dune", domain.MediaCategoryBook, nil, nil),
	}

	out := Process(input, domain.SearchRequest{
		Query:     "dune",
		SortKey:   domain.SearchSortByTitle,
		SortOrder: domain.SearchSortOrderAsc,
	})
	if !equalIDs(ids(out), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected title order: %v", ids(out))
	}
}

// ---------------------------------------------------------------------------
// Determinism and purity
// ---------------------------------------------------------------------------

func TestProcessOrderIndependentOfInputOrder(t *testing.T) {
	base := []domain.SearchResult{
		ranked("a", "Dune", domain.MediaCategoryFilm, intPtr(2021), floatPtr(8.0)),
		ranked("b", "Dune", domain.MediaCategoryBook, intPtr(1965), floatPtr(8.0)),
		ranked("c", "Dune Messiah", domain.MediaCategoryBook, intPtr(1969), floatPtr(7.1)),
		ranked("d", "Spice World", domain.MediaCategoryFilm, intPtr(1997), floatPtr(3.2)),
	}
	reversed := []domain.SearchResult{base[3], base[2], base[1], base[0]}

	request := domain.SearchRequest{Query: "dune"}
	first := Process(base, request)
	second := Process(reversed, request)
	if !equalIDs(ids(first), ids(second)) {
		t.Fatalf("output depends on input order: %v vs %v", ids(first), ids(second))
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	input := []domain.SearchResult{
		ranked("b", "Beta", domain.MediaCategoryFilm, nil, nil),
		ranked("a", "Alpha", domain.MediaCategoryFilm, nil, nil),
	}

	_ = Process(input, domain.SearchRequest{
		Query:     "alpha",
		SortKey:   domain.SearchSortByTitle,
		SortOrder: domain.SearchSortOrderAsc,
	})

	if input[0].ID != "b" || input[1].ID != "a" {
		t.Fatalf("input slice was reordered: %v", ids(input))
	}
}
