package search

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"mediatrack/searchservice/internal/domain"
)

// Process filters and ranks a merged result list. It is a pure function of
// its inputs: the incoming slice is never mutated, and identical inputs always
// produce the identical output order regardless of how the list was assembled.
func Process(results []domain.SearchResult, request domain.SearchRequest) []domain.SearchResult {
	filtered := applyFilters(results, request)
	sortResults(filtered, request)
	return filtered
}

// applyFilters AND-combines the media-type, year-range and rating-range
// filters. Results missing a filtered field always pass: absent means
// "unknown", and unknown is never grounds for exclusion. The genre filter is
// accepted in the request but deliberately not applied (no provider exposes a
// comparable genre taxonomy).
func applyFilters(results []domain.SearchResult, request domain.SearchRequest) []domain.SearchResult {
	filtered := make([]domain.SearchResult, 0, len(results))
	for _, item := range results {
		if request.MediaType != "" && item.MediaCategory != request.MediaType {
			continue
		}
		if item.Year != nil {
			if request.Filters.YearFrom != nil && *item.Year < *request.Filters.YearFrom {
				continue
			}
			if request.Filters.YearTo != nil && *item.Year > *request.Filters.YearTo {
				continue
			}
		}
		if item.Rating != nil {
			if request.Filters.RatingFrom != nil && *item.Rating < *request.Filters.RatingFrom {
				continue
			}
			if request.Filters.RatingTo != nil && *item.Rating > *request.Filters.RatingTo {
				continue
			}
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func sortResults(items []domain.SearchResult, request domain.SearchRequest) {
	queryLower := strings.ToLower(strings.TrimSpace(request.Query))
	collator := collate.New(language.Und, collate.IgnoreCase)

	sort.Slice(items, func(i, j int) bool {
		cmp := compareResults(items[i], items[j], request.SortKey, queryLower, collator)
		if request.SortOrder == domain.SearchSortOrderAsc {
			return cmp < 0
		}
		return cmp > 0
	})
}

// compareResults returns the natural (ascending) ordering for the sort key;
// the order parameter flips its sign uniformly. Ties fall through to the
// collated title and finally the unique id, so the comparator is total and the
// output order never depends on provider completion order.
func compareResults(left, right domain.SearchResult, key domain.SearchSortKey, queryLower string, collator *collate.Collator) int {
	switch key {
	case domain.SearchSortByRating, domain.SearchSortByPopularity:
		// No separate popularity metric exists; popularity aliases rating.
		if cmp := compareFloat64(ratingForCompare(left), ratingForCompare(right)); cmp != 0 {
			return cmp
		}
	case domain.SearchSortByYear:
		if cmp := compareInt(yearForCompare(left), yearForCompare(right)); cmp != 0 {
			return cmp
		}
	case domain.SearchSortByTitle:
		if cmp := collator.CompareString(left.Title, right.Title); cmp != 0 {
			return cmp
		}
	default: // relevance
		if cmp := compareInt(relevanceBucket(left, queryLower), relevanceBucket(right, queryLower)); cmp != 0 {
			return cmp
		}
		if cmp := compareFloat64(ratingForCompare(left), ratingForCompare(right)); cmp != 0 {
			return cmp
		}
	}
	if cmp := collator.CompareString(left.Title, right.Title); cmp != 0 {
		return cmp
	}
	return strings.Compare(left.ID, right.ID)
}

// relevanceBucket is 1 when the title contains the query text
// (case-insensitive), else 0. Within a bucket, rating breaks ties.
func relevanceBucket(item domain.SearchResult, queryLower string) int {
	if queryLower == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(item.Title), queryLower) {
		return 1
	}
	return 0
}

// ratingForCompare treats an absent rating as 0 for ordering only; the stored
// value is never rewritten.
func ratingForCompare(item domain.SearchResult) float64 {
	if item.Rating == nil {
		return 0
	}
	return *item.Rating
}

func yearForCompare(item domain.SearchResult) int {
	if item.Year == nil {
		return 0
	}
	return *item.Year
}

func compareInt(left, right int) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func compareFloat64(left, right float64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}
