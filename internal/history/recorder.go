package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"mediatrack/searchservice/internal/metrics"
)

const (
	historyZSetKey   = "msearch:history:queries"
	historyMaxSize   = 5000
	recordBufferSize = 256
	recordTimeout    = 2 * time.Second

	defaultSuggestLimit = 10
	maxSuggestLimit     = 25
	// scanBatch bounds how many top queries one suggest call inspects. Prefix
	// filtering happens client side, so the scan window caps the work.
	scanBatch = 500
)

type event struct {
	query string
	total int
}

// Recorder keeps a popularity-ranked history of search queries in a Redis
// sorted set. Recording is fire-and-forget: events flow through a buffered
// channel, and when the buffer is full the event is dropped rather than ever
// blocking a search request. With a nil client the recorder is disabled and
// every method is a cheap noop.
type Recorder struct {
	client  *redis.Client
	events  chan event
	started atomic.Bool
}

func NewRecorder(client *redis.Client) *Recorder {
	return &Recorder{
		client: client,
		events: make(chan event, recordBufferSize),
	}
}

func (r *Recorder) Enabled() bool {
	return r != nil && r.client != nil
}

// Start launches the drain goroutine. Safe to call once; the goroutine stops
// when ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	if !r.Enabled() {
		return
	}
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.drain(ctx)
}

// Record enqueues one search for history. Never blocks.
func (r *Recorder) Record(query string, total int) {
	if !r.Enabled() {
		return
	}
	query = normalizeQuery(query)
	if query == "" {
		return
	}
	select {
	case r.events <- event{query: query, total: total}:
	default:
		metrics.HistoryEventsDroppedTotal.Inc()
	}
}

func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-r.events:
			r.persist(ctx, item)
		}
	}
}

func (r *Recorder) persist(ctx context.Context, item event) {
	opCtx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := r.client.ZIncrBy(opCtx, historyZSetKey, 1, item.query).Err(); err != nil {
		slog.Debug("history record failed",
			slog.String("query", item.query),
			slog.String("error", err.Error()),
		)
		return
	}

	// Keep the set bounded; drop the long tail of one-off queries.
	size, err := r.client.ZCard(opCtx, historyZSetKey).Result()
	if err != nil || size <= historyMaxSize {
		return
	}
	_ = r.client.ZRemRangeByRank(opCtx, historyZSetKey, 0, size-historyMaxSize-1).Err()
}

// Suggestion is one history-backed autocomplete candidate.
type Suggestion struct {
	Query string `json:"query"`
	Hits  int64  `json:"hits"`
}

// Suggest returns up to limit previously seen queries starting with prefix,
// most popular first. Redis sorted sets rank by score, not lexicographically,
// so the prefix match runs client side over the top of the set.
func (r *Recorder) Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	if !r.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}
	prefix = normalizeQuery(prefix)

	entries, err := r.client.ZRevRangeWithScores(ctx, historyZSetKey, 0, scanBatch-1).Result()
	if err != nil {
		return nil, fmt.Errorf("history suggest: %w", err)
	}

	suggestions := filterByPrefix(entries, prefix, limit)
	return suggestions, nil
}

func filterByPrefix(entries []redis.Z, prefix string, limit int) []Suggestion {
	suggestions := make([]Suggestion, 0, limit)
	for _, entry := range entries {
		query, ok := entry.Member.(string)
		if !ok {
			continue
		}
		if prefix != "" && !strings.HasPrefix(query, prefix) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Query: query,
			Hits:  int64(entry.Score),
		})
		if len(suggestions) == limit {
			break
		}
	}
	// Equal scores can interleave differently between calls; fix the order.
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Hits != suggestions[j].Hits {
			return suggestions[i].Hits > suggestions[j].Hits
		}
		return suggestions[i].Query < suggestions[j].Query
	})
	return suggestions
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
