package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mediatrack/searchservice/internal/domain"
)

var (
	ErrInvalidQuery = errors.New("query is required")
	ErrInvalidPage  = errors.New("page must be >= 1")
	ErrNoProviders  = errors.New("no search providers configured")
)

// Provider is one external content catalog behind a uniform adapter. Adapters
// return errors; the aggregator decides uniformly how to treat them (always
// "degrade to empty"), so a failing catalog never aborts a search.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	Search(ctx context.Context, query string, page int) ([]domain.SearchResult, error)
}

type Service struct {
	providers     map[string]Provider
	timeout       time.Duration
	cacheDisabled bool
	cacheMu       sync.RWMutex
	cache         map[string]*cachedSearchResponse
	popular       map[string]*popularQuery
	warmerCfg     searchWarmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend
	healthMu      sync.Mutex
	health        map[string]*providerHealth
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	registry := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			continue
		}
		registry[name] = provider
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	svc := &Service{
		providers: registry,
		timeout:   timeout,
		cache:     make(map[string]*cachedSearchResponse),
		popular:   make(map[string]*popularQuery),
		warmerCfg: defaultSearchWarmerConfig(),
		health:    make(map[string]*providerHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// StartBackground launches the cache warmer. It stops when ctx is cancelled,
// which ties the warmer's lifecycle to the host process.
func (s *Service) StartBackground(ctx context.Context) {
	if s.warmerRun.CompareAndSwap(false, true) {
		go s.runWarmer(ctx)
	}
}

func (s *Service) Providers() []domain.ProviderInfo {
	if len(s.providers) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for _, provider := range s.providers {
		info := provider.Info()
		if info.Name == "" {
			info.Name = strings.ToLower(strings.TrimSpace(provider.Name()))
		}
		if info.Name == "" {
			continue
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

// selectedProviders returns all registered providers in a stable name order.
// Ranking fully determines the final order, so the selection order only needs
// to be deterministic for status reporting.
func (s *Service) selectedProviders() ([]Provider, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}
	selected := make([]Provider, 0, len(s.providers))
	for _, provider := range s.providers {
		selected = append(selected, provider)
	}
	sort.Slice(selected, func(i, j int) bool {
		return strings.ToLower(selected[i].Name()) < strings.ToLower(selected[j].Name())
	})
	return selected, nil
}
