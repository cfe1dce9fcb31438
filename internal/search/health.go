package search

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	"mediatrack/searchservice/internal/domain"
	"mediatrack/searchservice/internal/metrics"
)

const (
	healthFailureThreshold = 3
	healthBaseBlock        = 30 * time.Second
	healthMaxBlock         = 10 * time.Minute
)

// providerHealth tracks one catalog's recent behavior. After a run of
// consecutive failures the provider is blocked for an exponentially growing
// window so a dead upstream stops eating into the per-request deadline.
type providerHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastQuery           string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (s *Service) isProviderBlocked(name string, now time.Time) (bool, time.Time, string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	health, ok := s.health[name]
	if !ok {
		return false, time.Time{}, ""
	}
	if now.Before(health.blockedUntil) {
		return true, health.blockedUntil, health.lastError
	}
	return false, time.Time{}, ""
}

func (s *Service) recordProviderResult(name, query string, err error, elapsed time.Duration, now time.Time) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	health, ok := s.health[name]
	if !ok {
		health = &providerHealth{}
		s.health[name] = health
	}

	health.totalRequests++
	health.lastLatency = elapsed
	health.lastQuery = query

	result := "success"
	if err != nil {
		result = "error"
		health.totalFailures++
		health.consecutiveFailures++
		health.lastError = err.Error()
		health.lastFailureAt = now
		health.lastTimeout = isTimeoutLikeError(err)
		if health.lastTimeout {
			health.timeoutCount++
		}
		if health.consecutiveFailures >= healthFailureThreshold {
			health.blockedUntil = now.Add(exponentialBlockDuration(health.consecutiveFailures))
		}
		metrics.ProviderAvailable.WithLabelValues(name).Set(0)
	} else {
		health.consecutiveFailures = 0
		health.blockedUntil = time.Time{}
		health.lastError = ""
		health.lastSuccessAt = now
		health.lastTimeout = false
		metrics.ProviderAvailable.WithLabelValues(name).Set(1)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(name, result).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// exponentialBlockDuration doubles the block per failure past the threshold,
// capped at healthMaxBlock.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exceeded := consecutiveFailures - healthFailureThreshold
	if exceeded < 0 {
		exceeded = 0
	}
	block := healthBaseBlock
	for i := 0; i < exceeded; i++ {
		block *= 2
		if block >= healthMaxBlock {
			return healthMaxBlock
		}
	}
	return block
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "deadline exceeded")
}

// ProviderDiagnostics reports per-provider health for the operator endpoint.
func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	infos := s.Providers()

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.ProviderDiagnostics, 0, len(infos))
	for _, info := range infos {
		diag := domain.ProviderDiagnostics{
			Name:    info.Name,
			Label:   info.Label,
			Kind:    info.Kind,
			Enabled: info.Enabled,
		}
		if health, ok := s.health[info.Name]; ok {
			diag.ConsecutiveFailures = health.consecutiveFailures
			diag.LastError = health.lastError
			diag.LastLatencyMS = health.lastLatency.Milliseconds()
			diag.LastTimeout = health.lastTimeout
			diag.LastQuery = health.lastQuery
			diag.TotalRequests = health.totalRequests
			diag.TotalFailures = health.totalFailures
			diag.TimeoutCount = health.timeoutCount
			if !health.blockedUntil.IsZero() && time.Now().Before(health.blockedUntil) {
				until := health.blockedUntil
				diag.BlockedUntil = &until
			}
			if !health.lastSuccessAt.IsZero() {
				at := health.lastSuccessAt
				diag.LastSuccessAt = &at
			}
			if !health.lastFailureAt.IsZero() {
				at := health.lastFailureAt
				diag.LastFailureAt = &at
			}
		}
		items = append(items, diag)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
